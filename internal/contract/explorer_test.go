package contract

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestIsContractVerified(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    bool
		wantErr bool
	}{
		{
			name: "Verified",
			body: `{"status":"1","message":"OK","result":[{"SourceCode":"contract T {}","ABI":"[]","ContractName":"T","Proxy":"0"}]}`,
			want: true,
		},
		{
			name: "NoSource",
			body: `{"status":"1","message":"OK","result":[{"SourceCode":"","ABI":"Contract source code not verified","ContractName":"","Proxy":"0"}]}`,
			want: false,
		},
		{
			name:    "APIError",
			body:    `{"status":"0","message":"NOTOK","result":"Invalid API Key"}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				q := r.URL.Query()
				if q.Get("chainid") != "8453" || q.Get("action") != "getsourcecode" || q.Get("apikey") != "key" {
					t.Errorf("unexpected query %s", r.URL.RawQuery)
				}
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c := NewExplorerClient("key", srv.URL, 8453, srv.Client())
			got, err := c.IsContractVerified(context.Background(), "0xabc")
			if (err != nil) != tt.wantErr {
				t.Fatalf("IsContractVerified() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("IsContractVerified() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestContractCreation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("contractaddresses") == "0xnone" {
			_, _ = w.Write([]byte(`{"status":"1","message":"OK","result":[]}`))
			return
		}
		_, _ = w.Write([]byte(`{"status":"1","message":"OK","result":[{"contractCreator":"0xdeployer","txHash":"0xtx","blockNumber":"1","timestamp":"1700000000"}]}`))
	}))
	defer srv.Close()

	c := NewExplorerClient("key", srv.URL, 1, srv.Client())
	got, err := c.ContractCreation(context.Background(), "0xabc")
	if err != nil {
		t.Fatalf("ContractCreation() error = %v", err)
	}
	if got.Creator != "0xdeployer" || got.TxHash != "0xtx" || !got.DeployedAt.Equal(time.Unix(1700000000, 0)) {
		t.Errorf("ContractCreation() = %+v", got)
	}

	if _, err := c.ContractCreation(context.Background(), "0xnone"); !errors.Is(err, ErrNoCreationRecord) {
		t.Errorf("ContractCreation(none) error = %v, want ErrNoCreationRecord", err)
	}
}

func TestExplorerHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewExplorerClient("key", srv.URL, 1, srv.Client())
	if _, err := c.IsContractVerified(context.Background(), "0xabc"); err == nil {
		t.Error("IsContractVerified() succeeded on HTTP 429")
	}
}
