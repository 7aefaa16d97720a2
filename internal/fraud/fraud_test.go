package fraud

import (
	"context"
	"encoding/hex"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/notlelouch/go-interview-practice/token-threat-scanner/internal/bytecode"
	"github.com/notlelouch/go-interview-practice/token-threat-scanner/internal/models"
	"github.com/notlelouch/go-interview-practice/token-threat-scanner/internal/provider"
)

const token = "0xAbC0000000000000000000000000000000000001"

func TestHoneypotClient_CheckToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v2/IsHoneypot" || r.URL.Query().Get("chainID") != "8453" {
			t.Errorf("unexpected request %s", r.URL)
		}
		_, _ = w.Write([]byte(`{
			"simulationSuccess": true,
			"honeypotResult": {"isHoneypot": false},
			"simulationResult": {"buyTax": 3, "sellTax": 12.5, "transferTax": 0},
			"holderAnalysis": {"holders": "200", "successful": "170", "failed": "30"}
		}`))
	}))
	defer srv.Close()

	c := NewHoneypotClient(srv.URL, srv.Client())
	got, err := c.CheckToken(context.Background(), token, 8453)
	if err != nil {
		t.Fatalf("CheckToken() error = %v", err)
	}
	if got.SellTax != 12.5 || got.TotalHolders != 200 || got.FailRate != 0.15 {
		t.Errorf("CheckToken() = %+v", got)
	}

	// 15% of 200 holders failing overrides the simulated verdict
	q, err := c.Quote(context.Background(), token, 8453)
	if err != nil {
		t.Fatalf("Quote() error = %v", err)
	}
	if !q.IsHoneypot || q.Reason == "" {
		t.Errorf("Quote() = %+v, want holder fail-rate honeypot", q)
	}
}

func TestHoneypotQuote_NotSimulated(t *testing.T) {
	if _, err := honeypotQuote(&HoneypotData{}); !errors.Is(err, errNotSimulated) {
		t.Errorf("honeypotQuote() error = %v, want errNotSimulated", err)
	}
}

func TestGoPlusClient_CheckToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/token_security/56" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"code":1,"message":"OK","result":{
			"0xabc0000000000000000000000000000000000001": {
				"buy_tax":"0.05","sell_tax":"0.99","transfer_tax":"0",
				"cannot_sell_all":"1","trading_cooldown":"1",
				"owner_address":"0x0000000000000000000000000000000000000000"
			}}}`))
	}))
	defer srv.Close()

	c := NewGoPlusClient(srv.URL, srv.Client())
	got, err := c.CheckToken(context.Background(), token, 56)
	if err != nil {
		t.Fatalf("CheckToken() error = %v", err)
	}
	if got.BuyTax != 5 || got.SellTax != 99 || !got.CannotSellAll || got.HasOwner {
		t.Errorf("CheckToken() = %+v", got)
	}

	q := goPlusQuote(got)
	if !q.IsHoneypot || !reflect.DeepEqual(q.AntiBot, []string{"trading_cooldown"}) {
		t.Errorf("goPlusQuote() = %+v", q)
	}
}

func TestGoPlusClient_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"code":4029,"message":"too many requests","result":{}}`))
	}))
	defer srv.Close()

	if _, err := NewGoPlusClient(srv.URL, srv.Client()).CheckToken(context.Background(), token, 1); err == nil {
		t.Error("CheckToken() accepted error code")
	}
}

type fakeSource struct {
	name  string
	quote Quote
	err   error
	delay time.Duration
	calls int
}

func (f *fakeSource) Name() string { return f.name }

func (f *fakeSource) Quote(ctx context.Context, address string, chainID int64) (Quote, error) {
	f.calls++
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return Quote{}, ctx.Err()
		}
	}
	return f.quote, f.err
}

func newSimulator(t *testing.T, sources ...QuoteSource) *Simulator {
	t.Helper()
	a, err := bytecode.NewAnalyzer()
	if err != nil {
		t.Fatal(err)
	}
	return NewSimulator(a, sources, 50*time.Millisecond, nil, zerolog.Nop())
}

func TestSimulator_Analyze(t *testing.T) {
	dead := errors.New("503")
	botCode, _ := hex.DecodeString("63b515566a" + "633b124fe7")

	tests := []struct {
		name          string
		sources       []*fakeSource
		code          []byte
		wantSource    string
		wantSimulated bool
		wantHoneypot  bool
		wantMaxFee    float64
		wantHidden    bool
		wantLikely    bool
		wantAntiBot   []string
		wantErr       bool
	}{
		{
			name:          "FirstSourceWins",
			sources:       []*fakeSource{{name: "a", quote: Quote{BuyTax: 2, SellTax: 10}}, {name: "b"}},
			wantSource:    "a",
			wantSimulated: true,
			wantMaxFee:    10,
			wantAntiBot:   []string{},
		},
		{
			name:          "FallsThroughToSecond",
			sources:       []*fakeSource{{name: "a", err: dead}, {name: "b", quote: Quote{SellTax: 10.5, IsHoneypot: true, AntiBot: []string{"anti_whale"}}}},
			wantSource:    "b",
			wantSimulated: true,
			wantHoneypot:  true,
			wantMaxFee:    10.5,
			wantHidden:    true,
			wantAntiBot:   []string{"anti_whale"},
		},
		{
			name:        "AllFailUsesMarkers",
			sources:     []*fakeSource{{name: "a", err: dead}, {name: "b", delay: time.Second}},
			code:        botCode,
			wantSource:  SourceHeuristic,
			wantLikely:  true,
			wantAntiBot: []string{"bot_list"},
			wantErr:     true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sources := make([]QuoteSource, len(tt.sources))
			for i, s := range tt.sources {
				sources[i] = s
			}
			got, err := newSimulator(t, sources...).Analyze(context.Background(), Target{
				Address: token, ChainID: 1, Family: models.FamilyEVM, Code: tt.code,
			})
			if (err != nil) != tt.wantErr {
				t.Fatalf("Analyze() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, provider.ErrAllProvidersFailed) {
				t.Errorf("Analyze() error = %v, want ErrAllProvidersFailed", err)
			}
			if got.Source != tt.wantSource || got.Simulated != tt.wantSimulated {
				t.Errorf("Source/Simulated = %q/%v, want %q/%v", got.Source, got.Simulated, tt.wantSource, tt.wantSimulated)
			}
			if got.HoneypotDetected != tt.wantHoneypot {
				t.Errorf("HoneypotDetected = %v, want %v", got.HoneypotDetected, tt.wantHoneypot)
			}
			if got.MaxFee != tt.wantMaxFee || got.HiddenFees != tt.wantHidden {
				t.Errorf("MaxFee/HiddenFees = %v/%v, want %v/%v", got.MaxFee, got.HiddenFees, tt.wantMaxFee, tt.wantHidden)
			}
			if got.HiddenFeesLikely != tt.wantLikely {
				t.Errorf("HiddenFeesLikely = %v, want %v", got.HiddenFeesLikely, tt.wantLikely)
			}
			if !reflect.DeepEqual(got.AntiBotMechanisms, tt.wantAntiBot) {
				t.Errorf("AntiBotMechanisms = %v, want %v", got.AntiBotMechanisms, tt.wantAntiBot)
			}
		})
	}
}

func TestSimulator_AccountModelSkipsSources(t *testing.T) {
	src := &fakeSource{name: "a", quote: Quote{SellTax: 50}}
	got, err := newSimulator(t, src).Analyze(context.Background(), Target{Address: "Mint", Family: models.FamilySolana})
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if src.calls != 0 {
		t.Errorf("source called %d times for account-model chain", src.calls)
	}
	if got.Simulated || got.Source != SourceHeuristic || got.HoneypotDetected {
		t.Errorf("Analyze() = %+v, want heuristic defaults", got)
	}
}

func TestSimulator_Heuristic(t *testing.T) {
	botCode, _ := hex.DecodeString("63b515566a" + "633b124fe7")
	src := &fakeSource{name: "unused"}
	s := newSimulator(t, src)

	got := s.Heuristic(Target{Address: "0xabc", ChainID: 1, Family: models.FamilyEVM, Code: botCode})
	if got.Source != SourceHeuristic || got.Simulated || got.HoneypotDetected {
		t.Errorf("Heuristic() = %+v", got)
	}
	if !got.HiddenFeesLikely || len(got.AntiBotMechanisms) == 0 {
		t.Errorf("markers not picked up: %+v", got)
	}
	if src.calls != 0 {
		t.Errorf("Heuristic() called a quote source %d times", src.calls)
	}
}
