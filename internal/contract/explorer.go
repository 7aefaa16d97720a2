// Package contract implements an etherscan-v2 style explorer client used to
// resolve contract creators and source verification
package contract

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const DefaultBaseURL = "https://api.etherscan.io/v2/api"

var ErrNoCreationRecord = errors.New("no contract creation record")

type ExplorerClient struct {
	apikey     string
	baseURL    string
	chainID    int64
	httpClient *http.Client
}

type ContractSourceResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Result  []struct {
		SourceCode   string `json:"SourceCode"`
		ABI          string `json:"ABI"`
		ContractName string `json:"ContractName"`
		Proxy        string `json:"Proxy"`
	} `json:"result"`
}

type ContractCreationResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Result  []struct {
		BlockNumber     string `json:"blockNumber"`
		TimeStamp       string `json:"timestamp"`
		ContractCreator string `json:"contractCreator"`
		TxHash          string `json:"txHash"`
	} `json:"result"`
}

// APIErrorResponse is used when the API returns an error (result is a string)
type APIErrorResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Result  string `json:"result"`
}

// Creation is where and when a contract was deployed
type Creation struct {
	Creator    string
	TxHash     string
	DeployedAt time.Time
}

// NewExplorerClient returns a client for one EVM chain. An empty baseURL uses
// the etherscan v2 multichain endpoint.
func NewExplorerClient(apiKey, baseURL string, chainID int64, httpClient *http.Client) *ExplorerClient {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 5 * time.Second}
	}
	return &ExplorerClient{
		apikey:     apiKey,
		baseURL:    baseURL,
		chainID:    chainID,
		httpClient: httpClient,
	}
}

// IsContractVerified checks that the contract has published source and ABI.
// Proxies count as verified when their own source is published.
func (c *ExplorerClient) IsContractVerified(ctx context.Context, contractAddress string) (bool, error) {
	body, err := c.get(ctx, url.Values{
		"module":  {"contract"},
		"action":  {"getsourcecode"},
		"address": {contractAddress},
	})
	if err != nil {
		return false, err
	}

	var result ContractSourceResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return false, fmt.Errorf("decode getsourcecode response: %w", err)
	}

	return result.Status == "1" && len(result.Result) > 0 &&
		result.Result[0].SourceCode != "" && result.Result[0].ABI != "" &&
		result.Result[0].ABI != "Contract source code not verified", nil
}

// ContractCreation returns the deployer of a contract
func (c *ExplorerClient) ContractCreation(ctx context.Context, contractAddress string) (Creation, error) {
	body, err := c.get(ctx, url.Values{
		"module":            {"contract"},
		"action":            {"getcontractcreation"},
		"contractaddresses": {contractAddress},
	})
	if err != nil {
		return Creation{}, err
	}

	var result ContractCreationResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return Creation{}, fmt.Errorf("decode getcontractcreation response: %w", err)
	}
	if len(result.Result) == 0 {
		return Creation{}, ErrNoCreationRecord
	}

	r := result.Result[0]
	out := Creation{Creator: r.ContractCreator, TxHash: r.TxHash}
	if ts, err := strconv.ParseInt(r.TimeStamp, 10, 64); err == nil {
		out.DeployedAt = time.Unix(ts, 0).UTC()
	}
	return out, nil
}

func (c *ExplorerClient) get(ctx context.Context, q url.Values) ([]byte, error) {
	q.Set("chainid", strconv.FormatInt(c.chainID, 10))
	q.Set("apikey", c.apikey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("explorer %s request: %w", q.Get("action"), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("explorer %s: unexpected status %d", q.Get("action"), resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	// First check if it's an error response
	var errResp APIErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Status == "0" {
		return nil, fmt.Errorf("explorer API error: %s", errResp.Result)
	}
	return body, nil
}
