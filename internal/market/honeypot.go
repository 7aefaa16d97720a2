package market

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/notlelouch/go-interview-practice/token-threat-scanner/internal/models"
)

const DefaultHoneyPotURL = "https://api.honeypot.is"

// HoneyPotClient fetches token holder lists from honeypot.is
type HoneyPotClient struct {
	baseURL    string
	httpClient *http.Client
}

type HoneyPotHolder struct {
	Address    string `json:"address"`
	Balance    string `json:"balance"`
	Alias      string `json:"alias"`
	IsContract bool   `json:"isContract"`
}

type TopTokenHoldersResponse struct {
	TotalSupply string           `json:"totalSupply"`
	Holders     []HoneyPotHolder `json:"holders"`
}

func NewHoneyPotClient(baseURL string, httpClient *http.Client) *HoneyPotClient {
	if baseURL == "" {
		baseURL = DefaultHoneyPotURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 5 * time.Second}
	}
	return &HoneyPotClient{baseURL: baseURL, httpClient: httpClient}
}

// TopHolders returns the largest holders of a token with their share of supply
func (c *HoneyPotClient) TopHolders(ctx context.Context, contractAddress string, chainID int64) ([]models.Holder, error) {
	q := url.Values{"address": {contractAddress}, "chainID": {strconv.FormatInt(chainID, 10)}}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/TopHolders?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("honeypot.is holders: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("honeypot.is holders: unexpected status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var result TopTokenHoldersResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("honeypot.is holders: decode: %w", err)
	}

	total, err := decimal.NewFromString(result.TotalSupply)
	if err != nil {
		return nil, fmt.Errorf("honeypot.is holders: total supply %q: %w", result.TotalSupply, err)
	}
	if total.IsZero() {
		return nil, nil
	}

	hundred := decimal.NewFromInt(100)
	holders := make([]models.Holder, 0, len(result.Holders))
	for _, h := range result.Holders {
		balance, err := decimal.NewFromString(h.Balance)
		if err != nil {
			continue
		}
		pct, _ := balance.Div(total).Mul(hundred).Float64()
		holders = append(holders, models.Holder{Address: h.Address, Percentage: pct})
	}
	return holders, nil
}

// HolderSource binds the client to one chain
func (c *HoneyPotClient) HolderSource(chainID int64) *ChainHolders {
	return &ChainHolders{client: c, chainID: chainID}
}

// ChainHolders serves top holders for a single EVM chain
type ChainHolders struct {
	client  *HoneyPotClient
	chainID int64
}

func (h *ChainHolders) TopHolders(ctx context.Context, address string, limit int) ([]models.Holder, error) {
	holders, err := h.client.TopHolders(ctx, address, h.chainID)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(holders) > limit {
		holders = holders[:limit]
	}
	return holders, nil
}
