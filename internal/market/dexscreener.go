// Package market implements the liquidity analyzer: pool resolution, lock
// detection and holder concentration, backed by on-chain reads and the
// DexScreener and honeypot.is APIs.
package market

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/notlelouch/go-interview-practice/token-threat-scanner/internal/models"
)

const DefaultDexScreenerURL = "https://api.dexscreener.com/latest/dex/tokens"

type DexScreenerClient struct {
	baseURL    string
	httpClient *http.Client
}

type DexScreenerPair struct {
	ChainID     string `json:"chainId"`
	DexID       string `json:"dexId"`
	PairAddress string `json:"pairAddress"`
	BaseToken   struct {
		Address string `json:"address"`
		Symbol  string `json:"symbol"`
	} `json:"baseToken"`
	QuoteToken struct {
		Address string `json:"address"`
		Symbol  string `json:"symbol"`
	} `json:"quoteToken"`
	PriceUSD  string `json:"priceUsd"`
	Liquidity struct {
		USD float64 `json:"usd"`
	} `json:"liquidity"`
	Volume struct {
		H24 float64 `json:"h24"`
	} `json:"volume"`
	PairCreatedAt int64 `json:"pairCreatedAt"`
}

type DexScreenerResponse struct {
	Pairs []DexScreenerPair `json:"pairs"`
}

func NewDexScreenerClient(baseURL string, httpClient *http.Client) *DexScreenerClient {
	if baseURL == "" {
		baseURL = DefaultDexScreenerURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &DexScreenerClient{baseURL: baseURL, httpClient: httpClient}
}

// Pairs lists the pairs of a token on one chain. An empty chain matches all.
func (d *DexScreenerClient) Pairs(ctx context.Context, address, chain string) ([]DexScreenerPair, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/%s", d.baseURL, address), nil)
	if err != nil {
		return nil, err
	}
	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("dexscreener: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("dexscreener: unexpected status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var result DexScreenerResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("dexscreener: decode: %w", err)
	}

	pairs := result.Pairs[:0]
	for _, p := range result.Pairs {
		if chain == "" || strings.EqualFold(p.ChainID, chain) {
			pairs = append(pairs, p)
		}
	}
	return pairs, nil
}

// GetLiquidityMetrics aggregates liquidity and volume across all pairs of a token
func (d *DexScreenerClient) GetLiquidityMetrics(ctx context.Context, address, chain string) (liquidity, volume float64, pools []models.Pool, err error) {
	pairs, err := d.Pairs(ctx, address, chain)
	if err != nil {
		return 0, 0, nil, err
	}

	for _, pair := range pairs {
		liquidity += pair.Liquidity.USD
		volume += pair.Volume.H24
		pools = append(pools, models.Pool{
			Exchange:     pair.DexID,
			PairAddress:  pair.PairAddress,
			LiquidityUSD: pair.Liquidity.USD,
		})
	}
	sort.SliceStable(pools, func(i, j int) bool { return pools[i].LiquidityUSD > pools[j].LiquidityUSD })
	return liquidity, volume, pools, nil
}

// PriceUSD returns the USD price of a token from its deepest pair where it is the base token
func (d *DexScreenerClient) PriceUSD(ctx context.Context, address, chain string) (float64, error) {
	pairs, err := d.Pairs(ctx, address, chain)
	if err != nil {
		return 0, err
	}

	var best *DexScreenerPair
	for i := range pairs {
		p := &pairs[i]
		if !strings.EqualFold(p.BaseToken.Address, address) || p.PriceUSD == "" {
			continue
		}
		if best == nil || p.Liquidity.USD > best.Liquidity.USD {
			best = p
		}
	}
	if best == nil {
		return 0, fmt.Errorf("dexscreener: no priced pair for %s", address)
	}
	return strconv.ParseFloat(best.PriceUSD, 64)
}
