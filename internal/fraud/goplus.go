package fraud

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const DefaultGoPlusURL = "https://api.gopluslabs.io"

type GoPlusClient struct {
	baseURL    string
	httpClient *http.Client
}

// GoPlusAPIResponse represents the full API response structure
type GoPlusAPIResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Result  map[string]struct {
		BuyTax              string `json:"buy_tax"`
		SellTax             string `json:"sell_tax"`
		TransferTax         string `json:"transfer_tax"`
		CannotBuy           string `json:"cannot_buy"`
		CannotSellAll       string `json:"cannot_sell_all"`
		IsHoneypot          string `json:"is_honeypot"`
		HoneypotWithCreator string `json:"honeypot_with_same_creator"`
		IsBlacklisted       string `json:"is_blacklisted"`
		IsAntiWhale         string `json:"is_anti_whale"`
		TradingCooldown     string `json:"trading_cooldown"`
		SlippageModifiable  string `json:"slippage_modifiable"`
		IsOpenSource        string `json:"is_open_source"`
		IsProxy             string `json:"is_proxy"`
		OwnerAddress        string `json:"owner_address"`
		HolderCount         string `json:"holder_count"`
	} `json:"result"`
}

// GoPlusData represents the extracted fraud-relevant data. Taxes are in percent.
type GoPlusData struct {
	BuyTax        float64
	SellTax       float64
	TransferTax   float64
	IsHoneypot    bool
	CannotBuy     bool
	CannotSellAll bool

	HoneypotWithCreator bool
	SlippageModifiable  bool
	TradingCooldown     bool
	AntiWhale           bool

	IsProxy      bool
	IsOpenSource bool
	HasOwner     bool
}

func NewGoPlusClient(baseURL string, httpClient *http.Client) *GoPlusClient {
	if baseURL == "" {
		baseURL = DefaultGoPlusURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &GoPlusClient{baseURL: baseURL, httpClient: httpClient}
}

// CheckToken performs security analysis on a token address
func (g *GoPlusClient) CheckToken(ctx context.Context, address string, chainID int64) (*GoPlusData, error) {
	rawURL := fmt.Sprintf("%s/api/v1/token_security/%d?contract_addresses=%s", g.baseURL, chainID, address)
	body, err := getJSON(ctx, g.httpClient, rawURL)
	if err != nil {
		return nil, fmt.Errorf("goplus: %w", err)
	}

	var apiResp GoPlusAPIResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return nil, fmt.Errorf("goplus: decode: %w", err)
	}
	if apiResp.Code != 1 {
		return nil, fmt.Errorf("goplus API error: %s", apiResp.Message)
	}

	// Result is keyed by the lowercased token address
	tokenData, exists := apiResp.Result[strings.ToLower(address)]
	if !exists {
		return nil, fmt.Errorf("goplus: no data for token %s", address)
	}
	// An unsimulated token comes back with empty tax fields
	if tokenData.BuyTax == "" && tokenData.SellTax == "" {
		return nil, fmt.Errorf("goplus: token %s not simulated", address)
	}

	hasOwner := tokenData.OwnerAddress != "" &&
		tokenData.OwnerAddress != "0x0000000000000000000000000000000000000000"

	return &GoPlusData{
		BuyTax:              percent(tokenData.BuyTax),
		SellTax:             percent(tokenData.SellTax),
		TransferTax:         percent(tokenData.TransferTax),
		IsHoneypot:          tokenData.IsHoneypot == "1",
		CannotBuy:           tokenData.CannotBuy == "1",
		CannotSellAll:       tokenData.CannotSellAll == "1",
		HoneypotWithCreator: tokenData.HoneypotWithCreator == "1",
		SlippageModifiable:  tokenData.SlippageModifiable == "1",
		TradingCooldown:     tokenData.TradingCooldown == "1",
		AntiWhale:           tokenData.IsAntiWhale == "1",
		IsProxy:             tokenData.IsProxy == "1",
		IsOpenSource:        tokenData.IsOpenSource == "1",
		HasOwner:            hasOwner,
	}, nil
}

// GoPlus reports taxes as fractions ("0.05" is 5%)
func percent(s string) float64 {
	f, _ := strconv.ParseFloat(s, 64)
	return f * 100
}
