// Package fraud implements the fee and honeypot simulator on top of
// transaction-simulation services, with a bytecode-signature fallback
package fraud

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const DefaultHoneypotURL = "https://api.honeypot.is"

type HoneypotClient struct {
	baseURL    string
	httpClient *http.Client
}

// HoneypotAPIResponse represents the full API response structure
type HoneypotAPIResponse struct {
	Token struct {
		Name         string `json:"name"`
		Symbol       string `json:"symbol"`
		Address      string `json:"address"`
		TotalHolders int    `json:"totalHolders"`
	} `json:"token"`
	Summary struct {
		Risk      string `json:"risk"`
		RiskLevel int    `json:"riskLevel"`
		Flags     []struct {
			Flag        string `json:"flag"`
			Description string `json:"description"`
			Severity    string `json:"severity"`
		} `json:"flags"`
	} `json:"summary"`
	SimulationSuccess bool   `json:"simulationSuccess"`
	SimulationError   string `json:"simulationError"`
	HoneypotResult    struct {
		IsHoneypot     bool   `json:"isHoneypot"`
		HoneypotReason string `json:"honeypotReason"`
	} `json:"honeypotResult"`
	SimulationResult struct {
		BuyTax      float64 `json:"buyTax"`
		SellTax     float64 `json:"sellTax"`
		TransferTax float64 `json:"transferTax"`
	} `json:"simulationResult"`
	HolderAnalysis struct {
		Holders    string  `json:"holders"`
		Successful string  `json:"successful"`
		Failed     string  `json:"failed"`
		Siphoned   string  `json:"siphoned"`
		AverageTax float64 `json:"averageTax"`
	} `json:"holderAnalysis"`
	Flags        []string `json:"flags"`
	ContractCode struct {
		OpenSource    bool `json:"openSource"`
		IsProxy       bool `json:"isProxy"`
		HasProxyCalls bool `json:"hasProxyCalls"`
	} `json:"contractCode"`
}

// HoneypotData represents the extracted fraud-relevant data
type HoneypotData struct {
	SimulationSuccess bool

	IsHoneypot     bool
	HoneypotReason string
	RiskLevel      int // 0-100

	// Taxes, in percent
	BuyTax      float64
	SellTax     float64
	TransferTax float64

	// Holder analysis (catches honeypots that pass a single simulated sell)
	TotalHolders    int
	SuccessfulSells int
	FailedSells     int
	FailRate        float64 // failed/total

	Flags []string
}

func NewHoneypotClient(baseURL string, httpClient *http.Client) *HoneypotClient {
	if baseURL == "" {
		baseURL = DefaultHoneypotURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &HoneypotClient{baseURL: baseURL, httpClient: httpClient}
}

// CheckToken runs honeypot.is buy/sell simulation for a token
func (h *HoneypotClient) CheckToken(ctx context.Context, address string, chainID int64) (*HoneypotData, error) {
	q := url.Values{"address": {address}, "chainID": {strconv.FormatInt(chainID, 10)}}
	body, err := getJSON(ctx, h.httpClient, h.baseURL+"/v2/IsHoneypot?"+q.Encode())
	if err != nil {
		return nil, fmt.Errorf("honeypot.is: %w", err)
	}

	var apiResp HoneypotAPIResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return nil, fmt.Errorf("honeypot.is: decode: %w", err)
	}

	// Parse holder analysis strings to ints
	holders, _ := strconv.Atoi(apiResp.HolderAnalysis.Holders)
	successful, _ := strconv.Atoi(apiResp.HolderAnalysis.Successful)
	failed, _ := strconv.Atoi(apiResp.HolderAnalysis.Failed)

	var failRate float64
	if holders > 0 {
		failRate = float64(failed) / float64(holders)
	}

	return &HoneypotData{
		SimulationSuccess: apiResp.SimulationSuccess,
		IsHoneypot:        apiResp.HoneypotResult.IsHoneypot,
		HoneypotReason:    apiResp.HoneypotResult.HoneypotReason,
		RiskLevel:         apiResp.Summary.RiskLevel,
		BuyTax:            apiResp.SimulationResult.BuyTax,
		SellTax:           apiResp.SimulationResult.SellTax,
		TransferTax:       apiResp.SimulationResult.TransferTax,
		TotalHolders:      holders,
		SuccessfulSells:   successful,
		FailedSells:       failed,
		FailRate:          failRate,
		Flags:             apiResp.Flags,
	}, nil
}

func getJSON(ctx context.Context, client *http.Client, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}
