// Package network holds the static catalogue of supported chains
package network

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"

	"github.com/notlelouch/go-interview-practice/token-threat-scanner/internal/models"
)

//go:embed networks.yaml
var defaultCatalogue []byte

var (
	ErrNetworkNotFound = errors.New("network not found")
	ErrNoLiveRPC       = errors.New("no live rpc endpoint")
)

const apiKeyPlaceholder = "{API_KEY}"

type RPCEndpoint struct {
	URL       string `yaml:"url"`
	APIKeyEnv string `yaml:"api_key_env,omitempty"`
}

type Explorer struct {
	URL   string `yaml:"url"`
	Style string `yaml:"style"` // evm | solscan
}

type Capabilities struct {
	Bytecode  bool `yaml:"bytecode"`
	Fees      bool `yaml:"fees"`
	Liquidity bool `yaml:"liquidity"`
	Social    bool `yaml:"social"`
}

type BaseAsset struct {
	Symbol            string  `yaml:"symbol"`
	Address           string  `yaml:"address"`
	Decimals          int     `yaml:"decimals"`
	ReferencePriceUSD float64 `yaml:"reference_price_usd"`
}

// NamedAddress is an exchange factory, liquidity locker or known exchange wallet
type NamedAddress struct {
	Name    string `yaml:"name"`
	Address string `yaml:"address"`
}

type ThreatLevel string

const (
	ThreatLow    ThreatLevel = "low"
	ThreatMedium ThreatLevel = "medium"
	ThreatHigh   ThreatLevel = "high"
)

// NetworkConfig describes one supported chain. Treat as read-only after Load.
type NetworkConfig struct {
	ID             string             `yaml:"id"`
	Name           string             `yaml:"name"`
	Family         models.ChainFamily `yaml:"family"`
	ChainID        int64              `yaml:"chain_id,omitempty"`
	NativeCurrency string             `yaml:"native_currency"`
	RPC            []RPCEndpoint      `yaml:"rpc"`
	Explorer       Explorer           `yaml:"explorer"`
	ExplorerAPI    string             `yaml:"explorer_api,omitempty"`
	Capabilities   Capabilities       `yaml:"capabilities"`
	ThreatLevel    ThreatLevel        `yaml:"threat_level"`
	KnownThreats   int                `yaml:"known_threats"`
	AvgScanSeconds float64            `yaml:"avg_scan_seconds"`

	// Liquidity topology, EVM only
	BaseAsset      BaseAsset      `yaml:"base_asset,omitempty"`
	Factories      []NamedAddress `yaml:"factories,omitempty"`
	Lockers        []NamedAddress `yaml:"lockers,omitempty"`
	KnownExchanges []NamedAddress `yaml:"known_exchanges,omitempty"`
}

type catalogue struct {
	Version  int             `yaml:"version"`
	Networks []NetworkConfig `yaml:"networks"`
}

// Registry is an immutable, validated set of networks
type Registry struct {
	order    []string
	networks map[string]NetworkConfig
}

// Load parses and validates a YAML catalogue. Any malformed entry is an error.
func Load(data []byte) (*Registry, error) {
	var c catalogue
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&c); err != nil {
		return nil, fmt.Errorf("network catalogue decode failed: %w", err)
	}
	if len(c.Networks) == 0 {
		return nil, fmt.Errorf("network catalogue is empty")
	}

	r := &Registry{networks: make(map[string]NetworkConfig, len(c.Networks))}
	for i, n := range c.Networks {
		if err := validate(n); err != nil {
			return nil, fmt.Errorf("network #%d (%q): %w", i, n.ID, err)
		}
		if _, dup := r.networks[n.ID]; dup {
			return nil, fmt.Errorf("network #%d: duplicate id %q", i, n.ID)
		}
		r.networks[n.ID] = n
		r.order = append(r.order, n.ID)
	}
	return r, nil
}

// LoadFile loads a catalogue from disk
func LoadFile(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("network catalogue open failed: %w", err)
	}
	return Load(data)
}

// Default loads the embedded catalogue
func Default() (*Registry, error) {
	return Load(defaultCatalogue)
}

func validate(n NetworkConfig) error {
	if strings.TrimSpace(n.ID) == "" {
		return fmt.Errorf("id is required")
	}
	if n.ID != strings.ToLower(strings.TrimSpace(n.ID)) {
		return fmt.Errorf("id %q must be lowercase without surrounding spaces", n.ID)
	}
	if n.Name == "" {
		return fmt.Errorf("name is required")
	}
	switch n.Family {
	case models.FamilyEVM, models.FamilySolana:
	default:
		return fmt.Errorf("unknown family %q", n.Family)
	}
	if len(n.RPC) == 0 {
		return fmt.Errorf("at least one rpc endpoint is required")
	}
	for _, ep := range n.RPC {
		u, err := url.Parse(ep.URL)
		if err != nil || u.Host == "" {
			return fmt.Errorf("invalid rpc url %q", ep.URL)
		}
		switch u.Scheme {
		case "http", "https", "ws", "wss":
		default:
			return fmt.Errorf("unsupported rpc scheme %q", u.Scheme)
		}
		if strings.Contains(ep.URL, apiKeyPlaceholder) && ep.APIKeyEnv == "" {
			return fmt.Errorf("rpc url %q has a placeholder but no api_key_env", ep.URL)
		}
	}
	if _, err := url.ParseRequestURI(n.Explorer.URL); err != nil {
		return fmt.Errorf("invalid explorer url %q", n.Explorer.URL)
	}
	if n.Explorer.Style != "evm" && n.Explorer.Style != "solscan" {
		return fmt.Errorf("unknown explorer style %q", n.Explorer.Style)
	}
	switch n.ThreatLevel {
	case ThreatLow, ThreatMedium, ThreatHigh:
	default:
		return fmt.Errorf("unknown threat level %q", n.ThreatLevel)
	}

	if n.Family != models.FamilyEVM {
		return nil
	}
	if n.ChainID <= 0 {
		return fmt.Errorf("evm network requires chain_id")
	}
	if len(n.Factories) > 0 && !common.IsHexAddress(n.BaseAsset.Address) {
		return fmt.Errorf("invalid base asset address %q", n.BaseAsset.Address)
	}
	for _, list := range [][]NamedAddress{n.Factories, n.Lockers, n.KnownExchanges} {
		for _, a := range list {
			if !common.IsHexAddress(a.Address) {
				return fmt.Errorf("invalid address %q for %s", a.Address, a.Name)
			}
		}
	}
	return nil
}

// IDs lists network ids in catalogue order
func (r *Registry) IDs() []string {
	return append([]string(nil), r.order...)
}

// Get returns the configuration for id
func (r *Registry) Get(id string) (NetworkConfig, error) {
	n, ok := r.networks[strings.ToLower(strings.TrimSpace(id))]
	if !ok {
		return NetworkConfig{}, fmt.Errorf("%w: %s", ErrNetworkNotFound, id)
	}
	return n, nil
}

// LivenessFunc reports whether an endpoint is usable for the given family
type LivenessFunc func(ctx context.Context, family models.ChainFamily, endpoint string) bool

// ResolveRPC returns the first endpoint of id that passes alive, with its
// api-key placeholder substituted from the environment. Endpoints whose key
// is not set are skipped.
func (r *Registry) ResolveRPC(ctx context.Context, id string, alive LivenessFunc) (string, error) {
	n, err := r.Get(id)
	if err != nil {
		return "", err
	}
	for _, ep := range n.RPC {
		endpoint, ok := substituteKey(ep, os.Getenv)
		if !ok {
			continue
		}
		if alive == nil || alive(ctx, n.Family, endpoint) {
			return endpoint, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrNoLiveRPC, id)
}

func substituteKey(ep RPCEndpoint, getenv func(string) string) (string, bool) {
	if !strings.Contains(ep.URL, apiKeyPlaceholder) {
		return ep.URL, true
	}
	key := strings.TrimSpace(getenv(ep.APIKeyEnv))
	if key == "" {
		return "", false
	}
	return strings.ReplaceAll(ep.URL, apiKeyPlaceholder, url.QueryEscape(key)), true
}

// LinkKind selects which explorer page to link
type LinkKind string

const (
	LinkAddress     LinkKind = "address"
	LinkTransaction LinkKind = "tx"
	LinkToken       LinkKind = "token"
)

// ExplorerURL builds an explorer link for an address, transaction or token
func (r *Registry) ExplorerURL(id string, kind LinkKind, value string) (string, error) {
	n, err := r.Get(id)
	if err != nil {
		return "", err
	}
	base := strings.TrimRight(n.Explorer.URL, "/")
	value = url.PathEscape(value)

	var segment string
	switch kind {
	case LinkAddress:
		segment = "address"
		if n.Explorer.Style == "solscan" {
			segment = "account"
		}
	case LinkTransaction:
		segment = "tx"
	case LinkToken:
		segment = "token"
	default:
		return "", fmt.Errorf("unknown explorer link kind %q", kind)
	}
	return fmt.Sprintf("%s/%s/%s", base, segment, value), nil
}

// HTTPLiveness returns a LivenessFunc that issues a cheap JSON-RPC call per family
func HTTPLiveness(client *http.Client) LivenessFunc {
	if client == nil {
		client = &http.Client{Timeout: 3 * time.Second}
	}
	return func(ctx context.Context, family models.ChainFamily, endpoint string) bool {
		if strings.HasPrefix(endpoint, "ws") {
			// Websocket endpoints are probed on dial.
			return true
		}
		method := "eth_chainId"
		if family == models.FamilySolana {
			method = "getHealth"
		}
		payload := fmt.Sprintf(`{"jsonrpc":"2.0","id":1,"method":"%s","params":[]}`, method)

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(payload))
		if err != nil {
			return false
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := client.Do(req)
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}
}
