package scanner

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/notlelouch/go-interview-practice/token-threat-scanner/internal/bytecode"
	"github.com/notlelouch/go-interview-practice/token-threat-scanner/internal/chain"
	"github.com/notlelouch/go-interview-practice/token-threat-scanner/internal/contract"
	"github.com/notlelouch/go-interview-practice/token-threat-scanner/internal/fraud"
	"github.com/notlelouch/go-interview-practice/token-threat-scanner/internal/market"
	"github.com/notlelouch/go-interview-practice/token-threat-scanner/internal/models"
	"github.com/notlelouch/go-interview-practice/token-threat-scanner/internal/network"
	"github.com/notlelouch/go-interview-practice/token-threat-scanner/internal/provider"
)

// FeeAnalyzer simulates trades against a token. Heuristic is the marker-only
// analysis used when simulation does not finish in time.
type FeeAnalyzer interface {
	Analyze(ctx context.Context, t fraud.Target) (models.FeeAnalysis, error)
	Heuristic(t fraud.Target) models.FeeAnalysis
}

// Suite is the set of per-network clients a scan runs against
type Suite struct {
	Adapter   chain.Adapter
	Fees      FeeAnalyzer
	Liquidity market.Analyzer

	close func()
}

// Close releases the suite's RPC connections
func (s *Suite) Close() {
	if s.close != nil {
		s.close()
	}
}

// SuiteResolver builds or returns the suite serving a network
type SuiteResolver interface {
	Resolve(ctx context.Context, n network.NetworkConfig) (*Suite, error)
}

// Clients are the network-independent HTTP clients shared by every suite
type Clients struct {
	ExplorerAPIKey string
	// ExplorerAPIURL replaces every network's explorer API when set
	ExplorerAPIURL string
	Honeypot       *fraud.HoneypotClient
	GoPlus         *fraud.GoPlusClient
	DexScreener    *market.DexScreenerClient
	Holders        *market.HoneyPotClient
	HTTP           *http.Client
}

// NetworkResolver dials the first live RPC endpoint of a network and caches
// the resulting suite, so connections are pooled across scans.
type NetworkResolver struct {
	registry        *network.Registry
	clients         Clients
	analyzer        *bytecode.Analyzer
	alive           network.LivenessFunc
	providerTimeout time.Duration
	onFail          provider.FailureHook
	log             zerolog.Logger

	builds singleflight.Group
	mu     sync.Mutex
	suites map[string]*Suite
}

func NewNetworkResolver(registry *network.Registry, clients Clients, analyzer *bytecode.Analyzer, providerTimeout time.Duration, onFail provider.FailureHook, log zerolog.Logger) *NetworkResolver {
	if clients.HTTP == nil {
		clients.HTTP = &http.Client{Timeout: providerTimeout}
	}
	return &NetworkResolver{
		registry:        registry,
		clients:         clients,
		analyzer:        analyzer,
		alive:           network.HTTPLiveness(nil),
		providerTimeout: providerTimeout,
		onFail:          onFail,
		log:             log,
		suites:          make(map[string]*Suite),
	}
}

// Resolve returns the cached suite for n, building it on first use. Builds
// for the same network are shared between callers, and a slow network never
// blocks resolution of another one.
func (r *NetworkResolver) Resolve(ctx context.Context, n network.NetworkConfig) (*Suite, error) {
	if s, ok := r.cached(n.ID); ok {
		return s, nil
	}

	// The build is shared, so it outlives any single caller.
	ch := r.builds.DoChan(n.ID, func() (interface{}, error) {
		if s, ok := r.cached(n.ID); ok {
			return s, nil
		}
		s, err := r.build(context.WithoutCancel(ctx), n)
		if err != nil {
			return nil, err
		}
		r.mu.Lock()
		r.suites[n.ID] = s
		r.mu.Unlock()
		return s, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Suite), nil
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %s: %v", chain.ErrAdapterUnavailable, n.ID, ctx.Err())
	}
}

func (r *NetworkResolver) cached(id string) (*Suite, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.suites[id]
	return s, ok
}

func (r *NetworkResolver) build(ctx context.Context, n network.NetworkConfig) (*Suite, error) {
	endpoint, err := r.registry.ResolveRPC(ctx, n.ID, r.alive)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", chain.ErrAdapterUnavailable, err)
	}

	var s *Suite
	switch n.Family {
	case models.FamilyEVM:
		s, err = r.evmSuite(ctx, n, endpoint)
	case models.FamilySolana:
		s = r.solanaSuite(n, endpoint)
	default:
		err = fmt.Errorf("no adapter for chain family %q", n.Family)
	}
	if err != nil {
		return nil, err
	}

	r.log.Info().Str("chain", n.ID).Str("rpc", endpoint).Msg("Network suite ready")
	return s, nil
}

func (r *NetworkResolver) evmSuite(ctx context.Context, n network.NetworkConfig, endpoint string) (*Suite, error) {
	client, err := ethclient.DialContext(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %v", chain.ErrAdapterUnavailable, n.ID, err)
	}

	// A nil *ExplorerClient must not end up inside the interface.
	var explorer chain.ContractExplorer
	api := n.ExplorerAPI
	if r.clients.ExplorerAPIURL != "" {
		api = r.clients.ExplorerAPIURL
	}
	if api != "" && r.clients.ExplorerAPIKey != "" {
		explorer = contract.NewExplorerClient(r.clients.ExplorerAPIKey, api, n.ChainID, r.clients.HTTP)
	}

	var holders chain.HolderSource
	if r.clients.Holders != nil {
		holders = r.clients.Holders.HolderSource(n.ChainID)
	}

	log := r.log.With().Str("chain", n.ID).Logger()
	return &Suite{
		Adapter:   chain.NewEVMAdapter(client, explorer, log),
		Fees:      r.simulator(log),
		Liquidity: market.NewEVMLiquidity(client, n, r.clients.DexScreener, holders, log),
		close:     client.Close,
	}, nil
}

func (r *NetworkResolver) solanaSuite(n network.NetworkConfig, endpoint string) *Suite {
	client := rpc.New(endpoint)
	log := r.log.With().Str("chain", n.ID).Logger()
	adapter := chain.NewSolanaAdapter(client, log)
	return &Suite{
		Adapter:   adapter,
		Fees:      r.simulator(log),
		Liquidity: market.NewAccountLiquidity(r.clients.DexScreener, n, adapter, log),
		close:     func() { _ = client.Close() },
	}
}

func (r *NetworkResolver) simulator(log zerolog.Logger) *fraud.Simulator {
	var sources []fraud.QuoteSource
	if r.clients.Honeypot != nil {
		sources = append(sources, r.clients.Honeypot)
	}
	if r.clients.GoPlus != nil {
		sources = append(sources, r.clients.GoPlus)
	}
	return fraud.NewSimulator(r.analyzer, sources, r.providerTimeout, r.onFail, log)
}

// Close releases every cached suite
func (r *NetworkResolver) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, s := range r.suites {
		s.Close()
		delete(r.suites, id)
	}
}
