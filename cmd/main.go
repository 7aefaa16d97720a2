package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/notlelouch/go-interview-practice/token-threat-scanner/internal/bytecode"
	"github.com/notlelouch/go-interview-practice/token-threat-scanner/internal/config"
	"github.com/notlelouch/go-interview-practice/token-threat-scanner/internal/fraud"
	"github.com/notlelouch/go-interview-practice/token-threat-scanner/internal/logging"
	"github.com/notlelouch/go-interview-practice/token-threat-scanner/internal/market"
	"github.com/notlelouch/go-interview-practice/token-threat-scanner/internal/metrics"
	"github.com/notlelouch/go-interview-practice/token-threat-scanner/internal/models"
	"github.com/notlelouch/go-interview-practice/token-threat-scanner/internal/network"
	"github.com/notlelouch/go-interview-practice/token-threat-scanner/internal/scanner"
	"github.com/notlelouch/go-interview-practice/token-threat-scanner/internal/signing"
	"github.com/notlelouch/go-interview-practice/token-threat-scanner/internal/social"
	"github.com/notlelouch/go-interview-practice/token-threat-scanner/internal/storage"
)

// BasicTokenInfo is one entry of the -input token list
type BasicTokenInfo struct {
	Address  string `json:"contract_address"`
	Chain    string `json:"chain"`
	DeepScan bool   `json:"deep_scan"`
}

func main() {
	os.Exit(scan(os.Args[1:]))
}

// scan returns the process exit code, so every deferred cleanup has run
// before the process exits.
func scan(args []string) int {
	fs := flag.NewFlagSet("scanner", flag.ContinueOnError)
	chainID := fs.String("chain", "", "Network id of the token, e.g. ethereum, bsc, solana")
	address := fs.String("address", "", "Token contract or mint address")
	deep := fs.Bool("deep", false, "Include the social footprint analysis")
	input := fs.String("input", "", "JSON file with a list of {contract_address, chain, deep_scan}")
	asJSON := fs.Bool("json", false, "Print full signed results as JSON")
	metricsAddr := fs.String("metrics", "", "Address to serve Prometheus metrics; empty disables")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	cfg := config.Load()
	logger := logging.Setup(cfg.LogLevel, cfg.LogFormat)

	if err := cfg.Validate(); err != nil {
		logger.Error().Err(err).Msg("Invalid configuration")
		return 1
	}

	reqs, err := requests(*chainID, *address, *deep, *input)
	if err != nil {
		logger.Error().Err(err).Msg("No tokens to scan")
		fs.Usage()
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, reqs, *asJSON, *metricsAddr, logger); err != nil {
		logger.Error().Err(err).Msg("Scanner stopped")
		return 1
	}
	return 0
}

func run(ctx context.Context, cfg *config.Config, reqs []models.ScanRequest, asJSON bool, metricsAddr string, logger zerolog.Logger) error {
	registry, err := loadRegistry(cfg.NetworksFile)
	if err != nil {
		return err
	}
	analyzer, err := bytecode.NewAnalyzer()
	if err != nil {
		return err
	}
	signer, err := newSigner(cfg)
	if err != nil {
		return err
	}

	m := metrics.NewScannerMetrics()
	promRegistry := prometheus.NewRegistry()
	if err := m.Register(promRegistry); err != nil {
		return err
	}
	if metricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.HandlerFor(promRegistry, promhttp.HandlerOpts{}))
			logger.Info().Str("addr", metricsAddr).Msg("Serving metrics")
			if err := http.ListenAndServe(metricsAddr, mux); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error().Err(err).Msg("Metrics server failed")
			}
		}()
	}

	deps := scanner.Deps{
		Registry: registry,
		Bytecode: analyzer,
		Signer:   signer,
		Metrics:  m,
	}

	if cfg.UseIPFS {
		deps.Store = storage.NewIPFSStore(cfg.IPFSAPIURL, nil)
	} else {
		deps.Store = storage.NewMemoryStore()
	}
	if cfg.DatabaseURL != "" {
		index, err := storage.NewPGIndex(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("open scan index: %w", err)
		}
		defer index.Close()
		deps.Index = index
	}

	resolver := scanner.NewNetworkResolver(registry, scanner.Clients{
		ExplorerAPIKey: cfg.ExplorerAPIKey,
		ExplorerAPIURL: cfg.ExplorerAPIURL,
		Honeypot:       fraud.NewHoneypotClient(cfg.HoneypotAPIURL, nil),
		GoPlus:         fraud.NewGoPlusClient(cfg.GoPlusAPIURL, nil),
		DexScreener:    market.NewDexScreenerClient(cfg.DexScreenerURL, nil),
		Holders:        market.NewHoneyPotClient(cfg.HoneypotAPIURL, nil),
	}, analyzer, cfg.ProviderTimeout, m.ProviderFailed, logger)
	defer resolver.Close()
	deps.Resolver = resolver

	deps.Social = social.NewAnalyzer(socialSources(cfg), cfg.ProviderTimeout, m.ProviderFailed, logger.With().Str("component", "social").Logger())

	s, err := scanner.New(deps, scanner.Options{ScanDeadline: cfg.ScanDeadline, TaskTimeout: cfg.TaskTimeout}, logger)
	if err != nil {
		return err
	}

	fmt.Printf("Token Threat Scan\n")
	fmt.Printf("Total: %d tokens\n\n", len(reqs))

	results := s.ScanBatch(ctx, reqs)

	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(results); err != nil {
			return err
		}
	}

	completed, flagged := 0, 0
	for i, r := range results {
		fmt.Printf("[%d/%d] %s on %s\n", i+1, len(results), r.Request.Address, r.Request.Chain)
		if r.Status != models.StatusCompleted {
			fmt.Printf("  Result: FAILED - %s\n\n", r.Error)
			continue
		}
		completed++
		if len(r.ThreatCategories) > 0 {
			flagged++
		}
		fmt.Printf("  Token: %s (%s) | Score: %d | Threats: %s\n", r.Token.Name, r.Token.Symbol, *r.RiskScore, joinCategories(r.ThreatCategories))
		if len(r.Unavailable) > 0 {
			fmt.Printf("  Unavailable: %s\n", strings.Join(r.Unavailable, ", "))
		}
		if r.Persistence.StorageHash != "" {
			fmt.Printf("  Stored: %s\n", r.Persistence.StorageHash)
		}
		fmt.Printf("  Signed by %s\n\n", r.SignerID)
	}

	fmt.Printf("Summary: %d/%d completed, %d flagged\n", completed, len(results), flagged)
	return nil
}

func loadRegistry(path string) (*network.Registry, error) {
	if path != "" {
		return network.LoadFile(path)
	}
	return network.Default()
}

func newSigner(cfg *config.Config) (signing.Signer, error) {
	if cfg.SigningKey != "" {
		return signing.NewECDSASigner(cfg.SigningKey)
	}
	return signing.NewHMACSigner("", []byte(cfg.HMACSecret))
}

func socialSources(cfg *config.Config) social.Sources {
	var src social.Sources
	if cfg.XBearerToken != "" {
		src.Twitter = append(src.Twitter, social.NewXAPIProvider(cfg.XAPIURL, cfg.XBearerToken, nil))
	}
	src.Twitter = append(src.Twitter, social.NewScrapeProvider(cfg.ScrapeBaseURL, nil))
	src.GitHub = social.NewGitHubClient(cfg.GitHubAPIURL, cfg.GitHubToken, nil)
	src.Website = social.NewWebsiteProber(cfg.RDAPURL, nil)

	switch {
	case cfg.TelegramBotToken != "":
		src.GroupChat = social.NewTelegramProvider(cfg.TelegramAPIURL, cfg.TelegramBotToken, nil)
	case cfg.StubGroupMembers > 0:
		src.GroupChat = social.StubGroupChat{Members: cfg.StubGroupMembers}
	}
	if cfg.SentimentAPIURL != "" {
		src.Sentiment = social.NewSentimentAPI(cfg.SentimentAPIURL, nil)
	}
	return src
}

func requests(chainID, address string, deep bool, input string) ([]models.ScanRequest, error) {
	if input != "" {
		tokens, err := readTokens(input)
		if err != nil {
			return nil, err
		}
		reqs := make([]models.ScanRequest, 0, len(tokens))
		for _, t := range tokens {
			reqs = append(reqs, models.ScanRequest{Address: t.Address, Chain: t.Chain, DeepScan: t.DeepScan || deep})
		}
		if len(reqs) == 0 {
			return nil, fmt.Errorf("%s lists no tokens", input)
		}
		return reqs, nil
	}
	if chainID == "" || address == "" {
		return nil, errors.New("either -input or both -chain and -address are required")
	}
	return []models.ScanRequest{{Address: address, Chain: chainID, DeepScan: deep}}, nil
}

func readTokens(fileName string) ([]BasicTokenInfo, error) {
	data, err := os.ReadFile(fileName)
	if err != nil {
		return nil, fmt.Errorf("read token list: %w", err)
	}

	var tokens []BasicTokenInfo
	if err := json.Unmarshal(data, &tokens); err != nil {
		return nil, fmt.Errorf("parse token list: %w", err)
	}
	return tokens, nil
}

func joinCategories(cats []models.ThreatCategory) string {
	if len(cats) == 0 {
		return "none"
	}
	names := make([]string, len(cats))
	for i, c := range cats {
		names[i] = string(c)
	}
	return strings.Join(names, ", ")
}
