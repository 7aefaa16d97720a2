package fraud

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/notlelouch/go-interview-practice/token-threat-scanner/internal/bytecode"
	"github.com/notlelouch/go-interview-practice/token-threat-scanner/internal/models"
	"github.com/notlelouch/go-interview-practice/token-threat-scanner/internal/provider"
)

// HiddenFeeThreshold is the max fee, in percent, above which fees count as hidden
const HiddenFeeThreshold = 10.0

// SourceHeuristic marks an analysis built only from bytecode markers
const SourceHeuristic = "heuristic"

// Target is the token under simulation
type Target struct {
	Address string
	ChainID int64
	Family  models.ChainFamily
	Code    []byte
}

// Simulator determines effective fees and honeypot status
type Simulator struct {
	sources  []QuoteSource
	analyzer *bytecode.Analyzer
	timeout  time.Duration
	onFail   provider.FailureHook
	log      zerolog.Logger
}

// NewSimulator tries sources in order, each bounded by timeout. onFail may be nil.
func NewSimulator(analyzer *bytecode.Analyzer, sources []QuoteSource, timeout time.Duration, onFail provider.FailureHook, log zerolog.Logger) *Simulator {
	return &Simulator{
		sources:  sources,
		analyzer: analyzer,
		timeout:  timeout,
		onFail:   onFail,
		log:      log,
	}
}

// Analyze returns the fee analysis for t. Simulation sources only serve
// contract-model chains. When every source fails the heuristic fallback is
// returned together with the provider error.
func (s *Simulator) Analyze(ctx context.Context, t Target) (models.FeeAnalysis, error) {
	out := s.Heuristic(t)

	var err error
	if t.Family == models.FamilyEVM && len(s.sources) > 0 {
		var q Quote
		var name string
		q, name, err = provider.FirstSuccess(ctx, s.log, s.onFail, s.providers(t)...)
		if err == nil {
			out.BuyFee = q.BuyTax
			out.SellFee = q.SellTax
			out.TransferFee = q.TransferTax
			out.HoneypotDetected = q.IsHoneypot
			out.HoneypotReason = q.Reason
			out.AntiBotMechanisms = appendUnique(out.AntiBotMechanisms, q.AntiBot...)
			out.Simulated = true
			out.Source = name
		}
	}

	out.MaxFee = max(out.BuyFee, out.SellFee, out.TransferFee)
	out.HiddenFees = out.MaxFee > HiddenFeeThreshold
	return out, err
}

// Heuristic is the analysis built from bytecode markers alone: no honeypot,
// zero fees, anti-bot mechanisms and the hidden-fee hint from the code.
func (s *Simulator) Heuristic(t Target) models.FeeAnalysis {
	out := models.FeeAnalysis{
		Source:            SourceHeuristic,
		AntiBotMechanisms: []string{},
	}
	out.AntiBotMechanisms = appendUnique(out.AntiBotMechanisms, s.analyzer.Markers(t.Code, t.Family, bytecode.CapAntiBot)...)
	out.HiddenFeesLikely = len(s.analyzer.Markers(t.Code, t.Family, bytecode.CapFee)) > 0
	return out
}

func (s *Simulator) providers(t Target) []provider.Provider[Quote] {
	out := make([]provider.Provider[Quote], 0, len(s.sources))
	for _, src := range s.sources {
		src := src
		out = append(out, provider.Provider[Quote]{
			Name:    src.Name(),
			Timeout: s.timeout,
			Fetch: func(ctx context.Context) (Quote, error) {
				return src.Quote(ctx, t.Address, t.ChainID)
			},
		})
	}
	return out
}

func appendUnique(dst []string, values ...string) []string {
	for _, v := range values {
		dup := false
		for _, d := range dst {
			if d == v {
				dup = true
				break
			}
		}
		if !dup {
			dst = append(dst, v)
		}
	}
	return dst
}
