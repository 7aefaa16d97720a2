// Package scanner runs one token scan end to end: metadata, the concurrent
// sub-analyses under a deadline, scoring, signing and persistence.
package scanner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/notlelouch/go-interview-practice/token-threat-scanner/internal/bytecode"
	"github.com/notlelouch/go-interview-practice/token-threat-scanner/internal/chain"
	"github.com/notlelouch/go-interview-practice/token-threat-scanner/internal/fraud"
	"github.com/notlelouch/go-interview-practice/token-threat-scanner/internal/metrics"
	"github.com/notlelouch/go-interview-practice/token-threat-scanner/internal/models"
	"github.com/notlelouch/go-interview-practice/token-threat-scanner/internal/network"
	"github.com/notlelouch/go-interview-practice/token-threat-scanner/internal/scoring"
	"github.com/notlelouch/go-interview-practice/token-threat-scanner/internal/signing"
	"github.com/notlelouch/go-interview-practice/token-threat-scanner/internal/social"
	"github.com/notlelouch/go-interview-practice/token-threat-scanner/internal/storage"
)

// Sub-analysis names used in ScanResult.Unavailable, logs and metrics
const (
	AnalysisMetadata  = "metadata"
	AnalysisBytecode  = "bytecode"
	AnalysisFees      = "fees"
	AnalysisLiquidity = "liquidity"
	AnalysisSocial    = "social"
)

// SocialAnalyzer measures a token's off-chain footprint. It never fails.
type SocialAnalyzer interface {
	Analyze(ctx context.Context, in social.Input) models.SocialAnalysis
}

// Options are the scan time budgets
type Options struct {
	// ScanDeadline bounds everything from metadata to scoring
	ScanDeadline time.Duration
	// TaskTimeout bounds each sub-analysis
	TaskTimeout time.Duration
}

// Deps are the collaborators of a Scanner. Social, Index and Metrics are optional.
type Deps struct {
	Registry *network.Registry
	Resolver SuiteResolver
	Bytecode *bytecode.Analyzer
	Social   SocialAnalyzer
	Signer   signing.Signer
	Store    storage.Store
	Index    storage.Index
	Metrics  *metrics.ScannerMetrics
}

type Scanner struct {
	deps Deps
	opts Options
	log  zerolog.Logger

	now   func() time.Time
	newID func() string
}

func New(deps Deps, opts Options, log zerolog.Logger) (*Scanner, error) {
	var errs []error
	if deps.Registry == nil {
		errs = append(errs, errors.New("network registry is required"))
	}
	if deps.Resolver == nil {
		errs = append(errs, errors.New("suite resolver is required"))
	}
	if deps.Bytecode == nil {
		errs = append(errs, errors.New("bytecode analyzer is required"))
	}
	if deps.Signer == nil {
		errs = append(errs, signing.ErrNoSigningKey)
	}
	if deps.Store == nil {
		errs = append(errs, errors.New("result store is required"))
	}
	if opts.ScanDeadline <= 0 || opts.TaskTimeout <= 0 {
		errs = append(errs, errors.New("scan deadline and task timeout must be positive"))
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return &Scanner{
		deps:  deps,
		opts:  opts,
		log:   log,
		now:   func() time.Time { return time.Now().UTC() },
		newID: uuid.NewString,
	}, nil
}

// Scan runs one scan and always returns a terminal result. An unknown chain,
// an unreachable network, an address that does not resolve or a signer error
// fail the scan. Every other dependency failure degrades to a default and is
// listed in Unavailable.
func (s *Scanner) Scan(ctx context.Context, req models.ScanRequest) models.ScanResult {
	b := newResultBuilder(s.newID(), req, s.now())
	b.advance(models.StatusProcessing)

	log := s.log.With().Str("scan_id", b.r.ID).Str("chain", req.Chain).Str("address", req.Address).Logger()

	result := s.scan(ctx, b, log)
	s.observe(result)
	return result
}

func (s *Scanner) scan(ctx context.Context, b *resultBuilder, log zerolog.Logger) models.ScanResult {
	req := b.r.Request

	n, err := s.deps.Registry.Get(req.Chain)
	if err != nil {
		return s.fail(b, log, err)
	}
	b.r.NetworkName = n.Name

	scanCtx, cancel := context.WithTimeout(ctx, s.opts.ScanDeadline)
	defer cancel()

	suite, err := s.deps.Resolver.Resolve(scanCtx, n)
	if err != nil {
		return s.fail(b, log, err)
	}

	meta, err := suite.Adapter.FetchTokenMetadata(scanCtx, req.Address)
	switch {
	case chain.Fatal(err):
		return s.fail(b, log, err)
	case err != nil:
		s.degraded(log, AnalysisMetadata, err)
		b.unavailable(AnalysisMetadata)
		if meta.Address == "" {
			meta = models.TokenMetadata{Address: req.Address}
		}
	}
	b.token(meta)

	out := s.analyze(scanCtx, n, suite, meta, req.DeepScan, log)
	b.analyses(out)

	score, categories := scoring.Score(scoring.Input{
		Bytecode:  b.r.Bytecode,
		Fees:      b.r.Fees,
		Liquidity: b.r.Liquidity,
		Social:    b.r.Social,
		CrossChain: scoring.CrossChainContext{
			ThreatLevel:    n.ThreatLevel,
			KnownThreats:   n.KnownThreats,
			SourceVerified: meta.SourceVerified,
		},
	})
	b.score(score, categories)

	// The signature covers the completed status, so sign the completed copy
	// and keep it only once signing succeeded.
	final := b.completed(s.now())
	if err := signing.Sign(&final, s.deps.Signer); err != nil {
		return s.fail(b, log, fmt.Errorf("sign result: %w", err))
	}
	b.r = final

	s.persist(ctx, &b.r, log)

	log.Info().Int("risk_score", score).Strs("unavailable", b.r.Unavailable).Dur("took", b.r.CompletedAt.Sub(b.r.StartedAt)).Msg("Scan completed")
	return b.r
}

// outcome holds what each sub-analysis produced. A nil field was skipped or
// failed without a usable default.
type outcome struct {
	bytecode  *models.BytecodeAnalysis
	fees      *models.FeeAnalysis
	liquidity *models.LiquidityAnalysis
	social    *models.SocialAnalysis

	feesFailed      bool
	liquidityFailed bool
	socialFailed    bool
}

// analyze fans the enabled sub-analyses out concurrently. Each goroutine
// writes only its own outcome fields.
func (s *Scanner) analyze(ctx context.Context, n network.NetworkConfig, suite *Suite, meta models.TokenMetadata, deep bool, log zerolog.Logger) outcome {
	var out outcome
	target := fraud.Target{Address: meta.Address, ChainID: n.ChainID, Family: n.Family, Code: meta.RawCode}

	g, gctx := errgroup.WithContext(ctx)

	if n.Capabilities.Bytecode {
		g.Go(func() error {
			a := s.deps.Bytecode.Analyze(meta.RawCode, n.Family)
			out.bytecode = &a
			return nil
		})
	}

	if n.Capabilities.Fees && suite.Fees != nil {
		g.Go(func() error {
			f, err := boundedTask(gctx, s.opts.TaskTimeout, func(ctx context.Context) (models.FeeAnalysis, error) {
				return suite.Fees.Analyze(ctx, target)
			})
			if err != nil {
				s.degraded(log, AnalysisFees, err)
				out.feesFailed = true
				if f.Source == "" {
					f = suite.Fees.Heuristic(target)
				}
			}
			out.fees = &f
			return nil
		})
	}

	if n.Capabilities.Liquidity && suite.Liquidity != nil {
		g.Go(func() error {
			l, err := boundedTask(gctx, s.opts.TaskTimeout, func(ctx context.Context) (models.LiquidityAnalysis, error) {
				return suite.Liquidity.Analyze(ctx, meta.Address)
			})
			if err != nil {
				s.degraded(log, AnalysisLiquidity, err)
				out.liquidityFailed = true
				return nil
			}
			out.liquidity = &l
			return nil
		})
	}

	if deep && n.Capabilities.Social && s.deps.Social != nil {
		g.Go(func() error {
			so, err := boundedTask(gctx, s.opts.TaskTimeout, func(ctx context.Context) (models.SocialAnalysis, error) {
				return s.deps.Social.Analyze(ctx, social.Input{
					Symbol:         meta.Symbol,
					Name:           meta.Name,
					CreatorAddress: meta.CreatorAddress,
				}), nil
			})
			if err != nil {
				s.degraded(log, AnalysisSocial, err)
				out.socialFailed = true
				return nil
			}
			out.social = &so
			return nil
		})
	}

	// Tasks never return errors, so Wait only joins them.
	_ = g.Wait()
	return out
}

// boundedTask runs fn under timeout and returns when either finishes, so a
// task that ignores its context cannot hold up scoring.
func boundedTask[T any](ctx context.Context, timeout time.Duration, fn func(context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type res struct {
		v   T
		err error
	}
	ch := make(chan res, 1)
	go func() {
		v, err := fn(ctx)
		ch <- res{v, err}
	}()

	select {
	case r := <-ch:
		if r.err == nil && ctx.Err() != nil {
			// Finished only because its context ran out
			var zero T
			return zero, ctx.Err()
		}
		return r.v, r.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// persist stores the signed result and records it in the index. Failures are
// reported on the result's envelope and never change its status.
func (s *Scanner) persist(ctx context.Context, r *models.ScanResult, log zerolog.Logger) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.TaskTimeout)
	defer cancel()

	payload, err := json.Marshal(r)
	if err == nil {
		r.Persistence.StorageHash, err = s.deps.Store.Put(ctx, r.ID+".json", payload)
	}
	if err != nil {
		r.Persistence = models.Persistence{Error: err.Error()}
		log.Warn().Err(err).Msg("Failed to persist scan result")
		if s.deps.Metrics != nil {
			s.deps.Metrics.PersistenceFailed()
		}
		return
	}

	if s.deps.Index == nil {
		return
	}
	if err := s.deps.Index.Record(ctx, *r); err != nil {
		log.Warn().Err(err).Str("storage_hash", r.Persistence.StorageHash).Msg("Failed to index scan result")
	}
}

func (s *Scanner) fail(b *resultBuilder, log zerolog.Logger, err error) models.ScanResult {
	b.fail(err, s.now())
	log.Warn().Err(err).Msg("Scan failed")
	return b.r
}

func (s *Scanner) degraded(log zerolog.Logger, analysis string, err error) {
	log.Warn().Err(err).Str("service", analysis).Msg("Sub-analysis unavailable, using default")
	if s.deps.Metrics != nil {
		s.deps.Metrics.SubAnalysisFailed(analysis)
	}
}

func (s *Scanner) observe(r models.ScanResult) {
	m := s.deps.Metrics
	if m == nil {
		return
	}
	m.ObserveScan(r.Request.Chain, string(r.Status), r.CompletedAt.Sub(r.StartedAt))
	if r.RiskScore != nil {
		m.ObserveScore(r.Request.Chain, *r.RiskScore)
	}
	if r.Bytecode != nil {
		m.PatternsMatched(r.Bytecode.AccessControlPatterns)
	}
	categories := make([]string, len(r.ThreatCategories))
	for i, c := range r.ThreatCategories {
		categories[i] = string(c)
	}
	m.CategoriesTagged(categories)
}

// ScanBatch scans reqs one after another. Once ctx is done the remaining
// requests fail without touching the network.
func (s *Scanner) ScanBatch(ctx context.Context, reqs []models.ScanRequest) []models.ScanResult {
	results := make([]models.ScanResult, 0, len(reqs))
	for _, req := range reqs {
		if err := ctx.Err(); err != nil {
			b := newResultBuilder(s.newID(), req, s.now())
			b.advance(models.StatusProcessing)
			results = append(results, s.fail(b, s.log, err))
			continue
		}
		results = append(results, s.Scan(ctx, req))
	}
	return results
}

// Verify checks that r is a completed result signed by v
func Verify(r models.ScanResult, v signing.Verifier) error {
	if r.Status != models.StatusCompleted {
		return fmt.Errorf("%w: scan status is %s", signing.ErrInvalidSignature, r.Status)
	}
	return signing.Verify(r, v)
}
