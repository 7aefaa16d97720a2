package scanner

import (
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/notlelouch/go-interview-practice/token-threat-scanner/internal/models"
)

// resultBuilder assembles a ScanResult and enforces the status lifecycle.
// Nothing reads the result until it reaches a terminal status.
type resultBuilder struct {
	r models.ScanResult
}

func newResultBuilder(id string, req models.ScanRequest, started time.Time) *resultBuilder {
	return &resultBuilder{r: models.ScanResult{
		ID:               id,
		Request:          req,
		Token:            models.TokenMetadata{Address: req.Address},
		ThreatCategories: []models.ThreatCategory{},
		Status:           models.StatusPending,
		StartedAt:        started,
	}}
}

// advance panics on an illegal transition: that is a bug in the scanner,
// never a dependency failure.
func (b *resultBuilder) advance(next models.ScanStatus) {
	if !b.r.Status.CanTransition(next) {
		panic(fmt.Sprintf("scan %s: illegal status transition %s -> %s", b.r.ID, b.r.Status, next))
	}
	b.r.Status = next
}

func (b *resultBuilder) unavailable(analysis string) {
	for _, a := range b.r.Unavailable {
		if a == analysis {
			return
		}
	}
	b.r.Unavailable = append(b.r.Unavailable, analysis)
}

// token records the metadata and the keccak256 hash of the raw code
func (b *resultBuilder) token(meta models.TokenMetadata) {
	b.r.Token = meta
	if len(meta.RawCode) > 0 {
		b.r.CodeHash = crypto.Keccak256Hash(meta.RawCode).Hex()
	}
}

// analyses copies the sub-analysis outcomes in a fixed order, so Unavailable
// does not depend on goroutine scheduling.
func (b *resultBuilder) analyses(out outcome) {
	b.r.Bytecode = out.bytecode
	b.r.Fees = out.fees
	b.r.Liquidity = out.liquidity
	b.r.Social = out.social

	if out.feesFailed {
		b.unavailable(AnalysisFees)
	}
	if out.liquidityFailed {
		b.unavailable(AnalysisLiquidity)
	}
	if out.socialFailed {
		b.unavailable(AnalysisSocial)
	}
}

func (b *resultBuilder) score(score int, categories []models.ThreatCategory) {
	b.r.RiskScore = &score
	if categories == nil {
		categories = []models.ThreatCategory{}
	}
	b.r.ThreatCategories = categories
}

// completed returns a copy of the result in completed status, leaving the
// builder in processing until the caller commits it.
func (b *resultBuilder) completed(at time.Time) models.ScanResult {
	if !b.r.Status.CanTransition(models.StatusCompleted) {
		panic(fmt.Sprintf("scan %s: illegal status transition %s -> %s", b.r.ID, b.r.Status, models.StatusCompleted))
	}
	r := b.r
	r.Status = models.StatusCompleted
	r.CompletedAt = at
	return r
}

// fail moves the result to failed. A failed result carries no score and no
// analyses, only the reason.
func (b *resultBuilder) fail(err error, at time.Time) {
	b.advance(models.StatusFailed)
	b.r.Error = err.Error()
	b.r.RiskScore = nil
	b.r.ThreatCategories = []models.ThreatCategory{}
	b.r.Bytecode = nil
	b.r.Fees = nil
	b.r.Liquidity = nil
	b.r.Social = nil
	b.r.CompletedAt = at
}
