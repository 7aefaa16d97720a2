package market

import (
	"context"

	"github.com/notlelouch/go-interview-practice/token-threat-scanner/internal/models"
)

// Stability and rug-pull tuning. Values are inherited, not calibrated.
const (
	StabilityBaseline      = 50
	StabilityLockedBonus   = 20
	StabilityTier1USD      = 50_000.0
	StabilityTier1Bonus    = 15
	StabilityTier2USD      = 250_000.0
	StabilityTier2Bonus    = 15
	LowLiquidityFloorUSD   = 10_000.0
	HolderConcentrationPct = 20.0
	LockedThresholdPct     = 50.0
	TopHolderLimit         = 10
)

// Rug-pull indicators
const (
	IndicatorUnlocked      = "liquidity_unlocked"
	IndicatorLowLiquidity  = "low_liquidity"
	IndicatorConcentration = "holder_concentration"
)

// Analyzer resolves the liquidity picture of a token on one chain
type Analyzer interface {
	Analyze(ctx context.Context, address string) (models.LiquidityAnalysis, error)
}

// StabilityScore is the baseline plus fixed bonuses, capped at 100
func StabilityScore(locked bool, liquidityUSD float64) int {
	score := StabilityBaseline
	if locked {
		score += StabilityLockedBonus
	}
	if liquidityUSD >= StabilityTier1USD {
		score += StabilityTier1Bonus
	}
	if liquidityUSD >= StabilityTier2USD {
		score += StabilityTier2Bonus
	}
	if score > 100 {
		score = 100
	}
	return score
}

// RugPullIndicators derives the indicator list for an analysis
func RugPullIndicators(a models.LiquidityAnalysis) []string {
	out := []string{}
	if !a.Locked {
		out = append(out, IndicatorUnlocked)
	}
	if a.TotalLiquidityUSD < LowLiquidityFloorUSD {
		out = append(out, IndicatorLowLiquidity)
	}
	for _, h := range a.MajorHolders {
		if !h.IsKnownExchange && h.Percentage > HolderConcentrationPct {
			out = append(out, IndicatorConcentration)
			break
		}
	}
	return out
}

func finalize(a *models.LiquidityAnalysis) {
	if a.Pools == nil {
		a.Pools = []models.Pool{}
	}
	if a.MajorHolders == nil {
		a.MajorHolders = []models.Holder{}
	}
	a.StabilityScore = StabilityScore(a.Locked, a.TotalLiquidityUSD)
	a.RugPullIndicators = RugPullIndicators(*a)
}
