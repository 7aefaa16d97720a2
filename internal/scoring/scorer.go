// Package scoring folds the sub-analyses of a scan into one 0-100 risk score
// and an independent set of threat categories.
package scoring

import (
	"math"

	"github.com/notlelouch/go-interview-practice/token-threat-scanner/internal/market"
	"github.com/notlelouch/go-interview-practice/token-threat-scanner/internal/models"
	"github.com/notlelouch/go-interview-practice/token-threat-scanner/internal/network"
	"github.com/notlelouch/go-interview-practice/token-threat-scanner/internal/social"
)

// WeightTable holds every point value used by Score. Higher means riskier.
type WeightTable struct {
	Honeypot        float64
	MintAuthority   float64
	HiddenFees      float64
	FreezeAuthority float64
	SelfDestruct    float64
	ProxyContract   float64

	// Fee level contributes MaxFee/FeeDivisor points, up to FeeLevelCap
	FeeDivisor  float64
	FeeLevelCap float64

	AntiBotEach float64
	AntiBotCap  float64

	RugIndicatorEach float64

	SocialFlagEach float64
	SocialFlagCap  float64

	NegativeSentiment float64
	UnverifiedSource  float64

	NetworkThreatMedium float64
	NetworkThreatHigh   float64

	// Liquidity stability above the baseline earns (stability-baseline)/divisor
	// points off, up to StabilityBonusCap
	StabilityBonusDivisor float64
	StabilityBonusCap     float64

	PositiveSentimentBonus float64

	// Flags at or above this count tag the result social_red_flag
	SocialCategoryMinFlags int
}

// Weights are the values Score uses. These tuning constants are carried over
// unchanged and have not been calibrated against labelled data.
var Weights = WeightTable{
	Honeypot:        40,
	MintAuthority:   20,
	HiddenFees:      15,
	FreezeAuthority: 10,
	SelfDestruct:    10,
	ProxyContract:   10,

	FeeDivisor:  5,
	FeeLevelCap: 10,

	AntiBotEach: 2,
	AntiBotCap:  6,

	RugIndicatorEach: 8,

	SocialFlagEach: 2,
	SocialFlagCap:  16,

	NegativeSentiment: 5,
	UnverifiedSource:  5,

	NetworkThreatMedium: 3,
	NetworkThreatHigh:   6,

	StabilityBonusDivisor: 5,
	StabilityBonusCap:     10,

	PositiveSentimentBonus: 3,

	SocialCategoryMinFlags: 3,
}

// CrossChainContext is what the scan knows beyond the token's own analyses
type CrossChainContext struct {
	ThreatLevel    network.ThreatLevel
	KnownThreats   int
	SourceVerified *bool
}

// Input carries the sub-analyses of one scan. A nil analysis contributes nothing.
type Input struct {
	Bytecode   *models.BytecodeAnalysis
	Fees       *models.FeeAnalysis
	Liquidity  *models.LiquidityAnalysis
	Social     *models.SocialAnalysis
	CrossChain CrossChainContext
}

// Score returns the clamped risk score and the threat categories of in
func Score(in Input) (int, []models.ThreatCategory) {
	return riskScore(in, Weights), Categories(in)
}

func riskScore(in Input, w WeightTable) int {
	var score float64
	severe := false

	if b := in.Bytecode; b != nil {
		if b.HasMintFunction {
			score += w.MintAuthority
			severe = true
		}
		if b.HasFreezeAuthority {
			score += w.FreezeAuthority
		}
		if b.HasSelfDestruct {
			score += w.SelfDestruct
		}
		if b.HasProxyPattern {
			score += w.ProxyContract
		}
	}

	if f := in.Fees; f != nil {
		if f.HoneypotDetected {
			score += w.Honeypot
			severe = true
		}
		if f.HiddenFees {
			score += w.HiddenFees
		}
		score += math.Min(math.Max(f.MaxFee, 0)/w.FeeDivisor, w.FeeLevelCap)
		score += math.Min(float64(len(f.AntiBotMechanisms))*w.AntiBotEach, w.AntiBotCap)
	}

	if l := in.Liquidity; l != nil {
		score += float64(len(l.RugPullIndicators)) * w.RugIndicatorEach
		// Honeypot and mint findings outrank any comfort drawn from liquidity
		if !severe && l.StabilityScore > market.StabilityBaseline {
			bonus := float64(l.StabilityScore-market.StabilityBaseline) / w.StabilityBonusDivisor
			score -= math.Min(bonus, w.StabilityBonusCap)
		}
	}

	if s := in.Social; s != nil {
		score += math.Min(float64(len(s.RedFlags))*w.SocialFlagEach, w.SocialFlagCap)
		switch s.Sentiment {
		case models.SentimentNegative:
			score += w.NegativeSentiment
		case models.SentimentPositive:
			if !severe {
				score -= w.PositiveSentimentBonus
			}
		}
	}

	cc := in.CrossChain
	if cc.SourceVerified != nil && !*cc.SourceVerified {
		score += w.UnverifiedSource
	}
	switch cc.ThreatLevel {
	case network.ThreatMedium:
		score += w.NetworkThreatMedium
	case network.ThreatHigh:
		score += w.NetworkThreatHigh
	}

	return clamp(int(math.Round(score)))
}

func clamp(score int) int {
	switch {
	case score < 0:
		return 0
	case score > 100:
		return 100
	}
	return score
}

// Categories derives threat tags from explicit predicates, independent of the score
func Categories(in Input) []models.ThreatCategory {
	cats := []models.ThreatCategory{}

	if f := in.Fees; f != nil {
		if f.HoneypotDetected {
			cats = append(cats, models.ThreatHoneypot)
		}
		if f.HiddenFees {
			cats = append(cats, models.ThreatHighFees)
		}
	}

	if b := in.Bytecode; b != nil {
		if b.HasMintFunction {
			cats = append(cats, models.ThreatMintAuthority)
		}
		if b.HasFreezeAuthority {
			cats = append(cats, models.ThreatFreezeAuthority)
		}
		if b.HasSelfDestruct {
			cats = append(cats, models.ThreatSelfDestruct)
		}
		if b.HasProxyPattern {
			cats = append(cats, models.ThreatProxyContract)
		}
	}

	if l := in.Liquidity; l != nil && rugPull(l) {
		cats = append(cats, models.ThreatRugPull)
	}

	if s := in.Social; s != nil {
		if s.HasRedFlag(social.FlagMinimalPresence) || len(s.RedFlags) >= Weights.SocialCategoryMinFlags {
			cats = append(cats, models.ThreatSocialRedFlag)
		}
	}
	return cats
}

// rugPull holds for unlocked liquidity that is also thin or concentrated
func rugPull(l *models.LiquidityAnalysis) bool {
	if l.Locked {
		return false
	}
	var thin, concentrated bool
	for _, ind := range l.RugPullIndicators {
		switch ind {
		case market.IndicatorLowLiquidity:
			thin = true
		case market.IndicatorConcentration:
			concentrated = true
		}
	}
	return thin || concentrated
}
