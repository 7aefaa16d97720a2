package models

import "time"

// ScanRequest is the inbound request for a single token scan
type ScanRequest struct {
	Address  string `json:"address"`
	Chain    string `json:"chain"`
	DeepScan bool   `json:"deep_scan"`
}

// ScanStatus is the lifecycle state of a ScanResult
type ScanStatus string

const (
	StatusPending    ScanStatus = "pending"
	StatusProcessing ScanStatus = "processing"
	StatusCompleted  ScanStatus = "completed"
	StatusFailed     ScanStatus = "failed"
)

// CanTransition reports whether s -> next is an allowed lifecycle step
func (s ScanStatus) CanTransition(next ScanStatus) bool {
	switch s {
	case StatusPending:
		return next == StatusProcessing
	case StatusProcessing:
		return next == StatusCompleted || next == StatusFailed
	default:
		return false
	}
}

// Terminal reports whether no further transition is possible
func (s ScanStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// ThreatCategory is a qualitative tag attached to a scan result
type ThreatCategory string

const (
	ThreatHoneypot        ThreatCategory = "honeypot"
	ThreatHighFees        ThreatCategory = "high_fees"
	ThreatMintAuthority   ThreatCategory = "mint_authority"
	ThreatFreezeAuthority ThreatCategory = "freeze_authority"
	ThreatSelfDestruct    ThreatCategory = "self_destruct"
	ThreatProxyContract   ThreatCategory = "proxy_contract"
	ThreatRugPull         ThreatCategory = "rug_pull"
	ThreatSocialRedFlag   ThreatCategory = "social_red_flag"
)

// BytecodeAnalysis holds the capability flags found by static signature matching
type BytecodeAnalysis struct {
	HasMintFunction       bool     `json:"has_mint_function"`
	HasSelfDestruct       bool     `json:"has_self_destruct"`
	HasProxyPattern       bool     `json:"has_proxy_pattern"`
	HasFreezeAuthority    bool     `json:"has_freeze_authority"`
	AccessControlPatterns []string `json:"access_control_patterns"`
	PatternVersion        string   `json:"pattern_version"`
}

// FeeAnalysis holds simulated (or defaulted) trading fees and honeypot verdict
type FeeAnalysis struct {
	BuyFee            float64  `json:"buy_fee"`
	SellFee           float64  `json:"sell_fee"`
	TransferFee       float64  `json:"transfer_fee"`
	MaxFee            float64  `json:"max_fee"`
	HoneypotDetected  bool     `json:"honeypot_detected"`
	HoneypotReason    string   `json:"honeypot_reason,omitempty"`
	AntiBotMechanisms []string `json:"anti_bot_mechanisms"`
	HiddenFees        bool     `json:"hidden_fees"`
	HiddenFeesLikely  bool     `json:"hidden_fees_likely"`
	Simulated         bool     `json:"simulated"`
	Source            string   `json:"source"`
}

// LiquidityAnalysis summarizes pools, lock state and holder concentration
type LiquidityAnalysis struct {
	TotalLiquidityUSD float64        `json:"total_liquidity_usd"`
	Locked            bool           `json:"locked"`
	LockPercentage    float64        `json:"lock_percentage"`
	LockDuration      *time.Duration `json:"lock_duration,omitempty"`
	Pools             []Pool         `json:"pools"`
	MajorHolders      []Holder       `json:"major_holders"`
	StabilityScore    int            `json:"stability_score"`
	RugPullIndicators []string       `json:"rug_pull_indicators"`
}

// Sentiment is the aggregated community sentiment
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNeutral  Sentiment = "neutral"
	SentimentNegative Sentiment = "negative"
)

type TwitterPresence struct {
	Found     bool       `json:"found"`
	Handle    string     `json:"handle,omitempty"`
	Followers int        `json:"followers"`
	Verified  bool       `json:"verified"`
	CreatedAt *time.Time `json:"created_at,omitempty"`
	PostCount int        `json:"post_count"`
	HypePosts int        `json:"hype_posts"`
	Substance int        `json:"substance_posts"`
	Provider  string     `json:"provider,omitempty"`
}

type GitHubPresence struct {
	Found        bool   `json:"found"`
	Repository   string `json:"repository,omitempty"`
	Stars        int    `json:"stars"`
	Commits      int    `json:"commits"`
	Contributors int    `json:"contributors"`
}

type WebsitePresence struct {
	Found        bool       `json:"found"`
	Domain       string     `json:"domain,omitempty"`
	RegisteredAt *time.Time `json:"registered_at,omitempty"`
}

type GroupChatPresence struct {
	Found   bool   `json:"found"`
	Group   string `json:"group,omitempty"`
	Members int    `json:"members"`
}

// SocialAnalysis is the best-effort off-chain footprint of a token
type SocialAnalysis struct {
	Twitter        TwitterPresence   `json:"twitter"`
	GitHub         GitHubPresence    `json:"github"`
	Website        WebsitePresence   `json:"website"`
	GroupChat      GroupChatPresence `json:"group_chat"`
	Sentiment      Sentiment         `json:"sentiment"`
	SentimentScore *float64          `json:"sentiment_score,omitempty"`
	RedFlags       []string          `json:"social_red_flags"`
}

// HasRedFlag reports whether flag was raised
func (s *SocialAnalysis) HasRedFlag(flag string) bool {
	for _, f := range s.RedFlags {
		if f == flag {
			return true
		}
	}
	return false
}

// Persistence is the storage envelope. It is set after signing and is not signed.
type Persistence struct {
	StorageHash string `json:"storage_hash,omitempty"`
	Error       string `json:"error,omitempty"`
}

// ScanResult is the signed, immutable verdict of a scan
type ScanResult struct {
	ID          string        `db:"id" json:"id"`
	Request     ScanRequest   `json:"request"`
	NetworkName string        `db:"network_name" json:"network_name,omitempty"`
	Token       TokenMetadata `json:"token"`
	CodeHash    string        `db:"code_hash" json:"code_hash,omitempty"`

	Bytecode  *BytecodeAnalysis  `json:"bytecode,omitempty"`
	Fees      *FeeAnalysis       `json:"fees,omitempty"`
	Liquidity *LiquidityAnalysis `json:"liquidity,omitempty"`
	Social    *SocialAnalysis    `json:"social,omitempty"`

	// Sub-analyses that failed or timed out and fell back to their defaults
	Unavailable []string `json:"unavailable,omitempty"`

	RiskScore        *int             `db:"risk_score" json:"risk_score,omitempty"`
	ThreatCategories []ThreatCategory `json:"threat_categories"`

	Status      ScanStatus `db:"status" json:"scan_status"`
	Error       string     `json:"error,omitempty"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt time.Time  `db:"completed_at" json:"completed_at"`

	SignerID    string      `json:"signer_id,omitempty"`
	Signature   string      `json:"signature,omitempty"`
	Persistence Persistence `json:"persistence"`
}

// HasCategory reports whether c is among the result's threat categories
func (r ScanResult) HasCategory(c ThreatCategory) bool {
	for _, tc := range r.ThreatCategories {
		if tc == c {
			return true
		}
	}
	return false
}
