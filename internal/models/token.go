package models

// ChainFamily discriminates account-model from contract-model chains
type ChainFamily string

const (
	FamilyEVM    ChainFamily = "evm"
	FamilySolana ChainFamily = "solana"
)

// TokenMetadata is what a chain adapter knows about a token before any analysis
type TokenMetadata struct {
	Address        string `json:"address"`
	Name           string `json:"name,omitempty"`
	Symbol         string `json:"symbol,omitempty"`
	Decimals       int    `json:"decimals"`
	CreatorAddress string `json:"creator_address,omitempty"`
	OwnerAddress   string `json:"owner_address,omitempty"`
	SourceVerified *bool  `json:"source_verified,omitempty"`

	// Declared authorities (account-model chains only)
	MintAuthority   string `json:"mint_authority,omitempty"`
	FreezeAuthority string `json:"freeze_authority,omitempty"`

	// Deployed bytecode or raw account data. Never serialized; CodeHash covers it.
	RawCode []byte `json:"-"`
}

// Holder is one entry of a token's top holder list
type Holder struct {
	Address         string  `json:"address"`
	Percentage      float64 `json:"percentage"`
	IsKnownExchange bool    `json:"is_known_exchange"`
}

// Pool is a single liquidity pool resolved for the token
type Pool struct {
	Exchange     string  `json:"exchange"`
	PairAddress  string  `json:"pair_address"`
	LiquidityUSD float64 `json:"liquidity_usd"`
}
