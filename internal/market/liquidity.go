package market

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/notlelouch/go-interview-practice/token-threat-scanner/internal/chain"
	"github.com/notlelouch/go-interview-practice/token-threat-scanner/internal/models"
	"github.com/notlelouch/go-interview-practice/token-threat-scanner/internal/network"
)

// LP tokens sent here can never be withdrawn
var deadAddress = common.HexToAddress("0x000000000000000000000000000000000000dEaD")

const factoryABIJSON = `[
	{"type":"function","name":"getPair","stateMutability":"view",
	 "inputs":[{"name":"tokenA","type":"address"},{"name":"tokenB","type":"address"}],
	 "outputs":[{"name":"pair","type":"address"}]}
]`

const pairABIJSON = `[
	{"type":"function","name":"getReserves","stateMutability":"view","inputs":[],
	 "outputs":[{"name":"reserve0","type":"uint112"},{"name":"reserve1","type":"uint112"},{"name":"blockTimestampLast","type":"uint32"}]},
	{"type":"function","name":"token0","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]},
	{"type":"function","name":"totalSupply","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"balanceOf","stateMutability":"view",
	 "inputs":[{"name":"owner","type":"address"}],"outputs":[{"name":"","type":"uint256"}]}
]`

var (
	factoryABI = mustABI(factoryABIJSON)
	pairABI    = mustABI(pairABIJSON)

	errNoPair = errors.New("no pair")
)

func mustABI(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(err)
	}
	return parsed
}

// PriceSource quotes a token in USD
type PriceSource interface {
	PriceUSD(ctx context.Context, address, chain string) (float64, error)
}

// EVMLiquidity resolves pairs against the configured factories and base asset
type EVMLiquidity struct {
	caller  ethereum.ContractCaller
	network network.NetworkConfig
	prices  PriceSource
	holders chain.HolderSource
	log     zerolog.Logger
}

// NewEVMLiquidity builds the analyzer for one network. prices and holders may be nil.
func NewEVMLiquidity(caller ethereum.ContractCaller, n network.NetworkConfig, prices PriceSource, holders chain.HolderSource, log zerolog.Logger) *EVMLiquidity {
	return &EVMLiquidity{caller: caller, network: n, prices: prices, holders: holders, log: log}
}

type poolRead struct {
	pool      models.Pool
	value     decimal.Decimal
	lockedPct decimal.Decimal
}

// Analyze aggregates every factory pair of the token. It errors only when no
// factory could be queried at all.
func (l *EVMLiquidity) Analyze(ctx context.Context, address string) (models.LiquidityAnalysis, error) {
	token := common.HexToAddress(address)
	base := common.HexToAddress(l.network.BaseAsset.Address)
	price := decimal.NewFromFloat(l.basePrice(ctx))

	known := l.knownAddresses()
	var out models.LiquidityAnalysis
	var reads []poolRead
	var failed int
	var lastErr error

	for _, f := range l.network.Factories {
		r, err := l.readPool(ctx, f, token, base, price)
		if errors.Is(err, errNoPair) {
			continue
		}
		if err != nil {
			failed++
			lastErr = err
			l.log.Debug().Err(err).Str("service", f.Name).Str("address", address).Msg("pair lookup failed")
			continue
		}
		reads = append(reads, r)
		out.Pools = append(out.Pools, r.pool)
		known[strings.ToLower(r.pool.PairAddress)] = true
	}

	if len(l.network.Factories) > 0 && failed == len(l.network.Factories) {
		finalize(&out)
		return out, fmt.Errorf("all %d factory lookups failed: %w", failed, lastErr)
	}

	total := decimal.Zero
	for _, r := range reads {
		total = total.Add(r.value)
	}
	out.TotalLiquidityUSD, _ = total.Round(2).Float64()
	out.LockPercentage = lockShare(reads, total)
	out.Locked = out.LockPercentage >= LockedThresholdPct

	out.MajorHolders = topHolders(ctx, l.holders, address, known, l.log)
	finalize(&out)
	return out, nil
}

// lockShare weights each pool's locked LP share by its value. Without prices
// pools count equally.
func lockShare(reads []poolRead, total decimal.Decimal) float64 {
	if len(reads) == 0 {
		return 0
	}
	share := decimal.Zero
	if total.IsPositive() {
		for _, r := range reads {
			share = share.Add(r.lockedPct.Mul(r.value))
		}
		share = share.Div(total)
	} else {
		for _, r := range reads {
			share = share.Add(r.lockedPct)
		}
		share = share.Div(decimal.NewFromInt(int64(len(reads))))
	}
	f, _ := share.Round(2).Float64()
	return f
}

func (l *EVMLiquidity) readPool(ctx context.Context, f network.NamedAddress, token, base common.Address, price decimal.Decimal) (poolRead, error) {
	vals, err := l.call(ctx, factoryABI, common.HexToAddress(f.Address), "getPair", token, base)
	if err != nil {
		return poolRead{}, fmt.Errorf("getPair: %w", err)
	}
	pair := vals[0].(common.Address)
	if pair == (common.Address{}) {
		return poolRead{}, errNoPair
	}

	vals, err = l.call(ctx, pairABI, pair, "getReserves")
	if err != nil {
		return poolRead{}, fmt.Errorf("getReserves: %w", err)
	}
	reserve0, reserve1 := vals[0].(*big.Int), vals[1].(*big.Int)

	vals, err = l.call(ctx, pairABI, pair, "token0")
	if err != nil {
		return poolRead{}, fmt.Errorf("token0: %w", err)
	}
	baseReserve := reserve0
	if vals[0].(common.Address) == token {
		baseReserve = reserve1
	}

	// Both sides of a constant-product pool hold equal value
	value := decimal.NewFromBigInt(baseReserve, -int32(l.network.BaseAsset.Decimals)).
		Mul(price).
		Mul(decimal.NewFromInt(2))

	r := poolRead{value: value, lockedPct: l.lockedShare(ctx, pair)}
	r.pool = models.Pool{
		Exchange:    f.Name,
		PairAddress: pair.Hex(),
	}
	r.pool.LiquidityUSD, _ = value.Round(2).Float64()
	return r, nil
}

// lockedShare is the percentage of LP supply held by lockers or burned.
// Unreadable balances count as unlocked.
func (l *EVMLiquidity) lockedShare(ctx context.Context, pair common.Address) decimal.Decimal {
	vals, err := l.call(ctx, pairABI, pair, "totalSupply")
	if err != nil {
		return decimal.Zero
	}
	supply := decimal.NewFromBigInt(vals[0].(*big.Int), 0)
	if !supply.IsPositive() {
		return decimal.Zero
	}

	holders := []common.Address{deadAddress}
	for _, lk := range l.network.Lockers {
		holders = append(holders, common.HexToAddress(lk.Address))
	}

	locked := decimal.Zero
	for _, h := range holders {
		vals, err := l.call(ctx, pairABI, pair, "balanceOf", h)
		if err != nil {
			continue
		}
		locked = locked.Add(decimal.NewFromBigInt(vals[0].(*big.Int), 0))
	}
	return locked.Div(supply).Mul(decimal.NewFromInt(100))
}

func (l *EVMLiquidity) basePrice(ctx context.Context) float64 {
	if l.prices != nil {
		p, err := l.prices.PriceUSD(ctx, l.network.BaseAsset.Address, l.network.ID)
		if err == nil && p > 0 {
			return p
		}
		l.log.Debug().Err(err).Str("chain", l.network.ID).Msg("base asset price unavailable, using reference")
	}
	return l.network.BaseAsset.ReferencePriceUSD
}

func (l *EVMLiquidity) knownAddresses() map[string]bool {
	known := map[string]bool{strings.ToLower(deadAddress.Hex()): true}
	for _, list := range [][]network.NamedAddress{l.network.Lockers, l.network.KnownExchanges} {
		for _, a := range list {
			known[strings.ToLower(a.Address)] = true
		}
	}
	return known
}

func (l *EVMLiquidity) call(ctx context.Context, parsed abi.ABI, to common.Address, method string, args ...interface{}) ([]interface{}, error) {
	data, err := parsed.Pack(method, args...)
	if err != nil {
		return nil, err
	}
	out, err := l.caller.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%s: empty return data", method)
	}
	return parsed.Unpack(method, out)
}

// PoolSource lists a token's pools from an aggregator
type PoolSource interface {
	GetLiquidityMetrics(ctx context.Context, address, chain string) (liquidity, volume float64, pools []models.Pool, err error)
}

// AccountLiquidity serves account-model chains from an aggregator. Lock state
// cannot be resolved there and stays false.
type AccountLiquidity struct {
	pools   PoolSource
	chainID string
	holders chain.HolderSource
	known   map[string]bool
	log     zerolog.Logger
}

func NewAccountLiquidity(pools PoolSource, n network.NetworkConfig, holders chain.HolderSource, log zerolog.Logger) *AccountLiquidity {
	known := make(map[string]bool, len(n.KnownExchanges))
	for _, a := range n.KnownExchanges {
		known[strings.ToLower(a.Address)] = true
	}
	return &AccountLiquidity{pools: pools, chainID: n.ID, holders: holders, known: known, log: log}
}

func (l *AccountLiquidity) Analyze(ctx context.Context, address string) (models.LiquidityAnalysis, error) {
	var out models.LiquidityAnalysis

	liquidity, _, pools, err := l.pools.GetLiquidityMetrics(ctx, address, l.chainID)
	if err != nil {
		finalize(&out)
		return out, fmt.Errorf("pool lookup: %w", err)
	}
	out.TotalLiquidityUSD = liquidity
	out.Pools = pools

	known := make(map[string]bool, len(l.known)+len(pools))
	for k := range l.known {
		known[k] = true
	}
	for _, p := range pools {
		known[strings.ToLower(p.PairAddress)] = true
	}
	out.MajorHolders = topHolders(ctx, l.holders, address, known, l.log)
	finalize(&out)
	return out, nil
}

func topHolders(ctx context.Context, src chain.HolderSource, address string, known map[string]bool, log zerolog.Logger) []models.Holder {
	if src == nil {
		return nil
	}
	holders, err := src.TopHolders(ctx, address, TopHolderLimit)
	if err != nil {
		log.Debug().Err(err).Str("address", address).Msg("holder lookup failed")
		return nil
	}
	for i := range holders {
		holders[i].IsKnownExchange = known[strings.ToLower(holders[i].Address)]
	}
	return holders
}
