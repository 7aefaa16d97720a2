package fraud

import (
	"context"
	"errors"
	"fmt"
)

// Quote is one provider's normalized fee and honeypot verdict
type Quote struct {
	IsHoneypot  bool
	Reason      string
	BuyTax      float64
	SellTax     float64
	TransferTax float64
	AntiBot     []string
}

// Thresholds for the holder-analysis override
const (
	MaxHolderFailRate   = 0.10 // 10% of holders failing to sell
	MinHolderSampleSize = 100  // Minimum holders to trust fail rate
)

var errNotSimulated = errors.New("simulation did not run")

// QuoteSource is a transaction-simulation service
type QuoteSource interface {
	Name() string
	Quote(ctx context.Context, address string, chainID int64) (Quote, error)
}

func (h *HoneypotClient) Name() string { return "honeypot.is" }

func (h *HoneypotClient) Quote(ctx context.Context, address string, chainID int64) (Quote, error) {
	data, err := h.CheckToken(ctx, address, chainID)
	if err != nil {
		return Quote{}, err
	}
	return honeypotQuote(data)
}

func honeypotQuote(h *HoneypotData) (Quote, error) {
	if !h.SimulationSuccess && !h.IsHoneypot {
		return Quote{}, fmt.Errorf("honeypot.is: %w", errNotSimulated)
	}
	q := Quote{
		IsHoneypot:  h.IsHoneypot,
		Reason:      h.HoneypotReason,
		BuyTax:      h.BuyTax,
		SellTax:     h.SellTax,
		TransferTax: h.TransferTax,
	}

	// A token can pass the simulated sell and still trap most real holders
	if !q.IsHoneypot && h.TotalHolders >= MinHolderSampleSize && h.FailRate > MaxHolderFailRate {
		q.IsHoneypot = true
		q.Reason = fmt.Sprintf(
			"high holder fail rate: %.1f%% (%d/%d holders cannot sell)",
			h.FailRate*100,
			h.FailedSells,
			h.TotalHolders,
		)
	}
	return q, nil
}

func (g *GoPlusClient) Name() string { return "goplus" }

func (g *GoPlusClient) Quote(ctx context.Context, address string, chainID int64) (Quote, error) {
	data, err := g.CheckToken(ctx, address, chainID)
	if err != nil {
		return Quote{}, err
	}
	return goPlusQuote(data), nil
}

func goPlusQuote(g *GoPlusData) Quote {
	q := Quote{
		BuyTax:      g.BuyTax,
		SellTax:     g.SellTax,
		TransferTax: g.TransferTax,
	}

	switch {
	case g.IsHoneypot:
		q.IsHoneypot, q.Reason = true, "honeypot (GoPlus)"
	case g.CannotBuy:
		q.IsHoneypot, q.Reason = true, "cannot buy token (GoPlus)"
	case g.CannotSellAll:
		q.IsHoneypot, q.Reason = true, "cannot sell all tokens, partial honeypot (GoPlus)"
	case g.HoneypotWithCreator && g.SlippageModifiable:
		q.IsHoneypot, q.Reason = true, "creator deployed other honeypots and can modify slippage (GoPlus)"
	}

	if g.TradingCooldown {
		q.AntiBot = append(q.AntiBot, "trading_cooldown")
	}
	if g.AntiWhale {
		q.AntiBot = append(q.AntiBot, "anti_whale")
	}
	return q
}
