// Package chain implements one adapter per chain family behind a uniform
// metadata surface
package chain

import (
	"context"
	"errors"

	"github.com/notlelouch/go-interview-practice/token-threat-scanner/internal/models"
)

var (
	// ErrAddressNotFound means the address does not resolve to any on-chain entity
	ErrAddressNotFound = errors.New("address not found on chain")
	ErrInvalidAddress  = errors.New("invalid address")
	// ErrAdapterUnavailable wraps network and timeout failures. Metadata
	// returned alongside it is partial but usable.
	ErrAdapterUnavailable = errors.New("chain adapter unavailable")
)

// Adapter fetches token metadata and raw code for one chain family
type Adapter interface {
	Family() models.ChainFamily
	FetchTokenMetadata(ctx context.Context, address string) (models.TokenMetadata, error)
}

// HolderSource lists the largest holders of a token
type HolderSource interface {
	TopHolders(ctx context.Context, address string, limit int) ([]models.Holder, error)
}

// Fatal reports whether err should abort the whole scan
func Fatal(err error) bool {
	return errors.Is(err, ErrAddressNotFound) || errors.Is(err, ErrInvalidAddress)
}
