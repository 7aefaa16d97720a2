// Package provider implements ordered best-effort provider chains with a
// per-provider timeout where the first success wins.
package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

var ErrAllProvidersFailed = errors.New("all providers failed")

// DefaultTimeout bounds a provider that was registered without its own timeout
const DefaultTimeout = 5 * time.Second

// Provider is one source for a capability
type Provider[T any] struct {
	Name    string
	Timeout time.Duration
	Fetch   func(ctx context.Context) (T, error)
}

// FailureHook is called for every provider that fails, e.g. to count metrics
type FailureHook func(provider string, err error)

// FirstSuccess tries providers in order and returns the first successful value
// together with the name of the provider that produced it.
func FirstSuccess[T any](ctx context.Context, log zerolog.Logger, onFail FailureHook, providers ...Provider[T]) (T, string, error) {
	var zero T
	var failures []string

	for _, p := range providers {
		if err := ctx.Err(); err != nil {
			failures = append(failures, fmt.Sprintf("%s: %v", p.Name, err))
			break
		}

		v, err := call(ctx, p)
		if err == nil {
			return v, p.Name, nil
		}

		log.Debug().Err(err).Str("service", p.Name).Msg("provider failed")
		if onFail != nil {
			onFail(p.Name, err)
		}
		failures = append(failures, fmt.Sprintf("%s: %v", p.Name, err))
	}

	if len(failures) == 0 {
		return zero, "", fmt.Errorf("%w: no providers configured", ErrAllProvidersFailed)
	}
	return zero, "", fmt.Errorf("%w: %s", ErrAllProvidersFailed, strings.Join(failures, "; "))
}

func call[T any](ctx context.Context, p Provider[T]) (T, error) {
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		v   T
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		v, err := p.Fetch(ctx)
		done <- outcome{v, err}
	}()

	// Providers that ignore ctx still cannot hold the chain past the timeout.
	select {
	case o := <-done:
		return o.v, o.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
