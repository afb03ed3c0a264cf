// Package marketdata fronts the external price provider with a TTL cache.
// Concurrent requests for the same (symbol, period) key share one in-flight
// fetch, and stale history is served when the provider is down.
package marketdata

import (
	"context"
	"fmt"

	"github.com/quantfolio/quantfolio/internal/domain"
)

// Provider is the external price source collaborator contract.
type Provider interface {
	// Fetch returns the full price history for symbol over the named
	// period (e.g. "1y"). Failures are NotFoundError or TransientError.
	Fetch(ctx context.Context, symbol, period string) (domain.PriceSeries, error)
}

// NotFoundError reports a symbol the provider does not know.
type NotFoundError struct {
	Symbol string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("symbol %s not found", e.Symbol)
}

// TransientError reports a temporary provider failure (network, rate limit,
// upstream outage). The cache treats it as an invitation to serve stale
// history.
type TransientError struct {
	Symbol string
	Err    error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient provider failure for %s: %v", e.Symbol, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }
