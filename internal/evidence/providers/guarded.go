package providers

import (
	"context"
	"errors"
	"log/slog"

	"verigate/pkg/platform/circuit"
)

// GuardedProvider puts a circuit breaker in front of a remote provider. While
// the breaker is open, Collect fails immediately with a provider outage so
// the assembler degrades without waiting on a dead dependency.
type GuardedProvider struct {
	Provider
	breaker *circuit.Breaker
	logger  *slog.Logger
}

// NewGuarded wraps p. A nil logger falls back to slog.Default.
func NewGuarded(p Provider, b *circuit.Breaker, logger *slog.Logger) *GuardedProvider {
	if logger == nil {
		logger = slog.Default()
	}
	return &GuardedProvider{Provider: p, breaker: b, logger: logger}
}

func (g *GuardedProvider) Collect(ctx context.Context, req Request) (*Contribution, error) {
	if !g.breaker.Allow() {
		return nil, NewProviderError(ErrorProviderOutage, g.ID(), "circuit open", nil)
	}

	c, err := g.Provider.Collect(ctx, req)
	switch {
	case err == nil:
		if _, change := g.breaker.RecordSuccess(); change.Closed {
			g.logger.InfoContext(ctx, "provider circuit closed", "provider_id", g.ID())
		}
	case errors.Is(ctx.Err(), context.Canceled):
		// Sibling failure or client disconnect. The provider is not at fault.
	case GetCategory(err).Unhealthy():
		if _, change := g.breaker.RecordFailure(); change.Opened {
			g.logger.WarnContext(ctx, "provider circuit opened",
				"provider_id", g.ID(),
				"category", GetCategory(err),
			)
		}
	}
	// Subject-level answers (not found, bad data) count as neither success
	// nor failure.
	return c, err
}
