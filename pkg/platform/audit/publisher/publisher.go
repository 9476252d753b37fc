// Package publisher routes audit events to the publisher for their category:
// compliance events are written synchronously and fail closed, security
// events are buffered, and operations events are sampled best-effort.
package publisher

import (
	"context"
	"log/slog"

	audit "verigate/pkg/platform/audit"
)

// Emitter is implemented by the per-category publishers.
type Emitter interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Publisher dispatches by category. Categories without a dedicated emitter
// fall back to the compliance emitter.
type Publisher struct {
	compliance Emitter
	security   Emitter
	ops        Emitter
	logger     *slog.Logger
}

type Option func(*Publisher)

func WithSecurity(e Emitter) Option {
	return func(p *Publisher) { p.security = e }
}

func WithOps(e Emitter) Option {
	return func(p *Publisher) { p.ops = e }
}

func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) { p.logger = logger }
}

// NewPublisher builds a router around the mandatory compliance emitter.
func NewPublisher(compliance Emitter, opts ...Option) *Publisher {
	p := &Publisher{compliance: compliance, logger: slog.Default()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Emit forwards the event. Only compliance failures are returned.
func (p *Publisher) Emit(ctx context.Context, event audit.Event) error {
	category := event.ResolveCategory()
	event.Category = category

	switch category {
	case audit.CategorySecurity:
		if p.security != nil {
			return p.warnOnly(ctx, p.security.Emit(ctx, event), event)
		}
	case audit.CategoryOperations:
		if p.ops != nil {
			return p.warnOnly(ctx, p.ops.Emit(ctx, event), event)
		}
	}
	return p.compliance.Emit(ctx, event)
}

func (p *Publisher) warnOnly(ctx context.Context, err error, event audit.Event) error {
	if err != nil {
		p.logger.WarnContext(ctx, "audit emit failed",
			"action", event.Action,
			"category", event.Category,
			"error", err,
		)
	}
	return nil
}
