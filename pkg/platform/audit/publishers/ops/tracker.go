// Package ops records routine operational audit events. Events are sampled
// and dropped outright while the store is failing, so ops auditing can never
// slow down or fail a request.
package ops

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	audit "verigate/pkg/platform/audit"
	"verigate/pkg/platform/circuit"
)

// Tracker emits sampled, best-effort ops events.
type Tracker struct {
	store   audit.Store
	sampler *Sampler
	breaker *circuit.Breaker
	metrics *Metrics
	logger  *slog.Logger
}

type Option func(*Tracker)

func WithSampler(s *Sampler) Option {
	return func(t *Tracker) { t.sampler = s }
}

// WithCircuitBreaker replaces the default breaker, which opens after five
// consecutive store failures and probes once a minute.
func WithCircuitBreaker(cb *circuit.Breaker) Option {
	return func(t *Tracker) { t.breaker = cb }
}

func WithMetrics(m *Metrics) Option {
	return func(t *Tracker) { t.metrics = m }
}

func WithLogger(logger *slog.Logger) Option {
	return func(t *Tracker) { t.logger = logger }
}

// New creates a tracker that keeps every event until a sampler is supplied.
func New(store audit.Store, opts ...Option) *Tracker {
	t := &Tracker{
		store:   store,
		sampler: NewSampler(1, nil),
		breaker: circuit.New("audit-ops",
			circuit.WithCooldown(time.Minute),
			circuit.WithSuccessThreshold(1),
		),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Emit writes the event if it survives sampling and the circuit is closed.
// It always returns nil.
func (t *Tracker) Emit(ctx context.Context, event audit.Event) error {
	if !t.sampler.Keep(event) {
		t.metrics.IncSampled(event.Action)
		return nil
	}
	if !t.breaker.Allow() {
		t.metrics.IncCircuitBreakerDropped()
		return nil
	}

	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	event.Category = audit.CategoryOperations

	if err := t.store.Append(ctx, event); err != nil {
		open, change := t.breaker.RecordFailure()
		t.metrics.IncPersistFailures()
		t.metrics.SetCircuitBreakerState(open)
		if change.Opened {
			t.logger.WarnContext(ctx, "ops audit circuit opened", "breaker", t.breaker.Name())
		}
		t.logger.DebugContext(ctx, "ops audit dropped", "action", event.Action, "error", err)
		return nil
	}
	closed, change := t.breaker.RecordSuccess()
	t.metrics.SetCircuitBreakerState(!closed)
	if change.Closed {
		t.logger.InfoContext(ctx, "ops audit circuit closed", "breaker", t.breaker.Name())
	}
	t.metrics.IncTracked()
	return nil
}
