// Package compliance records the regulatory trail of KYC decisions. Emit
// blocks until the event is stored, and a decision whose record cannot be
// stored must not be returned to the caller.
package compliance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	audit "verigate/pkg/platform/audit"
)

// ErrIncomplete is returned for events missing fields the trail depends on.
var ErrIncomplete = errors.New("incomplete compliance event")

// requiredByAction lists fields that must be set beyond action and subject.
var requiredByAction = map[audit.AuditEvent][]string{
	audit.EventDecisionMade: {"report_id", "decision"},
}

// Publisher writes compliance events synchronously.
type Publisher struct {
	store   audit.Store
	logger  *slog.Logger
	metrics *Metrics
	now     func() time.Time
}

type Option func(*Publisher)

func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) { p.logger = logger }
}

func WithMetrics(m *Metrics) Option {
	return func(p *Publisher) { p.metrics = m }
}

func WithClock(now func() time.Time) Option {
	return func(p *Publisher) { p.now = now }
}

func New(store audit.Store, opts ...Option) *Publisher {
	p := &Publisher{
		store:  store,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Emit stamps and stores event. Any error means the record does not exist.
func (p *Publisher) Emit(ctx context.Context, event audit.Event) error {
	if missing := missingFields(event); len(missing) > 0 {
		return fmt.Errorf("%w: %q lacks %s", ErrIncomplete, event.Action, strings.Join(missing, ", "))
	}

	started := p.now()
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = started.UTC()
	}
	event.Category = audit.CategoryCompliance

	if err := p.store.Append(ctx, event); err != nil {
		p.metrics.IncPersistFailures()
		p.logger.ErrorContext(ctx, "compliance audit write failed; decision will be rejected",
			"action", event.Action,
			"report_id", event.ReportID,
			"request_id", event.RequestID,
			"error", err,
		)
		return fmt.Errorf("store compliance event: %w", err)
	}

	p.metrics.ObservePersistDuration(p.now().Sub(started).Seconds())
	p.metrics.IncEventsEmitted()
	return nil
}

func missingFields(e audit.Event) []string {
	var missing []string
	if e.Action == "" {
		missing = append(missing, "action")
	}
	if e.SubjectIDHash == "" {
		missing = append(missing, "subject_id_hash")
	}
	for _, field := range requiredByAction[audit.AuditEvent(e.Action)] {
		switch {
		case field == "report_id" && e.ReportID == "":
			missing = append(missing, field)
		case field == "decision" && e.Decision == "":
			missing = append(missing, field)
		}
	}
	return missing
}
