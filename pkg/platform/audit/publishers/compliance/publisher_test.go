package compliance

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	audit "verigate/pkg/platform/audit"
	"verigate/pkg/platform/audit/store/memory"
)

type failingStore struct{}

func (failingStore) Append(context.Context, audit.Event) error { return errors.New("disk full") }

func decisionEvent() audit.Event {
	return audit.Event{
		Action:        string(audit.EventDecisionMade),
		SubjectIDHash: "h1",
		ReportID:      "r1",
		Decision:      "low",
	}
}

func TestPublisher_Emit(t *testing.T) {
	ctx := context.Background()
	quiet := WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))

	t.Run("stamps and stores decision records", func(t *testing.T) {
		store := memory.NewInMemoryStore()
		m := NewMetrics(prometheus.NewRegistry())
		at := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)
		p := New(store, WithMetrics(m), WithClock(func() time.Time { return at }))

		event := decisionEvent()
		event.Category = audit.CategorySecurity
		require.NoError(t, p.Emit(ctx, event))

		events, err := store.ListBySubject(ctx, "h1")
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.NotEmpty(t, events[0].ID)
		assert.Equal(t, at, events[0].Timestamp)
		assert.Equal(t, audit.CategoryCompliance, events[0].Category)
		assert.Equal(t, 1.0, testutil.ToFloat64(m.EventsEmitted))
	})

	t.Run("rejects incomplete events", func(t *testing.T) {
		tests := []struct {
			name    string
			mutate  func(*audit.Event)
			missing string
		}{
			{"no action", func(e *audit.Event) { e.Action = "" }, "action"},
			{"no subject", func(e *audit.Event) { e.SubjectIDHash = "" }, "subject_id_hash"},
			{"decision without report", func(e *audit.Event) { e.ReportID = "" }, "report_id"},
			{"decision without outcome", func(e *audit.Event) { e.Decision = "" }, "decision"},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				store := memory.NewInMemoryStore()
				event := decisionEvent()
				tt.mutate(&event)

				err := New(store, quiet).Emit(ctx, event)
				require.ErrorIs(t, err, ErrIncomplete)
				assert.Contains(t, err.Error(), tt.missing)
				events, _ := store.ListBySubject(ctx, "h1")
				assert.Empty(t, events)
			})
		}
	})

	t.Run("other actions only need action and subject", func(t *testing.T) {
		p := New(memory.NewInMemoryStore(), quiet)
		assert.NoError(t, p.Emit(ctx, audit.Event{Action: string(audit.EventAttestationVerified), SubjectIDHash: "h"}))
	})

	t.Run("store failure fails closed", func(t *testing.T) {
		m := NewMetrics(prometheus.NewRegistry())
		p := New(failingStore{}, WithMetrics(m), quiet)

		err := p.Emit(ctx, decisionEvent())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "disk full")
		assert.Equal(t, 1.0, testutil.ToFloat64(m.PersistFailures))
		assert.Zero(t, testutil.ToFloat64(m.EventsEmitted))
	})
}
