package handler

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"verigate/internal/decision"
	"verigate/internal/decision/store"
	"verigate/internal/evidence/assembler"
	"verigate/internal/evidence/providers"
	"verigate/internal/scoring"
	audit "verigate/pkg/platform/audit"
	"verigate/pkg/platform/audit/publisher"
	"verigate/pkg/platform/audit/publishers/compliance"
	auditmemory "verigate/pkg/platform/audit/store/memory"
	"verigate/pkg/testutil"
)

// Justification for unit tests: request metadata set by middleware must reach
// the compliance trail, and the gather path must work over real providers.
func TestEvaluate_AuditTrailAndGathering(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	events := auditmemory.NewInMemoryStore()

	registry := providers.NewRegistry()
	for _, p := range []providers.Provider{
		providers.NewMockDocumentProvider("doc", providers.WithClock(func() time.Time { return now })),
		providers.NewMockBiometricProvider("bio"),
		providers.NewMockExternalProvider("ext"),
	} {
		require.NoError(t, registry.Register(p))
	}

	svc, err := decision.New(scoring.NewDefaultEngine(), store.NewInMemoryStore(),
		decision.WithAssembler(assembler.New(registry, assembler.WithLogger(logger))),
		decision.WithAuditPublisher(publisher.NewPublisher(compliance.New(events))),
		decision.WithLogger(logger),
	)
	require.NoError(t, err)
	h, err := New(svc, logger)
	require.NoError(t, err)
	r := chi.NewRouter()
	h.Register(r)

	send := func(body any) *http.Request {
		req := testutil.NewRequest(t, http.MethodPost, "/v1/decisions", body)
		req = testutil.WithRequestID(req, "req-42")
		req = testutil.WithClientMetadata(req, "203.0.113.7", "test-agent")
		return testutil.WithTime(req, now)
	}

	testutil.Given(t, "inline evidence submitted through the middleware chain", func(t *testing.T) {
		rr := testutil.Serve(r, send(map[string]any{"subject_id": subjectID, "evidence": evidenceBody()}))
		testutil.AssertStatus(t, rr, http.StatusCreated)
		resp := testutil.UnmarshalResponse[DecisionResponse](t, rr)

		testutil.Then(t, "the report is stamped with the pinned request time", func(t *testing.T) {
			assert.Equal(t, now, resp.Report.CreatedAt)
		})

		testutil.And(t, "the compliance trail carries request metadata but no raw subject", func(t *testing.T) {
			trail, err := events.ListBySubject(context.Background(), audit.HashIdentifier(subjectID))
			require.NoError(t, err)
			require.Len(t, trail, 1)
			ev := trail[0]
			assert.Equal(t, string(audit.EventDecisionMade), ev.Action)
			assert.Equal(t, resp.Report.ID, ev.ReportID)
			assert.Equal(t, "low", ev.Decision)
			assert.Equal(t, "req-42", ev.RequestID)
			assert.Equal(t, "203.0.113.7", ev.ClientIP)
			assert.NotEmpty(t, ev.Attributes["client_device"])
			assert.NotContains(t, ev.SubjectIDHash, subjectID)
		})
	})

	testutil.When(t, "evidence is gathered from providers instead", func(t *testing.T) {
		rr := testutil.Serve(r, send(map[string]any{
			"subject_id": "6ba7b810-9dad-11d1-80b4-00c04fd430c8",
			"collect": map[string]any{
				"full_name":       "Bob Smith",
				"date_of_birth":   "1985-03-02",
				"document_type":   "passport",
				"document_number": "P7654321",
			},
			"telemetry": map[string]any{"completion_time_seconds": 95, "number_of_attempts": 1},
		}))
		testutil.AssertStatus(t, rr, http.StatusCreated)
		resp := testutil.UnmarshalResponse[DecisionResponse](t, rr)

		testutil.Then(t, "every category is reported as gathered", func(t *testing.T) {
			require.NotNil(t, resp.Gathered)
			assert.True(t, resp.Gathered.Document)
			assert.True(t, resp.Gathered.Biometric)
			assert.True(t, resp.Gathered.External)
			assert.Empty(t, resp.Gathered.Failures)
			assert.True(t, resp.Report.Requirements.DocumentVerification)
		})
	})
}
