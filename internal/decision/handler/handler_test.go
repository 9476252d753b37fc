package handler

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"

	"verigate/internal/decision"
	"verigate/internal/decision/attestation"
	"verigate/internal/decision/store"
	"verigate/internal/scoring"
	"verigate/pkg/platform/middleware/requesttime"
	"verigate/pkg/testutil"
)

// =============================================================================
// Decision Handler Test Suite
// =============================================================================
// Justification for unit tests: handlers own schema rejection, path parsing
// and status mapping. The service underneath is real (in-memory store) so the
// JSON contract is exercised end to end.

const (
	testSigningKey = "handler-test-signing-key-0123456789"
	subjectID      = "550e8400-e29b-41d4-a716-446655440000"
)

var now = time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)

type HandlerSuite struct {
	suite.Suite
	router http.Handler
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	signer, err := attestation.NewSigner(testSigningKey, "verigate-test", time.Hour,
		attestation.WithClock(func() time.Time { return now }))
	s.Require().NoError(err)

	svc, err := decision.New(scoring.NewDefaultEngine(), store.NewInMemoryStore(),
		decision.WithAttestor(signer),
		decision.WithLogger(logger),
	)
	s.Require().NoError(err)

	h, err := New(svc, logger)
	s.Require().NoError(err)

	r := chi.NewRouter()
	r.Use(requesttime.MiddlewareWithClock(func() time.Time { return now }))
	h.Register(r)
	s.router = r
}

func evidenceBody() map[string]any {
	return map[string]any{
		"personal_info": map[string]any{"full_name": "Alice Johnson", "date_of_birth": "1990-05-15"},
		"document_info": map[string]any{
			"document_type":   "id_card",
			"document_number": "X1234567",
			"issue_date":      "2020-01-01",
			"expiry_date":     "2030-01-01",
		},
		"biometric_signals":    map[string]any{"face_match_score": 85},
		"behavioral_telemetry": map[string]any{"completion_time_seconds": 120, "number_of_attempts": 1},
		"external_verification": map[string]any{
			"social_media_verified": true,
			"bank_account_verified": true,
			"phone_number_verified": true,
			"email_verified":        true,
		},
	}
}

func (s *HandlerSuite) post(path string, body any) *httptest.ResponseRecorder {
	return testutil.Serve(s.router, testutil.NewRequest(s.T(), http.MethodPost, path, body))
}

func (s *HandlerSuite) evaluate() DecisionResponse {
	rr := s.post("/v1/decisions", map[string]any{"subject_id": subjectID, "evidence": evidenceBody()})
	testutil.AssertStatus(s.T(), rr, http.StatusCreated)
	return *testutil.UnmarshalResponse[DecisionResponse](s.T(), rr)
}

func (s *HandlerSuite) TestScore() {
	s.Run("scores the worked example", func() {
		rr := s.post("/v1/scores", evidenceBody())
		testutil.AssertStatusOK(s.T(), rr)

		score := testutil.UnmarshalResponse[scoring.RiskScore](s.T(), rr)
		s.InDelta(96.25, score.Overall, 1e-9)
		s.Equal(scoring.RiskLevelLow, score.Level)
		s.Empty(score.Flags)
		s.Equal(now, score.EvaluatedAt)
	})

	s.Run("absent biometrics are valid input", func() {
		body := evidenceBody()
		delete(body, "biometric_signals")
		rr := s.post("/v1/scores", body)
		testutil.AssertStatusOK(s.T(), rr)

		score := testutil.UnmarshalResponse[scoring.RiskScore](s.T(), rr)
		s.Zero(score.Components.Biometric)
		s.Contains(score.Flags, scoring.FlagLowBiometric)
	})

	s.Run("schema rejects out of range biometrics", func() {
		body := evidenceBody()
		body["biometric_signals"] = map[string]any{"face_match_score": 140}
		testutil.AssertStatusAndError(s.T(), s.post("/v1/scores", body), http.StatusBadRequest, "validation_error")
	})

	s.Run("schema rejects unknown document types", func() {
		body := evidenceBody()
		body["document_info"].(map[string]any)["document_type"] = "library_card"
		testutil.AssertStatusAndError(s.T(), s.post("/v1/scores", body), http.StatusBadRequest, "validation_error")
	})

	s.Run("unparseable dates fail domain validation", func() {
		body := evidenceBody()
		body["document_info"].(map[string]any)["expiry_date"] = "next year"
		testutil.AssertStatusAndError(s.T(), s.post("/v1/scores", body), http.StatusBadRequest, "validation_error")
	})

	s.Run("malformed JSON", func() {
		req := testutil.NewRequest(s.T(), http.MethodPost, "/v1/scores", "{not json")
		testutil.AssertStatusAndError(s.T(), testutil.Serve(s.router, req), http.StatusBadRequest, "bad_request")
	})
}

func (s *HandlerSuite) TestClassify() {
	tests := []struct {
		name string
		body map[string]bool
		want string
	}{
		{"nothing", map[string]bool{}, "BASIC"},
		{"document and biometric", map[string]bool{"document_verification": true, "biometric_match": true}, "STANDARD"},
		{"plus address", map[string]bool{"document_verification": true, "biometric_match": true, "address_verification": true}, "ENHANCED"},
		{"everything", map[string]bool{"document_verification": true, "biometric_match": true, "address_verification": true, "background_check": true}, "PREMIUM"},
	}
	for _, tt := range tests {
		s.Run(tt.name, func() {
			rr := s.post("/v1/levels", tt.body)
			testutil.AssertStatusOK(s.T(), rr)
			s.Equal(tt.want, testutil.UnmarshalResponse[LevelResponse](s.T(), rr).VerificationLevel)
		})
	}

	s.Run("unknown field", func() {
		rr := s.post("/v1/levels", map[string]any{"credit_check": true})
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "validation_error")
	})
}

func (s *HandlerSuite) TestEvaluateGetAndHistory() {
	first := s.evaluate()
	s.Equal(subjectID, first.Report.SubjectID)
	s.Equal("STANDARD", first.Report.VerificationLevel)
	s.InDelta(96.25, first.Report.RiskScore.Overall, 1e-9)
	s.Nil(first.Report.SupersedesID)
	s.NotEmpty(first.Attestation)
	s.Nil(first.Gathered)

	second := s.evaluate()
	s.Require().NotNil(second.Report.SupersedesID)
	s.Equal(first.Report.ID, *second.Report.SupersedesID)

	rr := testutil.Serve(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/v1/decisions/"+first.Report.ID, nil))
	testutil.AssertStatusOK(s.T(), rr)
	s.Equal(first.Report, *testutil.UnmarshalResponse[ReportResponse](s.T(), rr))

	rr = testutil.Serve(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/v1/subjects/"+subjectID+"/decisions", nil))
	testutil.AssertStatusOK(s.T(), rr)
	history := testutil.UnmarshalResponse[HistoryResponse](s.T(), rr)
	s.Require().Len(history.Reports, 2)
	s.Equal(second.Report.ID, history.Reports[0].ID)

	rr = s.post("/v1/attestations/verify", map[string]string{"token": second.Attestation})
	testutil.AssertStatusOK(s.T(), rr)
	claims := testutil.UnmarshalResponse[AttestationResponse](s.T(), rr)
	s.True(claims.Valid)
	s.Equal(second.Report.ID, claims.ReportID)
	s.Equal(subjectID, claims.SubjectID)
	s.Equal("low", claims.RiskLevel)
	s.Equal(now.Add(time.Hour), claims.ExpiresAt)
}

func (s *HandlerSuite) TestEvaluateRejects() {
	tests := []struct {
		name   string
		body   map[string]any
		status int
		code   string
	}{
		{"missing subject", map[string]any{"evidence": evidenceBody()}, http.StatusBadRequest, "validation_error"},
		{"malformed subject", map[string]any{"subject_id": "nope", "evidence": evidenceBody()}, http.StatusBadRequest, "invalid_input"},
		{"no evidence source", map[string]any{"subject_id": subjectID}, http.StatusBadRequest, "validation_error"},
		{"collect without telemetry", map[string]any{
			"subject_id": subjectID,
			"collect":    map[string]any{"full_name": "A", "document_type": "passport", "document_number": "P1"},
		}, http.StatusBadRequest, "validation_error"},
	}
	for _, tt := range tests {
		s.Run(tt.name, func() {
			testutil.AssertStatusAndError(s.T(), s.post("/v1/decisions", tt.body), tt.status, tt.code)
		})
	}

	s.Run("collect without a configured assembler", func() {
		rr := s.post("/v1/decisions", map[string]any{
			"subject_id": subjectID,
			"collect":    map[string]any{"full_name": "A", "document_type": "passport", "document_number": "P1"},
			"telemetry":  map[string]any{"completion_time_seconds": 60, "number_of_attempts": 1},
		})
		testutil.AssertStatusAndError(s.T(), rr, http.StatusServiceUnavailable, "unavailable")
	})
}

func (s *HandlerSuite) TestLookupErrors() {
	rr := testutil.Serve(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/v1/decisions/6f1c1b1e-8c1a-4d35-9d6e-0d7b0c6f7a11", nil))
	testutil.AssertStatusAndError(s.T(), rr, http.StatusNotFound, "not_found")

	rr = testutil.Serve(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/v1/decisions/not-a-uuid", nil))
	testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "invalid_input")

	rr = testutil.Serve(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/v1/subjects/"+subjectID+"/decisions", nil))
	testutil.AssertStatusOK(s.T(), rr)
	s.Empty(testutil.UnmarshalResponse[HistoryResponse](s.T(), rr).Reports)

	rr = s.post("/v1/attestations/verify", map[string]string{"token": "forged"})
	testutil.AssertStatusAndError(s.T(), rr, http.StatusUnauthorized, "unauthorized")

	rr = s.post("/v1/attestations/verify", map[string]string{})
	testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "validation_error")
}
