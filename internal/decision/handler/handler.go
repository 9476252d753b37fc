package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"verigate/internal/decision"
	"verigate/internal/decision/attestation"
	"verigate/internal/evidence"
	"verigate/internal/level"
	"verigate/internal/scoring"
	id "verigate/pkg/domain"
	"verigate/pkg/platform/httputil"
	"verigate/pkg/requestcontext"
)

// Service defines the interface for decision operations.
type Service interface {
	Score(ctx context.Context, ev evidence.VerificationEvidence) (scoring.RiskScore, error)
	Classify(r level.Requirements) level.VerificationLevel
	Evaluate(ctx context.Context, req decision.EvaluateRequest) (*decision.EvaluateResult, error)
	Get(ctx context.Context, reportID id.ReportID) (*decision.DecisionReport, error)
	History(ctx context.Context, subjectID id.SubjectID) ([]*decision.DecisionReport, error)
	VerifyAttestation(ctx context.Context, token string) (*attestation.Claims, error)
}

// Handler wires decision endpoints to the decision service.
type Handler struct {
	service Service
	logger  *slog.Logger
	schemas schemaSet
}

// New constructs a decision handler with its dependencies.
func New(service Service, logger *slog.Logger) (*Handler, error) {
	schemas, err := loadSchemas()
	if err != nil {
		return nil, err
	}
	return &Handler{
		service: service,
		logger:  logger,
		schemas: schemas,
	}, nil
}

// Register mounts decision endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Route("/v1", func(r chi.Router) {
		r.Post("/scores", h.HandleScore)
		r.Post("/levels", h.HandleClassify)
		r.Post("/decisions", h.HandleEvaluate)
		r.Get("/decisions/{id}", h.HandleGet)
		r.Get("/subjects/{subjectID}/decisions", h.HandleHistory)
		r.Post("/attestations/verify", h.HandleVerifyAttestation)
	})
}

// HandleScore handles POST /v1/scores: score inline evidence without
// persisting anything.
func (h *Handler) HandleScore(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeCheckAndPrepare[ScoreRequest](w, r, h.logger, ctx, requestID, h.schemas[schemaEvidence])
	if !ok {
		return
	}

	score, err := h.service.Score(ctx, req.VerificationEvidence)
	if err != nil {
		h.logger.InfoContext(ctx, "scoring failed", "request_id", requestID, "error", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, score)
}

// HandleClassify handles POST /v1/levels.
func (h *Handler) HandleClassify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeCheckAndPrepare[LevelRequest](w, r, h.logger, ctx, requestID, h.schemas[schemaRequirements])
	if !ok {
		return
	}

	lvl := h.service.Classify(req.Requirements)
	httputil.WriteJSON(w, http.StatusOK, LevelResponse{
		VerificationLevel: lvl.String(),
		Requirements:      req.Requirements,
	})
}

// HandleEvaluate handles POST /v1/decisions.
func (h *Handler) HandleEvaluate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	req, ok := httputil.DecodeCheckAndPrepare[DecisionRequest](w, r, h.logger, ctx, requestID, h.schemas[schemaDecision])
	if !ok {
		return
	}

	result, err := h.service.Evaluate(ctx, req.ToDomain())
	if err != nil {
		h.logger.ErrorContext(ctx, "decision evaluation failed",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "decision evaluated",
		"request_id", requestID,
		"report_id", result.Report.ID.String(),
		"risk_level", result.Report.Risk.Level,
		"verification_level", result.Report.Level.String(),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusCreated, FromResult(result))
}

// HandleGet handles GET /v1/decisions/{id}.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	reportID, err := id.ParseReportID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	report, err := h.service.Get(ctx, reportID)
	if err != nil {
		h.logger.InfoContext(ctx, "get decision failed",
			"request_id", requestID,
			"report_id", reportID.String(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromReport(report))
}

// HandleHistory handles GET /v1/subjects/{subjectID}/decisions.
func (h *Handler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	subjectID, err := id.ParseSubjectID(chi.URLParam(r, "subjectID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	reports, err := h.service.History(ctx, subjectID)
	if err != nil {
		h.logger.ErrorContext(ctx, "list decisions failed",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromReports(subjectID.String(), reports))
}

// HandleVerifyAttestation handles POST /v1/attestations/verify.
func (h *Handler) HandleVerifyAttestation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeCheckAndPrepare[AttestationRequest](w, r, h.logger, ctx, requestID, h.schemas[schemaAttestation])
	if !ok {
		return
	}

	claims, err := h.service.VerifyAttestation(ctx, req.Token)
	if err != nil {
		h.logger.InfoContext(ctx, "attestation rejected", "request_id", requestID, "error", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromClaims(claims))
}
