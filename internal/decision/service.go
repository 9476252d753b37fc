package decision

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"verigate/internal/decision/attestation"
	"verigate/internal/decision/metrics"
	"verigate/internal/evidence"
	"verigate/internal/evidence/assembler"
	"verigate/internal/evidence/providers"
	"verigate/internal/level"
	"verigate/internal/platform/tracing"
	"verigate/internal/scoring"
	id "verigate/pkg/domain"
	dErrors "verigate/pkg/domain-errors"
	"verigate/pkg/platform/audit"
	"verigate/pkg/platform/middleware/device"
	"verigate/pkg/platform/sentinel"
	"verigate/pkg/requestcontext"
)

// Service produces, persists and attests decision reports.
//
// Scoring and level classification are pure and delegated to the scoring
// engine and level classifier. The service owns everything with side
// effects: evidence gathering, persistence, caching, audit and signing.
type Service struct {
	engine    *scoring.Engine
	store     ReportStore
	assembler EvidenceAssembler
	cache     ReportCache
	attestor  Attestor
	auditor   AuditPublisher
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

type Option func(*Service)

func WithAssembler(a EvidenceAssembler) Option {
	return func(s *Service) { s.assembler = a }
}

func WithCache(c ReportCache) Option {
	return func(s *Service) { s.cache = c }
}

func WithAttestor(a Attestor) Option {
	return func(s *Service) { s.attestor = a }
}

func WithAuditPublisher(p AuditPublisher) Option {
	return func(s *Service) { s.auditor = p }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// New constructs the service. The engine and store are required.
func New(engine *scoring.Engine, store ReportStore, opts ...Option) (*Service, error) {
	if engine == nil {
		return nil, errors.New("scoring engine is required")
	}
	if store == nil {
		return nil, errors.New("report store is required")
	}
	s := &Service{
		engine: engine,
		store:  store,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Score computes a risk score for ev at the request's time.
func (s *Service) Score(ctx context.Context, ev evidence.VerificationEvidence) (scoring.RiskScore, error) {
	return s.engine.Compute(ev, requestcontext.Now(ctx))
}

// Classify maps requirements onto a verification level.
func (s *Service) Classify(r level.Requirements) level.VerificationLevel {
	return level.Classify(r)
}

// Evaluate gathers or accepts evidence, scores it, classifies the level and
// persists a new report superseding the subject's previous one.
func (s *Service) Evaluate(ctx context.Context, req EvaluateRequest) (_ *EvaluateResult, err error) {
	start := time.Now()
	ctx, span := tracing.StartSpan(ctx, "decision.Evaluate", tracing.SubjectID(req.SubjectID.String()))
	defer func() {
		tracing.RecordError(span, err)
		span.End()
	}()

	if err := req.Validate(); err != nil {
		return nil, err
	}
	now := requestcontext.Now(ctx)

	ev, performed, err := s.resolveEvidence(ctx, req)
	if err != nil {
		return nil, err
	}

	score, err := s.engine.Compute(*ev, now)
	if err != nil {
		return nil, err
	}

	reqs := DeriveRequirements(*ev, performed, req.AddressVerified, req.BackgroundChecked)
	if req.Requirements != nil {
		reqs = *req.Requirements
	}
	lvl := level.Classify(reqs)

	report, err := Combine(&score, &lvl, id.NewEvidenceRef())
	if err != nil {
		return nil, err
	}
	report.ID = id.NewReportID()
	report.SubjectID = req.SubjectID
	report.Requirements = reqs
	report.CreatedAt = now

	if err := s.store.Save(ctx, report); err != nil {
		s.logger.ErrorContext(ctx, "failed to save decision report",
			"request_id", requestcontext.RequestID(ctx),
			"report_id", report.ID.String(),
			"error", err,
		)
		return nil, translateStoreError(err, "failed to save decision report")
	}
	span.SetAttributes(
		tracing.ReportID(report.ID.String()),
		tracing.RiskLevel(score.Level.String()),
		tracing.OverallScore(score.Overall),
	)
	s.cacheReport(ctx, report)

	if err := s.emitDecision(ctx, report); err != nil {
		return nil, err
	}
	if performed != nil {
		s.emitDegraded(ctx, report, performed)
	}

	result := &EvaluateResult{Report: report.Clone(), Performed: performed}
	if s.attestor != nil {
		token, err := s.attestor.Sign(summaryOf(report), now)
		if err != nil {
			return nil, err
		}
		result.Attestation = token
	}

	s.metrics.IncrementOutcome(score.Level.String(), lvl.String())
	s.metrics.ObserveScore(score.Overall)
	s.metrics.ObserveEvaluateLatency(time.Since(start))

	s.logger.InfoContext(ctx, "decision evaluated",
		"request_id", requestcontext.RequestID(ctx),
		"report_id", report.ID.String(),
		"risk_level", score.Level,
		"overall_score", score.Overall,
		"verification_level", lvl.String(),
		"superseded", report.SupersedesID != nil,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return result, nil
}

func (s *Service) resolveEvidence(ctx context.Context, req EvaluateRequest) (*evidence.VerificationEvidence, *assembler.Performed, error) {
	if req.Evidence != nil {
		ev := req.Evidence.Clone()
		return &ev, nil, nil
	}
	if s.assembler == nil {
		return nil, nil, dErrors.New(dErrors.CodeUnavailable, "evidence gathering is not configured")
	}
	collect := *req.Collect
	if collect.SubjectID == "" {
		collect.SubjectID = req.SubjectID.String()
	}
	ev, performed, err := s.assembler.Assemble(ctx, collect, req.Telemetry)
	if err != nil {
		s.logger.WarnContext(ctx, "evidence gathering failed",
			"request_id", requestcontext.RequestID(ctx),
			"category", providers.GetCategory(err),
			"error", err,
		)
		return nil, nil, translateEvidenceError(err)
	}
	return ev, &performed, nil
}

// Get returns a report by ID, reading through the cache when one is set.
func (s *Service) Get(ctx context.Context, reportID id.ReportID) (*DecisionReport, error) {
	if s.cache != nil {
		cached, err := s.cache.Get(ctx, reportID)
		switch {
		case err == nil:
			s.metrics.IncrementCacheLookup("hit")
			s.emitViewed(ctx, cached)
			return cached, nil
		case errors.Is(err, sentinel.ErrNotFound):
			s.metrics.IncrementCacheLookup("miss")
		default:
			s.metrics.IncrementCacheLookup("error")
			s.logger.WarnContext(ctx, "report cache read failed",
				"report_id", reportID.String(),
				"error", err,
			)
		}
	}

	report, err := s.store.FindByID(ctx, reportID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "decision report not found")
		}
		return nil, translateStoreError(err, "failed to load decision report")
	}
	s.cacheReport(ctx, report)
	s.emitViewed(ctx, report)
	return report, nil
}

// History lists a subject's reports, newest first.
func (s *Service) History(ctx context.Context, subjectID id.SubjectID) ([]*DecisionReport, error) {
	if subjectID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "subject_id is required")
	}
	reports, err := s.store.ListBySubject(ctx, subjectID)
	if err != nil {
		return nil, translateStoreError(err, "failed to list decision reports")
	}
	if reports == nil {
		reports = []*DecisionReport{}
	}
	return reports, nil
}

// VerifyAttestation checks a token issued by Evaluate.
func (s *Service) VerifyAttestation(ctx context.Context, token string) (*attestation.Claims, error) {
	if s.attestor == nil {
		return nil, dErrors.New(dErrors.CodeUnavailable, "attestations are not configured")
	}
	claims, err := s.attestor.Verify(token)
	if err != nil {
		s.metrics.IncrementAttestation("rejected")
		s.emit(ctx, audit.Event{
			Action:   string(audit.EventAttestationRejected),
			Severity: audit.SeverityWarning,
			Reason:   err.Error(),
		})
		return nil, err
	}
	s.metrics.IncrementAttestation("valid")
	s.emit(ctx, audit.Event{
		Action:        string(audit.EventAttestationVerified),
		SubjectIDHash: audit.HashIdentifier(claims.Subject),
		ReportID:      claims.ReportID,
		Decision:      claims.Level,
	})
	return claims, nil
}

func (s *Service) cacheReport(ctx context.Context, report *DecisionReport) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, report); err != nil {
		s.logger.WarnContext(ctx, "failed to cache decision report",
			"report_id", report.ID.String(),
			"error", err,
		)
	}
}

// emitDecision records the decision. High-risk decisions are routed to the
// security stream; everything else is a compliance record and must succeed.
func (s *Service) emitDecision(ctx context.Context, report *DecisionReport) error {
	if s.auditor == nil {
		return nil
	}
	event := audit.Event{
		Action:        string(audit.EventDecisionMade),
		SubjectIDHash: audit.HashIdentifier(report.SubjectID.String()),
		ReportID:      report.ID.String(),
		Decision:      report.Risk.Level.String(),
		RequestID:     requestcontext.RequestID(ctx),
		ClientIP:      requestcontext.ClientIP(ctx),
		Attributes: map[string]string{
			"overall_score":      strconv.FormatFloat(report.Risk.Overall, 'f', 2, 64),
			"verification_level": report.Level.String(),
			"flag_count":         strconv.Itoa(len(report.Risk.Flags)),
		},
	}
	if ua := requestcontext.UserAgent(ctx); ua != "" {
		event.Attributes["client_device"] = device.ParseUserAgent(ua)
	}
	if report.Risk.Level == scoring.RiskLevelHigh {
		event.Category = audit.CategorySecurity
		event.Severity = audit.SeverityWarning
	}
	if err := s.auditor.Emit(ctx, event); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record decision audit event")
	}
	return nil
}

func (s *Service) emitDegraded(ctx context.Context, report *DecisionReport, performed *assembler.Performed) {
	for providerID, category := range performed.Failures {
		s.emit(ctx, audit.Event{
			Action:        string(audit.EventEvidenceDegraded),
			SubjectIDHash: audit.HashIdentifier(report.SubjectID.String()),
			ReportID:      report.ID.String(),
			Reason:        string(category),
			Attributes:    map[string]string{"provider_id": providerID},
		})
	}
}

func (s *Service) emitViewed(ctx context.Context, report *DecisionReport) {
	s.emit(ctx, audit.Event{
		Action:        string(audit.EventReportViewed),
		SubjectIDHash: audit.HashIdentifier(report.SubjectID.String()),
		ReportID:      report.ID.String(),
	})
}

// emit sends a non-compliance event; failures are logged only.
func (s *Service) emit(ctx context.Context, event audit.Event) {
	if s.auditor == nil {
		return
	}
	event.RequestID = requestcontext.RequestID(ctx)
	event.ClientIP = requestcontext.ClientIP(ctx)
	if err := s.auditor.Emit(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "failed to emit audit event",
			"action", event.Action,
			"error", err,
		)
	}
}

func summaryOf(r *DecisionReport) attestation.Summary {
	return attestation.Summary{
		ReportID:    r.ID.String(),
		SubjectID:   r.SubjectID.String(),
		Level:       r.Level.String(),
		RiskLevel:   r.Risk.Level.String(),
		Overall:     r.Risk.Overall,
		EvidenceRef: r.EvidenceRef.String(),
	}
}

// translateEvidenceError maps provider failures onto domain codes.
func translateEvidenceError(err error) error {
	if errors.Is(err, providers.ErrNoProvidersAvailable) {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "no document provider is available")
	}
	var pe *providers.ProviderError
	if errors.As(err, &pe) {
		switch pe.Category {
		case providers.ErrorTimeout:
			return dErrors.Wrap(err, dErrors.CodeTimeout, "evidence provider timed out")
		case providers.ErrorProviderOutage, providers.ErrorRateLimited, providers.ErrorAuthentication:
			return dErrors.Wrap(err, dErrors.CodeUnavailable, "evidence provider is unavailable")
		case providers.ErrorBadData:
			return dErrors.Wrap(err, dErrors.CodeValidation, fmt.Sprintf("evidence rejected: %s", pe.Message))
		case providers.ErrorNotFound:
			return dErrors.Wrap(err, dErrors.CodeNotFound, "document not found")
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "evidence gathering timed out")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "evidence gathering failed")
}

func translateStoreError(err error, msg string) error {
	switch {
	case errors.Is(err, sentinel.ErrUnavailable):
		return dErrors.Wrap(err, dErrors.CodeUnavailable, msg)
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.Wrap(err, dErrors.CodeConflict, msg)
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, msg)
	}
}
