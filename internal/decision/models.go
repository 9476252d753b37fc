// Package decision combines a risk score and an assurance level into an
// immutable decision report, and orchestrates producing one.
package decision

import (
	"slices"
	"time"

	"verigate/internal/evidence"
	"verigate/internal/evidence/assembler"
	"verigate/internal/evidence/providers"
	"verigate/internal/level"
	"verigate/internal/scoring"
	id "verigate/pkg/domain"
	dErrors "verigate/pkg/domain-errors"
)

// DecisionReport is the outcome of one evaluation. Reports are never
// updated: a re-evaluation produces a new report whose SupersedesID points
// at the subject's previous latest report.
type DecisionReport struct {
	ID           id.ReportID
	SubjectID    id.SubjectID
	EvidenceRef  id.EvidenceRef
	Risk         scoring.RiskScore
	Level        level.VerificationLevel
	Requirements level.Requirements
	CreatedAt    time.Time
	SupersedesID *id.ReportID
}

// Combine pairs a score and a level under one evidence reference. It does
// no scoring of its own.
func Combine(score *scoring.RiskScore, lvl *level.VerificationLevel, ref id.EvidenceRef) (*DecisionReport, error) {
	if score == nil {
		return nil, dErrors.New(dErrors.CodeValidation, "risk score is required")
	}
	if lvl == nil {
		return nil, dErrors.New(dErrors.CodeValidation, "verification level is required")
	}
	if !lvl.IsValid() {
		return nil, dErrors.New(dErrors.CodeValidation, "verification level is invalid")
	}
	if ref.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "evidence reference is required")
	}
	return &DecisionReport{
		EvidenceRef: ref,
		Risk:        cloneScore(*score),
		Level:       *lvl,
	}, nil
}

// CertificateEligible reports whether the report meets the minimum level a
// certificate requires.
func (r *DecisionReport) CertificateEligible(min level.VerificationLevel) bool {
	return r.Level.AtLeast(min)
}

// Clone returns a copy that shares no slices or pointers with r.
func (r *DecisionReport) Clone() *DecisionReport {
	if r == nil {
		return nil
	}
	out := *r
	out.Risk = cloneScore(r.Risk)
	if r.SupersedesID != nil {
		prev := *r.SupersedesID
		out.SupersedesID = &prev
	}
	return &out
}

func cloneScore(s scoring.RiskScore) scoring.RiskScore {
	s.Flags = slices.Clone(s.Flags)
	s.Recommendations = slices.Clone(s.Recommendations)
	if s.Flags == nil {
		s.Flags = []string{}
	}
	if s.Recommendations == nil {
		s.Recommendations = []string{}
	}
	return s
}

// EvaluateRequest asks for a full decision on one subject. Exactly one of
// Evidence or Collect must be set: inline evidence is scored as given,
// otherwise the assembler gathers it from providers.
type EvaluateRequest struct {
	SubjectID id.SubjectID
	Evidence  *evidence.VerificationEvidence
	Collect   *providers.Request
	Telemetry evidence.BehavioralTelemetry

	// Requirements, when set, overrides the requirements derived from the
	// gathered evidence.
	Requirements *level.Requirements

	// Checks performed outside this service and declared by the caller.
	AddressVerified   bool
	BackgroundChecked bool
}

// Validate checks the request shape; evidence content is validated by the
// scoring engine.
func (r EvaluateRequest) Validate() error {
	if r.SubjectID.IsNil() {
		return dErrors.New(dErrors.CodeValidation, "subject_id is required")
	}
	switch {
	case r.Evidence == nil && r.Collect == nil:
		return dErrors.New(dErrors.CodeValidation, "either evidence or collect is required")
	case r.Evidence != nil && r.Collect != nil:
		return dErrors.New(dErrors.CodeValidation, "evidence and collect are mutually exclusive")
	}
	return nil
}

// EvaluateResult carries the persisted report and its signed attestation.
type EvaluateResult struct {
	Report      *DecisionReport
	Attestation string
	// Performed is nil when evidence was supplied inline.
	Performed *assembler.Performed
}

// DeriveRequirements maps what was actually checked onto level requirements.
// Gathered evidence is judged by what the assembler reports it performed.
// Inline evidence counts as document-verified when it validates, and as
// biometric-verified when any signal was captured.
func DeriveRequirements(ev evidence.VerificationEvidence, performed *assembler.Performed, addressVerified, backgroundChecked bool) level.Requirements {
	r := level.Requirements{
		AddressVerification: addressVerified,
		BackgroundCheck:     backgroundChecked,
	}
	if performed != nil {
		r.DocumentVerification = performed.Document
		r.BiometricMatch = performed.Biometric
		return r
	}
	r.DocumentVerification = ev.Document.Number != "" && ev.Document.Type.IsValid()
	r.BiometricMatch = ev.Biometrics.Captured()
	return r
}
