package handler

import (
	"time"

	"verigate/internal/decision"
	"verigate/internal/decision/attestation"
	"verigate/internal/evidence/assembler"
	"verigate/internal/level"
	"verigate/internal/scoring"
)

// LevelResponse is returned by POST /v1/levels.
type LevelResponse struct {
	VerificationLevel string             `json:"verification_level"`
	Requirements      level.Requirements `json:"requirements"`
}

// ReportResponse is the JSON form of a decision report.
type ReportResponse struct {
	ID                string             `json:"id"`
	SubjectID         string             `json:"subject_id"`
	EvidenceRef       string             `json:"evidence_ref"`
	RiskScore         scoring.RiskScore  `json:"risk_score"`
	VerificationLevel string             `json:"verification_level"`
	Requirements      level.Requirements `json:"requirements"`
	CreatedAt         time.Time          `json:"created_at"`
	SupersedesID      *string            `json:"supersedes_id"`
}

// DecisionResponse is returned by POST /v1/decisions.
type DecisionResponse struct {
	Report      ReportResponse    `json:"report"`
	Attestation string            `json:"attestation,omitempty"`
	Gathered    *GatheredResponse `json:"evidence_gathered,omitempty"`
}

// GatheredResponse summarizes provider-gathered evidence.
type GatheredResponse struct {
	Document  bool              `json:"document"`
	Biometric bool              `json:"biometric"`
	External  bool              `json:"external"`
	Failures  map[string]string `json:"failures,omitempty"`
}

// HistoryResponse is returned by GET /v1/subjects/{subjectID}/decisions.
type HistoryResponse struct {
	SubjectID string           `json:"subject_id"`
	Reports   []ReportResponse `json:"reports"`
}

// AttestationResponse is returned by POST /v1/attestations/verify.
type AttestationResponse struct {
	Valid             bool      `json:"valid"`
	ReportID          string    `json:"report_id"`
	SubjectID         string    `json:"subject_id"`
	VerificationLevel string    `json:"verification_level"`
	RiskLevel         string    `json:"risk_level"`
	OverallScore      float64   `json:"overall_score"`
	EvidenceRef       string    `json:"evidence_ref"`
	IssuedAt          time.Time `json:"issued_at"`
	ExpiresAt         time.Time `json:"expires_at"`
}

func FromReport(r *decision.DecisionReport) ReportResponse {
	resp := ReportResponse{
		ID:                r.ID.String(),
		SubjectID:         r.SubjectID.String(),
		EvidenceRef:       r.EvidenceRef.String(),
		RiskScore:         r.Risk,
		VerificationLevel: r.Level.String(),
		Requirements:      r.Requirements,
		CreatedAt:         r.CreatedAt,
	}
	if r.SupersedesID != nil {
		prev := r.SupersedesID.String()
		resp.SupersedesID = &prev
	}
	return resp
}

func FromResult(result *decision.EvaluateResult) DecisionResponse {
	resp := DecisionResponse{
		Report:      FromReport(result.Report),
		Attestation: result.Attestation,
	}
	if result.Performed != nil {
		resp.Gathered = fromPerformed(result.Performed)
	}
	return resp
}

func fromPerformed(p *assembler.Performed) *GatheredResponse {
	out := &GatheredResponse{Document: p.Document, Biometric: p.Biometric, External: p.External}
	if len(p.Failures) > 0 {
		out.Failures = make(map[string]string, len(p.Failures))
		for providerID, category := range p.Failures {
			out.Failures[providerID] = string(category)
		}
	}
	return out
}

func FromReports(subjectID string, reports []*decision.DecisionReport) HistoryResponse {
	out := HistoryResponse{SubjectID: subjectID, Reports: make([]ReportResponse, 0, len(reports))}
	for _, r := range reports {
		out.Reports = append(out.Reports, FromReport(r))
	}
	return out
}

func FromClaims(c *attestation.Claims) AttestationResponse {
	resp := AttestationResponse{
		Valid:             true,
		ReportID:          c.ReportID,
		SubjectID:         c.Subject,
		VerificationLevel: c.Level,
		RiskLevel:         c.RiskLevel,
		OverallScore:      c.Overall,
		EvidenceRef:       c.EvidenceRef,
	}
	if c.IssuedAt != nil {
		resp.IssuedAt = c.IssuedAt.Time.UTC()
	}
	if c.ExpiresAt != nil {
		resp.ExpiresAt = c.ExpiresAt.Time.UTC()
	}
	return resp
}
