package handler

import (
	"strings"

	"verigate/internal/decision"
	"verigate/internal/evidence"
	"verigate/internal/evidence/providers"
	"verigate/internal/level"
	id "verigate/pkg/domain"
	dErrors "verigate/pkg/domain-errors"
)

// ScoreRequest is the body of POST /v1/scores: the evidence itself.
type ScoreRequest struct {
	evidence.VerificationEvidence
}

// Validate runs the evidence validation rules.
// Implements the Validatable interface for httputil.DecodeAndPrepare.
func (r *ScoreRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	return r.VerificationEvidence.Validate()
}

// LevelRequest is the body of POST /v1/levels.
type LevelRequest struct {
	level.Requirements
}

func (r *LevelRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	return nil
}

// DecisionRequest is the body of POST /v1/decisions.
type DecisionRequest struct {
	SubjectID         string                         `json:"subject_id"`
	Evidence          *evidence.VerificationEvidence `json:"evidence,omitempty"`
	Collect           *providers.Request             `json:"collect,omitempty"`
	Telemetry         evidence.BehavioralTelemetry   `json:"telemetry"`
	Requirements      *level.Requirements            `json:"requirements,omitempty"`
	AddressVerified   bool                           `json:"address_verified"`
	BackgroundChecked bool                           `json:"background_checked"`

	// Parsed values (populated by Validate)
	parsedSubjectID id.SubjectID
}

// Validate parses the subject and checks the evidence source.
func (r *DecisionRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}

	r.SubjectID = strings.TrimSpace(r.SubjectID)
	subjectID, err := id.ParseSubjectID(r.SubjectID)
	if err != nil {
		return err
	}
	r.parsedSubjectID = subjectID

	if r.Collect != nil {
		r.Collect.FullName = strings.TrimSpace(r.Collect.FullName)
		r.Collect.DocumentNumber = strings.TrimSpace(r.Collect.DocumentNumber)
		if !r.Collect.DocumentType.IsValid() {
			return dErrors.New(dErrors.CodeValidation, "collect.document_type must be one of passport, id_card, drivers_license")
		}
	}
	return r.ToDomain().Validate()
}

// ToDomain builds the service request. Call Validate first.
func (r *DecisionRequest) ToDomain() decision.EvaluateRequest {
	return decision.EvaluateRequest{
		SubjectID:         r.parsedSubjectID,
		Evidence:          r.Evidence,
		Collect:           r.Collect,
		Telemetry:         r.Telemetry,
		Requirements:      r.Requirements,
		AddressVerified:   r.AddressVerified,
		BackgroundChecked: r.BackgroundChecked,
	}
}

// AttestationRequest is the body of POST /v1/attestations/verify.
type AttestationRequest struct {
	Token string `json:"token"`
}

func (r *AttestationRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	r.Token = strings.TrimSpace(r.Token)
	if r.Token == "" {
		return dErrors.New(dErrors.CodeValidation, "token is required")
	}
	return nil
}
