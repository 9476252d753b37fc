// Package domain holds identifier primitives shared across modules.
package domain

import (
	"strings"

	"github.com/google/uuid"

	dErrors "verigate/pkg/domain-errors"
)

// SubjectID identifies the person being verified.
type SubjectID uuid.UUID

// ReportID identifies one immutable decision report.
type ReportID uuid.UUID

// EvidenceRef identifies one assembled evidence snapshot (one verification attempt).
type EvidenceRef uuid.UUID

func (id SubjectID) String() string   { return uuid.UUID(id).String() }
func (id ReportID) String() string    { return uuid.UUID(id).String() }
func (id EvidenceRef) String() string { return uuid.UUID(id).String() }

func (id SubjectID) IsNil() bool   { return uuid.UUID(id) == uuid.Nil }
func (id ReportID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id EvidenceRef) IsNil() bool { return uuid.UUID(id) == uuid.Nil }

// NewReportID generates a random report identifier.
func NewReportID() ReportID { return ReportID(uuid.New()) }

// NewEvidenceRef generates a random evidence reference.
func NewEvidenceRef() EvidenceRef { return EvidenceRef(uuid.New()) }

// ParseSubjectID parses a subject identifier at a trust boundary.
func ParseSubjectID(s string) (SubjectID, error) {
	u, err := parseUUID(s, "subject_id")
	return SubjectID(u), err
}

// ParseReportID parses a report identifier at a trust boundary.
func ParseReportID(s string) (ReportID, error) {
	u, err := parseUUID(s, "report_id")
	return ReportID(u), err
}

// ParseEvidenceRef parses an evidence reference at a trust boundary.
func ParseEvidenceRef(s string) (EvidenceRef, error) {
	u, err := parseUUID(s, "evidence_ref")
	return EvidenceRef(u), err
}

// parseUUID rejects empty, oversized, malformed and nil UUIDs.
func parseUUID(s, field string) (uuid.UUID, error) {
	if strings.TrimSpace(s) == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, field+" is required")
	}
	if len(s) > 64 {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, field+" is too long")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "invalid "+field)
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, field+" must not be nil")
	}
	return u, nil
}
