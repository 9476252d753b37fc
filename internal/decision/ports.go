package decision

import (
	"context"
	"time"

	"verigate/internal/decision/attestation"
	"verigate/internal/evidence"
	"verigate/internal/evidence/assembler"
	"verigate/internal/evidence/providers"
	id "verigate/pkg/domain"
	"verigate/pkg/platform/audit"
)

// EvidenceAssembler gathers evidence from providers. *assembler.Assembler
// satisfies it.
type EvidenceAssembler interface {
	Assemble(ctx context.Context, req providers.Request, telemetry evidence.BehavioralTelemetry) (*evidence.VerificationEvidence, assembler.Performed, error)
}

// ReportStore persists decision reports. Save links the report to the
// subject's previous latest report by setting SupersedesID, atomically with
// the insert. Lookups return sentinel.ErrNotFound for unknown reports.
type ReportStore interface {
	Save(ctx context.Context, report *DecisionReport) error
	FindByID(ctx context.Context, reportID id.ReportID) (*DecisionReport, error)
	ListBySubject(ctx context.Context, subjectID id.SubjectID) ([]*DecisionReport, error)
}

// ReportCache is a read-through cache in front of the store. Get returns
// sentinel.ErrNotFound on a miss.
type ReportCache interface {
	Get(ctx context.Context, reportID id.ReportID) (*DecisionReport, error)
	Set(ctx context.Context, report *DecisionReport) error
}

// AuditPublisher emits audit events.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Attestor signs and verifies report attestations.
type Attestor interface {
	Sign(sum attestation.Summary, issuedAt time.Time) (string, error)
	Verify(token string) (*attestation.Claims, error)
}
