package audit

import (
	"context"
	"encoding/hex"
	"time"

	"golang.org/x/crypto/blake2b"
)

// EventCategory classifies audit events by their primary purpose.
// This enables different retention policies, storage backends, and routing.
type EventCategory string

const (
	// CategoryCompliance covers events with regulatory significance. They are
	// persisted synchronously and a failure fails the calling operation.
	CategoryCompliance EventCategory = "compliance"

	// CategorySecurity covers events relevant to fraud monitoring and
	// alerting, such as high-risk decisions and rejected attestations.
	CategorySecurity EventCategory = "security"

	// CategoryOperations covers routine events that may be sampled.
	CategoryOperations EventCategory = "operations"
)

// Severity levels for security events.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

type AuditEvent string

const (
	EventDecisionMade        AuditEvent = "decision_made"
	EventEvidenceDegraded    AuditEvent = "evidence_degraded"
	EventAttestationVerified AuditEvent = "attestation_verified"
	EventAttestationRejected AuditEvent = "attestation_rejected"
	EventReportViewed        AuditEvent = "report_viewed"
)

var eventCategories = map[AuditEvent]EventCategory{
	EventDecisionMade:        CategoryCompliance,
	EventAttestationRejected: CategorySecurity,
	EventEvidenceDegraded:    CategoryOperations,
	EventAttestationVerified: CategoryOperations,
	EventReportViewed:        CategoryOperations,
}

// Category returns the default category for the event.
// Unknown events default to CategoryOperations.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}

// Event is emitted from domain logic to capture key actions. It never carries
// raw PII: subjects are referenced by SubjectIDHash only.
type Event struct {
	ID            string            `json:"id"`
	Category      EventCategory     `json:"category"`
	Timestamp     time.Time         `json:"timestamp"`
	Action        string            `json:"action"`
	SubjectIDHash string            `json:"subject_id_hash,omitempty"`
	ReportID      string            `json:"report_id,omitempty"`
	Decision      string            `json:"decision,omitempty"`
	Reason        string            `json:"reason,omitempty"`
	Severity      Severity          `json:"severity,omitempty"`
	RequestID     string            `json:"request_id,omitempty"`
	ClientIP      string            `json:"client_ip,omitempty"`
	Attributes    map[string]string `json:"attributes,omitempty"`
}

// ResolveCategory returns the explicit category, or the action's default.
func (e Event) ResolveCategory() EventCategory {
	if e.Category != "" {
		return e.Category
	}
	return AuditEvent(e.Action).Category()
}

// Store persists or forwards audit events.
type Store interface {
	Append(ctx context.Context, event Event) error
}

// HashIdentifier returns a hex BLAKE2b-256 digest of an identifier so events
// can be correlated without storing it.
func HashIdentifier(value string) string {
	if value == "" {
		return ""
	}
	sum := blake2b.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}
