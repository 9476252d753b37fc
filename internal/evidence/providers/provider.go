// Package providers defines the capability interface for evidence sources
// (document extraction, biometric comparison, external checks) together with
// deterministic mock and HTTP-backed implementations.
package providers

import (
	"context"
	"time"

	"verigate/internal/evidence"
)

// Protocol identifies how a provider is reached.
type Protocol string

const (
	ProtocolInProcess Protocol = "in_process"
	ProtocolHTTP      Protocol = "http"
)

// ProviderType identifies the kind of evidence a provider can produce.
type ProviderType string

const (
	ProviderTypeDocument  ProviderType = "document"
	ProviderTypeBiometric ProviderType = "biometric"
	ProviderTypeExternal  ProviderType = "external"
)

// IsValid reports whether t is a known provider type.
func (t ProviderType) IsValid() bool {
	switch t {
	case ProviderTypeDocument, ProviderTypeBiometric, ProviderTypeExternal:
		return true
	}
	return false
}

// Capabilities describes what a provider supports.
type Capabilities struct {
	Protocol Protocol
	Type     ProviderType
	Version  string
}

// Request identifies the subject and the document the subject claims to hold.
// Providers look up or extract everything else.
type Request struct {
	SubjectID      string                `json:"subject_id"`
	FullName       string                `json:"full_name"`
	DateOfBirth    string                `json:"date_of_birth,omitempty"`
	DocumentType   evidence.DocumentType `json:"document_type"`
	DocumentNumber string                `json:"document_number"`
	Email          string                `json:"email,omitempty"`
	Phone          string                `json:"phone,omitempty"`
}

// Contribution is one provider's share of the evidence snapshot. Only the
// section matching the provider's type is populated.
type Contribution struct {
	ProviderID string                              `json:"provider_id"`
	Type       ProviderType                        `json:"type"`
	Personal   *evidence.PersonalInfo              `json:"personal_info,omitempty"`
	Document   *evidence.DocumentInfo              `json:"document_info,omitempty"`
	Biometrics *evidence.BiometricSignals          `json:"biometric_signals,omitempty"`
	External   *evidence.ExternalVerificationFlags `json:"external_verification,omitempty"`
	CheckedAt  time.Time                           `json:"checked_at"`
}

// Provider is the interface every evidence source implements.
type Provider interface {
	// ID returns a unique identifier for this provider instance
	ID() string

	// Capabilities returns what this provider supports
	Capabilities() Capabilities

	// Collect gathers this provider's evidence for the request
	Collect(ctx context.Context, req Request) (*Contribution, error)

	// Health checks if the provider is available
	Health(ctx context.Context) error
}
