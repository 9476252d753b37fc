package providers

import (
	"errors"
	"fmt"
)

// ErrorCategory classifies why a provider could not contribute evidence. It
// is recorded as the reason on degraded decisions.
type ErrorCategory string

const (
	ErrorTimeout          ErrorCategory = "timeout"
	ErrorBadData          ErrorCategory = "bad_data"
	ErrorAuthentication   ErrorCategory = "authentication"
	ErrorProviderOutage   ErrorCategory = "provider_outage"
	ErrorContractMismatch ErrorCategory = "contract_mismatch" // answered for another evidence type
	ErrorNotFound         ErrorCategory = "not_found"         // no record for the subject
	ErrorRateLimited      ErrorCategory = "rate_limited"
	ErrorCancelled        ErrorCategory = "cancelled" // the caller gave up; says nothing about the provider
	ErrorInternal         ErrorCategory = "internal"
)

type categoryTraits struct {
	retryable bool
	// unhealthy means the provider itself is failing, as opposed to
	// answering badly about one subject.
	unhealthy bool
}

var traits = map[ErrorCategory]categoryTraits{
	ErrorTimeout:        {retryable: true, unhealthy: true},
	ErrorProviderOutage: {retryable: true, unhealthy: true},
	ErrorRateLimited:    {retryable: true, unhealthy: true},
	ErrorInternal:       {unhealthy: true},
}

// Retryable reports whether the same request may succeed later.
func (c ErrorCategory) Retryable() bool { return traits[c].retryable }

// Unhealthy reports whether the failure counts against the provider's circuit.
func (c ErrorCategory) Unhealthy() bool { return traits[c].unhealthy }

// ProviderError is the only error type providers return from Collect.
type ProviderError struct {
	Category   ErrorCategory
	ProviderID string
	Message    string
	Underlying error
	Retryable  bool
}

func (e *ProviderError) Error() string {
	msg := fmt.Sprintf("evidence provider %q: %s (%s)", e.ProviderID, e.Message, e.Category)
	if e.Underlying != nil {
		msg += ": " + e.Underlying.Error()
	}
	return msg
}

func (e *ProviderError) Unwrap() error { return e.Underlying }

func NewProviderError(category ErrorCategory, providerID, message string, underlying error) *ProviderError {
	return &ProviderError{
		Category:   category,
		ProviderID: providerID,
		Message:    message,
		Underlying: underlying,
		Retryable:  category.Retryable(),
	}
}

func IsRetryable(err error) bool {
	pe, ok := asProviderError(err)
	return ok && pe.Retryable
}

// GetCategory extracts the category of a ProviderError anywhere in err's
// chain. Anything else is ErrorInternal.
func GetCategory(err error) ErrorCategory {
	if pe, ok := asProviderError(err); ok {
		return pe.Category
	}
	return ErrorInternal
}

func asProviderError(err error) (*ProviderError, bool) {
	var pe *ProviderError
	ok := errors.As(err, &pe)
	return pe, ok
}

var (
	ErrProviderNotFound     = errors.New("provider not found")
	ErrNoProvidersAvailable = errors.New("no providers available for this type")
	ErrDuplicateProvider    = errors.New("provider already registered")
)
