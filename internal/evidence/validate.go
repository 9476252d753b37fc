package evidence

import (
	"fmt"
	"math"
	"strings"
	"time"

	dErrors "verigate/pkg/domain-errors"
)

// dateLayouts are the accepted ISO-8601 forms, most specific last.
var dateLayouts = []string{time.DateOnly, time.RFC3339, time.RFC3339Nano}

// ParseDate parses an ISO-8601 calendar date or timestamp. Date-only values
// are interpreted as midnight UTC.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}
	var lastErr error
	for _, layout := range dateLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t.UTC(), nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

// IsValidationError reports whether err is an evidence validation failure.
func IsValidationError(err error) bool {
	return dErrors.HasCode(err, dErrors.CodeValidation)
}

func invalid(field, reason string) error {
	return dErrors.New(dErrors.CodeValidation, field+": "+reason)
}

// Validate checks required fields, date formats and numeric ranges. Weak
// evidence (expired documents, low match scores) is valid here; it is the
// scoring engine's job to penalise it.
func (e VerificationEvidence) Validate() error {
	if strings.TrimSpace(e.Personal.FullName) == "" {
		return invalid("personal_info.full_name", "is required")
	}
	if e.Personal.DateOfBirth != "" {
		if _, err := ParseDate(e.Personal.DateOfBirth); err != nil {
			return invalid("personal_info.date_of_birth", "must be an ISO-8601 date")
		}
	}
	if err := e.Document.validate(); err != nil {
		return err
	}
	if err := e.Biometrics.validate(); err != nil {
		return err
	}
	return e.Behavior.validate()
}

func (d DocumentInfo) validate() error {
	if !d.Type.IsValid() {
		return invalid("document_info.document_type", "must be one of passport, id_card, drivers_license")
	}
	if strings.TrimSpace(d.Number) == "" {
		return invalid("document_info.document_number", "is required")
	}
	if strings.TrimSpace(d.ExpiryDate) == "" {
		return invalid("document_info.expiry_date", "is required")
	}
	expiry, err := ParseDate(d.ExpiryDate)
	if err != nil {
		return invalid("document_info.expiry_date", "must be an ISO-8601 date")
	}
	if strings.TrimSpace(d.IssueDate) == "" {
		return invalid("document_info.issue_date", "is required")
	}
	issued, err := ParseDate(d.IssueDate)
	if err != nil {
		return invalid("document_info.issue_date", "must be an ISO-8601 date")
	}
	if issued.After(expiry) {
		return invalid("document_info.issue_date", "must not be after expiry_date")
	}
	return nil
}

// ExpiryTime returns the parsed expiry date. Call Validate first.
func (d DocumentInfo) ExpiryTime() (time.Time, error) {
	t, err := ParseDate(d.ExpiryDate)
	if err != nil {
		return time.Time{}, invalid("document_info.expiry_date", "must be an ISO-8601 date")
	}
	return t, nil
}

func (b BiometricSignals) validate() error {
	signals := []struct {
		field string
		value *float64
	}{
		{"biometric_signals.face_match_score", b.FaceMatchScore},
		{"biometric_signals.fingerprint_match_score", b.FingerprintMatchScore},
		{"biometric_signals.iris_match_score", b.IrisMatchScore},
	}
	for _, s := range signals {
		if s.value == nil {
			continue
		}
		if v := *s.value; math.IsNaN(v) || v < 0 || v > 100 {
			return invalid(s.field, "must be between 0 and 100")
		}
	}
	return nil
}

func (t BehavioralTelemetry) validate() error {
	if t.CompletionTimeSeconds < 0 {
		return invalid("behavioral_telemetry.completion_time_seconds", "must not be negative")
	}
	if t.NumberOfAttempts < 1 {
		return invalid("behavioral_telemetry.number_of_attempts", "must be at least 1")
	}
	if g := t.Geolocation; g != nil {
		if g.Latitude < -90 || g.Latitude > 90 || g.Longitude < -180 || g.Longitude > 180 {
			return invalid("behavioral_telemetry.geolocation", "coordinates out of range")
		}
	}
	return nil
}
