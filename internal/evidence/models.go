// Package evidence defines the immutable evidence snapshot gathered for one
// verification attempt, and its validation rules.
package evidence

// DocumentType enumerates accepted identity documents.
type DocumentType string

const (
	DocumentTypePassport       DocumentType = "passport"
	DocumentTypeIDCard         DocumentType = "id_card"
	DocumentTypeDriversLicense DocumentType = "drivers_license"
)

// IsValid reports whether the document type is supported.
func (t DocumentType) IsValid() bool {
	switch t {
	case DocumentTypePassport, DocumentTypeIDCard, DocumentTypeDriversLicense:
		return true
	}
	return false
}

// PersonalInfo is kept for display and audit only; it never influences scoring.
type PersonalInfo struct {
	FullName    string `json:"full_name"`
	DateOfBirth string `json:"date_of_birth"`
	Address     string `json:"address"`
	Nationality string `json:"nationality"`
	Gender      string `json:"gender"`
}

// DocumentInfo carries extracted document fields. Dates are ISO-8601.
type DocumentInfo struct {
	Type             DocumentType `json:"document_type"`
	Number           string       `json:"document_number"`
	IssueDate        string       `json:"issue_date"`
	ExpiryDate       string       `json:"expiry_date"`
	IssuingAuthority string       `json:"issuing_authority"`
}

// BiometricSignals holds similarity scores in [0,100]. A nil score means the
// signal was not captured, which is not the same as a zero match.
type BiometricSignals struct {
	FaceMatchScore        *float64 `json:"face_match_score,omitempty"`
	FingerprintMatchScore *float64 `json:"fingerprint_match_score,omitempty"`
	IrisMatchScore        *float64 `json:"iris_match_score,omitempty"`
}

// Captured reports whether any biometric signal is present.
func (b BiometricSignals) Captured() bool {
	return b.FaceMatchScore != nil || b.FingerprintMatchScore != nil || b.IrisMatchScore != nil
}

// Geolocation is an optional coordinate pair reported by the capture client.
type Geolocation struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// BehavioralTelemetry describes how the attempt was completed.
type BehavioralTelemetry struct {
	CompletionTimeSeconds int          `json:"completion_time_seconds"`
	NumberOfAttempts      int          `json:"number_of_attempts"`
	DeviceFingerprint     string       `json:"device_fingerprint"`
	SourceIP              string       `json:"source_ip"`
	Geolocation           *Geolocation `json:"geolocation,omitempty"`
}

// ExternalVerificationFlags records third-party confirmations.
type ExternalVerificationFlags struct {
	SocialMediaVerified bool `json:"social_media_verified"`
	BankAccountVerified bool `json:"bank_account_verified"`
	PhoneNumberVerified bool `json:"phone_number_verified"`
	EmailVerified       bool `json:"email_verified"`
}

// Count returns how many external checks succeeded.
func (f ExternalVerificationFlags) Count() int {
	n := 0
	for _, ok := range []bool{f.SocialMediaVerified, f.BankAccountVerified, f.PhoneNumberVerified, f.EmailVerified} {
		if ok {
			n++
		}
	}
	return n
}

// VerificationEvidence is the snapshot for one attempt. Treat it as a value:
// it is assembled once and never modified afterwards.
type VerificationEvidence struct {
	Personal   PersonalInfo              `json:"personal_info"`
	Document   DocumentInfo              `json:"document_info"`
	Biometrics BiometricSignals          `json:"biometric_signals"`
	Behavior   BehavioralTelemetry       `json:"behavioral_telemetry"`
	External   ExternalVerificationFlags `json:"external_verification"`
}

// Clone returns a deep copy so callers cannot alias the biometric pointers.
func (e VerificationEvidence) Clone() VerificationEvidence {
	out := e
	out.Biometrics = BiometricSignals{
		FaceMatchScore:        copyFloat(e.Biometrics.FaceMatchScore),
		FingerprintMatchScore: copyFloat(e.Biometrics.FingerprintMatchScore),
		IrisMatchScore:        copyFloat(e.Biometrics.IrisMatchScore),
	}
	if e.Behavior.Geolocation != nil {
		g := *e.Behavior.Geolocation
		out.Behavior.Geolocation = &g
	}
	return out
}

// Score is a convenience for building optional biometric scores.
func Score(v float64) *float64 {
	return &v
}

func copyFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
