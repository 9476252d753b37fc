package scoring

import "time"

// RiskLevel is the coarse tier derived from the overall score.
type RiskLevel string

const (
	RiskLevelLow    RiskLevel = "low"
	RiskLevelMedium RiskLevel = "medium"
	RiskLevelHigh   RiskLevel = "high"
)

func (r RiskLevel) String() string {
	return string(r)
}

// ParseRiskLevel accepts the lowercase tier names.
func ParseRiskLevel(s string) (RiskLevel, bool) {
	switch RiskLevel(s) {
	case RiskLevelLow, RiskLevelMedium, RiskLevelHigh:
		return RiskLevel(s), true
	}
	return "", false
}

// ComponentScores are each bounded to [0, ComponentMax].
type ComponentScores struct {
	Document   float64 `json:"document_score"`
	Biometric  float64 `json:"biometric_score"`
	Behavioral float64 `json:"behavioral_score"`
	External   float64 `json:"external_verification_score"`
}

// Sum adds the four components.
func (c ComponentScores) Sum() float64 {
	return c.Document + c.Biometric + c.Behavioral + c.External
}

// RiskScore is the engine's output. It is recomputed, never mutated, when
// evidence changes.
type RiskScore struct {
	Components      ComponentScores `json:"component_scores"`
	Overall         float64         `json:"overall_score"`
	Level           RiskLevel       `json:"risk_level"`
	Flags           []string        `json:"flags"`
	Recommendations []string        `json:"recommendations"`
	EvaluatedAt     time.Time       `json:"evaluated_at"`
}

// Diagnostic flags and their paired recommendations.
const (
	FlagDocumentExpired     = "Document expired"
	FlagDocumentExpiresSoon = "Document expires soon"
	FlagLowBiometric        = "Low biometric match confidence"
	FlagMultipleAttempts    = "Multiple verification attempts"
	FlagFastCompletion      = "Verification completed suspiciously quickly"
	FlagLimitedExternal     = "Limited external verification sources"

	RecValidDocument     = "Provide a valid, non-expired document"
	RecRenewDocument     = "Consider renewing your document"
	RecRetakeBiometrics  = "Retake biometric captures in better lighting conditions"
	RecSingleSession     = "Complete verification in a single session if possible"
	RecTakeTime          = "Take time to carefully complete each verification step"
	RecMoreVerifications = "Add more verification methods to improve your score"
)
