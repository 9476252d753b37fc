// Package scoring computes the composite risk score for a verification attempt.
//
// The engine is a pure function of (evidence, evaluation time, policy): no I/O,
// no randomness and no shared mutable state, so one Engine can serve any number
// of goroutines.
package scoring

import (
	"fmt"
	"slices"
	"time"

	"verigate/internal/evidence"
)

// Engine scores evidence under a fixed Policy.
type Engine struct {
	policy Policy
}

// NewEngine validates the policy and returns an engine bound to it.
func NewEngine(policy Policy) (*Engine, error) {
	if err := policy.Validate(); err != nil {
		return nil, fmt.Errorf("scoring policy: %w", err)
	}
	return &Engine{policy: policy}, nil
}

// NewDefaultEngine returns an engine using DefaultPolicy.
func NewDefaultEngine() *Engine {
	return &Engine{policy: DefaultPolicy()}
}

// Policy returns the engine's policy.
func (e *Engine) Policy() Policy {
	return e.policy
}

// findings accumulates flags and recommendations in computation order.
type findings struct {
	flags []string
	recs  []string
}

func (f *findings) add(flag, rec string) {
	if !slices.Contains(f.flags, flag) {
		f.flags = append(f.flags, flag)
	}
	if !slices.Contains(f.recs, rec) {
		f.recs = append(f.recs, rec)
	}
}

// Compute scores ev as of at. It returns a validation error, never a partial
// score, when the evidence is malformed.
func (e *Engine) Compute(ev evidence.VerificationEvidence, at time.Time) (RiskScore, error) {
	if err := ev.Validate(); err != nil {
		return RiskScore{}, err
	}
	at = at.UTC()

	f := &findings{flags: []string{}, recs: []string{}}

	doc, err := e.documentScore(ev.Document, at, f)
	if err != nil {
		return RiskScore{}, err
	}
	components := ComponentScores{
		Document:   doc,
		Biometric:  e.biometricScore(ev.Biometrics, f),
		Behavioral: e.behavioralScore(ev.Behavior, f),
		External:   e.externalScore(ev.External, f),
	}

	overall := clamp(components.Sum(), 0, OverallMax)
	return RiskScore{
		Components:      components,
		Overall:         overall,
		Level:           ClassifyRisk(overall, e.policy),
		Flags:           f.flags,
		Recommendations: f.recs,
		EvaluatedAt:     at,
	}, nil
}

// documentScore zeroes expired documents and docks documents that expire
// within the warning window.
func (e *Engine) documentScore(doc evidence.DocumentInfo, at time.Time, f *findings) (float64, error) {
	expiry, err := doc.ExpiryTime()
	if err != nil {
		return 0, err
	}

	score := ComponentMax
	switch {
	case expiry.Before(at):
		score = 0
		f.add(FlagDocumentExpired, RecValidDocument)
	case expiry.Before(at.AddDate(0, e.policy.ExpiryWarningMonths, 0)):
		score -= e.policy.ExpiringSoonPenalty
		f.add(FlagDocumentExpiresSoon, RecRenewDocument)
	}
	return clamp(score, 0, ComponentMax), nil
}

// biometricScore sums the weighted signals that were captured. A missing
// signal contributes nothing and is never a penalty by itself.
func (e *Engine) biometricScore(b evidence.BiometricSignals, f *findings) float64 {
	var score float64
	if b.FaceMatchScore != nil {
		score += *b.FaceMatchScore / faceDivisor
	}
	if b.FingerprintMatchScore != nil {
		score += *b.FingerprintMatchScore / fingerprintDivisor
	}
	if b.IrisMatchScore != nil {
		score += *b.IrisMatchScore / irisDivisor
	}
	score = clamp(score, 0, ComponentMax)

	if score < e.policy.LowBiometricThreshold {
		f.add(FlagLowBiometric, RecRetakeBiometrics)
	}
	return score
}

// behavioralScore applies both penalties before a single clamp, so a very
// high attempt count cannot push the component below zero.
func (e *Engine) behavioralScore(t evidence.BehavioralTelemetry, f *findings) float64 {
	score := ComponentMax
	if extra := t.NumberOfAttempts - e.policy.MaxAttempts; extra > 0 {
		score -= e.policy.AttemptPenalty * float64(extra)
		f.add(FlagMultipleAttempts, RecSingleSession)
	}
	if t.CompletionTimeSeconds < e.policy.MinCompletionSeconds {
		score -= e.policy.FastCompletionPenalty
		f.add(FlagFastCompletion, RecTakeTime)
	}
	return clamp(score, 0, ComponentMax)
}

func (e *Engine) externalScore(x evidence.ExternalVerificationFlags, f *findings) float64 {
	score := clamp(float64(x.Count())*externalPerFlag, 0, ComponentMax)
	if score < e.policy.LimitedExternalThreshold {
		f.add(FlagLimitedExternal, RecMoreVerifications)
	}
	return score
}

// ClassifyRisk maps an overall score onto a tier: at or above LowRiskMin is
// low, at or above MediumRiskMin is medium, anything else is high.
func ClassifyRisk(overall float64, p Policy) RiskLevel {
	switch {
	case overall >= p.LowRiskMin:
		return RiskLevelLow
	case overall >= p.MediumRiskMin:
		return RiskLevelMedium
	default:
		return RiskLevelHigh
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
