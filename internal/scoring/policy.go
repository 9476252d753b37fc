package scoring

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Fixed weights. These define the [0,25] component contract and are not
// configurable.
const (
	ComponentMax       = 25.0
	OverallMax         = 4 * ComponentMax
	faceDivisor        = 4.0
	fingerprintDivisor = 8.0
	irisDivisor        = 8.0
	externalPerFlag    = ComponentMax / 4
)

// Policy holds the tunable thresholds and penalties. DefaultPolicy matches
// the production rule set.
type Policy struct {
	LowRiskMin               float64 `toml:"low_risk_min" yaml:"low_risk_min"`
	MediumRiskMin            float64 `toml:"medium_risk_min" yaml:"medium_risk_min"`
	ExpiryWarningMonths      int     `toml:"expiry_warning_months" yaml:"expiry_warning_months"`
	ExpiringSoonPenalty      float64 `toml:"expiring_soon_penalty" yaml:"expiring_soon_penalty"`
	MaxAttempts              int     `toml:"max_attempts" yaml:"max_attempts"`
	AttemptPenalty           float64 `toml:"attempt_penalty" yaml:"attempt_penalty"`
	MinCompletionSeconds     int     `toml:"min_completion_seconds" yaml:"min_completion_seconds"`
	FastCompletionPenalty    float64 `toml:"fast_completion_penalty" yaml:"fast_completion_penalty"`
	LowBiometricThreshold    float64 `toml:"low_biometric_threshold" yaml:"low_biometric_threshold"`
	LimitedExternalThreshold float64 `toml:"limited_external_threshold" yaml:"limited_external_threshold"`
}

// DefaultPolicy returns the standard thresholds.
func DefaultPolicy() Policy {
	return Policy{
		LowRiskMin:               75,
		MediumRiskMin:            50,
		ExpiryWarningMonths:      3,
		ExpiringSoonPenalty:      10,
		MaxAttempts:              3,
		AttemptPenalty:           5,
		MinCompletionSeconds:     30,
		FastCompletionPenalty:    10,
		LowBiometricThreshold:    15,
		LimitedExternalThreshold: 12.5,
	}
}

// Validate rejects policies that would break the tier ordering or the bounds.
func (p Policy) Validate() error {
	if p.LowRiskMin < 0 || p.LowRiskMin > OverallMax {
		return fmt.Errorf("low_risk_min must be within [0,%v]", OverallMax)
	}
	if p.MediumRiskMin < 0 || p.MediumRiskMin > p.LowRiskMin {
		return fmt.Errorf("medium_risk_min must be within [0,low_risk_min]")
	}
	if p.ExpiryWarningMonths <= 0 {
		return fmt.Errorf("expiry_warning_months must be positive")
	}
	if p.MaxAttempts < 1 {
		return fmt.Errorf("max_attempts must be at least 1")
	}
	if p.MinCompletionSeconds < 0 {
		return fmt.Errorf("min_completion_seconds must not be negative")
	}
	for name, v := range map[string]float64{
		"expiring_soon_penalty":   p.ExpiringSoonPenalty,
		"attempt_penalty":         p.AttemptPenalty,
		"fast_completion_penalty": p.FastCompletionPenalty,
	} {
		if v < 0 {
			return fmt.Errorf("%s must not be negative", name)
		}
	}
	if p.LowBiometricThreshold < 0 || p.LowBiometricThreshold > ComponentMax {
		return fmt.Errorf("low_biometric_threshold must be within [0,%v]", ComponentMax)
	}
	if p.LimitedExternalThreshold < 0 || p.LimitedExternalThreshold > ComponentMax {
		return fmt.Errorf("limited_external_threshold must be within [0,%v]", ComponentMax)
	}
	return nil
}

// LoadPolicy reads a TOML or YAML policy file. Keys missing from the file keep
// their DefaultPolicy values.
func LoadPolicy(path string) (Policy, error) {
	p := DefaultPolicy()
	data, err := os.ReadFile(path)
	if err != nil {
		return Policy{}, fmt.Errorf("read scoring policy: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.Decode(string(data), &p); err != nil {
			return Policy{}, fmt.Errorf("decode TOML policy: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &p); err != nil {
			return Policy{}, fmt.Errorf("decode YAML policy: %w", err)
		}
	default:
		return Policy{}, fmt.Errorf("unsupported policy format %q", filepath.Ext(path))
	}

	if err := p.Validate(); err != nil {
		return Policy{}, fmt.Errorf("invalid scoring policy: %w", err)
	}
	return p, nil
}
