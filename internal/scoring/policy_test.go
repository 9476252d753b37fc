package scoring

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePolicy(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadPolicy(t *testing.T) {
	t.Run("toml overrides only the keys it names", func(t *testing.T) {
		path := writePolicy(t, "policy.toml", `
low_risk_min = 80.0
max_attempts = 5
`)
		p, err := LoadPolicy(path)
		require.NoError(t, err)

		want := DefaultPolicy()
		want.LowRiskMin = 80
		want.MaxAttempts = 5
		assert.Equal(t, want, p)
	})

	t.Run("yaml is accepted under both extensions", func(t *testing.T) {
		for _, name := range []string{"policy.yaml", "policy.yml"} {
			path := writePolicy(t, name, "medium_risk_min: 40\nfast_completion_penalty: 12.5\n")
			p, err := LoadPolicy(path)
			require.NoError(t, err, name)
			assert.Equal(t, 40.0, p.MediumRiskMin)
			assert.Equal(t, 12.5, p.FastCompletionPenalty)
			assert.Equal(t, 75.0, p.LowRiskMin)
		}
	})

	t.Run("unknown extension is rejected", func(t *testing.T) {
		path := writePolicy(t, "policy.json", `{}`)
		_, err := LoadPolicy(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unsupported policy format")
	})

	t.Run("missing file is an error", func(t *testing.T) {
		_, err := LoadPolicy(filepath.Join(t.TempDir(), "nope.toml"))
		require.Error(t, err)
	})

	t.Run("malformed toml is an error", func(t *testing.T) {
		path := writePolicy(t, "policy.toml", "low_risk_min = = 3")
		_, err := LoadPolicy(path)
		require.Error(t, err)
	})

	t.Run("file that inverts the tiers fails validation", func(t *testing.T) {
		path := writePolicy(t, "policy.yaml", "low_risk_min: 40\nmedium_risk_min: 60\n")
		_, err := LoadPolicy(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid scoring policy")
	})
}

func TestPolicyValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Policy)
	}{
		{"low above overall max", func(p *Policy) { p.LowRiskMin = 101 }},
		{"negative medium", func(p *Policy) { p.MediumRiskMin = -1 }},
		{"zero warning window", func(p *Policy) { p.ExpiryWarningMonths = 0 }},
		{"zero max attempts", func(p *Policy) { p.MaxAttempts = 0 }},
		{"negative completion seconds", func(p *Policy) { p.MinCompletionSeconds = -5 }},
		{"negative penalty", func(p *Policy) { p.AttemptPenalty = -1 }},
		{"biometric threshold above cap", func(p *Policy) { p.LowBiometricThreshold = 30 }},
		{"external threshold negative", func(p *Policy) { p.LimitedExternalThreshold = -0.5 }},
	}

	require.NoError(t, DefaultPolicy().Validate())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DefaultPolicy()
			tt.mutate(&p)
			assert.Error(t, p.Validate())
		})
	}
}
