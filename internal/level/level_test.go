package level

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		req      Requirements
		expected VerificationLevel
	}{
		{"nothing satisfied", Requirements{}, Basic},
		{"document only", Requirements{DocumentVerification: true}, Basic},
		{"biometric without document", Requirements{BiometricMatch: true, AddressVerification: true, BackgroundCheck: true}, Basic},
		{"document and biometric", Requirements{DocumentVerification: true, BiometricMatch: true}, Standard},
		{"background without address stays standard", Requirements{DocumentVerification: true, BiometricMatch: true, BackgroundCheck: true}, Standard},
		{"document biometric address", Requirements{DocumentVerification: true, BiometricMatch: true, AddressVerification: true}, Enhanced},
		{"everything", Requirements{DocumentVerification: true, BiometricMatch: true, AddressVerification: true, BackgroundCheck: true}, Premium},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Classify(tt.req))
		})
	}
}

func requirementsFromBits(bits int) Requirements {
	return Requirements{
		DocumentVerification: bits&1 != 0,
		BiometricMatch:       bits&2 != 0,
		AddressVerification:  bits&4 != 0,
		BackgroundCheck:      bits&8 != 0,
	}
}

// Flipping any single requirement from false to true never lowers the level.
func TestClassify_Monotonic(t *testing.T) {
	for bits := 0; bits < 16; bits++ {
		base := Classify(requirementsFromBits(bits))
		for flag := 0; flag < 4; flag++ {
			mask := 1 << flag
			if bits&mask != 0 {
				continue
			}
			raised := Classify(requirementsFromBits(bits | mask))
			assert.True(t, raised.AtLeast(base), "bits=%04b flag=%d: %s -> %s", bits, flag, base, raised)
		}
	}
}

func TestParseLevel(t *testing.T) {
	for _, l := range []VerificationLevel{Basic, Standard, Enhanced, Premium} {
		parsed, err := ParseLevel(l.String())
		require.NoError(t, err)
		assert.Equal(t, l, parsed)
	}

	parsed, err := ParseLevel(" enhanced ")
	require.NoError(t, err)
	assert.Equal(t, Enhanced, parsed)

	_, err = ParseLevel("GOLD")
	assert.Error(t, err)
}

func TestVerificationLevel_JSON(t *testing.T) {
	type wrapper struct {
		Level VerificationLevel `json:"level"`
	}

	raw, err := json.Marshal(wrapper{Level: Enhanced})
	require.NoError(t, err)
	assert.JSONEq(t, `{"level":"ENHANCED"}`, string(raw))

	var w wrapper
	require.NoError(t, json.Unmarshal([]byte(`{"level":"PREMIUM"}`), &w))
	assert.Equal(t, Premium, w.Level)

	assert.Error(t, json.Unmarshal([]byte(`{"level":"PLATINUM"}`), &w))

	_, err = json.Marshal(wrapper{Level: VerificationLevel(9)})
	assert.Error(t, err)
}

func TestVerificationLevel_Ordering(t *testing.T) {
	assert.True(t, Premium.AtLeast(Enhanced))
	assert.True(t, Standard.AtLeast(Standard))
	assert.False(t, Basic.AtLeast(Standard))
	assert.Equal(t, "VerificationLevel(7)", VerificationLevel(7).String())
}
