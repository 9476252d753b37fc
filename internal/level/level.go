// Package level maps satisfied verification requirements onto an assurance
// level. The level gates which certificate may be issued and never depends on
// the risk score.
package level

import (
	"fmt"
	"strings"
)

// VerificationLevel is ordered: BASIC < STANDARD < ENHANCED < PREMIUM.
type VerificationLevel int

const (
	Basic VerificationLevel = iota
	Standard
	Enhanced
	Premium
)

var levelNames = [...]string{
	Basic:    "BASIC",
	Standard: "STANDARD",
	Enhanced: "ENHANCED",
	Premium:  "PREMIUM",
}

func (l VerificationLevel) String() string {
	if !l.IsValid() {
		return fmt.Sprintf("VerificationLevel(%d)", int(l))
	}
	return levelNames[l]
}

// IsValid reports whether l is one of the four defined levels.
func (l VerificationLevel) IsValid() bool {
	return l >= Basic && l <= Premium
}

// AtLeast reports whether l meets or exceeds min.
func (l VerificationLevel) AtLeast(min VerificationLevel) bool {
	return l >= min
}

// ParseLevel accepts the level names case-insensitively.
func ParseLevel(s string) (VerificationLevel, error) {
	name := strings.ToUpper(strings.TrimSpace(s))
	for i, n := range levelNames {
		if n == name {
			return VerificationLevel(i), nil
		}
	}
	return Basic, fmt.Errorf("unknown verification level %q", s)
}

func (l VerificationLevel) MarshalText() ([]byte, error) {
	if !l.IsValid() {
		return nil, fmt.Errorf("invalid verification level %d", int(l))
	}
	return []byte(levelNames[l]), nil
}

func (l *VerificationLevel) UnmarshalText(b []byte) error {
	parsed, err := ParseLevel(string(b))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// Requirements records which verification categories were satisfied.
type Requirements struct {
	DocumentVerification bool `json:"document_verification"`
	BiometricMatch       bool `json:"biometric_match"`
	AddressVerification  bool `json:"address_verification"`
	BackgroundCheck      bool `json:"background_check"`
}

// Classify checks the most restrictive level first so a requirement set that
// satisfies several levels gets the highest one.
func Classify(r Requirements) VerificationLevel {
	switch {
	case r.DocumentVerification && r.BiometricMatch && r.AddressVerification && r.BackgroundCheck:
		return Premium
	case r.DocumentVerification && r.BiometricMatch && r.AddressVerification:
		return Enhanced
	case r.DocumentVerification && r.BiometricMatch:
		return Standard
	default:
		return Basic
	}
}
