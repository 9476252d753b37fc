// Package contract provides reusable checks that any Provider implementation
// must pass, mock or remote.
package contract

import (
	"context"
	"fmt"
	"testing"

	"verigate/internal/evidence"
	"verigate/internal/evidence/providers"
)

// ContractTest is one Collect call and its expectations.
type ContractTest struct {
	Name         string
	Provider     providers.Provider
	Input        providers.Request
	ValidateFunc func(c *providers.Contribution) error
}

// ContractSuite is a collection of contract tests for a provider.
type ContractSuite struct {
	ProviderID string
	Tests      []ContractTest
}

// Run executes all contract tests in the suite.
func (s *ContractSuite) Run(t *testing.T) {
	for _, test := range s.Tests {
		t.Run(test.Name, func(t *testing.T) {
			c, err := test.Provider.Collect(context.Background(), test.Input)
			if err != nil {
				t.Fatalf("provider collect failed: %v", err)
			}
			if c.ProviderID != s.ProviderID {
				t.Errorf("expected provider ID %s, got %s", s.ProviderID, c.ProviderID)
			}
			if want := test.Provider.Capabilities().Type; c.Type != want {
				t.Errorf("expected type %s, got %s", want, c.Type)
			}
			if c.CheckedAt.IsZero() {
				t.Error("CheckedAt not set")
			}
			if err := CheckSection(c); err != nil {
				t.Error(err)
			}
			if test.ValidateFunc != nil {
				if err := test.ValidateFunc(c); err != nil {
					t.Errorf("custom validation failed: %v", err)
				}
			}
		})
	}
}

// CheckSection verifies the contribution carries well-formed data for its type.
func CheckSection(c *providers.Contribution) error {
	switch c.Type {
	case providers.ProviderTypeDocument:
		if c.Document == nil {
			return fmt.Errorf("document contribution without document section")
		}
		if !c.Document.Type.IsValid() {
			return fmt.Errorf("invalid document type %q", c.Document.Type)
		}
		for field, v := range map[string]string{"issue_date": c.Document.IssueDate, "expiry_date": c.Document.ExpiryDate} {
			if _, err := evidence.ParseDate(v); err != nil {
				return fmt.Errorf("%s: %w", field, err)
			}
		}
	case providers.ProviderTypeBiometric:
		if c.Biometrics == nil {
			return fmt.Errorf("biometric contribution without biometric section")
		}
		for _, s := range []*float64{c.Biometrics.FaceMatchScore, c.Biometrics.FingerprintMatchScore, c.Biometrics.IrisMatchScore} {
			if s != nil && (*s < 0 || *s > 100) {
				return fmt.Errorf("biometric score %v out of range [0, 100]", *s)
			}
		}
	case providers.ProviderTypeExternal:
		if c.External == nil {
			return fmt.Errorf("external contribution without external section")
		}
	default:
		return fmt.Errorf("unknown contribution type %q", c.Type)
	}
	return nil
}

// CapabilityTest validates that provider capabilities are declared.
type CapabilityTest struct {
	Provider providers.Provider
}

func (ct *CapabilityTest) Run(t *testing.T) {
	caps := ct.Provider.Capabilities()
	if caps.Protocol == "" {
		t.Error("protocol not set")
	}
	if !caps.Type.IsValid() {
		t.Errorf("invalid type %q", caps.Type)
	}
	if caps.Version == "" {
		t.Error("version not set")
	}
}

// ErrorContractTest validates that provider errors follow the taxonomy.
type ErrorContractTest struct {
	Name          string
	Provider      providers.Provider
	Input         providers.Request
	ExpectedError providers.ErrorCategory
	ExpectedRetry bool
}

func (ect *ErrorContractTest) Run(t *testing.T) {
	_, err := ect.Provider.Collect(context.Background(), ect.Input)
	if err == nil {
		t.Fatal("expected error but got none")
	}
	if category := providers.GetCategory(err); category != ect.ExpectedError {
		t.Errorf("expected error category %s, got %s", ect.ExpectedError, category)
	}
	if retry := providers.IsRetryable(err); retry != ect.ExpectedRetry {
		t.Errorf("expected retryable=%v, got %v", ect.ExpectedRetry, retry)
	}
}
