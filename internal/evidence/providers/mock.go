package providers

import (
	"context"
	"errors"
	"hash/fnv"
	"math"
	"strings"
	"time"

	"verigate/internal/evidence"
)

// ExpiredDocumentPrefix makes the mock document provider return an expired
// document, so demo and e2e flows can exercise the expired path.
const ExpiredDocumentPrefix = "EXP"

// MockOption configures a mock provider.
type MockOption func(*mockBase)

// WithLatency delays every Collect call. The delay honours ctx cancellation.
func WithLatency(d time.Duration) MockOption {
	return func(m *mockBase) { m.latency = d }
}

// WithClock overrides the time source used for dates and CheckedAt.
func WithClock(clock func() time.Time) MockOption {
	return func(m *mockBase) { m.clock = clock }
}

// WithFailure makes every Collect call fail with err.
func WithFailure(err error) MockOption {
	return func(m *mockBase) { m.failWith = err }
}

type mockBase struct {
	id       string
	latency  time.Duration
	clock    func() time.Time
	failWith error
}

func newMockBase(id string, opts []MockOption) mockBase {
	m := mockBase{id: id, clock: time.Now}
	for _, opt := range opts {
		opt(&m)
	}
	return m
}

func (m mockBase) ID() string { return m.id }

func (m mockBase) Health(context.Context) error { return nil }

// begin applies the configured latency and failure.
func (m mockBase) begin(ctx context.Context) error {
	if m.latency > 0 {
		t := time.NewTimer(m.latency)
		defer t.Stop()
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.Canceled) {
				return NewProviderError(ErrorCancelled, m.id, "collect cancelled by caller", ctx.Err())
			}
			return NewProviderError(ErrorTimeout, m.id, "collect timed out", ctx.Err())
		case <-t.C:
		}
	}
	if m.failWith != nil {
		var pe *ProviderError
		if errors.As(m.failWith, &pe) {
			return m.failWith
		}
		return NewProviderError(ErrorInternal, m.id, "mock failure", m.failWith)
	}
	return nil
}

// seedFor derives a stable seed so repeated calls for the same subject and
// document yield identical evidence.
func seedFor(parts ...string) uint64 {
	h := fnv.New64a()
	for _, p := range parts {
		_, _ = h.Write([]byte(p))
		_, _ = h.Write([]byte{0})
	}
	return h.Sum64()
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// MockDocumentProvider stands in for OCR/document extraction.
type MockDocumentProvider struct {
	mockBase
}

func NewMockDocumentProvider(id string, opts ...MockOption) *MockDocumentProvider {
	return &MockDocumentProvider{mockBase: newMockBase(id, opts)}
}

func (p *MockDocumentProvider) Capabilities() Capabilities {
	return Capabilities{Protocol: ProtocolInProcess, Type: ProviderTypeDocument, Version: "mock-1"}
}

func (p *MockDocumentProvider) Collect(ctx context.Context, req Request) (*Contribution, error) {
	if err := p.begin(ctx); err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.DocumentNumber) == "" || !req.DocumentType.IsValid() {
		return nil, NewProviderError(ErrorBadData, p.id, "document type and number are required", nil)
	}

	now := p.clock().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	seed := seedFor(req.SubjectID, req.DocumentNumber)

	var expiry time.Time
	if strings.HasPrefix(strings.ToUpper(req.DocumentNumber), ExpiredDocumentPrefix) {
		expiry = today.AddDate(-1-int(seed%3), -int(seed>>8%12), 0)
	} else {
		expiry = today.AddDate(1+int(seed%9), int(seed>>8%12), 0)
	}
	issue := expiry.AddDate(-10, 0, 0)

	return &Contribution{
		ProviderID: p.id,
		Type:       ProviderTypeDocument,
		Personal: &evidence.PersonalInfo{
			FullName:    req.FullName,
			DateOfBirth: req.DateOfBirth,
		},
		Document: &evidence.DocumentInfo{
			Type:             req.DocumentType,
			Number:           req.DocumentNumber,
			IssueDate:        issue.Format(time.DateOnly),
			ExpiryDate:       expiry.Format(time.DateOnly),
			IssuingAuthority: "Mock Issuing Authority",
		},
		CheckedAt: now,
	}, nil
}

// MockBiometricProvider stands in for face and fingerprint comparison. Face
// match lands in [55,100); a fingerprint score is present for about half of
// all subjects; iris is never captured.
type MockBiometricProvider struct {
	mockBase
}

func NewMockBiometricProvider(id string, opts ...MockOption) *MockBiometricProvider {
	return &MockBiometricProvider{mockBase: newMockBase(id, opts)}
}

func (p *MockBiometricProvider) Capabilities() Capabilities {
	return Capabilities{Protocol: ProtocolInProcess, Type: ProviderTypeBiometric, Version: "mock-1"}
}

func (p *MockBiometricProvider) Collect(ctx context.Context, req Request) (*Contribution, error) {
	if err := p.begin(ctx); err != nil {
		return nil, err
	}
	seed := seedFor(req.SubjectID, req.DocumentNumber, "biometric")

	signals := evidence.BiometricSignals{
		FaceMatchScore: evidence.Score(round2(55 + float64(seed%4500)/100)),
	}
	if seed&1 == 1 {
		signals.FingerprintMatchScore = evidence.Score(round2(50 + float64(seed>>4%5000)/100))
	}

	return &Contribution{
		ProviderID: p.id,
		Type:       ProviderTypeBiometric,
		Biometrics: &signals,
		CheckedAt:  p.clock().UTC(),
	}, nil
}

// MockExternalProvider stands in for third-party checks. Email and phone are
// verified when supplied; bank and social checks follow the subject seed.
type MockExternalProvider struct {
	mockBase
}

func NewMockExternalProvider(id string, opts ...MockOption) *MockExternalProvider {
	return &MockExternalProvider{mockBase: newMockBase(id, opts)}
}

func (p *MockExternalProvider) Capabilities() Capabilities {
	return Capabilities{Protocol: ProtocolInProcess, Type: ProviderTypeExternal, Version: "mock-1"}
}

func (p *MockExternalProvider) Collect(ctx context.Context, req Request) (*Contribution, error) {
	if err := p.begin(ctx); err != nil {
		return nil, err
	}
	seed := seedFor(req.SubjectID, "external")

	return &Contribution{
		ProviderID: p.id,
		Type:       ProviderTypeExternal,
		External: &evidence.ExternalVerificationFlags{
			SocialMediaVerified: seed&4 != 0,
			BankAccountVerified: seed&2 != 0,
			PhoneNumberVerified: strings.TrimSpace(req.Phone) != "",
			EmailVerified:       strings.TrimSpace(req.Email) != "",
		},
		CheckedAt: p.clock().UTC(),
	}, nil
}
