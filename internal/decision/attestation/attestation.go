// Package attestation signs decision report summaries so a certificate
// renderer can trust them without calling back into the service.
package attestation

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	dErrors "verigate/pkg/domain-errors"
)

// MinKeyLength is the shortest HMAC key accepted.
const MinKeyLength = 32

// Summary is the part of a decision report that gets attested.
type Summary struct {
	ReportID    string
	SubjectID   string
	Level       string
	RiskLevel   string
	Overall     float64
	EvidenceRef string
}

// Claims are the JWT claims of an attestation. The subject claim carries the
// subject ID.
type Claims struct {
	ReportID    string  `json:"report_id"`
	Level       string  `json:"level"`
	RiskLevel   string  `json:"risk_level"`
	Overall     float64 `json:"overall_score"`
	EvidenceRef string  `json:"evidence_ref"`
	jwt.RegisteredClaims
}

// Signer issues and verifies HS256 attestations.
type Signer struct {
	signingKey []byte
	issuer     string
	ttl        time.Duration
	now        func() time.Time
}

type Option func(*Signer)

// WithClock overrides the time source used for iat/exp and verification.
func WithClock(now func() time.Time) Option {
	return func(s *Signer) { s.now = now }
}

// NewSigner builds a signer. The key must be at least MinKeyLength bytes.
func NewSigner(signingKey, issuer string, ttl time.Duration, opts ...Option) (*Signer, error) {
	if len(signingKey) < MinKeyLength {
		return nil, errors.New("attestation signing key is too short")
	}
	if ttl <= 0 {
		return nil, errors.New("attestation ttl must be positive")
	}
	s := &Signer{
		signingKey: []byte(signingKey),
		issuer:     issuer,
		ttl:        ttl,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Sign issues an attestation for sum at the given instant.
func (s *Signer) Sign(sum Summary, issuedAt time.Time) (string, error) {
	if sum.ReportID == "" || sum.SubjectID == "" {
		return "", dErrors.New(dErrors.CodeValidation, "report and subject are required")
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		ReportID:    sum.ReportID,
		Level:       sum.Level,
		RiskLevel:   sum.RiskLevel,
		Overall:     sum.Overall,
		EvidenceRef: sum.EvidenceRef,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sum.SubjectID,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(s.ttl)),
			ID:        uuid.NewString(),
		},
	})
	signed, err := token.SignedString(s.signingKey)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to sign attestation")
	}
	return signed, nil
}

// Verify parses and checks an attestation. Only HS256 is accepted.
func (s *Signer) Verify(tokenString string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return s.signingKey, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, dErrors.Wrap(err, dErrors.CodeUnauthorized, "attestation has expired")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeUnauthorized, "invalid attestation")
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid attestation claims")
	}
	if claims.ReportID == "" || claims.Subject == "" {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "attestation is missing report or subject")
	}
	return claims, nil
}
