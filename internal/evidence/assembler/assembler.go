// Package assembler gathers one evidence snapshot from every registered
// provider in parallel.
package assembler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"verigate/internal/evidence"
	"verigate/internal/evidence/providers"
	"verigate/internal/platform/tracing"
	"verigate/pkg/requestcontext"
)

const defaultTimeout = 5 * time.Second

// ProviderSource lists the providers to consult. *providers.Registry
// satisfies it.
type ProviderSource interface {
	ListByType(t providers.ProviderType) []providers.Provider
}

// Performed records which evidence categories were actually gathered.
type Performed struct {
	Document  bool
	Biometric bool
	External  bool
	// Failures maps provider ID to the category of its failure.
	Failures map[string]providers.ErrorCategory
}

// Assembler fans out to providers under a single deadline.
type Assembler struct {
	source  ProviderSource
	timeout time.Duration
	logger  *slog.Logger
	metrics *Metrics
}

type Option func(*Assembler)

func WithTimeout(d time.Duration) Option {
	return func(a *Assembler) {
		if d > 0 {
			a.timeout = d
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(a *Assembler) { a.logger = logger }
}

func WithMetrics(m *Metrics) Option {
	return func(a *Assembler) { a.metrics = m }
}

// New constructs an Assembler.
func New(source ProviderSource, opts ...Option) *Assembler {
	a := &Assembler{source: source, timeout: defaultTimeout, logger: slog.Default()}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

type collected struct {
	provider     providers.Provider
	contribution *providers.Contribution
	err          error
}

// Assemble collects evidence for req and merges it with the caller's
// behavioral telemetry. A document provider failure fails the whole
// assembly; biometric and external failures leave those signals absent.
func (a *Assembler) Assemble(ctx context.Context, req providers.Request, telemetry evidence.BehavioralTelemetry) (*evidence.VerificationEvidence, Performed, error) {
	ctx, span := tracing.StartSpan(ctx, "evidence.assemble", tracing.SubjectID(req.SubjectID))
	defer span.End()

	performed := Performed{Failures: map[string]providers.ErrorCategory{}}

	docs := a.source.ListByType(providers.ProviderTypeDocument)
	if len(docs) == 0 {
		err := fmt.Errorf("document evidence: %w", providers.ErrNoProvidersAvailable)
		tracing.RecordError(span, err)
		return nil, performed, err
	}
	all := append(append(docs,
		a.source.ListByType(providers.ProviderTypeBiometric)...),
		a.source.ListByType(providers.ProviderTypeExternal)...)

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	results := make([]collected, len(all))
	for i, p := range all {
		g.Go(func() error {
			kind := p.Capabilities().Type
			start := time.Now()
			c, err := a.collect(gctx, p, req)
			a.metrics.observeCollect(p.ID(), string(kind), time.Since(start), err)
			results[i] = collected{provider: p, contribution: c, err: err}

			if err != nil && kind == providers.ProviderTypeDocument {
				return fmt.Errorf("document evidence: %w", err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		a.logger.ErrorContext(ctx, "evidence assembly failed",
			"request_id", requestcontext.RequestID(ctx),
			"subject_id", req.SubjectID,
			"error", err,
		)
		tracing.RecordError(span, err)
		return nil, performed, err
	}

	ev := evidence.VerificationEvidence{
		Personal: evidence.PersonalInfo{FullName: req.FullName, DateOfBirth: req.DateOfBirth},
		Behavior: a.fillTelemetry(ctx, telemetry),
	}
	for _, r := range results {
		kind := r.provider.Capabilities().Type
		if r.err != nil {
			category := providers.GetCategory(r.err)
			performed.Failures[r.provider.ID()] = category
			a.metrics.incDegraded(string(kind), string(category))
			a.logger.WarnContext(ctx, "optional evidence unavailable",
				"request_id", requestcontext.RequestID(ctx),
				"provider_id", r.provider.ID(),
				"provider_type", kind,
				"category", category,
				"error", r.err,
			)
			continue
		}
		merge(&ev, &performed, r.contribution)
	}
	if !performed.Document {
		err := providers.NewProviderError(providers.ErrorBadData, docs[0].ID(), "no document section returned", nil)
		tracing.RecordError(span, err)
		return nil, performed, fmt.Errorf("document evidence: %w", err)
	}
	performed.Biometric = ev.Biometrics.Captured()

	out := ev.Clone()
	return &out, performed, nil
}

func (a *Assembler) collect(ctx context.Context, p providers.Provider, req providers.Request) (*providers.Contribution, error) {
	ctx, span := tracing.StartSpan(ctx, "evidence.collect",
		tracing.ProviderID(p.ID()),
		tracing.ProviderType(string(p.Capabilities().Type)),
	)
	defer span.End()

	c, err := p.Collect(ctx, req)
	if err == nil && c == nil {
		err = providers.NewProviderError(providers.ErrorBadData, p.ID(), "empty contribution", nil)
	}
	tracing.RecordError(span, err)
	return c, err
}

// merge folds a contribution into ev. Providers arrive in type then ID order,
// so the first document wins and the first provider to report a biometric
// signal owns it. External checks are OR-ed.
func merge(ev *evidence.VerificationEvidence, performed *Performed, c *providers.Contribution) {
	switch c.Type {
	case providers.ProviderTypeDocument:
		if performed.Document || c.Document == nil {
			return
		}
		ev.Document = *c.Document
		if c.Personal != nil {
			ev.Personal = mergePersonal(ev.Personal, *c.Personal)
		}
		performed.Document = true
	case providers.ProviderTypeBiometric:
		if c.Biometrics == nil {
			return
		}
		b := &ev.Biometrics
		if b.FaceMatchScore == nil {
			b.FaceMatchScore = c.Biometrics.FaceMatchScore
		}
		if b.FingerprintMatchScore == nil {
			b.FingerprintMatchScore = c.Biometrics.FingerprintMatchScore
		}
		if b.IrisMatchScore == nil {
			b.IrisMatchScore = c.Biometrics.IrisMatchScore
		}
	case providers.ProviderTypeExternal:
		if c.External == nil {
			return
		}
		x := &ev.External
		x.SocialMediaVerified = x.SocialMediaVerified || c.External.SocialMediaVerified
		x.BankAccountVerified = x.BankAccountVerified || c.External.BankAccountVerified
		x.PhoneNumberVerified = x.PhoneNumberVerified || c.External.PhoneNumberVerified
		x.EmailVerified = x.EmailVerified || c.External.EmailVerified
		performed.External = true
	}
}

// mergePersonal prefers extracted values and keeps claimed ones where the
// document had nothing.
func mergePersonal(claimed, extracted evidence.PersonalInfo) evidence.PersonalInfo {
	pick := func(a, b string) string {
		if b != "" {
			return b
		}
		return a
	}
	return evidence.PersonalInfo{
		FullName:    pick(claimed.FullName, extracted.FullName),
		DateOfBirth: pick(claimed.DateOfBirth, extracted.DateOfBirth),
		Address:     pick(claimed.Address, extracted.Address),
		Nationality: pick(claimed.Nationality, extracted.Nationality),
		Gender:      pick(claimed.Gender, extracted.Gender),
	}
}

// fillTelemetry defaults device and network fields from the request context.
func (a *Assembler) fillTelemetry(ctx context.Context, t evidence.BehavioralTelemetry) evidence.BehavioralTelemetry {
	if t.DeviceFingerprint == "" {
		t.DeviceFingerprint = requestcontext.DeviceFingerprint(ctx)
	}
	if t.SourceIP == "" {
		t.SourceIP = requestcontext.ClientIP(ctx)
	}
	return t
}
