package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"verigate/internal/decision"
	"verigate/internal/decision/attestation"
	"verigate/internal/decision/handler"
	decisionmetrics "verigate/internal/decision/metrics"
	"verigate/internal/decision/store"
	"verigate/internal/evidence/assembler"
	"verigate/internal/evidence/providers"
	"verigate/internal/platform/config"
	platformmetrics "verigate/internal/platform/metrics"
	"verigate/internal/platform/postgres"
	platformredis "verigate/internal/platform/redis"
	"verigate/internal/scoring"
	audit "verigate/pkg/platform/audit"
	"verigate/pkg/platform/audit/publisher"
	"verigate/pkg/platform/audit/publishers/compliance"
	"verigate/pkg/platform/audit/publishers/ops"
	"verigate/pkg/platform/audit/publishers/security"
	kafkastore "verigate/pkg/platform/audit/store/kafka"
	auditmemory "verigate/pkg/platform/audit/store/memory"
	"verigate/pkg/platform/circuit"
	"verigate/pkg/platform/httputil"
	"verigate/pkg/platform/middleware/device"
	"verigate/pkg/platform/middleware/metadata"
	"verigate/pkg/platform/middleware/requesttime"
)

// app holds the wired router plus every resource that needs closing.
type app struct {
	router      http.Handler
	persistence string
	closers     []func() error
}

func (a *app) close(log *slog.Logger) {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			log.Warn("close resource", "error", err)
		}
	}
}

func build(ctx context.Context, cfg config.Server, log *slog.Logger) (*app, error) {
	a := &app{persistence: "memory"}
	m := platformmetrics.New()

	engine, err := buildEngine(cfg, log)
	if err != nil {
		return nil, err
	}

	registry, err := buildProviders(cfg, log)
	if err != nil {
		return nil, err
	}
	asm := assembler.New(registry,
		assembler.WithTimeout(cfg.EvidenceTimeout),
		assembler.WithLogger(log),
		assembler.WithMetrics(assembler.NewMetrics(m.Registry)),
	)

	var (
		reports decision.ReportStore = store.NewInMemoryStore()
		db      *sql.DB
	)
	if cfg.DatabaseURL != "" {
		db, err = postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, db.Close)
		if err := postgres.Migrate(ctx, db); err != nil {
			a.close(log)
			return nil, err
		}
		reports = store.NewPostgres(db)
		a.persistence = "postgres"
		log.Info("decision reports stored in postgres", "dsn", postgres.MaskDSN(cfg.DatabaseURL))
	}

	opts := []decision.Option{
		decision.WithAssembler(asm),
		decision.WithLogger(log),
		decision.WithMetrics(decisionmetrics.New(m.Registry)),
	}

	redisClient, err := platformredis.New(ctx, cfg.Redis)
	if err != nil {
		a.close(log)
		return nil, err
	}
	if redisClient != nil {
		a.closers = append(a.closers, redisClient.Close)
		if err := redisClient.RegisterPoolMetrics(m.Registry); err != nil {
			a.close(log)
			return nil, err
		}
		opts = append(opts, decision.WithCache(store.NewRedisCache(redisClient.Client, cfg.ReportCacheTTL)))
		log.Info("report cache enabled", "ttl", cfg.ReportCacheTTL)
	}

	auditPublisher, err := buildAudit(ctx, cfg, log, m, a)
	if err != nil {
		a.close(log)
		return nil, err
	}
	opts = append(opts, decision.WithAuditPublisher(auditPublisher))

	signer, err := attestation.NewSigner(cfg.Attestation.SigningKey, cfg.Attestation.Issuer, cfg.Attestation.TTL)
	if err != nil {
		a.close(log)
		return nil, err
	}
	opts = append(opts, decision.WithAttestor(signer))

	svc, err := decision.New(engine, reports, opts...)
	if err != nil {
		a.close(log)
		return nil, err
	}
	h, err := handler.New(svc, log)
	if err != nil {
		a.close(log)
		return nil, err
	}

	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(metadata.RequestID)
	r.Use(metadata.ClientMetadata)
	r.Use(device.Middleware)
	r.Use(requesttime.Middleware)
	r.Use(m.Middleware)
	r.Get("/healthz", healthHandler(db, redisClient))
	r.Method(http.MethodGet, "/metrics", m.Handler())
	h.Register(r)

	a.router = r
	return a, nil
}

func buildEngine(cfg config.Server, log *slog.Logger) (*scoring.Engine, error) {
	if cfg.ScoringPolicyFile == "" {
		return scoring.NewDefaultEngine(), nil
	}
	policy, err := scoring.LoadPolicy(cfg.ScoringPolicyFile)
	if err != nil {
		return nil, err
	}
	log.Info("scoring policy loaded", "path", cfg.ScoringPolicyFile)
	return scoring.NewEngine(policy)
}

// buildProviders registers the evidence sources. Remote providers sit behind
// a circuit breaker each.
func buildProviders(cfg config.Server, log *slog.Logger) (*providers.Registry, error) {
	registry := providers.NewRegistry()
	var list []providers.Provider

	switch cfg.Providers.Mode {
	case config.ProviderModeHTTP:
		p := cfg.Providers
		remote := func(id string, kind providers.ProviderType, baseURL string) providers.Provider {
			return providers.NewGuarded(
				providers.NewHTTPProvider(id, kind, baseURL, p.APIKey, p.Timeout),
				circuit.New(id),
				log,
			)
		}
		list = append(list, remote("document-http", providers.ProviderTypeDocument, p.DocumentURL))
		if p.BiometricURL != "" {
			list = append(list, remote("biometric-http", providers.ProviderTypeBiometric, p.BiometricURL))
		}
		if p.ExternalURL != "" {
			list = append(list, remote("external-http", providers.ProviderTypeExternal, p.ExternalURL))
		}
	default:
		list = append(list,
			providers.NewMockDocumentProvider("mock-document"),
			providers.NewMockBiometricProvider("mock-biometric"),
			providers.NewMockExternalProvider("mock-external"),
		)
	}

	for _, p := range list {
		if err := registry.Register(p); err != nil {
			return nil, fmt.Errorf("register evidence provider: %w", err)
		}
	}
	return registry, nil
}

// buildAudit selects the durable audit store and routes each category to its
// publisher.
func buildAudit(ctx context.Context, cfg config.Server, log *slog.Logger, m *platformmetrics.Metrics, a *app) (*publisher.Publisher, error) {
	var sink audit.Store = auditmemory.NewInMemoryStore()
	if len(cfg.Kafka.Brokers) > 0 {
		ks, err := kafkastore.New(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() error { ks.Close(); return nil })

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := ks.EnsureTopic(pingCtx, 1, 1); err != nil {
			log.Warn("audit topic bootstrap failed", "topic", cfg.Kafka.Topic, "error", err)
		}
		sink = ks
		log.Info("audit events streamed to kafka", "topic", cfg.Kafka.Topic)
	}

	complianceP := compliance.New(sink,
		compliance.WithLogger(log),
		compliance.WithMetrics(compliance.NewMetrics(m.Registry)),
	)
	securityP := security.New(sink, security.WithLogger(log))
	a.closers = append(a.closers, securityP.Close)

	opsP := ops.New(sink,
		ops.WithSampler(ops.NewSampler(1, ops.DefaultRates)),
		ops.WithCircuitBreaker(circuit.New("audit-ops", circuit.WithCooldown(30*time.Second))),
		ops.WithMetrics(ops.NewMetrics(m.Registry)),
		ops.WithLogger(log),
	)

	return publisher.NewPublisher(complianceP,
		publisher.WithSecurity(securityP),
		publisher.WithOps(opsP),
		publisher.WithLogger(log),
	), nil
}

func healthHandler(db *sql.DB, redisClient *platformredis.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		checks := map[string]string{}
		healthy := true
		if db != nil {
			checks["postgres"] = "ok"
			if err := db.PingContext(ctx); err != nil {
				checks["postgres"] = err.Error()
				healthy = false
			}
		}
		if redisClient != nil {
			checks["redis"] = "ok"
			if err := redisClient.Health(ctx); err != nil {
				checks["redis"] = err.Error()
				healthy = false
			}
		}

		status := http.StatusOK
		state := "ok"
		if !healthy {
			status = http.StatusServiceUnavailable
			state = "degraded"
		}
		httputil.WriteJSON(w, status, map[string]any{"status": state, "checks": checks})
	}
}
