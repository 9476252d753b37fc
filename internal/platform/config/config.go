// Package config reads service configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Evidence provider modes.
const (
	ProviderModeMock = "mock"
	ProviderModeHTTP = "http"
)

// Defaults applied when a variable is unset.
const (
	DefaultAddr            = ":8080"
	DefaultLogLevel        = "info"
	DefaultLogFormat       = "text"
	DefaultAuditTopic      = "verigate.audit"
	DefaultEvidenceTimeout = 5 * time.Second
	DefaultReportCacheTTL  = 10 * time.Minute
	DefaultAttestationTTL  = 24 * time.Hour
	DefaultProviderTimeout = 3 * time.Second
	DefaultIssuer          = "verigate"
	DefaultServiceVersion  = "dev"

	// devSigningKey is only used outside production when no key is set.
	devSigningKey = "dev-attestation-key-change-in-production"
)

// Server captures HTTP server level configuration.
type Server struct {
	Addr           string
	Env            string
	ServiceVersion string
	LogLevel       string
	LogFormat      string

	DatabaseURL string
	Redis       RedisConfig
	Kafka       KafkaConfig

	OTLPEndpoint string

	EvidenceTimeout   time.Duration
	ReportCacheTTL    time.Duration
	ScoringPolicyFile string

	Attestation AttestationConfig
	Providers   ProviderConfig
}

// RedisConfig configures the report cache client. An empty URL disables it.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig configures the audit stream. No brokers means audit events are
// kept in memory.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// AttestationConfig configures report attestations.
type AttestationConfig struct {
	SigningKey string
	Issuer     string
	TTL        time.Duration
}

// ProviderConfig selects and locates evidence providers.
type ProviderConfig struct {
	Mode         string
	DocumentURL  string
	BiometricURL string
	ExternalURL  string
	APIKey       string
	Timeout      time.Duration
}

// IsProduction reports whether the service runs with production safeguards.
func (s Server) IsProduction() bool {
	return s.Env == "production"
}

// FromEnv builds a Server config from environment variables so main stays
// lean. A .env file in the working directory is loaded first if present;
// real environment variables take precedence.
func FromEnv() (Server, error) {
	_ = godotenv.Load()

	var errs []error
	duration := func(key string, def time.Duration) time.Duration {
		d, err := getEnvDuration(key, def)
		if err != nil {
			errs = append(errs, err)
		}
		return d
	}
	integer := func(key string, def int) int {
		n, err := getEnvInt(key, def)
		if err != nil {
			errs = append(errs, err)
		}
		return n
	}

	cfg := Server{
		Addr:           getEnv("VERIGATE_ADDR", DefaultAddr),
		Env:            getEnv("VERIGATE_ENV", "development"),
		ServiceVersion: getEnv("SERVICE_VERSION", DefaultServiceVersion),
		LogLevel:       getEnv("LOG_LEVEL", DefaultLogLevel),
		LogFormat:      getEnv("LOG_FORMAT", DefaultLogFormat),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     integer("REDIS_POOL_SIZE", 10),
			MinIdleConns: integer("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  duration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  duration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: duration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers: splitList(os.Getenv("KAFKA_BROKERS")),
			Topic:   getEnv("AUDIT_TOPIC", DefaultAuditTopic),
		},
		OTLPEndpoint:      os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		EvidenceTimeout:   duration("EVIDENCE_TIMEOUT", DefaultEvidenceTimeout),
		ReportCacheTTL:    duration("REPORT_CACHE_TTL", DefaultReportCacheTTL),
		ScoringPolicyFile: os.Getenv("SCORING_POLICY_FILE"),
		Attestation: AttestationConfig{
			SigningKey: os.Getenv("ATTESTATION_SIGNING_KEY"),
			Issuer:     getEnv("ATTESTATION_ISSUER", DefaultIssuer),
			TTL:        duration("ATTESTATION_TTL", DefaultAttestationTTL),
		},
		Providers: ProviderConfig{
			Mode:         strings.ToLower(getEnv("EVIDENCE_PROVIDER_MODE", ProviderModeMock)),
			DocumentURL:  os.Getenv("DOCUMENT_PROVIDER_URL"),
			BiometricURL: os.Getenv("BIOMETRIC_PROVIDER_URL"),
			ExternalURL:  os.Getenv("EXTERNAL_PROVIDER_URL"),
			APIKey:       os.Getenv("PROVIDER_API_KEY"),
			Timeout:      duration("PROVIDER_TIMEOUT", DefaultProviderTimeout),
		},
	}

	if cfg.Attestation.SigningKey == "" && !cfg.IsProduction() {
		// Use a default for development - must be overridden in production
		cfg.Attestation.SigningKey = devSigningKey
	}
	if err := cfg.Validate(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return Server{}, errors.Join(errs...)
	}
	return cfg, nil
}

// Validate checks cross-field constraints.
func (s Server) Validate() error {
	var errs []error
	if s.Attestation.SigningKey == "" {
		errs = append(errs, errors.New("ATTESTATION_SIGNING_KEY is required in production"))
	} else if s.IsProduction() && s.Attestation.SigningKey == devSigningKey {
		errs = append(errs, errors.New("ATTESTATION_SIGNING_KEY must not be the development default in production"))
	}
	switch s.Providers.Mode {
	case ProviderModeMock:
	case ProviderModeHTTP:
		if s.Providers.DocumentURL == "" {
			errs = append(errs, errors.New("DOCUMENT_PROVIDER_URL is required when EVIDENCE_PROVIDER_MODE=http"))
		}
	default:
		errs = append(errs, fmt.Errorf("EVIDENCE_PROVIDER_MODE must be %q or %q, got %q", ProviderModeMock, ProviderModeHTTP, s.Providers.Mode))
	}
	if len(s.Kafka.Brokers) > 0 && s.Kafka.Topic == "" {
		errs = append(errs, errors.New("AUDIT_TOPIC must not be empty when KAFKA_BROKERS is set"))
	}
	return errors.Join(errs...)
}

func getEnv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def, fmt.Errorf("%s: invalid integer %q", key, v)
	}
	return n, nil
}

func getEnvDuration(key string, def time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def, fmt.Errorf("%s: invalid duration %q", key, v)
	}
	if d <= 0 {
		return def, fmt.Errorf("%s: must be positive", key)
	}
	return d, nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
