package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnv_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())
	for _, key := range []string{"VERIGATE_ADDR", "VERIGATE_ENV", "EVIDENCE_TIMEOUT", "KAFKA_BROKERS", "ATTESTATION_SIGNING_KEY", "EVIDENCE_PROVIDER_MODE"} {
		t.Setenv(key, "")
	}

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, DefaultAddr, cfg.Addr)
	assert.Equal(t, DefaultEvidenceTimeout, cfg.EvidenceTimeout)
	assert.Equal(t, DefaultReportCacheTTL, cfg.ReportCacheTTL)
	assert.Equal(t, DefaultAuditTopic, cfg.Kafka.Topic)
	assert.Empty(t, cfg.Kafka.Brokers)
	assert.Equal(t, ProviderModeMock, cfg.Providers.Mode)
	assert.NotEmpty(t, cfg.Attestation.SigningKey, "development falls back to a default key")
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("VERIGATE_ADDR", ":9090")
	t.Setenv("EVIDENCE_TIMEOUT", "750ms")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("EVIDENCE_PROVIDER_MODE", "HTTP")
	t.Setenv("DOCUMENT_PROVIDER_URL", "http://documents.internal")
	t.Setenv("REDIS_POOL_SIZE", "20")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Addr)
	assert.Equal(t, 750*time.Millisecond, cfg.EvidenceTimeout)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, ProviderModeHTTP, cfg.Providers.Mode)
	assert.Equal(t, 20, cfg.Redis.PoolSize)
}

func TestFromEnv_Errors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"bad duration", map[string]string{"EVIDENCE_TIMEOUT": "soon"}, "EVIDENCE_TIMEOUT"},
		{"negative duration", map[string]string{"ATTESTATION_TTL": "-1h"}, "ATTESTATION_TTL"},
		{"bad integer", map[string]string{"REDIS_POOL_SIZE": "many"}, "REDIS_POOL_SIZE"},
		{"unknown provider mode", map[string]string{"EVIDENCE_PROVIDER_MODE": "carrier-pigeon"}, "EVIDENCE_PROVIDER_MODE"},
		{"http mode without document url", map[string]string{"EVIDENCE_PROVIDER_MODE": "http", "DOCUMENT_PROVIDER_URL": ""}, "DOCUMENT_PROVIDER_URL"},
		{"production without key", map[string]string{"VERIGATE_ENV": "production", "ATTESTATION_SIGNING_KEY": ""}, "ATTESTATION_SIGNING_KEY"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Chdir(t.TempDir())
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := FromEnv()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
