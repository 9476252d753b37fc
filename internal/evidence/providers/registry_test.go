package providers

//go:generate mockgen -source=provider.go -destination=mocks/mocks.go -package=mocks Provider

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(NewMockExternalProvider("ext-b")))
	require.NoError(t, r.Register(NewMockExternalProvider("ext-a")))
	require.NoError(t, r.Register(NewMockDocumentProvider("doc")))

	t.Run("duplicate IDs are rejected", func(t *testing.T) {
		err := r.Register(NewMockBiometricProvider("doc"))
		assert.ErrorIs(t, err, ErrDuplicateProvider)
	})

	t.Run("nil provider is rejected", func(t *testing.T) {
		assert.Error(t, r.Register(nil))
	})

	t.Run("list by type is ordered by ID", func(t *testing.T) {
		ext := r.ListByType(ProviderTypeExternal)
		require.Len(t, ext, 2)
		assert.Equal(t, "ext-a", ext[0].ID())
		assert.Equal(t, "ext-b", ext[1].ID())
		assert.Empty(t, r.ListByType(ProviderTypeBiometric))
	})

	t.Run("get by id", func(t *testing.T) {
		p, err := r.Get("doc")
		require.NoError(t, err)
		assert.Equal(t, ProviderTypeDocument, p.Capabilities().Type)

		_, err = r.Get("missing")
		assert.ErrorIs(t, err, ErrProviderNotFound)
	})

	t.Run("all is ordered by ID", func(t *testing.T) {
		ids := []string{}
		for _, p := range r.All() {
			ids = append(ids, p.ID())
		}
		assert.Equal(t, []string{"doc", "ext-a", "ext-b"}, ids)
	})
}

func TestProviderError(t *testing.T) {
	underlying := assert.AnError
	err := NewProviderError(ErrorProviderOutage, "doc", "request failed", underlying)

	assert.True(t, err.Retryable)
	assert.ErrorIs(t, err, underlying)
	assert.Contains(t, err.Error(), `evidence provider "doc": request failed (provider_outage)`)
	assert.Equal(t, ErrorProviderOutage, GetCategory(err))

	notRetryable := NewProviderError(ErrorBadData, "doc", "bad", nil)
	assert.False(t, IsRetryable(notRetryable))
	assert.Equal(t, `evidence provider "doc": bad (bad_data)`, notRetryable.Error())

	assert.Equal(t, ErrorInternal, GetCategory(assert.AnError))
	assert.False(t, IsRetryable(assert.AnError))
}

func TestErrorCategoryTraits(t *testing.T) {
	tests := []struct {
		category  ErrorCategory
		retryable bool
		unhealthy bool
	}{
		{ErrorTimeout, true, true},
		{ErrorProviderOutage, true, true},
		{ErrorRateLimited, true, true},
		{ErrorInternal, false, true},
		{ErrorCancelled, false, false},
		{ErrorBadData, false, false},
		{ErrorNotFound, false, false},
		{ErrorAuthentication, false, false},
		{ErrorContractMismatch, false, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.category), func(t *testing.T) {
			assert.Equal(t, tt.retryable, tt.category.Retryable())
			assert.Equal(t, tt.unhealthy, tt.category.Unhealthy())
		})
	}
}
