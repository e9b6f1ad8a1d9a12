package providerrouter

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAuthedRequest(t *testing.T) *http.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/v1/responses", nil)
	req.Header.Set("Authorization", "Bearer test-token")
	return req
}

func TestRouter_ResolveSplitsCommaSeparatedBaseURLOverride(t *testing.T) {
	r := New("https://a.example/v1, https://b.example/v1", nil)
	req := newAuthedRequest(t)

	seen := make(map[string]bool)
	for i := 0; i < 4; i++ {
		resolution, err := r.Resolve(req, "gpt-4o")
		require.NoError(t, err)
		seen[resolution.BaseURL] = true
	}

	assert.True(t, seen["https://a.example/v1"])
	assert.True(t, seen["https://b.example/v1"])
}

func TestRouter_ResolveSkipsUnhealthyOverrideEndpoint(t *testing.T) {
	r := New("https://a.example/v1,https://b.example/v1", nil)
	req := newAuthedRequest(t)

	for i := 0; i < DefaultBreakerConfig().FailureThreshold; i++ {
		r.Health().RecordFailure("https://a.example/v1")
	}
	require.False(t, r.Health().IsHealthy("https://a.example/v1"))

	for i := 0; i < 4; i++ {
		resolution, err := r.Resolve(req, "gpt-4o")
		require.NoError(t, err)
		assert.Equal(t, "https://b.example/v1", resolution.BaseURL)
	}
}

func TestRouter_ResolveWithoutOverrideUsesProviderTable(t *testing.T) {
	r := New("", nil)
	req := newAuthedRequest(t)

	resolution, err := r.Resolve(req, "anthropic@claude-3-5-sonnet")
	require.NoError(t, err)
	assert.Equal(t, "https://api.anthropic.com/v1", resolution.BaseURL)
	assert.Equal(t, "anthropic", resolution.ProviderTag)
	assert.Equal(t, "claude-3-5-sonnet", resolution.Model)
}
