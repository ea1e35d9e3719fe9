package providers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sellerhub/backend/internal/domain/connection"
)

func buildGet(t *testing.T, url string) func() (*http.Request, error) {
	t.Helper()
	return func() (*http.Request, error) {
		return http.NewRequest(http.MethodGet, url, nil)
	}
}

func TestDoWithRetry_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`ok`))
	}))
	defer server.Close()

	body, err := doWithRetry(context.Background(), server.Client(), buildGet(t, server.URL))
	require.NoError(t, err)
	assert.Equal(t, "ok", string(body))
	assert.Equal(t, int32(3), calls.Load())
}

func TestDoWithRetry_RetriesRateLimits(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`ok`))
	}))
	defer server.Close()

	_, err := doWithRetry(context.Background(), server.Client(), buildGet(t, server.URL))
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestDoWithRetry_DoesNotRetryAuthFailures(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	_, err := doWithRetry(context.Background(), server.Client(), buildGet(t, server.URL))
	assert.ErrorIs(t, err, connection.ErrProviderAuthFailed)
	assert.Equal(t, int32(1), calls.Load(), "auth failures must not be retried")
}

func TestDoWithRetry_DoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer server.Close()

	_, err := doWithRetry(context.Background(), server.Client(), buildGet(t, server.URL))
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestDoWithRetry_ExhaustedReturnsLastError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	_, err := doWithRetry(context.Background(), server.Client(), buildGet(t, server.URL))
	assert.ErrorIs(t, err, connection.ErrProviderUnavailable)
}

func TestDoWithRetry_CallerCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := doWithRetry(ctx, server.Client(), buildGet(t, server.URL))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestGeneratePKCE(t *testing.T) {
	verifier, challenge, err := GeneratePKCE()
	require.NoError(t, err)

	assert.NotEmpty(t, verifier)
	assert.Equal(t, "S256", challenge.Method)
	assert.NotEqual(t, verifier, challenge.Challenge)

	// Fresh challenges every call.
	verifier2, _, err := GeneratePKCE()
	require.NoError(t, err)
	assert.NotEqual(t, verifier, verifier2)
}
