package providers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sellerhub/backend/internal/domain/connection"
)

// maxResponseSize is the maximum allowed response size from a provider API (10MB)
const maxResponseSize = 10 * 1024 * 1024

const (
	defaultMaxAttempts = 3
	defaultBaseBackoff = 250 * time.Millisecond
)

// httpStatusError carries a non-2xx response so callers can inspect the body
type httpStatusError struct {
	status int
	body   []byte
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("provider returned HTTP %d", e.status)
}

// doWithRetry executes the request produced by build, retrying transient
// failures (timeouts, 429, 5xx) with exponential backoff. Authentication
// failures and other 4xx responses are never retried, and neither is a
// request aborted by the caller's context.
//
// build is called once per attempt because an *http.Request body cannot be
// replayed after a failed send.
func doWithRetry(ctx context.Context, client *http.Client, build func() (*http.Request, error)) ([]byte, error) {
	var lastErr error

	for attempt := 0; attempt < defaultMaxAttempts; attempt++ {
		if attempt > 0 {
			backoff := defaultBaseBackoff << (attempt - 1)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}

		req, err := build()
		if err != nil {
			return nil, err
		}

		body, err := doOnce(client, req.WithContext(ctx))
		if err == nil {
			return body, nil
		}

		// Caller cancellation is not a provider failure.
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		if !isRetryable(err) {
			return nil, err
		}
		lastErr = err
	}

	return nil, lastErr
}

// doOnce sends one request and classifies the outcome
func doOnce(client *http.Client, req *http.Request) ([]byte, error) {
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", connection.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %v", connection.ErrProviderUnavailable, err)
	}

	switch {
	case resp.StatusCode < 300:
		return body, nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%w: HTTP %d", connection.ErrProviderAuthFailed, resp.StatusCode)
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("%w: HTTP 429", connection.ErrProviderRateLimited)
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: HTTP %d", connection.ErrProviderUnavailable, resp.StatusCode)
	default:
		return nil, &httpStatusError{status: resp.StatusCode, body: body}
	}
}

// isRetryable reports whether an error may succeed on a fresh attempt
func isRetryable(err error) bool {
	if errors.Is(err, connection.ErrProviderRateLimited) {
		return true
	}
	if errors.Is(err, connection.ErrProviderAuthFailed) {
		return false
	}
	if errors.Is(err, connection.ErrProviderUnavailable) {
		return true
	}
	var statusErr *httpStatusError
	return !errors.As(err, &statusErr)
}
