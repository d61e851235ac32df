package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"nathanbeddoewebdev/hzdeploy/internal/dns/domain"
	"nathanbeddoewebdev/hzdeploy/internal/retry"
)

const requestTimeout = 30 * time.Second

// serverError is a 5xx answer. The DNS APIs return these during
// maintenance windows, so they are retried like network errors.
type serverError struct {
	service string
	status  int
}

func (e *serverError) Error() string {
	return fmt.Sprintf("%s: server error (HTTP %d)", e.service, e.status)
}

// isRetryable extends retry.IsRetryable with 5xx answers. Rate limits stay
// unretried so a throttled run fails fast with ErrRateLimited.
func isRetryable(err error) bool {
	var se *serverError
	if errors.As(err, &se) {
		return true
	}
	return retry.IsRetryable(err)
}

// apiClient sends JSON requests to one DNS API. Every call goes through
// retry.Do; the provider decodes the body and maps its own error shapes.
type apiClient struct {
	service   string
	baseURL   string
	http      *http.Client
	retry     retry.Config
	authorize func(*http.Request)
}

func newAPIClient(service, baseURL string, authorize func(*http.Request)) *apiClient {
	return &apiClient{
		service:   service,
		baseURL:   baseURL,
		http:      &http.Client{Timeout: requestTimeout},
		retry:     retry.DefaultConfig(),
		authorize: authorize,
	}
}

// call sends one request and hands the status and raw body to decode.
// A 429 is reported as ErrRateLimited before decode runs.
func (c *apiClient) call(ctx context.Context, method, path string, body any, decode func(status int, data []byte) error) error {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return fmt.Errorf("%s: failed to encode request: %w", c.service, err)
		}
	}

	return retry.Do(ctx, c.retry, isRetryable, func() error {
		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
		if err != nil {
			return retry.Permanent(fmt.Errorf("%s: failed to build request: %w", c.service, err))
		}
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if c.authorize != nil {
			c.authorize(req)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return fmt.Errorf("%s: request failed: %w", c.service, err)
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("%s: failed to read response: %w", c.service, err)
		}

		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			return fmt.Errorf("%w: %s throttled the request", domain.ErrRateLimited, c.service)
		case resp.StatusCode >= http.StatusInternalServerError:
			return &serverError{service: c.service, status: resp.StatusCode}
		}
		return decode(resp.StatusCode, data)
	})
}
