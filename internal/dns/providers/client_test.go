package providers

import (
	"context"
	"net/http"
	"testing"

	"nathanbeddoewebdev/hzdeploy/internal/dns/domain"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAPIClient_RetriesServerErrors(t *testing.T) {
	p := newMockedPorkbun(t)
	calls := 0
	httpmock.RegisterResponder(http.MethodPost, porkbunBaseURL+"/dns/retrieve/example.com",
		func(*http.Request) (*http.Response, error) {
			calls++
			if calls == 1 {
				return httpmock.NewStringResponse(http.StatusServiceUnavailable, "maintenance"), nil
			}
			return httpmock.NewJsonResponse(http.StatusOK, map[string]any{
				"status":  "SUCCESS",
				"records": []any{porkbunRecordJSON("1", "app.example.com", "CNAME", "lb.example.net", "600")},
			})
		})

	records, err := p.ListRecords(context.Background(), "example.com")
	require.NoError(t, err)
	assert.Len(t, records, 1)
	assert.Equal(t, 2, calls)
}

func TestAPIClient_GivesUpAfterMaxAttempts(t *testing.T) {
	c := newMockedCloudflare(t)
	httpmock.RegisterResponder(http.MethodGet, cloudflareBaseURL+"/zones?name=example.com&per_page=1",
		httpmock.NewStringResponder(http.StatusBadGateway, "bad gateway"))

	_, err := c.ListRecords(context.Background(), "example.com")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 502")
	assert.Equal(t, c.api.retry.MaxAttempts, httpmock.GetTotalCallCount())
}

func TestAPIClient_RateLimitIsNotRetried(t *testing.T) {
	tests := []struct {
		name string
		run  func(t *testing.T) error
	}{
		{"porkbun", func(t *testing.T) error {
			p := newMockedPorkbun(t)
			httpmock.RegisterResponder(http.MethodPost, porkbunBaseURL+"/dns/retrieve/example.com",
				httpmock.NewJsonResponderOrPanic(http.StatusTooManyRequests, map[string]any{"status": "ERROR"}))
			_, err := p.ListRecords(context.Background(), "example.com")
			return err
		}},
		{"cloudflare", func(t *testing.T) error {
			c := newMockedCloudflare(t)
			httpmock.RegisterResponder(http.MethodGet, cloudflareBaseURL+"/zones?name=example.com&per_page=1",
				httpmock.NewJsonResponderOrPanic(http.StatusTooManyRequests, map[string]any{"success": false}))
			_, err := c.ListRecords(context.Background(), "example.com")
			return err
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.run(t)
			assert.ErrorIs(t, err, domain.ErrRateLimited)
			assert.Equal(t, 1, httpmock.GetTotalCallCount())
		})
	}
}
