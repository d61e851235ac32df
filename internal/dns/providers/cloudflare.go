package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"nathanbeddoewebdev/hzdeploy/internal/dns/domain"
)

const cloudflareBaseURL = "https://api.cloudflare.com/client/v4"

var _ domain.Provider = (*CloudflareProvider)(nil)

// CloudflareProvider lists and creates records through the Cloudflare v4
// API. It needs a scoped API token with Zone:Read and DNS:Edit.
type CloudflareProvider struct {
	api *apiClient
}

// NewCloudflareProvider returns a provider authenticated with token.
func NewCloudflareProvider(token string) *CloudflareProvider {
	return &CloudflareProvider{
		api: newAPIClient("cloudflare", cloudflareBaseURL, func(req *http.Request) {
			req.Header.Set("Authorization", "Bearer "+token)
		}),
	}
}

// RegisterCloudflare registers the "cloudflare" factory.
func RegisterCloudflare() {
	Register("cloudflare", func(creds Credentials) (domain.Provider, error) {
		if creds.APIKey == "" {
			return nil, fmt.Errorf("%w: cloudflare API token not set (DNS_API_KEY or 'hzdeploy auth login cloudflare')", domain.ErrInvalidInput)
		}
		return NewCloudflareProvider(creds.APIKey), nil
	})
}

func (c *CloudflareProvider) GetDisplayName() string {
	return "Cloudflare"
}

// cfReply is the v4 envelope. TotalPages is only set on list endpoints.
type cfReply[T any] struct {
	Success    bool      `json:"success"`
	Errors     []cfError `json:"errors"`
	Result     T         `json:"result"`
	ResultInfo struct {
		TotalPages int `json:"total_pages"`
	} `json:"result_info"`
}

type cfError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type cfRecord struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Type    string `json:"type"`
	Content string `json:"content"`
	TTL     int    `json:"ttl"`
}

// cfCall sends one request and decodes the envelope into out.
func cfCall[T any](ctx context.Context, c *CloudflareProvider, method, path string, body any, out *cfReply[T]) error {
	return c.api.call(ctx, method, path, body, func(status int, data []byte) error {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("cloudflare: failed to decode response (HTTP %d): %w", status, err)
		}
		if !out.Success {
			return cloudflareError(status, out.Errors)
		}
		return nil
	})
}

// cloudflareError maps the HTTP status first and falls back to the
// documented API error codes.
func cloudflareError(status int, errs []cfError) error {
	msgs := make([]string, 0, len(errs))
	for _, e := range errs {
		msgs = append(msgs, fmt.Sprintf("[%d] %s", e.Code, e.Message))
	}
	detail := strings.Join(msgs, "; ")
	if detail == "" {
		detail = fmt.Sprintf("HTTP %d", status)
	}

	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: cloudflare: %s", domain.ErrUnauthorized, detail)
	case http.StatusNotFound:
		return fmt.Errorf("%w: cloudflare: %s", domain.ErrNotFound, detail)
	case http.StatusConflict:
		return fmt.Errorf("%w: cloudflare: %s", domain.ErrConflict, detail)
	}
	for _, e := range errs {
		switch e.Code {
		case 9109, 10000:
			return fmt.Errorf("%w: cloudflare: %s", domain.ErrUnauthorized, detail)
		case 81044:
			return fmt.Errorf("%w: cloudflare: %s", domain.ErrNotFound, detail)
		case 81053, 81057:
			return fmt.Errorf("%w: cloudflare: %s", domain.ErrConflict, detail)
		}
	}
	return fmt.Errorf("cloudflare: %s", detail)
}

func (c *CloudflareProvider) zoneID(ctx context.Context, zone string) (string, error) {
	var out cfReply[[]struct {
		ID string `json:"id"`
	}]
	if err := cfCall(ctx, c, http.MethodGet, "/zones?name="+url.QueryEscape(zone)+"&per_page=1", nil, &out); err != nil {
		return "", fmt.Errorf("look up zone %q: %w", zone, err)
	}
	if len(out.Result) == 0 {
		return "", fmt.Errorf("zone %q: %w", zone, domain.ErrNotFound)
	}
	return out.Result[0].ID, nil
}

// ListRecords returns every record in the zone, following pagination.
func (c *CloudflareProvider) ListRecords(ctx context.Context, zone string) ([]domain.Record, error) {
	id, err := c.zoneID(ctx, zone)
	if err != nil {
		return nil, err
	}

	var records []domain.Record
	for page := 1; ; page++ {
		var out cfReply[[]cfRecord]
		path := fmt.Sprintf("/zones/%s/dns_records?page=%d&per_page=100", id, page)
		if err := cfCall(ctx, c, http.MethodGet, path, nil, &out); err != nil {
			return nil, fmt.Errorf("list records for %q: %w", zone, err)
		}
		for _, r := range out.Result {
			records = append(records, fromCloudflare(zone, r))
		}
		if page >= out.ResultInfo.TotalPages {
			return records, nil
		}
	}
}

// CreateRecord creates spec in the zone. Cloudflare expects the full name.
func (c *CloudflareProvider) CreateRecord(ctx context.Context, zone string, spec domain.RecordSpec) (*domain.Record, error) {
	id, err := c.zoneID(ctx, zone)
	if err != nil {
		return nil, err
	}

	body := cfRecord{
		Name:    spec.FQDN(zone),
		Type:    string(spec.Type),
		Content: spec.Content,
		TTL:     spec.TTL,
	}
	var out cfReply[cfRecord]
	if err := cfCall(ctx, c, http.MethodPost, "/zones/"+id+"/dns_records", body, &out); err != nil {
		return nil, fmt.Errorf("create %s record for %q: %w", spec.Type, zone, err)
	}

	rec := fromCloudflare(zone, out.Result)
	return &rec, nil
}

func fromCloudflare(zone string, r cfRecord) domain.Record {
	return domain.Record{
		ID:      r.ID,
		Domain:  zone,
		Name:    r.Name,
		Type:    domain.RecordType(r.Type),
		Content: r.Content,
		TTL:     r.TTL,
	}
}
