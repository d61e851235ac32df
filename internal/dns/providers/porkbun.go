package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"nathanbeddoewebdev/hzdeploy/internal/dns/domain"
)

const porkbunBaseURL = "https://api.porkbun.com/api/json/v3"

var _ domain.Provider = (*PorkbunProvider)(nil)

// PorkbunProvider lists and creates records through the Porkbun v3 API.
// Porkbun authenticates by key pair inside every JSON body.
type PorkbunProvider struct {
	apiKey    string
	secretKey string
	api       *apiClient
}

// NewPorkbunProvider returns a provider for the given key pair.
func NewPorkbunProvider(apiKey, secretKey string) *PorkbunProvider {
	return &PorkbunProvider{
		apiKey:    apiKey,
		secretKey: secretKey,
		api:       newAPIClient("porkbun", porkbunBaseURL, nil),
	}
}

// RegisterPorkbun registers the "porkbun" factory. It needs both halves of
// the key pair.
func RegisterPorkbun() {
	Register("porkbun", func(creds Credentials) (domain.Provider, error) {
		if creds.APIKey == "" {
			return nil, fmt.Errorf("%w: porkbun api key not set (DNS_API_KEY or 'hzdeploy auth login porkbun-apikey')", domain.ErrInvalidInput)
		}
		if creds.Secret == "" {
			return nil, fmt.Errorf("%w: porkbun secret key not set (DNS_API_SECRET or 'hzdeploy auth login porkbun-secretapikey')", domain.ErrInvalidInput)
		}
		return NewPorkbunProvider(creds.APIKey, creds.Secret), nil
	})
}

func (p *PorkbunProvider) GetDisplayName() string {
	return "Porkbun"
}

type porkbunKeys struct {
	APIKey    string `json:"apikey"`
	SecretKey string `json:"secretapikey"`
}

type porkbunRecord struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Type    string `json:"type"`
	Content string `json:"content"`
	TTL     string `json:"ttl"`
}

// porkbunReply covers both endpoints a run uses: retrieve fills Records,
// create fills ID. Porkbun reports failures as status "ERROR" with any
// HTTP code, so the body is decoded before the status is trusted.
type porkbunReply struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Records []porkbunRecord `json:"records"`
	ID      json.Number     `json:"id"`
}

func (p *PorkbunProvider) keys() porkbunKeys {
	return porkbunKeys{APIKey: p.apiKey, SecretKey: p.secretKey}
}

func (p *PorkbunProvider) post(ctx context.Context, path string, body any) (*porkbunReply, error) {
	var out porkbunReply
	err := p.api.call(ctx, http.MethodPost, path, body, func(status int, data []byte) error {
		if err := json.Unmarshal(data, &out); err != nil {
			return fmt.Errorf("porkbun: failed to decode response (HTTP %d): %w", status, err)
		}
		if out.Status != "SUCCESS" {
			return porkbunError(out.Message)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// porkbunError maps Porkbun's free-text messages onto the shared sentinels.
func porkbunError(message string) error {
	if message == "" {
		message = "request was not successful"
	}
	msg := strings.ToLower(message)
	switch {
	case strings.Contains(msg, "api key"), strings.Contains(msg, "unauthorized"), strings.Contains(msg, "not opted in"):
		return fmt.Errorf("%w: porkbun: %s", domain.ErrUnauthorized, message)
	case strings.Contains(msg, "invalid domain"), strings.Contains(msg, "not found"), strings.Contains(msg, "does not exist"):
		return fmt.Errorf("%w: porkbun: %s", domain.ErrNotFound, message)
	case strings.Contains(msg, "rate limit"), strings.Contains(msg, "too many"):
		return fmt.Errorf("%w: porkbun: %s", domain.ErrRateLimited, message)
	case strings.Contains(msg, "already exists"), strings.Contains(msg, "duplicate"):
		return fmt.Errorf("%w: porkbun: %s", domain.ErrConflict, message)
	}
	return fmt.Errorf("porkbun: %s", message)
}

// ListRecords returns every record in the zone.
func (p *PorkbunProvider) ListRecords(ctx context.Context, zone string) ([]domain.Record, error) {
	out, err := p.post(ctx, "/dns/retrieve/"+zone, p.keys())
	if err != nil {
		return nil, fmt.Errorf("list records for %q: %w", zone, err)
	}

	records := make([]domain.Record, 0, len(out.Records))
	for _, r := range out.Records {
		ttl, _ := strconv.Atoi(r.TTL)
		records = append(records, domain.Record{
			ID:      r.ID,
			Domain:  zone,
			Name:    r.Name,
			Type:    domain.RecordType(r.Type),
			Content: r.Content,
			TTL:     ttl,
		})
	}
	return records, nil
}

// CreateRecord creates spec in the zone. Porkbun answers with the new id
// only, so the record is assembled from spec.
func (p *PorkbunProvider) CreateRecord(ctx context.Context, zone string, spec domain.RecordSpec) (*domain.Record, error) {
	body := struct {
		porkbunKeys
		Name    string `json:"name,omitempty"`
		Type    string `json:"type"`
		Content string `json:"content"`
		TTL     string `json:"ttl,omitempty"`
	}{
		porkbunKeys: p.keys(),
		Name:        spec.Host,
		Type:        string(spec.Type),
		Content:     spec.Content,
	}
	if spec.TTL > 0 {
		body.TTL = strconv.Itoa(spec.TTL)
	}

	out, err := p.post(ctx, "/dns/create/"+zone, body)
	if err != nil {
		return nil, fmt.Errorf("create %s record for %q: %w", spec.Type, zone, err)
	}
	if out.ID == "" {
		return nil, fmt.Errorf("create %s record for %q: porkbun returned no record id", spec.Type, zone)
	}

	return &domain.Record{
		ID:      out.ID.String(),
		Domain:  zone,
		Name:    spec.FQDN(zone),
		Type:    spec.Type,
		Content: spec.Content,
		TTL:     spec.TTL,
	}, nil
}
