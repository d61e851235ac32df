// Package services provides the DNS service layer.
//
// The Service type wraps a domain.Provider and adds input normalisation,
// validation, and default value application before delegating to the provider.
package services

import (
	"context"
	"fmt"
	"strings"

	"nathanbeddoewebdev/hzdeploy/internal/dns/domain"
	"nathanbeddoewebdev/hzdeploy/internal/resolver"
)

// Service is the DNS business logic layer.
type Service struct {
	provider domain.Provider
}

// New returns a Service backed by the given provider.
func New(provider domain.Provider) *Service {
	return &Service{provider: provider}
}

// ProviderName returns the display name of the underlying provider.
func (s *Service) ProviderName() string {
	return s.provider.GetDisplayName()
}

// ListRecords returns the records of domainName, optionally restricted to
// one record type. An empty recordType returns every record.
func (s *Service) ListRecords(ctx context.Context, domainName string, recordType domain.RecordType) ([]domain.Record, error) {
	domainName = normalizeDomain(domainName)
	if domainName == "" {
		return nil, fmt.Errorf("%w: domain name is required", domain.ErrInvalidInput)
	}

	records, err := s.provider.ListRecords(ctx, domainName)
	if err != nil {
		return nil, err
	}
	if recordType == "" {
		return records, nil
	}

	var filtered []domain.Record
	for _, r := range records {
		if strings.EqualFold(string(r.Type), string(recordType)) {
			filtered = append(filtered, r)
		}
	}
	return filtered, nil
}

// CreateRecord creates a new DNS record after normalising and validating spec.
func (s *Service) CreateRecord(ctx context.Context, domainName string, spec domain.RecordSpec) (*domain.Record, error) {
	domainName = normalizeDomain(domainName)
	if domainName == "" {
		return nil, fmt.Errorf("%w: domain name is required", domain.ErrInvalidInput)
	}

	if err := validateRecordType(spec.Type); err != nil {
		return nil, err
	}
	if err := validateContent(spec.Type, spec.Content); err != nil {
		return nil, err
	}

	if spec.TTL <= 0 {
		spec.TTL = DefaultTTL
	}
	spec.Host = normalizeSubdomain(spec.Host, domainName)

	return s.provider.CreateRecord(ctx, domainName, spec)
}

// EnsureCNAME points host.domainName at target. An existing CNAME with the
// same target is returned as is; one with a different target is reported
// as domain.ErrConflict rather than overwritten. The boolean reports
// whether a record was created.
func (s *Service) EnsureCNAME(ctx context.Context, domainName, host, target string, ttl int) (*domain.Record, bool, error) {
	domainName = normalizeDomain(domainName)
	if domainName == "" {
		return nil, false, fmt.Errorf("%w: domain name is required", domain.ErrInvalidInput)
	}
	host = normalizeSubdomain(host, domainName)
	target = normalizeDomain(target)
	if err := validateContent(domain.RecordTypeCNAME, target); err != nil {
		return nil, false, err
	}

	fqdn := domain.RecordSpec{Host: host}.FQDN(domainName)

	rec, created, err := resolver.Resolve(ctx,
		func(ctx context.Context) ([]domain.Record, error) {
			return s.provider.ListRecords(ctx, domainName)
		},
		func(r domain.Record) bool {
			return r.Type == domain.RecordTypeCNAME && normalizeDomain(r.Name) == fqdn
		},
		func(ctx context.Context) (domain.Record, error) {
			created, err := s.CreateRecord(ctx, domainName, domain.RecordSpec{
				Host:    host,
				Type:    domain.RecordTypeCNAME,
				Content: target,
				TTL:     ttl,
			})
			if err != nil {
				return domain.Record{}, err
			}
			return *created, nil
		},
	)
	if err != nil {
		return nil, false, err
	}

	if !created && normalizeDomain(rec.Content) != target {
		return &rec, false, fmt.Errorf("%w: %s already points at %s", domain.ErrConflict, fqdn, strings.TrimRight(rec.Content, "."))
	}
	return &rec, created, nil
}
