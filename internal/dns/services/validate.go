package services

import (
	"fmt"
	"net"
	"strings"

	"nathanbeddoewebdev/hzdeploy/internal/dns/domain"
)

// DefaultTTL is the TTL applied when none is specified (matches Porkbun's minimum).
const DefaultTTL = 600

// validRecordTypes is the set of supported DNS record types.
var validRecordTypes = map[domain.RecordType]bool{
	domain.RecordTypeA:     true,
	domain.RecordTypeAAAA:  true,
	domain.RecordTypeCNAME: true,
}

// normalizeDomain lowercases and strips any trailing dot from a domain name.
func normalizeDomain(d string) string {
	return strings.ToLower(strings.TrimRight(strings.TrimSpace(d), "."))
}

// normalizeSubdomain strips the root domain suffix from a subdomain if the
// user accidentally passes a fully-qualified name (e.g. "www.example.com"
// when the domain is "example.com"), and lowercases the result.
func normalizeSubdomain(sub, domainName string) string {
	sub = strings.TrimSpace(sub)
	sub = strings.TrimRight(sub, ".")
	sub = strings.ToLower(sub)

	suffix := "." + domainName
	if strings.HasSuffix(sub, suffix) {
		sub = sub[:len(sub)-len(suffix)]
	}
	if sub == domainName || sub == "@" {
		sub = ""
	}

	return sub
}

// validateRecordType returns an error if t is not a supported record type.
func validateRecordType(t domain.RecordType) error {
	if !validRecordTypes[t] {
		return fmt.Errorf("%w: unsupported record type %q", domain.ErrInvalidInput, t)
	}
	return nil
}

// validateContent checks that the content value is appropriate for the record type.
func validateContent(t domain.RecordType, content string) error {
	if strings.TrimSpace(content) == "" {
		return fmt.Errorf("%w: record content cannot be empty", domain.ErrInvalidInput)
	}

	switch t {
	case domain.RecordTypeA:
		ip := net.ParseIP(content)
		if ip == nil || ip.To4() == nil {
			return fmt.Errorf("%w: A record content must be a valid IPv4 address, got %q", domain.ErrInvalidInput, content)
		}
	case domain.RecordTypeAAAA:
		ip := net.ParseIP(content)
		if ip == nil || ip.To4() != nil {
			return fmt.Errorf("%w: AAAA record content must be a valid IPv6 address, got %q", domain.ErrInvalidInput, content)
		}
	case domain.RecordTypeCNAME:
		if net.ParseIP(content) != nil {
			return fmt.Errorf("%w: CNAME record content must be a hostname, got address %q", domain.ErrInvalidInput, content)
		}
		if strings.ContainsAny(content, " /") {
			return fmt.Errorf("%w: CNAME record content %q is not a hostname", domain.ErrInvalidInput, content)
		}
	}

	return nil
}
