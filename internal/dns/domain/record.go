package domain

// RecordType is a DNS record type. A run only ever writes CNAMEs; A and
// AAAA are listed so existing records can be shown and filtered.
type RecordType string

const (
	RecordTypeA     RecordType = "A"
	RecordTypeAAAA  RecordType = "AAAA"
	RecordTypeCNAME RecordType = "CNAME"
)

// Record is one record as the provider reports it.
type Record struct {
	ID     string
	Domain string
	// Name is fully qualified, e.g. "app.example.com", or the bare domain
	// for a record at the apex.
	Name    string
	Type    RecordType
	Content string
	TTL     int
}

// RecordSpec describes a record to create in a zone.
type RecordSpec struct {
	// Host is the label below the zone; empty means the apex.
	Host    string
	Type    RecordType
	Content string
	// TTL in seconds; zero lets the provider choose.
	TTL int
}

// FQDN returns the record name spec produces inside zone.
func (s RecordSpec) FQDN(zone string) string {
	if s.Host == "" {
		return zone
	}
	return s.Host + "." + zone
}
