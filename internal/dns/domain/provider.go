package domain

import "context"

// Provider is a DNS host. The run only needs to read a zone and add a
// record to it; existing records are never changed or removed.
type Provider interface {
	GetDisplayName() string
	ListRecords(ctx context.Context, zone string) ([]Record, error)
	CreateRecord(ctx context.Context, zone string, spec RecordSpec) (*Record, error)
}
