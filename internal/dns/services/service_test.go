package services

import (
	"context"
	"errors"
	"testing"

	"nathanbeddoewebdev/hzdeploy/internal/dns/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockProvider struct {
	records        []domain.Record
	listRecordsErr error
	createErr      error

	createCalls    int
	lastSpec       domain.RecordSpec
	lastDomain     string
}

func (m *mockProvider) GetDisplayName() string { return "Mock" }

func (m *mockProvider) ListRecords(_ context.Context, d string) ([]domain.Record, error) {
	m.lastDomain = d
	return m.records, m.listRecordsErr
}

func (m *mockProvider) CreateRecord(_ context.Context, d string, spec domain.RecordSpec) (*domain.Record, error) {
	m.createCalls++
	m.lastDomain = d
	m.lastSpec = spec
	if m.createErr != nil {
		return nil, m.createErr
	}
	rec := domain.Record{ID: "new-id", Domain: d, Name: spec.FQDN(d), Type: spec.Type, Content: spec.Content, TTL: spec.TTL}
	m.records = append(m.records, rec)
	return &rec, nil
}

func TestCreateRecord_NormalisesAndDefaults(t *testing.T) {
	mock := &mockProvider{}
	svc := New(mock)

	_, err := svc.CreateRecord(context.Background(), " Example.COM. ", domain.RecordSpec{
		Host:    "WWW.example.com",
		Type:    domain.RecordTypeA,
		Content: "203.0.113.10",
	})
	require.NoError(t, err)

	assert.Equal(t, "example.com", mock.lastDomain)
	assert.Equal(t, "www", mock.lastSpec.Host)
	assert.Equal(t, DefaultTTL, mock.lastSpec.TTL)
}

func TestCreateRecord_Validation(t *testing.T) {
	tests := []struct {
		name   string
		domain string
		spec   domain.RecordSpec
	}{
		{"empty domain", "", domain.RecordSpec{Type: domain.RecordTypeA, Content: "203.0.113.10"}},
		{"unsupported type", "example.com", domain.RecordSpec{Type: "MX", Content: "mail.example.com"}},
		{"empty content", "example.com", domain.RecordSpec{Type: domain.RecordTypeCNAME}},
		{"bad A", "example.com", domain.RecordSpec{Type: domain.RecordTypeA, Content: "2001:db8::1"}},
		{"bad AAAA", "example.com", domain.RecordSpec{Type: domain.RecordTypeAAAA, Content: "203.0.113.10"}},
		{"CNAME to IP", "example.com", domain.RecordSpec{Type: domain.RecordTypeCNAME, Content: "203.0.113.10"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := &mockProvider{}
			_, err := New(mock).CreateRecord(context.Background(), tt.domain, tt.spec)
			assert.ErrorIs(t, err, domain.ErrInvalidInput)
			assert.Zero(t, mock.createCalls)
		})
	}
}

func TestEnsureCNAME_Creates(t *testing.T) {
	mock := &mockProvider{}
	svc := New(mock)

	rec, created, err := svc.EnsureCNAME(context.Background(), "example.com", "app", "lb.example.net.", 300)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "app.example.com", rec.Name)
	assert.Equal(t, domain.RecordSpec{Host: "app", Type: domain.RecordTypeCNAME, Content: "lb.example.net", TTL: 300}, mock.lastSpec)
}

func TestEnsureCNAME_ReusesMatchingRecord(t *testing.T) {
	mock := &mockProvider{records: []domain.Record{
		{ID: "7", Name: "app.example.com", Type: domain.RecordTypeCNAME, Content: "LB.example.net."},
	}}
	svc := New(mock)

	for range 2 {
		rec, created, err := svc.EnsureCNAME(context.Background(), "example.com", "app", "lb.example.net", 600)
		require.NoError(t, err)
		assert.False(t, created)
		assert.Equal(t, "7", rec.ID)
	}
	assert.Zero(t, mock.createCalls)
}

func TestEnsureCNAME_ConflictingTarget(t *testing.T) {
	mock := &mockProvider{records: []domain.Record{
		{ID: "7", Name: "app.example.com", Type: domain.RecordTypeCNAME, Content: "old.example.net"},
	}}

	_, _, err := New(mock).EnsureCNAME(context.Background(), "example.com", "app", "lb.example.net", 600)
	assert.ErrorIs(t, err, domain.ErrConflict)
	assert.Zero(t, mock.createCalls)
}

func TestEnsureCNAME_ListError(t *testing.T) {
	listErr := errors.New("boom")
	mock := &mockProvider{listRecordsErr: listErr}

	_, _, err := New(mock).EnsureCNAME(context.Background(), "example.com", "app", "lb.example.net", 600)
	assert.ErrorIs(t, err, listErr)
}

func TestNormalizeSubdomain(t *testing.T) {
	tests := map[string]string{
		"www":              "www",
		"WWW.Example.com.": "www",
		"example.com":      "",
		"@":                "",
		"a.b":              "a.b",
	}
	for in, want := range tests {
		if got := normalizeSubdomain(in, "example.com"); got != want {
			t.Errorf("normalizeSubdomain(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestListRecords_FiltersByType(t *testing.T) {
	m := &mockProvider{records: []domain.Record{
		{ID: "1", Name: "example.com", Type: domain.RecordTypeA, Content: "203.0.113.10"},
		{ID: "2", Name: "www.example.com", Type: domain.RecordTypeCNAME, Content: "example.com"},
	}}
	svc := New(m)

	all, err := svc.ListRecords(context.Background(), " Example.COM. ", "")
	require.NoError(t, err)
	assert.Len(t, all, 2)
	assert.Equal(t, "example.com", m.lastDomain)

	cnames, err := svc.ListRecords(context.Background(), "example.com", "cname")
	require.NoError(t, err)
	require.Len(t, cnames, 1)
	assert.Equal(t, "2", cnames[0].ID)
	assert.Len(t, m.records, 2, "provider data must not be modified")

	_, err = svc.ListRecords(context.Background(), "  ", "")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
