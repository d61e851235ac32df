package config

import (
	"strings"

	"nathanbeddoewebdev/hzdeploy/internal/services/auth"
)

// Credential store entry names.
const (
	EntryPorkbunKey    = "porkbun-apikey"
	EntryPorkbunSecret = "porkbun-secretapikey"
	EntryCloudflare    = "cloudflare"
)

// CredentialEntry is a secret that may be kept in the credential store
// instead of the environment.
type CredentialEntry struct {
	Name        string
	Description string
	// Env is the variable that takes precedence over the stored value.
	Env string
}

// CredentialEntries lists every entry Load consults.
var CredentialEntries = []CredentialEntry{
	{Name: CloudProvider, Description: "Hetzner Cloud API token", Env: EnvToken},
	{Name: EntryPorkbunKey, Description: "Porkbun API key", Env: EnvDNSAPIKey},
	{Name: EntryPorkbunSecret, Description: "Porkbun secret API key", Env: EnvDNSAPISecret},
	{Name: EntryCloudflare, Description: "Cloudflare API token", Env: EnvDNSAPIKey},
}

// AuthEntry returns the entry in the form auth.Resolve takes.
func (e CredentialEntry) AuthEntry() auth.Entry {
	return auth.Entry{Name: e.Name, Env: e.Env}
}

// LookupCredential returns the entry with the given name, or nil.
func LookupCredential(name string) *CredentialEntry {
	name = strings.ToLower(strings.TrimSpace(name))
	for i := range CredentialEntries {
		if CredentialEntries[i].Name == name {
			return &CredentialEntries[i]
		}
	}
	return nil
}

// CredentialNames returns the names of all credential entries.
func CredentialNames() []string {
	names := make([]string, len(CredentialEntries))
	for i, e := range CredentialEntries {
		names[i] = e.Name
	}
	return names
}
