package config

import (
	"fmt"
	"strings"
)

// KeySpec describes a single configuration key.
type KeySpec struct {
	// Name is the CLI-facing key name (e.g. "server-type").
	Name string

	// Description is a short human-readable explanation shown in help text.
	Description string

	// Env is the environment variable that overrides this key at run time.
	Env string

	// Get returns the current value for this key from loaded Preferences.
	Get func(p *Preferences) string

	// Set applies a value for this key to the given Preferences (in memory
	// only; the caller is responsible for calling Save).
	Set func(p *Preferences, value string)
}

// Keys is the authoritative list of all supported configuration keys.
// To add a new option: add a field to Preferences and append a KeySpec here.
var Keys = []KeySpec{
	{
		Name:        "server-type",
		Description: "Server size tier used when SERVER_TYPE is not set",
		Env:         EnvServerType,
		Get:         func(p *Preferences) string { return p.ServerType },
		Set:         func(p *Preferences, v string) { p.ServerType = v },
	},
	{
		Name:        "image",
		Description: "OS image used when IMAGE is not set",
		Env:         EnvImage,
		Get:         func(p *Preferences) string { return p.Image },
		Set:         func(p *Preferences, v string) { p.Image = v },
	},
	{
		Name:        "location",
		Description: "Datacenter location used when LOCATION is not set",
		Env:         EnvLocation,
		Get:         func(p *Preferences) string { return p.Location },
		Set:         func(p *Preferences, v string) { p.Location = v },
	},
	{
		Name:        "remote-user",
		Description: "Login created on new servers when REMOTE_USER is not set",
		Env:         EnvRemoteUser,
		Get:         func(p *Preferences) string { return p.RemoteUser },
		Set:         func(p *Preferences, v string) { p.RemoteUser = v },
	},
	{
		Name:        "dns-provider",
		Description: "DNS provider (porkbun or cloudflare) used when DNS_PROVIDER is not set",
		Env:         EnvDNSProvider,
		Get:         func(p *Preferences) string { return p.DNSProvider },
		Set:         func(p *Preferences, v string) { p.DNSProvider = v },
	},
}

// Lookup returns the KeySpec for the given name, or nil if not found.
// The name is matched case-insensitively after trimming whitespace.
func Lookup(name string) *KeySpec {
	normalized := strings.ToLower(strings.TrimSpace(name))
	for i := range Keys {
		if Keys[i].Name == normalized {
			return &Keys[i]
		}
	}
	return nil
}

// KeyNames returns the names of all registered keys.
func KeyNames() []string {
	names := make([]string, len(Keys))
	for i, k := range Keys {
		names[i] = k.Name
	}
	return names
}

// KeysHelp builds a formatted block listing all available keys and their
// descriptions, suitable for inclusion in Cobra Long help text.
func KeysHelp() string {
	if len(Keys) == 0 {
		return ""
	}

	// Find the longest key name for alignment.
	maxLen := 0
	for _, k := range Keys {
		if len(k.Name) > maxLen {
			maxLen = len(k.Name)
		}
	}

	var b strings.Builder
	b.WriteString("Available keys:\n")
	for _, k := range Keys {
		fmt.Fprintf(&b, "  %-*s   %s\n", maxLen, k.Name, k.Description)
	}
	return b.String()
}
