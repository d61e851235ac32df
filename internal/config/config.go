package config

import (
	"fmt"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"nathanbeddoewebdev/hzdeploy/internal/domain"
	"nathanbeddoewebdev/hzdeploy/internal/services/auth"
	"nathanbeddoewebdev/hzdeploy/internal/util"

	"github.com/rs/zerolog/log"
)

// Environment variables read by Load.
const (
	EnvToken          = "HCLOUD_TOKEN"
	EnvServerName     = "SERVER_NAME"
	EnvServerType     = "SERVER_TYPE"
	EnvImage          = "IMAGE"
	EnvLocation       = "LOCATION"
	EnvSSHKeyName     = "SSH_KEY_NAME"
	EnvPublicKeyPath  = "SSH_PUBLIC_KEY_PATH"
	EnvPrivateKeyPath = "SSH_PRIVATE_KEY_PATH"
	EnvKnownHostsPath = "KNOWN_HOSTS_PATH"
	EnvRemoteUser     = "REMOTE_USER"
	EnvAllowedPorts   = "ALLOWED_PORTS"
	EnvExtraPackages  = "EXTRA_PACKAGES"
	EnvCopySource     = "COPY_SOURCE_PATH"
	EnvStartupScript  = "STARTUP_SCRIPT_PATH"
	EnvWaitTimeout    = "WAIT_TIMEOUT_SECONDS"
	EnvFirewallIDs    = "FIREWALL_IDS"
	EnvFirewallName   = "FIREWALL_NAME"
	EnvDeployPorts    = "DEPLOY_PORTS"
	EnvDNSProvider    = "DNS_PROVIDER"
	EnvDNSDomain      = "DNS_DOMAIN"
	EnvDNSHost        = "DNS_RECORD_HOST"
	EnvDNSTarget      = "DNS_RECORD_TARGET"
	EnvDNSTTL         = "DNS_TTL"
	EnvDNSAPIKey      = "DNS_API_KEY"
	EnvDNSAPISecret   = "DNS_API_SECRET"
)

// Built-in defaults.
const (
	DefaultServerType  = "cx22"
	DefaultImage       = "ubuntu-24.04"
	DefaultLocation    = "nbg1"
	DefaultRemoteUser  = "deploy"
	DefaultAllowedPort = "22"
	DefaultDeployPorts = "22,80,443"
	DefaultWaitTimeout = 300 * time.Second
	DefaultDNSProvider = "porkbun"
	DefaultDNSTTL      = 600

	// CloudProvider is the provider name the API token is stored under.
	CloudProvider = "hetzner"
)

// LookupFunc reports the value of a setting and whether it is set.
// os.LookupEnv satisfies it.
type LookupFunc func(key string) (string, bool)

// Sources are the inputs Load layers into a Config.
type Sources struct {
	// Lookup reads environment-style settings. Required.
	Lookup LookupFunc
	// Prefs are the persisted preferences. Nil means none.
	Prefs *Preferences
	// Store provides credentials not found through Lookup. Nil means none.
	Store auth.Store
	// HomeDir anchors the default SSH paths.
	HomeDir string
	// Hostname is the default SSH key name.
	Hostname string
	// Now stamps the default server name.
	Now time.Time
}

// Server identifies the server a run creates or targets.
type Server struct {
	Name     string
	Type     string
	Image    string
	Location string
}

// SSH describes the local key pair and host trust store.
type SSH struct {
	KeyName        string
	PublicKeyPath  string
	PrivateKeyPath string
	KnownHostsPath string
}

// DNS describes the optional CNAME record registered after boot.
type DNS struct {
	Provider  string
	Domain    string
	Host      string
	Target    string
	TTL       int
	APIKey    string
	APISecret string
}

// Requested reports whether any record field is set.
func (d DNS) Requested() bool {
	return d.Domain != "" || d.Host != "" || d.Target != ""
}

// Missing lists the names of the unset settings a record needs. The
// result is empty when the record is fully specified.
func (d DNS) Missing() []string {
	var missing []string
	if d.Domain == "" {
		missing = append(missing, EnvDNSDomain)
	}
	if d.Host == "" {
		missing = append(missing, EnvDNSHost)
	}
	if d.Target == "" {
		missing = append(missing, EnvDNSTarget)
	}
	if d.APIKey == "" {
		missing = append(missing, EnvDNSAPIKey)
	}
	if d.Provider == "porkbun" && d.APISecret == "" {
		missing = append(missing, EnvDNSAPISecret)
	}
	return missing
}

// Config is the resolved settings of one invocation. It is built once by
// Load and never mutated; the With methods return modified copies.
type Config struct {
	token         string
	server        Server
	ssh           SSH
	remoteUser    string
	allowedPorts  []string
	extraPackages []string
	copySource    string
	startupScript string
	waitTimeout   time.Duration
	firewallIDs   []string
	firewallName  string
	deployPorts   []string
	dns           DNS
}

// Load builds a Config from defaults, preferences, Lookup and the
// credential store, in increasing order of precedence except for the
// store, which is only consulted when Lookup has no credential.
func Load(src Sources) (Config, error) {
	if src.Lookup == nil {
		return Config{}, fmt.Errorf("config: lookup function is required")
	}
	prefs := src.Prefs
	if prefs == nil {
		prefs = &Preferences{}
	}
	get := func(key, fallback string) string {
		if v, ok := src.Lookup(key); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
		return fallback
	}
	pick := func(values ...string) string {
		for _, v := range values {
			if v != "" {
				return v
			}
		}
		return ""
	}

	now := src.Now
	if now.IsZero() {
		now = time.Now()
	}

	cfg := Config{
		token: get(EnvToken, ""),
		server: Server{
			Name:     get(EnvServerName, "server-"+now.Format("20060102-150405")),
			Type:     get(EnvServerType, pick(prefs.ServerType, DefaultServerType)),
			Image:    get(EnvImage, pick(prefs.Image, DefaultImage)),
			Location: get(EnvLocation, pick(prefs.Location, DefaultLocation)),
		},
		remoteUser:    get(EnvRemoteUser, pick(prefs.RemoteUser, DefaultRemoteUser)),
		allowedPorts:  util.SplitList(get(EnvAllowedPorts, DefaultAllowedPort)),
		extraPackages: util.SplitList(get(EnvExtraPackages, "")),
		copySource:    expandHome(get(EnvCopySource, ""), src.HomeDir),
		startupScript: expandHome(get(EnvStartupScript, ""), src.HomeDir),
		firewallIDs:   util.SplitList(get(EnvFirewallIDs, "")),
		firewallName:  get(EnvFirewallName, ""),
		deployPorts:   util.SplitList(get(EnvDeployPorts, DefaultDeployPorts)),
	}

	publicKey := expandHome(get(EnvPublicKeyPath, filepath.Join(src.HomeDir, ".ssh", "id_ed25519.pub")), src.HomeDir)
	cfg.ssh = SSH{
		KeyName:        get(EnvSSHKeyName, src.Hostname),
		PublicKeyPath:  publicKey,
		PrivateKeyPath: expandHome(get(EnvPrivateKeyPath, strings.TrimSuffix(publicKey, ".pub")), src.HomeDir),
		KnownHostsPath: expandHome(get(EnvKnownHostsPath, filepath.Join(src.HomeDir, ".ssh", "known_hosts")), src.HomeDir),
	}

	timeout := DefaultWaitTimeout
	if raw := get(EnvWaitTimeout, ""); raw != "" {
		secs, err := strconv.Atoi(raw)
		if err != nil || secs <= 0 {
			return Config{}, fmt.Errorf("%w: %s must be a positive number of seconds, got %q", domain.ErrInvalidInput, EnvWaitTimeout, raw)
		}
		timeout = time.Duration(secs) * time.Second
	}
	cfg.waitTimeout = timeout

	dns := DNS{
		Provider:  util.NormalizeKey(get(EnvDNSProvider, pick(prefs.DNSProvider, DefaultDNSProvider))),
		Domain:    get(EnvDNSDomain, ""),
		Host:      get(EnvDNSHost, ""),
		Target:    get(EnvDNSTarget, ""),
		TTL:       DefaultDNSTTL,
		APIKey:    get(EnvDNSAPIKey, ""),
		APISecret: get(EnvDNSAPISecret, ""),
	}
	if raw := get(EnvDNSTTL, ""); raw != "" {
		ttl, err := strconv.Atoi(raw)
		if err != nil || ttl <= 0 {
			return Config{}, fmt.Errorf("%w: %s must be a positive integer, got %q", domain.ErrInvalidInput, EnvDNSTTL, raw)
		}
		dns.TTL = ttl
	}

	if src.Store != nil {
		if cfg.token == "" {
			cfg.token = storedToken(src.Store, CloudProvider)
		}
		if dns.APIKey == "" {
			dns.APIKey = storedToken(src.Store, dnsKeyEntry(dns.Provider))
		}
		if dns.APISecret == "" && dns.Provider == "porkbun" {
			dns.APISecret = storedToken(src.Store, EntryPorkbunSecret)
		}
	}
	cfg.dns = dns

	return cfg, nil
}

// dnsKeyEntry returns the credential store entry holding the API key of
// the named DNS provider.
func dnsKeyEntry(provider string) string {
	if provider == "porkbun" {
		return EntryPorkbunKey
	}
	return provider
}

func storedToken(store auth.Store, name string) string {
	token, _, err := auth.Resolve(store, auth.Entry{Name: name}, nil)
	if err != nil {
		log.Debug().Err(err).Str("entry", name).Msg("credential store lookup failed")
	}
	return token
}

func expandHome(path, home string) string {
	if home == "" {
		return path
	}
	if path == "~" {
		return home
	}
	if rest, ok := strings.CutPrefix(path, "~/"); ok {
		return filepath.Join(home, rest)
	}
	return path
}

// RequireToken returns the API token, or ErrInvalidInput when none is
// configured. Entry points call it before building any API client.
func (c Config) RequireToken() (string, error) {
	if c.token == "" {
		return "", fmt.Errorf("%w: %s is not set and no token is stored (run 'hzdeploy auth login')", domain.ErrInvalidInput, EnvToken)
	}
	return c.token, nil
}

func (c Config) Server() Server { return c.server }
func (c Config) SSH() SSH { return c.ssh }
func (c Config) RemoteUser() string { return c.remoteUser }
func (c Config) AllowedPorts() []string { return slices.Clone(c.allowedPorts) }
func (c Config) ExtraPackages() []string { return slices.Clone(c.extraPackages) }
func (c Config) CopySource() string { return c.copySource }
func (c Config) StartupScript() string { return c.startupScript }
func (c Config) WaitTimeout() time.Duration { return c.waitTimeout }
func (c Config) FirewallIDs() []string { return slices.Clone(c.firewallIDs) }
func (c Config) FirewallName() string { return c.firewallName }
func (c Config) DeployPorts() []string { return slices.Clone(c.deployPorts) }
func (c Config) DNS() DNS { return c.dns }

// WithServerName returns a copy with the server name replaced. An empty
// name leaves the copy unchanged.
func (c Config) WithServerName(name string) Config {
	if name = strings.TrimSpace(name); name != "" {
		c.server.Name = name
	}
	return c
}

// WithWaitTimeout returns a copy with the wait budget replaced. A
// non-positive duration leaves the copy unchanged.
func (c Config) WithWaitTimeout(d time.Duration) Config {
	if d > 0 {
		c.waitTimeout = d
	}
	return c
}

// WithRemoteUser returns a copy with the remote login replaced. An empty
// name leaves the copy unchanged.
func (c Config) WithRemoteUser(user string) Config {
	if user = strings.TrimSpace(user); user != "" {
		c.remoteUser = user
	}
	return c
}
