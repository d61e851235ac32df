package provision

import (
	"fmt"
	"os"
	"slices"
	"time"

	"nathanbeddoewebdev/hzdeploy/internal/cloudinit"
	"nathanbeddoewebdev/hzdeploy/internal/domain"
	"nathanbeddoewebdev/hzdeploy/internal/resolver"
	"nathanbeddoewebdev/hzdeploy/internal/sshkeys"
	"nathanbeddoewebdev/hzdeploy/internal/util"
)

// Request is everything one provisioning run needs.
type Request struct {
	ServerName string
	ServerType string
	Image      string
	Location   string

	SSHKeyName    string
	PublicKeyPath string
	RemoteUser    string

	// AllowedPorts open the host firewall inside the guest.
	AllowedPorts  []string
	ExtraPackages []string

	// FirewallIDs are attached at creation as-is.
	FirewallIDs []string
	// FirewallName, when set, is resolved (or created with one rule per
	// FirewallPorts entry) and attached alongside FirewallIDs.
	FirewallName  string
	FirewallPorts []string

	// CopySource is a local path copied into the remote home directory.
	CopySource string
	// StartupScript is a local script run once with sudo after the copy.
	StartupScript string

	// DNS is registered best-effort once the server is reachable.
	DNS *DNSRecord

	// WaitTimeout bounds action polling and the reachability wait, each
	// on its own.
	WaitTimeout time.Duration
}

// DNSRecord is the CNAME registered for the new server.
type DNSRecord struct {
	Domain string
	Host   string
	Target string
	TTL    int
}

// prepared holds the outcome of the pure checks done before any network
// call.
type prepared struct {
	publicKey string
	document  *cloudinit.Document
}

func (o *Orchestrator) prepare(req Request) (*prepared, error) {
	if err := util.ValidateServerName(req.ServerName); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidInput, err)
	}
	if req.ServerType == "" || req.Image == "" {
		return nil, fmt.Errorf("%w: server type and image are required", domain.ErrInvalidInput)
	}
	if req.SSHKeyName == "" {
		return nil, fmt.Errorf("%w: SSH key name is required", domain.ErrInvalidInput)
	}
	if req.WaitTimeout <= 0 {
		return nil, fmt.Errorf("%w: wait timeout must be positive", domain.ErrInvalidInput)
	}

	publicKey, err := sshkeys.ReadAndValidatePublicKey(req.PublicKeyPath)
	if err != nil {
		return nil, err
	}

	doc, err := cloudinit.Build(cloudinit.Params{
		PublicKey:     publicKey,
		Username:      req.RemoteUser,
		AllowedPorts:  req.AllowedPorts,
		ExtraPackages: req.ExtraPackages,
	})
	if err != nil {
		return nil, err
	}
	if !doc.AllowsPort(22) {
		o.Log.Warn().Strs("ports", doc.AllowRules()).Str("server", req.ServerName).
			Msg("allowed ports do not include 22; SSH will be blocked once the host firewall starts")
	}

	if req.FirewallName != "" {
		if _, err := resolver.FirewallRules(req.firewallPorts()); err != nil {
			return nil, err
		}
	}

	if req.CopySource != "" {
		if _, err := os.Stat(req.CopySource); err != nil {
			return nil, fmt.Errorf("%w: copy source: %w", domain.ErrInvalidInput, err)
		}
	}
	if req.StartupScript != "" {
		info, err := os.Stat(req.StartupScript)
		if err != nil {
			return nil, fmt.Errorf("%w: startup script: %w", domain.ErrInvalidInput, err)
		}
		if info.IsDir() {
			return nil, fmt.Errorf("%w: startup script %s is a directory", domain.ErrInvalidInput, req.StartupScript)
		}
	}

	if req.DNS != nil {
		if req.DNS.Domain == "" || req.DNS.Host == "" || req.DNS.Target == "" {
			return nil, fmt.Errorf("%w: DNS record needs domain, host and target", domain.ErrInvalidInput)
		}
		if o.DNS == nil {
			return nil, fmt.Errorf("%w: DNS record requested without a DNS provider", domain.ErrInvalidInput)
		}
	}

	return &prepared{publicKey: publicKey, document: doc}, nil
}

func (r Request) firewallPorts() []string {
	if len(r.FirewallPorts) > 0 {
		return r.FirewallPorts
	}
	return r.AllowedPorts
}

func appendUnique(ids []string, id string) []string {
	if slices.Contains(ids, id) {
		return ids
	}
	return append(ids, id)
}
