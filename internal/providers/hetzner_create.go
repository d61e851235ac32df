package providers

import (
	"context"
	"fmt"
	"net"
	"strconv"

	"nathanbeddoewebdev/hzdeploy/internal/domain"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"
)

// CreateServer creates a new server on Hetzner Cloud and returns it together
// with the action tracking its creation. SSH keys and firewalls are passed
// by ID; the resolver has already done the get-or-create work.
func (h *HetznerProvider) CreateServer(ctx context.Context, opts domain.CreateServerOpts) (*domain.CreateServerResult, error) {
	startAfterCreate := true
	hcloudOpts := hcloud.ServerCreateOpts{
		Name:             opts.Name,
		ServerType:       &hcloud.ServerType{Name: opts.ServerType},
		Image:            &hcloud.Image{Name: opts.Image},
		UserData:         opts.UserData,
		Labels:           opts.Labels,
		StartAfterCreate: &startAfterCreate,
	}

	if opts.Location != "" {
		hcloudOpts.Location = &hcloud.Location{Name: opts.Location}
	}

	for _, id := range opts.SSHKeyIDs {
		numericID, err := parseID("SSH key", id)
		if err != nil {
			return nil, err
		}
		hcloudOpts.SSHKeys = append(hcloudOpts.SSHKeys, &hcloud.SSHKey{ID: numericID})
	}

	// Firewalls attached at creation are enforced by the provider's
	// network layer before the guest boots.
	for _, id := range opts.FirewallIDs {
		numericID, err := parseID("firewall", id)
		if err != nil {
			return nil, err
		}
		hcloudOpts.Firewalls = append(hcloudOpts.Firewalls, &hcloud.ServerCreateFirewall{
			Firewall: hcloud.Firewall{ID: numericID},
		})
	}

	// Server creation is not retried: a request that timed out may have
	// created the server, and a second attempt would fail on the name.
	result, _, err := h.client.Server.Create(ctx, hcloudOpts)
	if err != nil {
		return nil, mapError("failed to create server", err)
	}

	out := &domain.CreateServerResult{}
	if result.Server != nil {
		server := toDomainServer(result.Server)
		out.Server = &server
	}
	if result.Action != nil {
		out.Action = toDomainAction(result.Action)
	}

	return out, nil
}

// --- SSHKeyManager implementation ---

// ListSSHKeys returns every SSH key in the project.
func (h *HetznerProvider) ListSSHKeys(ctx context.Context) ([]domain.SSHKeySpec, error) {
	var hzKeys []*hcloud.SSHKey
	err := h.call(ctx, func(ctx context.Context) error {
		var apiErr error
		hzKeys, apiErr = h.client.SSHKey.All(ctx)
		return apiErr
	})
	if err != nil {
		return nil, mapError("failed to list SSH keys", err)
	}

	keys := make([]domain.SSHKeySpec, 0, len(hzKeys))
	for _, k := range hzKeys {
		keys = append(keys, toDomainSSHKey(k))
	}
	return keys, nil
}

// CreateSSHKey uploads a new SSH key to the Hetzner Cloud API.
func (h *HetznerProvider) CreateSSHKey(ctx context.Context, name, publicKey string) (*domain.SSHKeySpec, error) {
	hzKey, _, err := h.client.SSHKey.Create(ctx, hcloud.SSHKeyCreateOpts{
		Name:      name,
		PublicKey: publicKey,
		Labels:    map[string]string{"managed-by": "hzdeploy"},
	})
	if err != nil {
		return nil, mapError("failed to create SSH key", err)
	}
	if hzKey == nil {
		return nil, fmt.Errorf("failed to create SSH key: empty response")
	}

	keySpec := toDomainSSHKey(hzKey)
	return &keySpec, nil
}

// --- FirewallManager implementation ---

// ListFirewalls returns every firewall in the project.
func (h *HetznerProvider) ListFirewalls(ctx context.Context) ([]domain.FirewallSpec, error) {
	var hzFirewalls []*hcloud.Firewall
	err := h.call(ctx, func(ctx context.Context) error {
		var apiErr error
		hzFirewalls, apiErr = h.client.Firewall.All(ctx)
		return apiErr
	})
	if err != nil {
		return nil, mapError("failed to list firewalls", err)
	}

	firewalls := make([]domain.FirewallSpec, 0, len(hzFirewalls))
	for _, f := range hzFirewalls {
		firewalls = append(firewalls, toDomainFirewall(f))
	}
	return firewalls, nil
}

// CreateFirewall creates a firewall with the given inbound rules.
func (h *HetznerProvider) CreateFirewall(ctx context.Context, name string, rules []domain.FirewallRule) (*domain.FirewallSpec, error) {
	hzRules := make([]hcloud.FirewallRule, 0, len(rules))
	for _, r := range rules {
		hzRule, err := toHetznerRule(r)
		if err != nil {
			return nil, err
		}
		hzRules = append(hzRules, hzRule)
	}

	result, _, err := h.client.Firewall.Create(ctx, hcloud.FirewallCreateOpts{
		Name:   name,
		Rules:  hzRules,
		Labels: map[string]string{"managed-by": "hzdeploy"},
	})
	if err != nil {
		return nil, mapError("failed to create firewall", err)
	}
	if result.Firewall == nil {
		return nil, fmt.Errorf("failed to create firewall: empty response")
	}

	spec := toDomainFirewall(result.Firewall)
	return &spec, nil
}

// --- Domain mapping helpers ---

func toDomainSSHKey(k *hcloud.SSHKey) domain.SSHKeySpec {
	return domain.SSHKeySpec{
		ID:          strconv.FormatInt(k.ID, 10),
		Name:        k.Name,
		Fingerprint: k.Fingerprint,
		PublicKey:   k.PublicKey,
	}
}

func toDomainFirewall(f *hcloud.Firewall) domain.FirewallSpec {
	spec := domain.FirewallSpec{
		ID:   strconv.FormatInt(f.ID, 10),
		Name: f.Name,
	}
	for _, r := range f.Rules {
		rule := domain.FirewallRule{
			Direction: string(r.Direction),
			Protocol:  string(r.Protocol),
		}
		if r.Port != nil {
			rule.Port = *r.Port
		}
		for _, src := range r.SourceIPs {
			rule.SourceIPs = append(rule.SourceIPs, src.String())
		}
		spec.Rules = append(spec.Rules, rule)
	}
	return spec
}

func toHetznerRule(r domain.FirewallRule) (hcloud.FirewallRule, error) {
	port := r.Port
	rule := hcloud.FirewallRule{
		Direction: hcloud.FirewallRuleDirection(r.Direction),
		Protocol:  hcloud.FirewallRuleProtocol(r.Protocol),
		Port:      &port,
	}
	for _, cidr := range r.SourceIPs {
		_, ipNet, err := net.ParseCIDR(cidr)
		if err != nil {
			return hcloud.FirewallRule{}, fmt.Errorf("invalid source CIDR %q: %w", cidr, domain.ErrInvalidInput)
		}
		rule.SourceIPs = append(rule.SourceIPs, *ipNet)
	}
	return rule, nil
}
