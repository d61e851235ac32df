// Package resolver implements get-or-create for the durable resources a
// provisioning run depends on: the SSH key and the cloud firewall.
package resolver

import (
	"context"
	"errors"
	"fmt"

	"nathanbeddoewebdev/hzdeploy/internal/domain"
	"nathanbeddoewebdev/hzdeploy/internal/util"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/ssh"
)

// Resolve lists existing resources, returns the first one matching and
// only calls create when nothing matches. If several resources match, the
// first one in list order wins.
func Resolve[T any](
	ctx context.Context,
	list func(context.Context) ([]T, error),
	match func(T) bool,
	create func(context.Context) (T, error),
) (T, bool, error) {
	var zero T

	items, err := list(ctx)
	if err != nil {
		return zero, false, err
	}
	for _, item := range items {
		if match(item) {
			return item, false, nil
		}
	}

	created, err := create(ctx)
	if err != nil {
		return zero, false, err
	}
	return created, true, nil
}

// Resolver resolves SSH keys and firewalls by name against a provider.
type Resolver struct {
	keys      domain.SSHKeyManager
	firewalls domain.FirewallManager
	log       zerolog.Logger
}

// New creates a Resolver. Either manager may be nil if the caller never
// resolves that kind of resource.
func New(keys domain.SSHKeyManager, firewalls domain.FirewallManager, log zerolog.Logger) *Resolver {
	return &Resolver{keys: keys, firewalls: firewalls, log: log}
}

// SSHKey returns the key registered under name, uploading publicKey if no
// key has that name. The provider rejects a second upload of the same key
// material under a different name; in that case the existing key with the
// same fingerprint is used instead.
func (r *Resolver) SSHKey(ctx context.Context, name, publicKey string) (*domain.SSHKeySpec, error) {
	if name == "" {
		return nil, fmt.Errorf("SSH key name is empty: %w", domain.ErrInvalidInput)
	}

	key, created, err := Resolve(ctx,
		r.keys.ListSSHKeys,
		func(k domain.SSHKeySpec) bool { return k.Name == name },
		func(ctx context.Context) (domain.SSHKeySpec, error) {
			k, err := r.keys.CreateSSHKey(ctx, name, publicKey)
			if err != nil {
				if errors.Is(err, domain.ErrConflict) {
					return r.keyByFingerprint(ctx, publicKey, err)
				}
				return domain.SSHKeySpec{}, fmt.Errorf("%w: %w", domain.ErrResourceCreationFailed, err)
			}
			if k == nil || k.ID == "" {
				return domain.SSHKeySpec{}, fmt.Errorf("%w: SSH key %q created without an id", domain.ErrResourceCreationFailed, name)
			}
			return *k, nil
		},
	)
	if err != nil {
		return nil, fmt.Errorf("resolve SSH key %q: %w", name, err)
	}

	r.log.Debug().Str("name", key.Name).Str("id", key.ID).Bool("created", created).Msg("SSH key resolved")
	return &key, nil
}

func (r *Resolver) keyByFingerprint(ctx context.Context, publicKey string, createErr error) (domain.SSHKeySpec, error) {
	fingerprint, err := Fingerprint(publicKey)
	if err != nil {
		return domain.SSHKeySpec{}, fmt.Errorf("%w: %w", domain.ErrResourceCreationFailed, createErr)
	}
	keys, err := r.keys.ListSSHKeys(ctx)
	if err != nil {
		return domain.SSHKeySpec{}, fmt.Errorf("%w: %w", domain.ErrResourceCreationFailed, err)
	}
	for _, k := range keys {
		if k.Fingerprint == fingerprint {
			r.log.Info().Str("name", k.Name).Msg("public key already registered under another name, reusing it")
			return k, nil
		}
	}
	return domain.SSHKeySpec{}, fmt.Errorf("%w: %w", domain.ErrResourceCreationFailed, createErr)
}

// Fingerprint returns the MD5 fingerprint of an authorized_keys line in
// the colon-separated form the provider reports.
func Fingerprint(publicKey string) (string, error) {
	pk, _, _, _, err := ssh.ParseAuthorizedKey([]byte(publicKey))
	if err != nil {
		return "", fmt.Errorf("parse public key: %w", err)
	}
	return ssh.FingerprintLegacyMD5(pk), nil
}

// Firewall returns the firewall registered under name, creating it with
// one inbound TCP rule per port when absent. An existing firewall is
// returned as-is; its rules are not reconciled.
func (r *Resolver) Firewall(ctx context.Context, name string, ports []string) (*domain.FirewallSpec, error) {
	if name == "" {
		return nil, fmt.Errorf("firewall name is empty: %w", domain.ErrInvalidInput)
	}
	rules, err := FirewallRules(ports)
	if err != nil {
		return nil, err
	}

	fw, created, err := Resolve(ctx,
		r.firewalls.ListFirewalls,
		func(f domain.FirewallSpec) bool { return f.Name == name },
		func(ctx context.Context) (domain.FirewallSpec, error) {
			f, err := r.firewalls.CreateFirewall(ctx, name, rules)
			if err != nil {
				return domain.FirewallSpec{}, fmt.Errorf("%w: %w", domain.ErrResourceCreationFailed, err)
			}
			if f == nil || f.ID == "" {
				return domain.FirewallSpec{}, fmt.Errorf("%w: firewall %q created without an id", domain.ErrResourceCreationFailed, name)
			}
			return *f, nil
		},
	)
	if err != nil {
		return nil, fmt.Errorf("resolve firewall %q: %w", name, err)
	}

	r.log.Debug().Str("name", fw.Name).Str("id", fw.ID).Bool("created", created).Msg("firewall resolved")
	return &fw, nil
}

// FirewallRules builds the inbound TCP rules for a port list. Ports are
// normalized the same way the boot document normalizes them.
func FirewallRules(ports []string) ([]domain.FirewallRule, error) {
	normalized, err := util.NormalizePorts(ports)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidInput, err)
	}
	rules := make([]domain.FirewallRule, 0, len(normalized))
	for _, port := range normalized {
		rules = append(rules, domain.FirewallRule{
			Direction: domain.DirectionIn,
			Protocol:  domain.ProtocolTCP,
			Port:      port,
			SourceIPs: append([]string(nil), domain.AnySource...),
		})
	}
	return rules, nil
}
