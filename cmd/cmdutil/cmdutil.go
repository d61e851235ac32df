// Package cmdutil wires the process environment into the internal
// packages. It is the only place below main that reads environment
// variables; everything else receives a config.Config.
package cmdutil

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"time"

	"nathanbeddoewebdev/hzdeploy/internal/config"
	dnsproviders "nathanbeddoewebdev/hzdeploy/internal/dns/providers"
	dnsservices "nathanbeddoewebdev/hzdeploy/internal/dns/services"
	"nathanbeddoewebdev/hzdeploy/internal/domain"
	"nathanbeddoewebdev/hzdeploy/internal/providers"
	"nathanbeddoewebdev/hzdeploy/internal/remote"
	"nathanbeddoewebdev/hzdeploy/internal/services/auth"
	"nathanbeddoewebdev/hzdeploy/internal/sshkeys"
	"nathanbeddoewebdev/hzdeploy/internal/store"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// Process hooks. Tests replace them.
var (
	LookupEnv       config.LookupFunc = os.LookupEnv
	CredentialStore                   = func() auth.Store { return auth.DefaultStore(config.CredentialNames()...) }
	Now                               = time.Now
	OpenRunStore                      = func() (store.RunStore, error) { return store.Open() }
)

// LoadConfig builds the Config for this invocation from the preferences
// file, the environment and the credential store.
func LoadConfig() (config.Config, error) {
	prefs, err := config.LoadPreferences()
	if err != nil {
		return config.Config{}, fmt.Errorf("failed to load preferences: %w", err)
	}

	home, err := os.UserHomeDir()
	if err != nil {
		log.Debug().Err(err).Msg("home directory unknown")
	}

	return config.Load(config.Sources{
		Lookup:   LookupEnv,
		Prefs:    prefs,
		Store:    CredentialStore(),
		HomeDir:  home,
		Hostname: sshkeys.DefaultKeyName(),
		Now:      Now(),
	})
}

// Cloud returns the provisioning provider. It fails with
// domain.ErrInvalidInput before any client is built when no token is
// configured.
func Cloud(cfg config.Config) (domain.Cloud, error) {
	token, err := cfg.RequireToken()
	if err != nil {
		return nil, err
	}
	return providers.GetCloud(config.CloudProvider, token)
}

// RemoteManager returns the SSH manager for the configured key pair.
func RemoteManager(cfg config.Config) (*remote.Manager, error) {
	ssh := cfg.SSH()
	agent, _ := LookupEnv("SSH_AUTH_SOCK")
	return remote.NewManager(remote.Options{
		PrivateKeyPath: ssh.PrivateKeyPath,
		KnownHostsPath: ssh.KnownHostsPath,
		AgentSocket:    agent,
		Log:            log.Logger.With().Str("component", "remote").Logger(),
	})
}

// DNS returns the DNS service of the configured provider.
func DNS(cfg config.Config) (*dnsservices.Service, error) {
	d := cfg.DNS()
	provider, err := dnsproviders.Get(d.Provider, dnsproviders.Credentials{APIKey: d.APIKey, Secret: d.APISecret})
	if err != nil {
		return nil, err
	}
	return dnsservices.New(provider), nil
}

// Runs opens the run history. History is best-effort: on failure it
// returns nil and the caller proceeds without recording.
func Runs() store.RunStore {
	s, err := OpenRunStore()
	if err != nil {
		log.Debug().Err(err).Msg("run history unavailable")
		return nil
	}
	if _, err := s.DeleteOlderThan(90 * 24 * time.Hour); err != nil {
		log.Debug().Err(err).Msg("pruning run history failed")
	}
	return s
}

// SignalContext derives a context cancelled on interrupt.
func SignalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt)
}

// Describe adds a hint to well-known error kinds.
func Describe(err error) error {
	switch {
	case errors.Is(err, domain.ErrUnauthorized):
		return fmt.Errorf("%w (check %s or run 'hzdeploy auth login')", err, config.EnvToken)
	case errors.Is(err, domain.ErrTransferFailed):
		return fmt.Errorf("%w (the server was left running; retry with 'hzdeploy manage sync' or 'hzdeploy manage ssh')", err)
	case errors.Is(err, domain.ErrTimeout), errors.Is(err, domain.ErrProvisioningFailed):
		return fmt.Errorf("%w (any server created was left in place for inspection)", err)
	}
	return err
}
