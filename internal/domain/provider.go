package domain

import "context"

// Provider is the server lifecycle surface every cloud provider implements.
type Provider interface {
	GetDisplayName() string
	CreateServer(ctx context.Context, opts CreateServerOpts) (*CreateServerResult, error)
	GetServer(ctx context.Context, id string) (*Server, error)
	// GetServerByName returns the first server with the given name, or
	// ErrNotFound.
	GetServerByName(ctx context.Context, name string) (*Server, error)
	ListServers(ctx context.Context) ([]Server, error)
	DeleteServer(ctx context.Context, id string) (*ActionStatus, error)
	StartServer(ctx context.Context, id string) (*ActionStatus, error)
	StopServer(ctx context.Context, id string) (*ActionStatus, error)
}

// ActionPoller is implemented by providers that expose asynchronous
// action tracking.
type ActionPoller interface {
	PollAction(ctx context.Context, id string) (*ActionStatus, error)
}

// SSHKeyManager lists and registers SSH keys.
type SSHKeyManager interface {
	ListSSHKeys(ctx context.Context) ([]SSHKeySpec, error)
	CreateSSHKey(ctx context.Context, name, publicKey string) (*SSHKeySpec, error)
}

// FirewallManager lists and creates cloud firewalls.
type FirewallManager interface {
	ListFirewalls(ctx context.Context) ([]FirewallSpec, error)
	CreateFirewall(ctx context.Context, name string, rules []FirewallRule) (*FirewallSpec, error)
}

// Cloud is everything a provisioning run needs from a provider.
type Cloud interface {
	Provider
	ActionPoller
	SSHKeyManager
	FirewallManager
}
