package providers

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"nathanbeddoewebdev/hzdeploy/internal/domain"
	"nathanbeddoewebdev/hzdeploy/internal/retry"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"
	"github.com/rs/zerolog/log"
)

// requestTimeout bounds a single API round trip.
const requestTimeout = 30 * time.Second

// HetznerProvider implements domain.Cloud using the Hetzner Cloud API.
type HetznerProvider struct {
	client *hcloud.Client
	retry  retry.Config
}

var _ domain.Cloud = (*HetznerProvider)(nil)

// NewHetznerProvider creates a HetznerProvider with the given hcloud client options.
// Default options (application name) are applied first; callers can override them.
func NewHetznerProvider(opts ...hcloud.ClientOption) *HetznerProvider {
	defaults := []hcloud.ClientOption{
		hcloud.WithApplication("hzdeploy", "0.1.0"),
	}
	allOpts := append(defaults, opts...)

	rc := retry.DefaultConfig()
	rc.OnRetry = func(attempt int, err error, delay time.Duration) {
		log.Debug().Err(err).Int("attempt", attempt).Dur("delay", delay).Msg("retrying Hetzner API call")
	}

	return &HetznerProvider{
		client: hcloud.NewClient(allOpts...),
		retry:  rc,
	}
}

// RegisterHetzner registers the Hetzner provider factory with the global registry.
func RegisterHetzner() {
	Register("hetzner", func(token string) (domain.Provider, error) {
		if token == "" {
			return nil, fmt.Errorf("hetzner auth: %w: API token is empty", domain.ErrInvalidInput)
		}
		return NewHetznerProvider(hcloud.WithToken(token)), nil
	})
}

func (h *HetznerProvider) GetDisplayName() string {
	return "Hetzner"
}

// call runs fn with a per-request timeout, retrying transient failures.
func (h *HetznerProvider) call(ctx context.Context, fn func(ctx context.Context) error) error {
	return retry.Do(ctx, h.retry, isHetznerRetryable, func() error {
		reqCtx, cancel := context.WithTimeout(ctx, requestTimeout)
		defer cancel()
		return fn(reqCtx)
	})
}

// GetServer fetches a server by its numeric ID.
func (h *HetznerProvider) GetServer(ctx context.Context, id string) (*domain.Server, error) {
	numericID, err := parseID("server", id)
	if err != nil {
		return nil, err
	}

	var hzServer *hcloud.Server
	err = h.call(ctx, func(ctx context.Context) error {
		var apiErr error
		hzServer, _, apiErr = h.client.Server.GetByID(ctx, numericID)
		return apiErr
	})
	if err != nil {
		return nil, mapError("failed to get server", err)
	}
	if hzServer == nil {
		return nil, fmt.Errorf("server %s: %w", id, domain.ErrNotFound)
	}

	server := toDomainServer(hzServer)
	return &server, nil
}

// GetServerByName returns the first server whose name matches exactly.
func (h *HetznerProvider) GetServerByName(ctx context.Context, name string) (*domain.Server, error) {
	var hzServer *hcloud.Server
	err := h.call(ctx, func(ctx context.Context) error {
		var apiErr error
		hzServer, _, apiErr = h.client.Server.GetByName(ctx, name)
		return apiErr
	})
	if err != nil {
		return nil, mapError("failed to look up server", err)
	}
	if hzServer == nil {
		return nil, fmt.Errorf("server %q: %w", name, domain.ErrNotFound)
	}

	server := toDomainServer(hzServer)
	return &server, nil
}

// ListServers retrieves all servers from the Hetzner Cloud API.
func (h *HetznerProvider) ListServers(ctx context.Context) ([]domain.Server, error) {
	var hzServers []*hcloud.Server
	err := h.call(ctx, func(ctx context.Context) error {
		var apiErr error
		hzServers, apiErr = h.client.Server.All(ctx)
		return apiErr
	})
	if err != nil {
		return nil, mapError("failed to list servers", err)
	}

	servers := make([]domain.Server, 0, len(hzServers))
	for _, s := range hzServers {
		servers = append(servers, toDomainServer(s))
	}

	return servers, nil
}

// DeleteServer removes a server by its ID. The ID must be a numeric string
// matching the Hetzner server ID.
func (h *HetznerProvider) DeleteServer(ctx context.Context, id string) (*domain.ActionStatus, error) {
	numericID, err := parseID("server", id)
	if err != nil {
		return nil, err
	}

	// Deletes are not retried: a timed-out request may already have
	// succeeded and a second attempt would report not_found.
	result, _, err := h.client.Server.DeleteWithResult(ctx, &hcloud.Server{ID: numericID})
	if err != nil {
		return nil, mapError("failed to delete server", err)
	}
	if result == nil || result.Action == nil {
		return nil, nil
	}
	return toDomainAction(result.Action), nil
}

// StartServer powers on a server.
func (h *HetznerProvider) StartServer(ctx context.Context, id string) (*domain.ActionStatus, error) {
	return h.powerAction(ctx, id, "start", h.client.Server.Poweron)
}

// StopServer sends an ACPI shutdown request. The action succeeds as soon
// as the signal is delivered; callers should confirm the "off" status.
func (h *HetznerProvider) StopServer(ctx context.Context, id string) (*domain.ActionStatus, error) {
	return h.powerAction(ctx, id, "stop", h.client.Server.Shutdown)
}

func (h *HetznerProvider) powerAction(
	ctx context.Context,
	id, verb string,
	fn func(context.Context, *hcloud.Server) (*hcloud.Action, *hcloud.Response, error),
) (*domain.ActionStatus, error) {
	numericID, err := parseID("server", id)
	if err != nil {
		return nil, err
	}

	var action *hcloud.Action
	err = h.call(ctx, func(ctx context.Context) error {
		var apiErr error
		action, _, apiErr = fn(ctx, &hcloud.Server{ID: numericID})
		return apiErr
	})
	if err != nil {
		return nil, mapError("failed to "+verb+" server", err)
	}
	if action == nil {
		return nil, fmt.Errorf("failed to %s server: empty action in response", verb)
	}
	return toDomainAction(action), nil
}

// PollAction fetches the current state of an action.
func (h *HetznerProvider) PollAction(ctx context.Context, id string) (*domain.ActionStatus, error) {
	numericID, err := parseID("action", id)
	if err != nil {
		return nil, err
	}

	var action *hcloud.Action
	err = h.call(ctx, func(ctx context.Context) error {
		var apiErr error
		action, _, apiErr = h.client.Action.GetByID(ctx, numericID)
		return apiErr
	})
	if err != nil {
		return nil, mapError("failed to poll action", err)
	}
	if action == nil {
		return nil, fmt.Errorf("action %s: %w", id, domain.ErrNotFound)
	}
	return toDomainAction(action), nil
}

func parseID(kind, id string) (int64, error) {
	numericID, err := strconv.ParseInt(id, 10, 64)
	if err != nil || numericID <= 0 {
		return 0, fmt.Errorf("invalid %s ID %q: %w", kind, id, domain.ErrInvalidInput)
	}
	return numericID, nil
}

// toDomainServer converts an hcloud.Server to a domain.Server.
func toDomainServer(s *hcloud.Server) domain.Server {
	server := domain.Server{
		ID:        strconv.FormatInt(s.ID, 10),
		Name:      s.Name,
		Status:    string(s.Status),
		CreatedAt: s.Created,
		Provider:  "hetzner",
	}

	if !s.PublicNet.IPv4.IsUnspecified() {
		server.PublicIPv4 = s.PublicNet.IPv4.IP.String()
	}

	if !s.PublicNet.IPv6.IsUnspecified() {
		server.PublicIPv6 = s.PublicNet.IPv6.IP.String()
	}

	if s.ServerType != nil {
		server.ServerType = s.ServerType.Name
	}

	if s.Image != nil {
		server.Image = s.Image.Name
	}

	if s.Location != nil {
		server.Region = s.Location.Name
	} else if s.Datacenter != nil && s.Datacenter.Location != nil {
		server.Region = s.Datacenter.Location.Name
	}

	return server
}

// toDomainAction converts an hcloud.Action to a domain.ActionStatus.
func toDomainAction(a *hcloud.Action) *domain.ActionStatus {
	return &domain.ActionStatus{
		ID:           strconv.FormatInt(a.ID, 10),
		Status:       string(a.Status),
		Progress:     a.Progress,
		Command:      a.Command,
		ErrorMessage: a.ErrorMessage,
	}
}
