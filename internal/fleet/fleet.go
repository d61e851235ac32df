// Package fleet implements one-shot commands against existing servers.
package fleet

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"nathanbeddoewebdev/hzdeploy/internal/domain"
	"nathanbeddoewebdev/hzdeploy/internal/remote"
	"nathanbeddoewebdev/hzdeploy/internal/services/action"
	"nathanbeddoewebdev/hzdeploy/internal/store"
	"nathanbeddoewebdev/hzdeploy/internal/ui"
)

// ErrAborted is returned when the operator declines a confirmation.
var ErrAborted = errors.New("aborted")

// Remote is the SSH surface used by the fleet commands.
type Remote interface {
	Exec(ctx context.Context, t remote.Target, command string, stdout, stderr io.Writer) error
	Shell(ctx context.Context, t remote.Target, command []string, stdio remote.ShellIO) error
	Upload(ctx context.Context, t remote.Target, localPath string) (remote.Method, error)
	Download(ctx context.Context, t remote.Target, remotePath, localPath string) (remote.Method, error)
}

// History reads recorded provisioning runs.
type History interface {
	ListRecent(n int) ([]store.RunRecord, error)
	LatestForServer(name string) (*store.RunRecord, error)
}

// Service dispatches fleet commands. Remote and History are optional and
// only needed by the commands that use them.
type Service struct {
	provider domain.Provider
	actions  *action.Service

	Remote  Remote
	History History
	// DefaultUser is the login used when neither the caller nor the run
	// history names one.
	DefaultUser string
}

// NewService creates a fleet service. actions waits for power actions.
func NewService(provider domain.Provider, actions *action.Service) *Service {
	return &Service{provider: provider, actions: actions}
}

// Resolve looks up a server by numeric id or, otherwise, by name. The
// first server with the name wins.
func (s *Service) Resolve(ctx context.Context, ref string) (*domain.Server, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, fmt.Errorf("%w: server name or id is required", domain.ErrInvalidInput)
	}

	var (
		server *domain.Server
		err    error
	)
	if _, convErr := strconv.ParseInt(ref, 10, 64); convErr == nil {
		server, err = s.provider.GetServer(ctx, ref)
	} else {
		server, err = s.provider.GetServerByName(ctx, ref)
	}
	if err != nil {
		return nil, fmt.Errorf("server %q: %w", ref, err)
	}
	if server == nil {
		return nil, fmt.Errorf("server %q: %w", ref, domain.ErrNotFound)
	}
	return server, nil
}

// List returns every server of the project.
func (s *Service) List(ctx context.Context) ([]domain.Server, error) {
	return s.provider.ListServers(ctx)
}

// Status returns the current state of the referenced server.
func (s *Service) Status(ctx context.Context, ref string) (*domain.Server, error) {
	return s.Resolve(ctx, ref)
}

// IP returns the public IPv4 of the referenced server.
func (s *Service) IP(ctx context.Context, ref string) (string, error) {
	server, err := s.Resolve(ctx, ref)
	if err != nil {
		return "", err
	}
	if server.PublicIPv4 == "" {
		return "", fmt.Errorf("server %q has no public IPv4 address: %w", server.Name, domain.ErrNotFound)
	}
	return server.PublicIPv4, nil
}

// Start powers the server on and waits until it is running.
func (s *Service) Start(ctx context.Context, ref string, w io.Writer) (*domain.Server, error) {
	return s.power(ctx, ref, domain.ServerStatusRunning, s.provider.StartServer, w)
}

// Stop shuts the server down gracefully and waits until it is off.
func (s *Service) Stop(ctx context.Context, ref string, w io.Writer) (*domain.Server, error) {
	return s.power(ctx, ref, domain.ServerStatusOff, s.provider.StopServer, w)
}

func (s *Service) power(
	ctx context.Context,
	ref, target string,
	request func(context.Context, string) (*domain.ActionStatus, error),
	w io.Writer,
) (*domain.Server, error) {
	server, err := s.Resolve(ctx, ref)
	if err != nil {
		return nil, err
	}
	if server.Status == target {
		fmt.Fprintf(w, "Server %q is already %s.\n", server.Name, target)
		return server, nil
	}

	act, err := request(ctx, server.ID)
	if err != nil {
		return nil, err
	}
	title := fmt.Sprintf("Waiting for server %q to be %s...", server.Name, target)
	err = ui.Spin(w, title, func(progress io.Writer) error {
		return s.actions.WaitForAction(ctx, act, server.ID, target, progress)
	})
	if err != nil {
		return nil, fmt.Errorf("waiting for server %q: %w", server.Name, err)
	}
	server.Status = target
	return server, nil
}

// Delete removes the server after the operator types exactly "yes" on
// confirm. Anything else returns ErrAborted without touching the server.
func (s *Service) Delete(ctx context.Context, ref string, confirm io.Reader, w io.Writer) (*domain.Server, error) {
	server, err := s.Resolve(ctx, ref)
	if err != nil {
		return nil, err
	}

	fmt.Fprintf(w, "Delete server %q (ID: %s, IP: %s)? This cannot be undone.\nType 'yes' to confirm: ", server.Name, server.ID, server.PublicIPv4)
	answer, err := bufio.NewReader(confirm).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("read confirmation: %w", err)
	}
	if strings.TrimRight(answer, "\r\n") != "yes" {
		return nil, fmt.Errorf("delete server %q: %w", server.Name, ErrAborted)
	}

	act, err := s.provider.DeleteServer(ctx, server.ID)
	if err != nil {
		return nil, err
	}
	if act != nil && act.ID != "" && act.Status != domain.ActionStatusSuccess {
		title := fmt.Sprintf("Deleting server %q...", server.Name)
		err := ui.Spin(w, title, func(progress io.Writer) error {
			return s.actions.PollAction(ctx, act.ID, progress)
		})
		if err != nil {
			return nil, fmt.Errorf("waiting for deletion of %q: %w", server.Name, err)
		}
	}
	return server, nil
}

// Target returns the SSH login for the referenced server. The user is
// user when set, else the login recorded by the last provisioning run,
// else DefaultUser.
func (s *Service) Target(ctx context.Context, ref, user string) (remote.Target, error) {
	server, err := s.Resolve(ctx, ref)
	if err != nil {
		return remote.Target{}, err
	}
	if server.Status != domain.ServerStatusRunning {
		return remote.Target{}, fmt.Errorf("%w: server %q is not running (status: %s)", domain.ErrConflict, server.Name, server.Status)
	}
	if server.PublicIPv4 == "" {
		return remote.Target{}, fmt.Errorf("server %q has no public IPv4 address: %w", server.Name, domain.ErrNotFound)
	}

	if user == "" && s.History != nil {
		if rec, err := s.History.LatestForServer(server.Name); err == nil && rec != nil {
			user = rec.RemoteUser
		}
	}
	if user == "" {
		user = s.DefaultUser
	}
	if user == "" {
		return remote.Target{}, fmt.Errorf("%w: no remote user known for %q", domain.ErrInvalidInput, server.Name)
	}
	return remote.Target{Host: server.PublicIPv4, User: user}, nil
}

// SSH opens an interactive shell, or runs command when it is non-empty.
func (s *Service) SSH(ctx context.Context, ref, user string, command []string, stdio remote.ShellIO) error {
	t, err := s.target(ctx, ref, user)
	if err != nil {
		return err
	}
	return s.Remote.Shell(ctx, t, command, stdio)
}

// Exec runs command on the server without a terminal.
func (s *Service) Exec(ctx context.Context, ref, user, command string, stdout, stderr io.Writer) error {
	t, err := s.target(ctx, ref, user)
	if err != nil {
		return err
	}
	return s.Remote.Exec(ctx, t, command, stdout, stderr)
}

// Sync copies localPath into the remote home directory.
func (s *Service) Sync(ctx context.Context, ref, user, localPath string) (remote.Method, error) {
	t, err := s.target(ctx, ref, user)
	if err != nil {
		return "", err
	}
	return s.Remote.Upload(ctx, t, localPath)
}

// Download copies remotePath from the server to localPath.
func (s *Service) Download(ctx context.Context, ref, user, remotePath, localPath string) (remote.Method, error) {
	if strings.TrimSpace(remotePath) == "" || strings.TrimSpace(localPath) == "" {
		return "", fmt.Errorf("%w: remote and local paths are required", domain.ErrInvalidInput)
	}
	t, err := s.target(ctx, ref, user)
	if err != nil {
		return "", err
	}
	return s.Remote.Download(ctx, t, remotePath, localPath)
}

// Runs returns the n most recent provisioning runs.
func (s *Service) Runs(n int) ([]store.RunRecord, error) {
	if s.History == nil {
		return nil, fmt.Errorf("run history unavailable")
	}
	return s.History.ListRecent(n)
}

func (s *Service) target(ctx context.Context, ref, user string) (remote.Target, error) {
	if s.Remote == nil {
		return remote.Target{}, fmt.Errorf("%w: SSH is not configured", domain.ErrInvalidInput)
	}
	return s.Target(ctx, ref, user)
}
