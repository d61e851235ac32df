// Package action waits for asynchronous provider operations to finish.
package action

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"nathanbeddoewebdev/hzdeploy/internal/domain"
	"nathanbeddoewebdev/hzdeploy/internal/poll"

	"github.com/rs/zerolog"
)

// Defaults for NewService.
const (
	DefaultInterval           = 3 * time.Second
	DefaultTimeout            = 5 * time.Minute
	DefaultMaxTransientErrors = 3
)

// Service tracks provider actions and server power states through
// poll.Until.
type Service struct {
	provider domain.Provider

	// Interval is the delay between polls.
	Interval time.Duration
	// Timeout bounds each individual wait.
	Timeout time.Duration
	// MaxTransientErrors is the number of consecutive non-rate-limit
	// errors tolerated before a wait gives up.
	MaxTransientErrors int
	Clock              poll.Clock
	Log                zerolog.Logger
}

// NewService creates an action service with the default budgets.
func NewService(provider domain.Provider) *Service {
	return &Service{
		provider:           provider,
		Interval:           DefaultInterval,
		Timeout:            DefaultTimeout,
		MaxTransientErrors: DefaultMaxTransientErrors,
		Clock:              poll.WallClock{},
		Log:                zerolog.Nop(),
	}
}

// WaitForAction blocks until an in-flight action completes and the server
// reaches targetStatus.
//
// When the provider implements [domain.ActionPoller] the action is tracked
// by id, then the server status is confirmed, because a graceful shutdown
// reports success once the signal is sent. Providers without action
// tracking fall back to polling [domain.Provider.GetServer].
//
// Progress messages are written to w.
func (s *Service) WaitForAction(
	ctx context.Context,
	action *domain.ActionStatus,
	serverID string,
	targetStatus string,
	w io.Writer,
) error {
	if s.provider == nil {
		return fmt.Errorf("actions: provider unavailable")
	}
	if action == nil {
		return s.WaitForStatus(ctx, serverID, targetStatus, w)
	}

	if action.Status == domain.ActionStatusError {
		return actionFailed(action)
	}

	if action.Status != domain.ActionStatusSuccess {
		_, isPoller := s.provider.(domain.ActionPoller)
		if !isPoller || action.ID == "" {
			return s.WaitForStatus(ctx, serverID, targetStatus, w)
		}
		if err := s.PollAction(ctx, action.ID, w); err != nil {
			return err
		}
	}

	return s.confirmServerStatus(ctx, serverID, targetStatus, w)
}

// PollAction polls the action endpoint until the action reports success
// or error. An error status is reported as domain.ErrProvisioningFailed
// and an exhausted budget as domain.ErrTimeout.
func (s *Service) PollAction(ctx context.Context, actionID string, w io.Writer) error {
	poller, ok := s.provider.(domain.ActionPoller)
	if !ok {
		return fmt.Errorf("actions: provider %s cannot poll actions", s.provider.GetDisplayName())
	}

	var consecutive int
	res := poll.Until(ctx, s.pollConfig(), func(ctx context.Context, attempt int) (poll.Outcome, error) {
		status, err := poller.PollAction(ctx, actionID)
		if err != nil {
			return s.transient(&consecutive, "action", err, w)
		}
		consecutive = 0

		s.Log.Debug().Str("action_id", actionID).Int("attempt", attempt).
			Str("status", status.Status).Int("progress", status.Progress).Msg("action polled")

		switch status.Status {
		case domain.ActionStatusSuccess:
			return poll.Done, nil
		case domain.ActionStatusError:
			return poll.Abort, actionFailed(status)
		}
		if status.Progress > 0 {
			fmt.Fprintf(w, "  Progress: %d%%\n", status.Progress)
		}
		return poll.Pending, nil
	})

	return s.outcome(res, fmt.Sprintf("action %s to complete", actionID))
}

// WaitForStatus polls the server until its status equals targetStatus.
func (s *Service) WaitForStatus(ctx context.Context, serverID, targetStatus string, w io.Writer) error {
	var consecutive int
	res := poll.Until(ctx, s.pollConfig(), func(ctx context.Context, attempt int) (poll.Outcome, error) {
		server, err := s.provider.GetServer(ctx, serverID)
		if err != nil {
			return s.transient(&consecutive, "server status", err, w)
		}
		consecutive = 0

		if server == nil {
			return poll.Abort, fmt.Errorf("server %q disappeared while polling: %w", serverID, domain.ErrNotFound)
		}
		if server.Status == targetStatus {
			return poll.Done, nil
		}
		fmt.Fprintf(w, "  Status: %s\n", server.Status)
		return poll.Pending, nil
	})

	return s.outcome(res, fmt.Sprintf("server %s to reach %q", serverID, targetStatus))
}

// confirmServerStatus does a single immediate status check and only falls
// into the poll loop when the server has not transitioned yet.
func (s *Service) confirmServerStatus(ctx context.Context, serverID, targetStatus string, w io.Writer) error {
	server, err := s.provider.GetServer(ctx, serverID)
	if err == nil && server != nil && server.Status == targetStatus {
		return nil
	}
	fmt.Fprintf(w, "  Waiting for server to reach %q status...\n", targetStatus)
	return s.WaitForStatus(ctx, serverID, targetStatus, w)
}

// transient classifies a failed poll. Rate limiting aborts immediately;
// other errors are tolerated until MaxTransientErrors in a row.
func (s *Service) transient(consecutive *int, what string, err error, w io.Writer) (poll.Outcome, error) {
	if errors.Is(err, domain.ErrRateLimited) {
		return poll.Abort, fmt.Errorf("polling stopped: %w", err)
	}
	*consecutive++
	limit := s.MaxTransientErrors
	if limit <= 0 {
		limit = DefaultMaxTransientErrors
	}
	if *consecutive >= limit {
		return poll.Abort, fmt.Errorf("error polling %s (after %d consecutive failures): %w", what, *consecutive, err)
	}
	fmt.Fprintf(w, "  Transient error, retrying... (%d/%d)\n", *consecutive, limit)
	return poll.Pending, err
}

func (s *Service) pollConfig() poll.Config {
	return poll.Config{Interval: s.Interval, Timeout: s.Timeout, Clock: s.Clock}
}

func (s *Service) outcome(res poll.Result, what string) error {
	switch res.Status {
	case poll.Completed:
		return nil
	case poll.TimedOut:
		if res.Err != nil {
			return fmt.Errorf("%w waiting for %s after %s (%d polls): last error: %v",
				domain.ErrTimeout, what, res.Elapsed, res.Attempts, res.Err)
		}
		return fmt.Errorf("%w waiting for %s after %s (%d polls)", domain.ErrTimeout, what, res.Elapsed, res.Attempts)
	default:
		return res.Err
	}
}

func actionFailed(a *domain.ActionStatus) error {
	if a.ErrorMessage != "" {
		return fmt.Errorf("%w: action %s failed: %s", domain.ErrProvisioningFailed, a.ID, a.ErrorMessage)
	}
	return fmt.Errorf("%w: action %s failed", domain.ErrProvisioningFailed, a.ID)
}
