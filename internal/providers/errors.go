package providers

import (
	"context"
	"errors"
	"fmt"

	"nathanbeddoewebdev/hzdeploy/internal/domain"
	"nathanbeddoewebdev/hzdeploy/internal/retry"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"
)

// mapError wraps an hcloud error with the matching domain sentinel so
// callers never need the SDK to classify failures.
func mapError(op string, err error) error {
	if err == nil {
		return nil
	}
	switch {
	case hcloud.IsError(err, hcloud.ErrorCodeNotFound):
		return fmt.Errorf("%s: %w: %w", op, domain.ErrNotFound, err)
	case hcloud.IsError(err, hcloud.ErrorCodeUnauthorized), hcloud.IsError(err, hcloud.ErrorCodeForbidden):
		return fmt.Errorf("%s: %w: %w", op, domain.ErrUnauthorized, err)
	case hcloud.IsError(err, hcloud.ErrorCodeRateLimitExceeded):
		return fmt.Errorf("%s: %w: %w", op, domain.ErrRateLimited, err)
	case hcloud.IsError(err, hcloud.ErrorCodeConflict), hcloud.IsError(err, hcloud.ErrorCodeUniquenessError):
		return fmt.Errorf("%s: %w: %w", op, domain.ErrConflict, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// isHetznerRetryable extends retry.IsRetryable with the API codes that
// signal a temporarily busy resource.
func isHetznerRetryable(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	if hcloud.IsError(err, hcloud.ErrorCodeLocked) ||
		hcloud.IsError(err, hcloud.ErrorCodeResourceUnavailable) ||
		hcloud.IsError(err, hcloud.ErrorCodeTimeout) {
		return true
	}
	return retry.IsRetryable(err)
}
