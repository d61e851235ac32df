package domain

import "errors"

// Sentinel errors for cross-provider error classification.
// Providers should wrap these so the CLI can handle error categories
// uniformly without importing provider-specific SDKs.
//
//	return fmt.Errorf("failed to delete server: %w", domain.ErrNotFound)
var (
	// ErrNotFound indicates the requested resource does not exist.
	ErrNotFound = errors.New("resource not found")

	// ErrUnauthorized indicates the request was rejected due to
	// invalid, expired, or missing credentials.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrRateLimited indicates the provider throttled the request.
	ErrRateLimited = errors.New("rate limited")

	// ErrConflict indicates a state or uniqueness conflict, such as
	// a duplicate key or an operation on a server in a transitional state.
	ErrConflict = errors.New("conflict")
)

// Run-level error kinds. Every fatal provisioning failure wraps exactly
// one of these so the entry points can tell the operator what went wrong
// and whether a server was left behind.
var (
	// ErrInvalidInput covers missing credentials, unreadable key files,
	// malformed port lists and missing target directories. Always raised
	// before any network call that creates something.
	ErrInvalidInput = errors.New("invalid input")

	// ErrResourceCreationFailed indicates a get-or-create step could not
	// produce a usable resource id.
	ErrResourceCreationFailed = errors.New("resource creation failed")

	// ErrProvisioningFailed indicates the provider reported the server
	// action as failed, or returned a server that violates an invariant
	// (no id, no address). The server is left in place.
	ErrProvisioningFailed = errors.New("provisioning failed")

	// ErrTimeout indicates a wait loop exhausted its budget.
	ErrTimeout = errors.New("timed out")

	// ErrTransferFailed indicates a file copy or startup script delivery
	// failed after the server became reachable.
	ErrTransferFailed = errors.New("transfer failed")
)
