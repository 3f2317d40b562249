package shared

import "fmt"

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")

	// Authentication / session errors
	ErrAuthFailed       = fmt.Errorf("authentication failed")
	ErrNotAuthenticated = fmt.Errorf("not authenticated")
	ErrProfileNotFound  = fmt.Errorf("profile not found")

	// Remote API errors
	ErrAPIRequest  = fmt.Errorf("API request failed")
	ErrSetupFailed = fmt.Errorf("cannot reach service")

	// Snapshot store errors
	ErrSnapshotCorrupt = fmt.Errorf("snapshot file corrupt")
	ErrSnapshotCount   = fmt.Errorf("snapshot count mismatch")
	ErrSnapshotVersion = fmt.Errorf("unsupported snapshot format version")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)
