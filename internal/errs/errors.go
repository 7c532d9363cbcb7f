// Package errs collects the error kinds shared across the gateway's
// components, matching the taxonomy in the system's error handling
// design: invalid input maps to 400, not-found to 404, transient errors
// are retried by the caller, and fatal errors propagate to process exit.
package errs

import "errors"

var (
	// ErrInvalidInput signals a malformed caller-supplied value (bad hex,
	// wrong length). Callers translate this to 400 Bad Request; it is
	// never logged at warning level.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotFound signals the absence of a requested resource. Callers
	// translate this to 404 Not Found.
	ErrNotFound = errors.New("not found")

	// ErrStorageTransient signals a recoverable storage failure (lock
	// contention, timeout). The monitor must not advance its cursor past
	// a batch that failed with this error; the API may retry or surface
	// a 5xx.
	ErrStorageTransient = errors.New("storage: transient error")

	// ErrStorageFatal signals an unrecoverable storage failure (schema
	// mismatch, permanently lost connection). It is expected to bubble to
	// the process boundary and trigger operator intervention.
	ErrStorageFatal = errors.New("storage: fatal error")

	// ErrRPCTransient signals a recoverable wallet RPC failure. The
	// monitor logs and retries the same height range on the next tick.
	ErrRPCTransient = errors.New("wallet rpc: transient error")

	// ErrUniqueViolation signals a unique-constraint conflict on insert,
	// treated by callers as a race signal recovered by re-reading the row.
	ErrUniqueViolation = errors.New("storage: unique violation")

	// ErrConfig signals a configuration problem detected at boot; fatal.
	ErrConfig = errors.New("config error")
)
