// Package errors provides error types and handling for s3gate transfers.
package errors

import (
	"errors"
	"fmt"
)

// Error represents a transfer operation error with context about the
// operation that failed. It wraps the underlying error with the endpoint
// and object key involved for better debugging.
type Error struct {
	// Op is the operation that failed (e.g., "plan", "copy", "verify")
	Op string

	// Endpoint is the configured endpoint name (if applicable)
	Endpoint string

	// Key is the object key (if applicable)
	Key string

	// Err is the underlying error from the AWS SDK or other source
	Err error
}

// Error implements the error interface by providing a formatted error message.
func (e *Error) Error() string {
	if e.Endpoint != "" && e.Key != "" {
		return fmt.Sprintf("s3gate.%s %s/%s: %v", e.Op, e.Endpoint, e.Key, e.Err)
	}
	if e.Endpoint != "" {
		return fmt.Sprintf("s3gate.%s endpoint %s: %v", e.Op, e.Endpoint, e.Err)
	}
	if e.Key != "" {
		return fmt.Sprintf("s3gate.%s object %s: %v", e.Op, e.Key, e.Err)
	}
	return fmt.Sprintf("s3gate.%s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for error chaining support.
func (e *Error) Unwrap() error {
	return e.Err
}

// WithEndpoint adds endpoint context to an existing error.
func (e *Error) WithEndpoint(endpoint string) *Error {
	e.Endpoint = endpoint
	return e
}

// WithKey adds object key context to an existing error.
func (e *Error) WithKey(key string) *Error {
	e.Key = key
	return e
}

// WithMessage wraps the underlying error with a custom message.
func (e *Error) WithMessage(message string) *Error {
	e.Err = fmt.Errorf("%s: %w", message, e.Err)
	return e
}

// NewError creates a new Error with the given operation and underlying error.
func NewError(op string, err error) *Error {
	return &Error{
		Op:  op,
		Err: err,
	}
}

// NewKeyError creates a new Error with endpoint and key context.
func NewKeyError(op, endpoint, key string, err error) *Error {
	return &Error{
		Op:       op,
		Endpoint: endpoint,
		Key:      key,
		Err:      err,
	}
}

// Sentinel errors forming the transfer failure taxonomy.
// These can be used with errors.Is() for error checking.
var (
	// ErrMisconfigured indicates a fatal pre-transfer configuration problem,
	// such as zero or multiple source endpoints or an unreadable config file.
	// Never retried.
	ErrMisconfigured = errors.New("s3gate: misconfigured")

	// ErrTemplateSyntax indicates a key template that cannot be compiled
	// (unbalanced or empty braces). Fatal, pre-transfer.
	ErrTemplateSyntax = errors.New("s3gate: template syntax error")

	// ErrKeyMismatch indicates a source key that does not conform to the
	// declared source template. Deterministic, never retried; fails only
	// the affected key.
	ErrKeyMismatch = errors.New("s3gate: key does not match source template")

	// ErrUnresolvedPlaceholder indicates a destination template placeholder
	// with no matched or default value to substitute. Deterministic, never
	// retried; fails only the affected key.
	ErrUnresolvedPlaceholder = errors.New("s3gate: unresolved placeholder in destination template")

	// ErrCopyFailed indicates a failed copy operation. Assumed transient
	// and retried with backoff.
	ErrCopyFailed = errors.New("s3gate: copy failed")

	// ErrVerificationFailed indicates that post-copy verification did not
	// pass. Assumed transient (eventual consistency) and retried.
	ErrVerificationFailed = errors.New("s3gate: verification failed")

	// ErrNoFilesToTransfer indicates a batch with zero input keys. Distinct
	// from a batch where transfers were attempted and failed.
	ErrNoFilesToTransfer = errors.New("s3gate: no files to transfer")

	// ErrSomeTransfersFailed indicates that at least one key exhausted its
	// retry budget. Raised only after every key in the batch was attempted.
	ErrSomeTransfersFailed = errors.New("s3gate: some transfers failed")

	// ErrObjectNotFound indicates that the requested object does not exist.
	ErrObjectNotFound = errors.New("s3gate: object not found")
)

// IsKeyMismatch checks if an error indicates a key/template mismatch.
func IsKeyMismatch(err error) bool {
	return errors.Is(err, ErrKeyMismatch)
}

// IsMisconfigured checks if an error indicates a configuration problem.
func IsMisconfigured(err error) bool {
	return errors.Is(err, ErrMisconfigured)
}

// IsPermanent reports whether an error is deterministic for a given key,
// meaning a retry cannot change the outcome.
func IsPermanent(err error) bool {
	return errors.Is(err, ErrKeyMismatch) ||
		errors.Is(err, ErrUnresolvedPlaceholder) ||
		errors.Is(err, ErrTemplateSyntax) ||
		errors.Is(err, ErrMisconfigured)
}
