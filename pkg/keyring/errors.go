package keyring

import "errors"

// ErrRepositoryClosed is returned by repository operations after Close.
var ErrRepositoryClosed = errors.New("key-ring repository is closed")

// ValidationError indicates a repository was constructed or called with
// invalid arguments: a missing client handle, an empty naming prefix, a nil
// document. It is raised before any network call is attempted.
type ValidationError struct {
	// Store is the store type the repository binds to, e.g. "aws.secretsmanager".
	Store string

	// Message describes what validation failed.
	Message string
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Store == "" {
		return "validation failed: " + e.Message
	}
	return "validation failed for store " + e.Store + ": " + e.Message
}

// StoreError wraps a transport failure from the remote store: a list, fetch,
// or create call that itself failed. Transport failures are always logged
// and propagated, never retried, and never produce partial results.
type StoreError struct {
	// Store is the store type, e.g. "aws.secretsmanager".
	Store string

	// Op is the remote operation that failed: "list", "get", or "create".
	Op string

	// Err is the underlying backend error.
	Err error
}

// Error implements the error interface.
func (e StoreError) Error() string {
	return "store " + e.Store + ": " + e.Op + " failed: " + e.Err.Error()
}

// Unwrap returns the backend error.
func (e StoreError) Unwrap() error {
	return e.Err
}

// MalformedDocumentError indicates a stored value did not parse as a key
// document. During listing these are logged and the record is skipped; the
// surrounding call does not fail.
type MalformedDocumentError struct {
	// Name is the record whose value failed to parse, when known.
	Name string

	// Message describes the failure when no underlying error exists.
	Message string

	// Err is the underlying XML parse error, if any.
	Err error
}

// Error implements the error interface.
func (e MalformedDocumentError) Error() string {
	msg := "malformed key document"
	if e.Name != "" {
		msg += " " + e.Name
	}
	if e.Message != "" {
		return msg + ": " + e.Message
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the parse error, if any.
func (e MalformedDocumentError) Unwrap() error {
	return e.Err
}
