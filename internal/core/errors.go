package core

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrEventNotFound     = errors.New("event not found")
	ErrImportLogNotFound = errors.New("import log not found")
	ErrImportInProgress  = errors.New("an import is already running for this event")
	ErrBlockingRowErrors = errors.New("source has row errors")
	ErrMalformedSource   = errors.New("malformed source")

	// ErrCredentialsMissing is a configuration error raised before any
	// network call when no ticketing credentials are stored.
	ErrCredentialsMissing = errors.New("ticketing credentials are not configured")

	// ErrEventNotLinked is a configuration error: the event has no
	// ticketing event reference to sync from.
	ErrEventNotLinked = errors.New("event is not linked to a ticketing event")
)

// AuthError is a rejected ticketing call (HTTP 401/403). Retrying will not
// help until an operator fixes the credentials.
type AuthError struct {
	StatusCode int
	Message    string
}

func (e *AuthError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("ticketing authentication failed (HTTP %d)", e.StatusCode)
	}
	return fmt.Sprintf("ticketing authentication failed (HTTP %d): %s", e.StatusCode, e.Message)
}

// APIError is any other ticketing failure: an HTTP error status, a timeout,
// a connection failure or an unreadable body. StatusCode is 0 when no
// response was received.
type APIError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *APIError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("ticketing API error (HTTP %d): %s", e.StatusCode, e.Message)
	}
	return "ticketing API error: " + e.Message
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// MissingColumnsError rejects a file source whose header lacks required
// columns. It matches ErrMalformedSource with errors.Is.
type MissingColumnsError struct {
	Columns []string
}

func (e *MissingColumnsError) Error() string {
	return "missing required columns: " + strings.Join(e.Columns, ", ")
}

func (e *MissingColumnsError) Is(target error) bool {
	return target == ErrMalformedSource
}

// RowErrors is returned by Commit when the source has row errors and the
// caller did not ask to ignore them. It matches ErrBlockingRowErrors.
type RowErrors struct {
	Errors []RowError
}

func (e *RowErrors) Error() string {
	return fmt.Sprintf("%d row error(s) block the import", len(e.Errors))
}

func (e *RowErrors) Is(target error) bool {
	return target == ErrBlockingRowErrors
}

// IsTransient reports whether err is worth retrying as a whole run.
func IsTransient(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 0 || apiErr.StatusCode == 429 || apiErr.StatusCode >= 500
	}
	return errors.Is(err, ErrImportInProgress) || errors.Is(err, ErrTooManyImports)
}
