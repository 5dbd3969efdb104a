package domain

import (
	"errors"
	"fmt"
)

// RetriableError defines an interface for errors that can be retried
type RetriableError interface {
	error
	IsRetriable() bool
}

// IsRetriable checks if an error is retriable
func IsRetriable(err error) bool {
	var re RetriableError
	if errors.As(err, &re) {
		return re.IsRetriable()
	}
	return false
}

// NetworkError represents a transport fault (connection drop, timeout).
// Retriable by default; it never invalidates already-applied book state.
type NetworkError struct {
	Op        string // Operation that failed (e.g., "connect", "read", "fetch_snapshot")
	Err       error  // Underlying error
	Retriable bool   // Whether this error is retriable
}

func (e *NetworkError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *NetworkError) IsRetriable() bool {
	return e.Retriable
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// NewNetworkError creates a new retriable network error
func NewNetworkError(op string, err error) *NetworkError {
	return &NetworkError{Op: op, Err: err, Retriable: true}
}

// NewFatalNetworkError creates a non-retriable network error
func NewFatalNetworkError(op string, err error) *NetworkError {
	return &NetworkError{Op: op, Err: err, Retriable: false}
}

// APIError is a protocol fault: the exchange answered, but with an
// unexpected HTTP status or business error code.
type APIError struct {
	Endpoint string
	Status   int
	Body     string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error [%s]: status=%d body=%s", e.Endpoint, e.Status, e.Body)
}

func (e *APIError) IsRetriable() bool {
	// Server-side failures are worth retrying; client errors are not.
	return e.Status >= 500
}

// MalformedMessageError is a protocol fault for a payload missing required
// fields. The offending message is dropped; the stream continues.
type MalformedMessageError struct {
	Kind  string // message kind ("depth", "deal", "order_status", ...)
	Field string // missing or invalid field
}

func (e *MalformedMessageError) Error() string {
	return "malformed " + e.Kind + " message: bad field " + e.Field
}

func (e *MalformedMessageError) IsRetriable() bool {
	return false
}

// ConfigError represents a configuration error (never retriable)
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	return "config error [" + e.Field + "]: " + e.Err.Error()
}

func (e *ConfigError) IsRetriable() bool {
	return false
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

var (
	// ErrConnectionFailed is returned when websocket connection fails. It's usually retriable.
	ErrConnectionFailed = errors.New("connection failed")

	// ErrInvalidSymbol is returned when a symbol is not supported or malformed. Not retriable.
	ErrInvalidSymbol = errors.New("invalid symbol")

	// ErrUnknownOrder is returned when an update references an order that is
	// not being tracked. The update is rejected, never inserted.
	ErrUnknownOrder = errors.New("order not found")

	// ErrDuplicateOrder is returned when starting to track an order whose
	// client id is already tracked.
	ErrDuplicateOrder = errors.New("order already tracked")

	// ErrConfigNotFound is returned when configuration file is missing
	ErrConfigNotFound = errors.New("configuration not found")
)
