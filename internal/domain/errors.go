package domain

import "errors"

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

// NetworkError represents a failure talking to an external agent
type NetworkError struct {
	Op        string // Operation that failed (e.g., "dial", "click", "capture")
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
	// ErrEmptyTable is returned when a slot table or category has no slots.
	ErrEmptyTable = errors.New("slot table is empty")

	// ErrInvalidWindow is returned when a target window has min >= max.
	ErrInvalidWindow = errors.New("invalid target window")

	// ErrEmptyLabel is returned for slots without a display name.
	ErrEmptyLabel = errors.New("empty label")

	// ErrEmptyRegion is returned when a probe has no perception region.
	ErrEmptyRegion = errors.New("empty perception region")

	// ErrNoContentRules is returned for text probes without any rule.
	ErrNoContentRules = errors.New("text probe needs at least one content rule")

	// ErrEmptyNeedle is returned for content rules that could never match.
	ErrEmptyNeedle = errors.New("content rule needs a needle")

	// ErrBridgeClosed is returned by calls on a closed bridge client.
	ErrBridgeClosed = errors.New("bridge closed")

	// ErrAgent is returned when the external agent rejects a request. Not retriable.
	ErrAgent = errors.New("agent error")
)
