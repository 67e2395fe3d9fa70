package llm

import (
	"errors"
	"fmt"
)

var (
	ErrNetwork            = errors.New("network failure")
	ErrUnsupportedBackend = errors.New("unsupported backend")
	ErrNotImplemented     = errors.New("not yet implemented")
	ErrEmptyResponse      = errors.New("backend returned an empty response")
	ErrMissingAPIKey      = errors.New("no API key configured")
)

// NetworkError is a transient failure: transport errors, rate limiting and
// 5xx responses. It is the only error the Retry middleware retries.
type NetworkError struct {
	Backend string
	Err     error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: network failure: %v", e.Backend, e.Err)
}

func (e *NetworkError) Unwrap() []error { return []error{ErrNetwork, e.Err} }

// StatusError is a non-2xx response. On its own it is permanent.
type StatusError struct {
	Backend string
	Code    int
	Body    string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: unexpected status %d", e.Backend, e.Code)
	}
	return fmt.Sprintf("%s: unexpected status %d: %s", e.Backend, e.Code, e.Body)
}

type UnsupportedBackendError struct {
	Backend string
	Err     error
}

func (e *UnsupportedBackendError) Error() string {
	return fmt.Sprintf("backend %q: %v", e.Backend, e.Err)
}

func (e *UnsupportedBackendError) Unwrap() []error {
	return []error{ErrUnsupportedBackend, e.Err}
}

// classifyStatus wraps retryable status codes in a NetworkError.
func classifyStatus(backend string, code int, body string) error {
	statusErr := &StatusError{Backend: backend, Code: code, Body: body}
	if code == 429 || code >= 500 {
		return &NetworkError{Backend: backend, Err: statusErr}
	}
	return statusErr
}
