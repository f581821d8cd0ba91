package homework

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrTransport          = errors.New("status api transport failure")
	ErrServiceUnavailable = errors.New("status api unavailable")
	ErrValidation         = errors.New("status api response malformed")
)

// TransportError means the request never produced an HTTP response
// (dial, DNS, TLS, timeout, cancellation).
type TransportError struct {
	Endpoint string
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("request %s: %v", e.Endpoint, e.Err)
}

func (e *TransportError) Unwrap() []error { return []error{ErrTransport, e.Err} }

// ServiceUnavailableError is a response outside the 2xx class.
type ServiceUnavailableError struct {
	Endpoint string
	Code     int
	Reason   string
}

func (e *ServiceUnavailableError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("status api %s returned %d: %s", e.Endpoint, e.Code, e.Reason)
	}
	return fmt.Sprintf("status api %s returned %d", e.Endpoint, e.Code)
}

func (e *ServiceUnavailableError) Unwrap() error { return ErrServiceUnavailable }

// ValidationError lists every shape problem found in a response.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid status response: " + strings.Join(e.Problems, "; ")
}

func (e *ValidationError) Unwrap() error { return ErrValidation }
