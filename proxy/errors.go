package proxy

import (
	"errors"
	"fmt"
)

var (
	// ErrNotAResponse is the pipeline fault reported when the filter
	// chain resolves to a message other than a response.
	ErrNotAResponse = errors.New("filter chain did not resolve to a response")

	// ErrBodyTooLarge marks the requests whose body exceeds the
	// configured maximum.
	ErrBodyTooLarge = errors.New("request body too large")

	errNilContext     = errors.New("nil session context")
	errEmptyContextID = errors.New("session context without id")
	errMissingURL     = errors.New("missing request url")
	errNilResponse    = errors.New("nil response")
)

// ContextError is returned when the session context of a request
// could not be created or decorated. No response is written in this
// case.
type ContextError struct {
	Err error
}

func (e *ContextError) Error() string { return fmt.Sprintf("failed to create session context: %v", e.Err) }
func (e *ContextError) Unwrap() error { return e.Err }

// RequestBuildError is returned by a ContextFactory when the request
// message could not be built from the transport request.
type RequestBuildError struct {
	Err error
}

func (e *RequestBuildError) Error() string { return fmt.Sprintf("failed to build request: %v", e.Err) }
func (e *RequestBuildError) Unwrap() error { return e.Err }

// ResponseWriteError is returned when the resolved response could not
// be written to the client.
type ResponseWriteError struct {
	Err error
}

func (e *ResponseWriteError) Error() string { return fmt.Sprintf("failed to write response: %v", e.Err) }
func (e *ResponseWriteError) Unwrap() error { return e.Err }
