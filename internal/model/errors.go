package model

import (
	"fmt"
)

// ValidationError reports request input that fails precondition checks. It
// is raised before any network call is made.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// TransportError reports a connection-level failure (timeout, refused
// connection, DNS failure). It is terminal for the current call and is never
// retried internally.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ServerError reports a non-2xx gateway response. Detail carries the
// human-readable message extracted from the body when one was present.
type ServerError struct {
	StatusCode int
	Detail     string
}

func (e *ServerError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("gateway returned %d: %s", e.StatusCode, e.Detail)
	}
	return fmt.Sprintf("gateway returned %d", e.StatusCode)
}

// DecodeError reports a response body whose shape is not recognized. For the
// non-streaming completion path this is fatal; streaming recovers per chunk.
type DecodeError struct {
	Reason string
}

func (e *DecodeError) Error() string {
	return "decode response: " + e.Reason
}
