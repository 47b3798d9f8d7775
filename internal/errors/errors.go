// Package errors provides structured error types for the agent engine.
package errors

import (
	"context"
	"errors"
	"fmt"
)

// Sentinel errors for common failure modes.
var (
	ErrTimeout      = errors.New("operation timed out")
	ErrAuthFailure  = errors.New("authentication failed")
	ErrRateLimit    = errors.New("rate limit exceeded")
	ErrNotFound     = errors.New("resource not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrUnavailable  = errors.New("service unavailable")
	ErrTooManyBugs  = errors.New("bug-fix budget exhausted")
)

// GatewayKind classifies a completion gateway failure.
type GatewayKind string

const (
	KindTransport GatewayKind = "transport"
	KindDecode    GatewayKind = "decode"
)

// GatewayError is a failure of a single completion gateway call.
type GatewayError struct {
	Kind       GatewayKind
	StatusCode int
	Message    string
	Err        error
}

func (e *GatewayError) Error() string {
	msg := fmt.Sprintf("gateway %s error", e.Kind)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += fmt.Sprintf(": %v", e.Err)
	}
	return msg
}

func (e *GatewayError) Unwrap() error { return e.Err }

// NewTransportError wraps a network or HTTP failure.
func NewTransportError(statusCode int, message string, err error) *GatewayError {
	return &GatewayError{Kind: KindTransport, StatusCode: statusCode, Message: message, Err: err}
}

// NewDecodeError wraps a response that did not have the expected shape.
func NewDecodeError(message string, err error) *GatewayError {
	return &GatewayError{Kind: KindDecode, Message: message, Err: err}
}

// AsGatewayError returns err as a *GatewayError. Errors that are not already
// classified are treated as transport failures.
func AsGatewayError(err error) *GatewayError {
	if err == nil {
		return nil
	}
	var gwErr *GatewayError
	if errors.As(err, &gwErr) {
		return gwErr
	}
	return &GatewayError{Kind: KindTransport, Err: err}
}

// SchemaDecodeError means the LLM output could not be parsed as the expected type.
type SchemaDecodeError struct {
	Target string
	Text   string
	Err    error
}

func (e *SchemaDecodeError) Error() string {
	return fmt.Sprintf("decode llm output as %s: %v", e.Target, e.Err)
}

func (e *SchemaDecodeError) Unwrap() error { return e.Err }

// AgentExecutionError reports that an agent could not finish its work.
type AgentExecutionError struct {
	Agent string
	Phase string
	Err   error
}

func (e *AgentExecutionError) Error() string {
	if e.Phase != "" {
		return fmt.Sprintf("agent %q failed in %s: %v", e.Agent, e.Phase, e.Err)
	}
	return fmt.Sprintf("agent %q failed: %v", e.Agent, e.Err)
}

func (e *AgentExecutionError) Unwrap() error { return e.Err }

// IOError is a template or output file access failure.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// FatalError is raised once a request has used up its retry and failed again.
type FatalError struct {
	Agent     string
	Operation string
	Attempts  int
	Err       error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("%s: %s failed after %d attempts: %v", e.Agent, e.Operation, e.Attempts, e.Err)
}

func (e *FatalError) Unwrap() error { return e.Err }

// IsRetryable returns true if the error is likely transient and worth retrying.
// Every gateway failure qualifies, including client timeouts; whether the
// caller's own context has ended is checked by retry.Do, not here.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var gwErr *GatewayError
	if errors.As(err, &gwErr) {
		return true
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return errors.Is(err, ErrTimeout) || errors.Is(err, ErrRateLimit) || errors.Is(err, ErrUnavailable)
}

// IsFatal reports whether err carries one of the non-recoverable error kinds.
func IsFatal(err error) bool {
	var (
		fatal  *FatalError
		schema *SchemaDecodeError
		ioErr  *IOError
		agent  *AgentExecutionError
	)
	return errors.As(err, &fatal) || errors.As(err, &schema) || errors.As(err, &ioErr) || errors.As(err, &agent)
}

// Kind returns a short label for metrics.
func Kind(err error) string {
	var (
		gwErr  *GatewayError
		fatal  *FatalError
		schema *SchemaDecodeError
		ioErr  *IOError
		agent  *AgentExecutionError
	)
	switch {
	case err == nil:
		return "none"
	case errors.As(err, &schema):
		return "schema_decode"
	case errors.As(err, &ioErr):
		return "io"
	case errors.As(err, &fatal):
		return "fatal"
	case errors.As(err, &gwErr):
		return "gateway_" + string(gwErr.Kind)
	case errors.As(err, &agent):
		return "agent"
	default:
		return "other"
	}
}
