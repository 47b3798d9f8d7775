package errors

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGatewayError_Error(t *testing.T) {
	err := NewTransportError(502, "bad gateway", nil)
	assert.Contains(t, err.Error(), "transport")
	assert.Contains(t, err.Error(), "502")
	assert.Contains(t, err.Error(), "bad gateway")
}

func TestGatewayError_WithWrapped(t *testing.T) {
	inner := errors.New("connection refused")
	err := NewTransportError(0, "", inner)
	assert.ErrorIs(t, err, inner)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestAsGatewayError(t *testing.T) {
	assert.Nil(t, AsGatewayError(nil))

	plain := errors.New("boom")
	gw := AsGatewayError(plain)
	assert.Equal(t, KindTransport, gw.Kind)
	assert.ErrorIs(t, gw, plain)

	decode := NewDecodeError("no choices", nil)
	wrapped := fmt.Errorf("call: %w", decode)
	assert.Same(t, decode, AsGatewayError(wrapped))
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(NewTransportError(500, "", nil)))
	assert.True(t, IsRetryable(NewDecodeError("bad json", nil)))
	assert.True(t, IsRetryable(fmt.Errorf("wrapped: %w", NewTransportError(429, "", nil))))
	assert.True(t, IsRetryable(ErrTimeout))
	assert.True(t, IsRetryable(ErrRateLimit))

	assert.False(t, IsRetryable(nil))
	assert.False(t, IsRetryable(&SchemaDecodeError{Target: "x", Err: errors.New("eof")}))
	assert.False(t, IsRetryable(&IOError{Op: "read", Path: "/x", Err: ErrNotFound}))
	assert.True(t, IsRetryable(NewTransportError(0, "http", fmt.Errorf("Client.Timeout exceeded: %w", context.DeadlineExceeded))))
	assert.False(t, IsRetryable(context.Canceled))
	assert.False(t, IsRetryable(fmt.Errorf("wrapped: %w", context.DeadlineExceeded)))
	assert.False(t, IsRetryable(ErrAuthFailure))
}

func TestIsFatal(t *testing.T) {
	assert.True(t, IsFatal(&FatalError{Agent: "a", Operation: "op", Attempts: 2, Err: ErrTimeout}))
	assert.True(t, IsFatal(&SchemaDecodeError{Target: "x", Err: ErrInvalidInput}))
	assert.True(t, IsFatal(&AgentExecutionError{Agent: "a", Err: ErrTooManyBugs}))
	assert.False(t, IsFatal(NewTransportError(500, "", nil)))
}

func TestKind(t *testing.T) {
	assert.Equal(t, "none", Kind(nil))
	assert.Equal(t, "gateway_decode", Kind(NewDecodeError("", nil)))
	assert.Equal(t, "fatal", Kind(&AgentExecutionError{Agent: "a", Err: &FatalError{Err: NewTransportError(0, "", nil)}}))
	assert.Equal(t, "io", Kind(&AgentExecutionError{Agent: "a", Err: &IOError{Op: "read", Err: ErrNotFound}}))
	assert.Equal(t, "other", Kind(errors.New("x")))
}

func TestAgentExecutionError_Message(t *testing.T) {
	err := &AgentExecutionError{Agent: "Backend Developer", Phase: "Working", Err: ErrTimeout}
	assert.Contains(t, err.Error(), "Backend Developer")
	assert.Contains(t, err.Error(), "Working")
	assert.ErrorIs(t, err, ErrTimeout)
}
