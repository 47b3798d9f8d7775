// Package llm defines the completion gateway interface and related types.
// The gateway takes role-tagged messages and returns one text completion.
// It never retries; retry policy lives with the caller.
package llm

import "context"

// Role tags who authored a message.
type Role string

// Role constants for Message.Role.
const (
	RoleSystem Role = "system"
	RoleUser   Role = "user"
	// RoleAssistant is never sent in a prompt. Agent memory uses it to
	// record replies, matching the chat wire format.
	RoleAssistant Role = "assistant"
)

// Message is a single role-tagged unit of exchange with the gateway.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// SystemMessage builds a message with the system role.
func SystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// UserMessage builds a message with the user role.
func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// Gateway is the boundary to the external text-generation service.
// Complete performs exactly one call. Failures are *errors.GatewayError
// values of kind transport or decode.
type Gateway interface {
	Complete(ctx context.Context, msgs []Message) (string, error)
}

// GatewayFunc adapts a function to the Gateway interface.
type GatewayFunc func(ctx context.Context, msgs []Message) (string, error)

// Complete calls f.
func (f GatewayFunc) Complete(ctx context.Context, msgs []Message) (string, error) {
	return f(ctx, msgs)
}
