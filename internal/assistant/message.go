// Package assistant implements the response-interpretation core of the
// chat feature: the message data model, tool-call extraction from model
// output, sequential tool execution, and the conversation controller
// that orchestrates one full turn.
package assistant

import (
	"time"

	"github.com/google/uuid"
)

// Role of a conversation message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// CallStatus tracks a tool call's lifecycle. A call transitions from
// pending to exactly one of success or error and never reverts.
type CallStatus string

const (
	CallPending CallStatus = "pending"
	CallSuccess CallStatus = "success"
	CallError   CallStatus = "error"
)

// ToolCall is one extracted call descriptor. Name is always non-empty;
// entries without a name are dropped at extraction time. Result stays
// empty until execution completes.
type ToolCall struct {
	Name   string
	Params map[string]any
	Result string
	Status CallStatus
}

// Message is one entry in the conversation. Immutable after append
// except for the ToolCalls sublist, whose elements are updated as the
// executor resolves them.
type Message struct {
	ID        string
	Role      Role
	Content   string
	HTML      string
	Timestamp time.Time
	ToolCalls []*ToolCall
}

// NewMessage builds a message with a fresh id and the current time.
func NewMessage(role Role, content string) *Message {
	return &Message{
		ID:        uuid.New().String(),
		Role:      role,
		Content:   content,
		Timestamp: time.Now(),
	}
}
