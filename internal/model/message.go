// Package model defines data structures shared by the chat client packages.
package model

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// Role represents the role of a message sender.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// ChatMessage represents one turn in a conversation.
type ChatMessage struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`

	// Model is the LLM that produced the message, set for assistant messages.
	Model string `json:"model,omitempty"`
}

// NewUserMessage creates a user message with a generated ID and the current time.
func NewUserMessage(content string) ChatMessage {
	return ChatMessage{
		ID:        uuid.New().String(),
		Role:      RoleUser,
		Content:   content,
		Timestamp: time.Now(),
	}
}

// NewAssistantMessage creates an assistant message attributed to a model.
func NewAssistantMessage(content, model string) ChatMessage {
	return ChatMessage{
		ID:        uuid.New().String(),
		Role:      RoleAssistant,
		Content:   content,
		Timestamp: time.Now(),
		Model:     model,
	}
}

// WireMessage is the role+content pair sent to the gateway. IDs and
// timestamps are never serialized.
type WireMessage struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// PrepareForSend converts messages to their wire form: assistant messages
// with empty content are dropped (placeholder and error states must never be
// replayed to the model) and the remainder is sorted ascending by timestamp.
func PrepareForSend(messages []ChatMessage) []WireMessage {
	kept := make([]ChatMessage, 0, len(messages))
	for _, m := range messages {
		if m.Role == RoleAssistant && m.Content == "" {
			continue
		}
		kept = append(kept, m)
	}

	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].Timestamp.Before(kept[j].Timestamp)
	})

	wire := make([]WireMessage, len(kept))
	for i, m := range kept {
		wire[i] = WireMessage{Role: m.Role, Content: m.Content}
	}
	return wire
}
