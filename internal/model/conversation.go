package model

import (
	"time"
)

// Conversation represents a conversation thread as returned by the gateway.
type Conversation struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	MessageCount int       `json:"message_count,omitempty"`
}

// CreateConversationRequest is the request to create a new conversation.
type CreateConversationRequest struct {
	Title string `json:"title"`
}

// UpdateTitleRequest is the request to rename a conversation.
type UpdateTitleRequest struct {
	Title string `json:"title"`
}

// AddMessageRequest appends a message to a stored conversation. Content is
// an encrypted bundle when the client has a content transform configured.
type AddMessageRequest struct {
	Role      Role              `json:"role"`
	Content   string            `json:"content,omitempty"`
	Encrypted *EncryptedPayload `json:"encrypted,omitempty"`
}

// ListConversationsResponse is the response for listing conversations.
type ListConversationsResponse struct {
	Conversations []Conversation `json:"conversations"`
	Total         int            `json:"total"`
}
