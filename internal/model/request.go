package model

// ConversationRequest is the outbound chat generation payload.
type ConversationRequest struct {
	Messages       []WireMessage `json:"messages"`
	Stream         bool          `json:"stream"`
	ConversationID string        `json:"conversation_id"`
	Temperature    *float64      `json:"temperature,omitempty"`
	MaxTokens      *int          `json:"max_tokens,omitempty"`
}

// CompletionResponse is the non-streaming response body. Pointer fields
// distinguish absent from empty, which drives shape validation.
type CompletionResponse struct {
	Content      *string `json:"content"`
	EncryptedKey *string `json:"encrypted_key"`
	IV           *string `json:"iv"`
	Tag          *string `json:"tag"`
	IsEncrypted  *bool   `json:"is_encrypted"`
}

// ModelInfo describes one model advertised by the gateway.
type ModelInfo struct {
	ID          string `json:"model_id"`
	DisplayName string `json:"display_name"`
	Provider    string `json:"provider,omitempty"`
}
