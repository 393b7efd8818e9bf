package model

import (
	"encoding/json"
)

// ChunkKind discriminates the recognized shapes of one decoded wire chunk.
// Classification happens exactly once per chunk; consumers switch on the
// kind instead of re-inspecting the payload.
type ChunkKind int

const (
	// ChunkIgnored is any unrecognized payload. It must be treated as a
	// no-op to stay forward compatible with server-side format changes.
	ChunkIgnored ChunkKind = iota
	// ChunkEncrypted carries a complete encrypted delta bundle.
	ChunkEncrypted
	// ChunkFinal is the is_final completion marker; it carries no content.
	ChunkFinal
	// ChunkPartialEncrypted has content but is missing one or more of the
	// encryption fields.
	ChunkPartialEncrypted
	// ChunkInbandError is a server-reported application error object.
	ChunkInbandError
)

// EncryptedPayload is an encrypted delta bundle as it appears on the wire.
// All fields are base64 encoded.
type EncryptedPayload struct {
	Content      string `json:"content"`
	EncryptedKey string `json:"encrypted_key"`
	IV           string `json:"iv"`
	Tag          string `json:"tag"`
}

// StreamChunk is a single classified unit from the wire.
type StreamChunk struct {
	Kind    ChunkKind
	Bundle  EncryptedPayload // set for ChunkEncrypted and ChunkPartialEncrypted
	Message string           // set for ChunkInbandError
}

// rawChunk mirrors the union of fields a chunk payload may carry. Pointers
// distinguish absent fields from empty ones.
type rawChunk struct {
	Content      *string `json:"content"`
	EncryptedKey *string `json:"encrypted_key"`
	IV           *string `json:"iv"`
	Tag          *string `json:"tag"`
	IsFinal      bool    `json:"is_final"`
	Error        *string `json:"error"`
}

// ClassifyChunk parses one chunk payload and classifies it. The boolean is
// false when the payload is not valid JSON at all; such lines are skipped by
// the caller without terminating the stream.
func ClassifyChunk(payload []byte) (StreamChunk, bool) {
	var raw rawChunk
	if err := json.Unmarshal(payload, &raw); err != nil {
		return StreamChunk{}, false
	}

	switch {
	case raw.Error != nil && *raw.Error != "":
		return StreamChunk{Kind: ChunkInbandError, Message: *raw.Error}, true

	case raw.Content != nil && raw.EncryptedKey != nil && raw.IV != nil && raw.Tag != nil:
		return StreamChunk{
			Kind: ChunkEncrypted,
			Bundle: EncryptedPayload{
				Content:      *raw.Content,
				EncryptedKey: *raw.EncryptedKey,
				IV:           *raw.IV,
				Tag:          *raw.Tag,
			},
		}, true

	case raw.IsFinal && raw.Content == nil:
		return StreamChunk{Kind: ChunkFinal}, true

	case raw.Content != nil:
		bundle := EncryptedPayload{Content: *raw.Content}
		if raw.EncryptedKey != nil {
			bundle.EncryptedKey = *raw.EncryptedKey
		}
		if raw.IV != nil {
			bundle.IV = *raw.IV
		}
		if raw.Tag != nil {
			bundle.Tag = *raw.Tag
		}
		return StreamChunk{Kind: ChunkPartialEncrypted, Bundle: bundle}, true

	default:
		return StreamChunk{Kind: ChunkIgnored}, true
	}
}
