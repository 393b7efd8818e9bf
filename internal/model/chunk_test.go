package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyChunkEncrypted(t *testing.T) {
	payload := []byte(`{"content":"abc","encrypted_key":"k","iv":"i","tag":"t"}`)

	chunk, ok := ClassifyChunk(payload)
	require.True(t, ok)
	assert.Equal(t, ChunkEncrypted, chunk.Kind)
	assert.Equal(t, "abc", chunk.Bundle.Content)
	assert.Equal(t, "k", chunk.Bundle.EncryptedKey)
	assert.Equal(t, "i", chunk.Bundle.IV)
	assert.Equal(t, "t", chunk.Bundle.Tag)
}

func TestClassifyChunkCompleteBundleNeverPartial(t *testing.T) {
	// An object with all four fields must never fall through to the
	// missing-keys branch, even with empty values.
	payload := []byte(`{"content":"","encrypted_key":"","iv":"","tag":""}`)

	chunk, ok := ClassifyChunk(payload)
	require.True(t, ok)
	assert.Equal(t, ChunkEncrypted, chunk.Kind)
}

func TestClassifyChunkPartial(t *testing.T) {
	cases := map[string]string{
		"content only":  `{"content":"abc"}`,
		"missing tag":   `{"content":"abc","encrypted_key":"k","iv":"i"}`,
		"missing iv":    `{"content":"abc","encrypted_key":"k","tag":"t"}`,
		"only key pair": `{"content":"abc","encrypted_key":"k"}`,
	}
	for name, payload := range cases {
		t.Run(name, func(t *testing.T) {
			chunk, ok := ClassifyChunk([]byte(payload))
			require.True(t, ok)
			assert.Equal(t, ChunkPartialEncrypted, chunk.Kind)
		})
	}
}

func TestClassifyChunkFinalMarker(t *testing.T) {
	chunk, ok := ClassifyChunk([]byte(`{"is_final":true}`))
	require.True(t, ok)
	assert.Equal(t, ChunkFinal, chunk.Kind)
}

func TestClassifyChunkFinalWithContentIsNotFinal(t *testing.T) {
	// is_final plus content keeps the content branch.
	chunk, ok := ClassifyChunk([]byte(`{"is_final":true,"content":"x"}`))
	require.True(t, ok)
	assert.Equal(t, ChunkPartialEncrypted, chunk.Kind)
}

func TestClassifyChunkInbandError(t *testing.T) {
	chunk, ok := ClassifyChunk([]byte(`{"error":"quota exceeded"}`))
	require.True(t, ok)
	assert.Equal(t, ChunkInbandError, chunk.Kind)
	assert.Equal(t, "quota exceeded", chunk.Message)
}

func TestClassifyChunkUnrecognized(t *testing.T) {
	cases := map[string]string{
		"empty object":  `{}`,
		"role preamble": `{"role":"assistant"}`,
		"empty error":   `{"error":""}`,
		"future field":  `{"usage":{"completion_tokens":12}}`,
	}
	for name, payload := range cases {
		t.Run(name, func(t *testing.T) {
			chunk, ok := ClassifyChunk([]byte(payload))
			require.True(t, ok)
			assert.Equal(t, ChunkIgnored, chunk.Kind)
		})
	}
}

func TestClassifyChunkMalformed(t *testing.T) {
	_, ok := ClassifyChunk([]byte(`{"content": not json`))
	assert.False(t, ok)
}
