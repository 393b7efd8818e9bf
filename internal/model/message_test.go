package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrepareForSendDropsEmptyAssistantMessages(t *testing.T) {
	base := time.Now()
	messages := []ChatMessage{
		{Role: RoleUser, Content: "Hi", Timestamp: base},
		{Role: RoleAssistant, Content: "", Timestamp: base.Add(time.Second)},
		{Role: RoleAssistant, Content: "Hello!", Timestamp: base.Add(2 * time.Second)},
		{Role: RoleUser, Content: "Tell me more", Timestamp: base.Add(3 * time.Second)},
	}

	wire := PrepareForSend(messages)
	require.Len(t, wire, 3)
	assert.Equal(t, "Hi", wire[0].Content)
	assert.Equal(t, "Hello!", wire[1].Content)
	assert.Equal(t, "Tell me more", wire[2].Content)
}

func TestPrepareForSendReordersByTimestamp(t *testing.T) {
	base := time.Now()
	messages := []ChatMessage{
		{Role: RoleUser, Content: "second", Timestamp: base.Add(time.Minute)},
		{Role: RoleSystem, Content: "first", Timestamp: base},
	}

	wire := PrepareForSend(messages)
	require.Len(t, wire, 2)
	assert.Equal(t, RoleSystem, wire[0].Role)
	assert.Equal(t, RoleUser, wire[1].Role)
}

func TestPrepareForSendKeepsEmptyUserContent(t *testing.T) {
	// Only assistant placeholders are filtered.
	wire := PrepareForSend([]ChatMessage{{Role: RoleUser, Content: ""}})
	assert.Len(t, wire, 1)
}
