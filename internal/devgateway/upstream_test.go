package devgateway

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aithena-ai/chatstream/internal/model"
)

func TestCannedStreamerJoinsToReply(t *testing.T) {
	s := &CannedStreamer{Reply: "one two three"}

	var tokens []string
	err := s.StreamTokens(context.Background(), "gpt-test", model.ConversationRequest{}, func(tok string) error {
		tokens = append(tokens, tok)
		return nil
	})
	require.NoError(t, err)
	assert.Greater(t, len(tokens), 1, "reply must be split into multiple tokens")
	assert.Equal(t, "one two three", strings.Join(tokens, ""))
}

func TestCannedStreamerDefaultReply(t *testing.T) {
	s := &CannedStreamer{}

	var full strings.Builder
	err := s.StreamTokens(context.Background(), "gpt-test", model.ConversationRequest{}, func(tok string) error {
		full.WriteString(tok)
		return nil
	})
	require.NoError(t, err)
	assert.NotEmpty(t, full.String())
}

func TestCannedStreamerStopsOnCallbackError(t *testing.T) {
	s := &CannedStreamer{Reply: "one two three"}
	stop := errors.New("enough")

	calls := 0
	err := s.StreamTokens(context.Background(), "gpt-test", model.ConversationRequest{}, func(string) error {
		calls++
		return stop
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, calls)
}

func TestCannedStreamerHonorsContext(t *testing.T) {
	s := &CannedStreamer{Reply: "one two three"}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.StreamTokens(ctx, "gpt-test", model.ConversationRequest{}, func(string) error {
		t.Fatal("callback must not run after cancellation")
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
}
