package devgateway

import (
	"context"
	"errors"
	"io"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/aithena-ai/chatstream/internal/model"
)

// TokenStreamer produces reply tokens for a generation request.
type TokenStreamer interface {
	StreamTokens(ctx context.Context, modelName string, req model.ConversationRequest, fn func(token string) error) error
}

// CannedStreamer replies with a fixed deterministic text, split into
// word tokens. It is the default when no upstream is configured.
type CannedStreamer struct {
	Reply string
}

const defaultCannedReply = "This is a canned reply from the development gateway. " +
	"Configure OPENAI_API_KEY to proxy generation to a real upstream."

// StreamTokens yields the canned reply one word at a time.
func (s *CannedStreamer) StreamTokens(ctx context.Context, modelName string, req model.ConversationRequest, fn func(string) error) error {
	reply := s.Reply
	if reply == "" {
		reply = defaultCannedReply
	}
	for _, token := range strings.SplitAfter(reply, " ") {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err := fn(token); err != nil {
			return err
		}
	}
	return nil
}

// OpenAIStreamer proxies generation to an OpenAI-compatible upstream, the
// same way the production backend fronts its LiteLLM proxy.
type OpenAIStreamer struct {
	client *openai.Client
}

// NewOpenAIStreamer creates an upstream streamer. baseURL may be empty for
// the default OpenAI endpoint.
func NewOpenAIStreamer(apiKey, baseURL string) *OpenAIStreamer {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAIStreamer{client: openai.NewClientWithConfig(cfg)}
}

// StreamTokens opens an upstream completion stream and forwards each
// content delta.
func (s *OpenAIStreamer) StreamTokens(ctx context.Context, modelName string, req model.ConversationRequest, fn func(string) error) error {
	messages := make([]openai.ChatCompletionMessage, len(req.Messages))
	for i, msg := range req.Messages {
		messages[i] = openai.ChatCompletionMessage{
			Role:    string(msg.Role),
			Content: msg.Content,
		}
	}

	upstreamReq := openai.ChatCompletionRequest{
		Model:    modelName,
		Messages: messages,
		Stream:   true,
	}
	if req.Temperature != nil {
		upstreamReq.Temperature = float32(*req.Temperature)
	}
	if req.MaxTokens != nil {
		upstreamReq.MaxTokens = *req.MaxTokens
	}

	stream, err := s.client.CreateChatCompletionStream(ctx, upstreamReq)
	if err != nil {
		return err
	}
	defer stream.Close()

	for {
		response, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if len(response.Choices) == 0 {
			continue
		}
		if delta := response.Choices[0].Delta.Content; delta != "" {
			if err := fn(delta); err != nil {
				return err
			}
		}
	}
}
