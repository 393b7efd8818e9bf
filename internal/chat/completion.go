package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/aithena-ai/chatstream/internal/model"
)

// GenerateChatCompletion issues a non-streaming generation request and
// returns the completed reply text.
//
// Unlike StreamChat there is no per-chunk recovery: validation, transport,
// server, and unrecognized-shape failures are returned as typed errors. The
// one exception is a decrypt failure on an otherwise well-formed response,
// which returns the decryption placeholder string so a single bad payload
// does not crash the caller.
func (c *Client) GenerateChatCompletion(ctx context.Context, modelName string, messages []model.ChatMessage, conversationID string, opts *Options) (string, error) {
	ctx, span := c.tracer.Start(ctx, "chat.GenerateChatCompletion", trace.WithAttributes(
		attribute.String("chat.model", modelName),
		attribute.String("chat.conversation_id", conversationID),
	))
	defer span.End()

	wire := model.PrepareForSend(messages)
	if len(wire) > 0 && wire[len(wire)-1].Role != model.RoleUser {
		c.logger.Warn("last outbound message is not from user",
			zap.String("conversation_id", conversationID),
		)
	}
	if verr := validateInputs(modelName, wire, conversationID); verr != nil {
		return "", verr
	}

	payload, err := buildRequestBody(wire, false, conversationID, opts)
	if err != nil {
		return "", &model.ValidationError{Field: "request", Reason: err.Error()}
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.generateTimeout)
	defer cancel()

	req, err := c.newRequest(reqCtx, http.MethodPost, c.generateURL(modelName), bytes.NewReader(payload))
	if err != nil {
		return "", &model.TransportError{Op: "prepare generation request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		span.RecordError(err)
		return "", &model.TransportError{Op: "generate completion", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		detail, _ := readErrorDetail(resp)
		return "", &model.ServerError{StatusCode: resp.StatusCode, Detail: detail}
	}

	var completion model.CompletionResponse
	if err := json.NewDecoder(resp.Body).Decode(&completion); err != nil {
		return "", &model.DecodeError{Reason: err.Error()}
	}

	switch {
	case completion.IsEncrypted != nil && *completion.IsEncrypted:
		if completion.Content == nil || completion.EncryptedKey == nil || completion.IV == nil || completion.Tag == nil {
			return "", &model.DecodeError{Reason: "encrypted completion is missing fields"}
		}
		text, err := c.decryptChunk(model.EncryptedPayload{
			Content:      *completion.Content,
			EncryptedKey: *completion.EncryptedKey,
			IV:           *completion.IV,
			Tag:          *completion.Tag,
		})
		if err != nil {
			c.logger.Warn("failed to decrypt completion",
				zap.String("conversation_id", conversationID),
				zap.Error(err),
			)
			return PlaceholderDecryptError, nil
		}
		return text, nil

	case completion.IsEncrypted != nil && !*completion.IsEncrypted && completion.Content != nil:
		c.logger.Warn("gateway returned a plaintext completion",
			zap.String("model", modelName),
		)
		return *completion.Content, nil

	default:
		return "", &model.DecodeError{Reason: "unrecognized completion shape"}
	}
}
