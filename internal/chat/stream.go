package chat

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/aithena-ai/chatstream/internal/model"
	"github.com/aithena-ai/chatstream/pkg/metrics"
)

// dataPrefix is the SSE framing prefix on each payload line.
const dataPrefix = "data:"

// doneSentinel terminates the decode loop normally.
const doneSentinel = "[DONE]"

// DeltaFunc receives each delta in arrival order. Returning a non-nil error
// abandons the stream; the connection is released before StreamChat returns.
type DeltaFunc func(model.Delta) error

// StreamChat issues a streaming generation request and yields deltas to fn.
//
// Failures never escape as errors of their own: validation, transport, and
// server failures are delivered as a single terminal error delta so the UI
// can render them as an assistant message. The returned error is non-nil
// only when fn itself returned one.
func (c *Client) StreamChat(ctx context.Context, modelName string, messages []model.ChatMessage, conversationID string, opts *Options, fn DeltaFunc) error {
	ctx, span := c.tracer.Start(ctx, "chat.StreamChat", trace.WithAttributes(
		attribute.String("chat.model", modelName),
		attribute.String("chat.conversation_id", conversationID),
	))
	defer span.End()

	start := c.now()
	status := "ok"
	defer func() {
		metrics.RecordStream(modelName, status, c.now().Sub(start).Seconds())
	}()

	emit := func(d model.Delta) error {
		metrics.RecordDelta(deltaKindLabel(d.Kind))
		return fn(d)
	}

	wire := model.PrepareForSend(messages)
	if len(wire) > 0 && wire[len(wire)-1].Role != model.RoleUser {
		// Design smell inherited from the protocol: logged, not fatal.
		c.logger.Warn("last outbound message is not from user",
			zap.String("conversation_id", conversationID),
		)
	}

	if verr := validateInputs(modelName, wire, conversationID); verr != nil {
		status = "validation_error"
		c.logger.Warn("stream request failed validation", zap.Error(verr))
		return emit(model.ErrorDelta(model.ErrorKindValidation, verr.Error()))
	}

	payload, err := buildRequestBody(wire, true, conversationID, opts)
	if err != nil {
		status = "validation_error"
		return emit(model.ErrorDelta(model.ErrorKindValidation, "encode request: "+err.Error()))
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.generateTimeout)
	defer cancel()

	req, err := c.newRequest(reqCtx, http.MethodPost, c.generateURL(modelName), bytes.NewReader(payload))
	if err != nil {
		status = "transport_error"
		return emit(model.ErrorDelta(model.ErrorKindTransport, "prepare request: "+err.Error()))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		status = "transport_error"
		span.RecordError(err)
		c.logger.Error("stream request failed",
			zap.String("model", modelName),
			zap.Error(err),
		)
		return emit(model.ErrorDelta(model.ErrorKindTransport, describeTransportError(err, c.generateTimeout)))
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		status = "server_error"
		detail, hasDetail := readErrorDetail(resp)
		if !hasDetail {
			detail = fmt.Sprintf("status %d: %s", resp.StatusCode, detail)
		}
		c.logger.Warn("gateway rejected stream request",
			zap.String("model", modelName),
			zap.Int("status", resp.StatusCode),
		)
		return emit(model.ErrorDelta(model.ErrorKindServer, detail))
	}

	if err := c.decodeStream(resp, conversationID, emit); err != nil {
		var abort *callerAbort
		if errors.As(err, &abort) {
			status = "canceled"
			return abort.err
		}
		status = "transport_error"
		span.RecordError(err)
		return emit(model.ErrorDelta(model.ErrorKindTransport, describeTransportError(err, c.generateTimeout)))
	}
	return nil
}

// callerAbort wraps an error returned by the caller's DeltaFunc so it can be
// told apart from transport failures.
type callerAbort struct {
	err error
}

func (e *callerAbort) Error() string {
	return "stream abandoned by caller: " + e.err.Error()
}

// decodeStream runs the line decode loop over the response body. It returns
// nil on normal termination ([DONE] or end of body), a *callerAbort when the
// caller stopped the stream, and the read error otherwise.
func (c *Client) decodeStream(resp *http.Response, conversationID string, emit DeltaFunc) error {
	scanner := bufio.NewScanner(resp.Body)
	// Encrypted chunk lines can be large; raise the line limit well above
	// the bufio default.
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, dataPrefix) {
			line = strings.TrimSpace(line[len(dataPrefix):])
		}
		if line == doneSentinel {
			return nil
		}

		chunk, ok := model.ClassifyChunk([]byte(line))
		if !ok {
			// A malformed line must not terminate the stream.
			metrics.DecodeErrorsTotal.Inc()
			c.logger.Debug("skipping malformed stream line",
				zap.String("conversation_id", conversationID),
				zap.String("line", truncate(line, 200)),
			)
			continue
		}

		var delta model.Delta
		switch chunk.Kind {
		case model.ChunkEncrypted:
			text, err := c.decryptChunk(chunk.Bundle)
			if err != nil {
				// One bad chunk must not abort the whole stream.
				metrics.DecryptFailuresTotal.Inc()
				c.logger.Warn("failed to decrypt stream chunk",
					zap.String("conversation_id", conversationID),
					zap.Error(err),
				)
				delta = model.PlaceholderDelta(PlaceholderDecryptError)
			} else {
				delta = model.TextDelta(text)
			}

		case model.ChunkInbandError:
			// Server-reported application error: surfaced as plain content,
			// processing continues.
			delta = model.TextDelta(chunk.Message)

		case model.ChunkPartialEncrypted:
			delta = model.PlaceholderDelta(PlaceholderMissingKeys)

		case model.ChunkFinal, model.ChunkIgnored:
			continue
		}

		if err := emit(delta); err != nil {
			return &callerAbort{err: err}
		}
	}
	return scanner.Err()
}

// decryptChunk runs one bundle through the injected content transform.
func (c *Client) decryptChunk(bundle model.EncryptedPayload) (string, error) {
	if c.transform == nil {
		return "", errors.New("no content transform configured")
	}
	return c.transform.Decrypt(bundle)
}

func (c *Client) generateURL(modelName string) string {
	return c.baseURL + "/chat/" + url.PathEscape(modelName) + "/generate"
}

func describeTransportError(err error, timeout time.Duration) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Sprintf("request timed out after %s", timeout)
	}
	if errors.Is(err, context.Canceled) {
		return "request canceled"
	}
	return "connection failed: " + err.Error()
}

func deltaKindLabel(kind model.DeltaKind) string {
	switch kind {
	case model.DeltaText:
		return "text"
	case model.DeltaError:
		return "error"
	case model.DeltaPlaceholder:
		return "placeholder"
	default:
		return "unknown"
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
