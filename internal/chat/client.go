// Package chat implements the streaming chat client for the gateway's
// chat-completion endpoints.
package chat

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/aithena-ai/chatstream/internal/auth"
	"github.com/aithena-ai/chatstream/internal/crypto"
	"github.com/aithena-ai/chatstream/internal/model"
	"github.com/aithena-ai/chatstream/pkg/logger"
)

const (
	// defaultGenerateTimeout bounds generation calls. LLM generation can
	// legitimately run much longer than a CRUD round trip.
	defaultGenerateTimeout = 60 * time.Second

	// defaultMetadataTimeout bounds metadata calls, which should fail fast.
	defaultMetadataTimeout = 20 * time.Second

	defaultModelCacheTTL = 10 * time.Minute
)

// Placeholder strings substituted for individual chunks that could not be
// recovered. The UI renders these distinctly from model output.
const (
	PlaceholderDecryptError = "[Decryption Error]"
	PlaceholderMissingKeys  = "[Missing Encryption Keys]"
)

// Options carries optional generation parameters. Temperature is
// 0.0-2.0 semantically but is not enforced client-side.
type Options struct {
	Temperature *float64
	MaxTokens   *int
}

// ClientConfig holds configuration for the chat client. Zero values take
// defaults.
type ClientConfig struct {
	// BaseURL is the gateway base URL, e.g. http://localhost:8080.
	BaseURL string

	// GenerateTimeout bounds streaming and non-streaming generation calls.
	GenerateTimeout time.Duration

	// MetadataTimeout bounds model listing and other metadata calls.
	MetadataTimeout time.Duration

	// ModelCacheTTL is the freshness window of the model list cache.
	ModelCacheTTL time.Duration

	// HTTPClient overrides the transport, mainly for tests.
	HTTPClient *http.Client

	// Clock overrides time.Now, mainly for cache tests.
	Clock func() time.Time
}

// Client issues chat-completion requests against a model-scoped gateway
// endpoint and decodes the responses. It is safe for concurrent use;
// concurrent streams are independent and share no decode state.
type Client struct {
	baseURL    string
	httpClient *http.Client
	headers    auth.HeaderProvider
	transform  crypto.Transform
	logger     *logger.Logger
	tracer     trace.Tracer

	generateTimeout time.Duration
	metadataTimeout time.Duration

	cacheTTL   time.Duration
	now        func() time.Time
	modelCache atomic.Pointer[modelCacheEntry]
	refresh    singleflight.Group
}

// NewClient creates a chat client. transform may be nil when the gateway is
// configured for plaintext responses; encrypted chunks then degrade to
// placeholder deltas.
func NewClient(cfg ClientConfig, headers auth.HeaderProvider, transform crypto.Transform, log *logger.Logger) *Client {
	if cfg.GenerateTimeout == 0 {
		cfg.GenerateTimeout = defaultGenerateTimeout
	}
	if cfg.MetadataTimeout == 0 {
		cfg.MetadataTimeout = defaultMetadataTimeout
	}
	if cfg.ModelCacheTTL == 0 {
		cfg.ModelCacheTTL = defaultModelCacheTTL
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{}
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if log == nil {
		log = logger.NewNop()
	}

	return &Client{
		baseURL:         strings.TrimSuffix(cfg.BaseURL, "/"),
		httpClient:      cfg.HTTPClient,
		headers:         headers,
		transform:       transform,
		logger:          log,
		tracer:          otel.Tracer("github.com/aithena-ai/chatstream/internal/chat"),
		generateTimeout: cfg.GenerateTimeout,
		metadataTimeout: cfg.MetadataTimeout,
		cacheTTL:        cfg.ModelCacheTTL,
		now:             cfg.Clock,
	}
}

// newRequest builds a request with provider headers applied.
func (c *Client) newRequest(ctx context.Context, method, url string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, err
	}
	headers, err := c.headers()
	if err != nil {
		return nil, err
	}
	for name, value := range headers {
		req.Header.Set(name, value)
	}
	return req, nil
}

// validateInputs checks the preconditions shared by the streaming and
// non-streaming generation paths. The wire messages must already be filtered
// and sorted.
func validateInputs(modelName string, wire []model.WireMessage, conversationID string) *model.ValidationError {
	if modelName == "" {
		return &model.ValidationError{Field: "model", Reason: "must not be empty"}
	}
	if len(wire) == 0 {
		return &model.ValidationError{Field: "messages", Reason: "no sendable messages"}
	}
	if conversationID == "" {
		return &model.ValidationError{Field: "conversation_id", Reason: "must not be empty"}
	}
	return nil
}

// buildRequestBody assembles and serializes the outbound payload.
func buildRequestBody(wire []model.WireMessage, stream bool, conversationID string, opts *Options) ([]byte, error) {
	body := model.ConversationRequest{
		Messages:       wire,
		Stream:         stream,
		ConversationID: conversationID,
	}
	if opts != nil {
		body.Temperature = opts.Temperature
		body.MaxTokens = opts.MaxTokens
	}
	return json.Marshal(body)
}

// readErrorDetail extracts the human-readable detail field from a non-2xx
// response body. The boolean reports whether a detail field was present;
// otherwise the trimmed raw body is returned for the generic fallback.
func readErrorDetail(resp *http.Response) (string, bool) {
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		return "", false
	}
	var parsed struct {
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(raw, &parsed); err == nil && parsed.Detail != "" {
		return parsed.Detail, true
	}
	return strings.TrimSpace(string(raw)), false
}
