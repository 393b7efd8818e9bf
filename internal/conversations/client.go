// Package conversations implements the conversation CRUD client. These are
// plain REST calls with generic HTTP error propagation; the interesting
// failure handling lives in the chat package.
package conversations

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aithena-ai/chatstream/internal/auth"
	"github.com/aithena-ai/chatstream/internal/crypto"
	"github.com/aithena-ai/chatstream/internal/model"
	"github.com/aithena-ai/chatstream/pkg/logger"
)

const defaultTimeout = 20 * time.Second

// Client performs conversation CRUD against the gateway.
type Client struct {
	baseURL    string
	httpClient *http.Client
	headers    auth.HeaderProvider
	transform  crypto.Transform
	logger     *logger.Logger
	timeout    time.Duration
}

// ClientConfig holds configuration for the conversations client.
type ClientConfig struct {
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// New creates a conversations client. transform may be nil; AddMessage then
// submits plaintext content.
func New(cfg ClientConfig, headers auth.HeaderProvider, transform crypto.Transform, log *logger.Logger) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{}
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Client{
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		httpClient: cfg.HTTPClient,
		headers:    headers,
		transform:  transform,
		logger:     log,
		timeout:    cfg.Timeout,
	}
}

// List returns the caller's conversations.
func (c *Client) List(ctx context.Context) ([]model.Conversation, error) {
	var resp model.ListConversationsResponse
	if err := c.do(ctx, http.MethodGet, "/conversations/list", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Conversations, nil
}

// Create creates a new conversation with the given title.
func (c *Client) Create(ctx context.Context, title string) (*model.Conversation, error) {
	var conv model.Conversation
	req := model.CreateConversationRequest{Title: title}
	if err := c.do(ctx, http.MethodPost, "/conversations", req, &conv); err != nil {
		return nil, err
	}
	return &conv, nil
}

// Get fetches one conversation by ID.
func (c *Client) Get(ctx context.Context, id string) (*model.Conversation, error) {
	var conv model.Conversation
	if err := c.do(ctx, http.MethodGet, "/conversations/"+url.PathEscape(id)+"/get", nil, &conv); err != nil {
		return nil, err
	}
	return &conv, nil
}

// UpdateTitle renames a conversation.
func (c *Client) UpdateTitle(ctx context.Context, id, title string) error {
	req := model.UpdateTitleRequest{Title: title}
	return c.do(ctx, http.MethodPut, "/conversations/"+url.PathEscape(id)+"/update_title", req, nil)
}

// Delete removes a conversation.
func (c *Client) Delete(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/conversations/"+url.PathEscape(id)+"/delete", nil, nil)
}

// AddMessage appends a message to a stored conversation. When a content
// transform is configured the content is submitted as an encrypted bundle.
func (c *Client) AddMessage(ctx context.Context, id string, role model.Role, content string) error {
	req := model.AddMessageRequest{Role: role}
	if c.transform != nil {
		bundle, err := c.transform.Encrypt(content)
		if err != nil {
			return fmt.Errorf("encrypt message content: %w", err)
		}
		req.Encrypted = &bundle
	} else {
		req.Content = content
	}
	return c.do(ctx, http.MethodPost, "/conversations/"+url.PathEscape(id)+"/add_message", req, nil)
}

// do issues one short-timeout request and decodes the JSON response into
// out when it is non-nil.
func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(reqCtx, method, c.baseURL+path, reader)
	if err != nil {
		return &model.TransportError{Op: "prepare request", Err: err}
	}
	headers, err := c.headers()
	if err != nil {
		return &model.TransportError{Op: "prepare auth headers", Err: err}
	}
	for name, value := range headers {
		req.Header.Set(name, value)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &model.TransportError{Op: method + " " + path, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		detail := readDetail(resp.Body)
		return &model.ServerError{StatusCode: resp.StatusCode, Detail: detail}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &model.DecodeError{Reason: err.Error()}
	}
	return nil
}

func readDetail(body io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(body, 64*1024))
	if err != nil {
		return ""
	}
	var parsed struct {
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(raw, &parsed); err == nil && parsed.Detail != "" {
		return parsed.Detail
	}
	return strings.TrimSpace(string(raw))
}
