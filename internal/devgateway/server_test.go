package devgateway_test

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aithena-ai/chatstream/internal/auth"
	"github.com/aithena-ai/chatstream/internal/chat"
	"github.com/aithena-ai/chatstream/internal/conversations"
	"github.com/aithena-ai/chatstream/internal/crypto"
	"github.com/aithena-ai/chatstream/internal/devgateway"
	"github.com/aithena-ai/chatstream/internal/model"
	"github.com/aithena-ai/chatstream/pkg/logger"
)

const cannedReply = "Hello from the development gateway"

func newGateway(t *testing.T, cfg devgateway.RouterConfig) *httptest.Server {
	t.Helper()
	handler := devgateway.NewHandler(
		devgateway.NewStore(),
		&devgateway.CannedStreamer{Reply: cannedReply},
		[]model.ModelInfo{{ID: "gpt-test", DisplayName: "GPT Test", Provider: "openai"}},
		nil,
	)
	srv := httptest.NewServer(devgateway.NewRouter(cfg, handler, logger.NewNop()))
	t.Cleanup(srv.Close)
	return srv
}

// clientHeaders builds the header provider a real client uses: username plus
// the base64 public key PEM the gateway wraps reply keys against.
func clientHeaders(t *testing.T, username string, key *rsa.PrivateKey) auth.HeaderProvider {
	t.Helper()
	pemData, err := crypto.PublicKeyPEM(&key.PublicKey)
	require.NoError(t, err)
	return auth.WithHeader(auth.Static(username), devgateway.ClientKeyHeader, base64.StdEncoding.EncodeToString(pemData))
}

func newChatClient(t *testing.T, srv *httptest.Server, headers auth.HeaderProvider, key *rsa.PrivateKey) *chat.Client {
	t.Helper()
	return chat.NewClient(chat.ClientConfig{
		BaseURL:    srv.URL,
		HTTPClient: srv.Client(),
	}, headers, crypto.NewEnvelope(key, nil), nil)
}

func streamAll(t *testing.T, client *chat.Client, modelName string) []model.Delta {
	t.Helper()
	var deltas []model.Delta
	err := client.StreamChat(context.Background(), modelName,
		[]model.ChatMessage{model.NewUserMessage("Hi there")}, "conv-1", nil,
		func(d model.Delta) error {
			deltas = append(deltas, d)
			return nil
		})
	require.NoError(t, err)
	return deltas
}

func TestGatewayStreamRoundTrip(t *testing.T) {
	srv := newGateway(t, devgateway.RouterConfig{})
	key, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	client := newChatClient(t, srv, clientHeaders(t, "alice", key), key)

	deltas := streamAll(t, client, "gpt-test")

	require.NotEmpty(t, deltas)
	var full strings.Builder
	for _, d := range deltas {
		require.Equal(t, model.DeltaText, d.Kind, "round trip must decrypt every chunk")
		full.WriteString(d.Text)
	}
	assert.Equal(t, cannedReply, full.String())
}

func TestGatewayCompletionRoundTrip(t *testing.T) {
	srv := newGateway(t, devgateway.RouterConfig{})
	key, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	client := newChatClient(t, srv, clientHeaders(t, "alice", key), key)

	reply, err := client.GenerateChatCompletion(context.Background(), "gpt-test",
		[]model.ChatMessage{model.NewUserMessage("Hi there")}, "conv-1", nil)
	require.NoError(t, err)
	assert.Equal(t, cannedReply, reply)
}

func TestGatewayUnknownModel(t *testing.T) {
	srv := newGateway(t, devgateway.RouterConfig{})
	key, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	client := newChatClient(t, srv, clientHeaders(t, "alice", key), key)

	deltas := streamAll(t, client, "no-such-model")

	require.Len(t, deltas, 1)
	assert.Equal(t, model.DeltaError, deltas[0].Kind)
	assert.Equal(t, model.ErrorKindServer, deltas[0].ErrorKind)
	assert.Equal(t, "Model not found", deltas[0].Detail)
}

func TestGatewayRequiresUsername(t *testing.T) {
	srv := newGateway(t, devgateway.RouterConfig{})

	resp, err := srv.Client().Get(srv.URL + "/models/list")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestGatewayRequiresClientKey(t *testing.T) {
	srv := newGateway(t, devgateway.RouterConfig{})
	key, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	// Username only, no public key header.
	client := newChatClient(t, srv, auth.Static("alice"), key)

	deltas := streamAll(t, client, "gpt-test")

	require.Len(t, deltas, 1)
	assert.Equal(t, model.ErrorKindServer, deltas[0].ErrorKind)
	assert.Contains(t, deltas[0].Detail, devgateway.ClientKeyHeader)
}

func TestGatewayJWTVerification(t *testing.T) {
	const secret = "test-secret"
	srv := newGateway(t, devgateway.RouterConfig{JWTSecret: secret})
	key, err := crypto.GenerateKeyPair()
	require.NoError(t, err)

	pemData, err := crypto.PublicKeyPEM(&key.PublicKey)
	require.NoError(t, err)
	signed := auth.WithHeader(
		auth.JWT("alice", secret, time.Minute, nil),
		devgateway.ClientKeyHeader, base64.StdEncoding.EncodeToString(pemData),
	)

	client := newChatClient(t, srv, signed, key)
	_, err = client.GetModels(context.Background())
	assert.NoError(t, err)

	// Username alone is rejected when a secret is configured.
	bare := chat.NewClient(chat.ClientConfig{BaseURL: srv.URL, HTTPClient: srv.Client()},
		auth.Static("alice"), nil, nil)
	_, err = bare.GetModels(context.Background())
	var serverErr *model.ServerError
	require.ErrorAs(t, err, &serverErr)
	assert.Equal(t, http.StatusUnauthorized, serverErr.StatusCode)

	// A token signed with the wrong secret is rejected too.
	forged := auth.WithHeader(
		auth.JWT("alice", "wrong-secret", time.Minute, nil),
		devgateway.ClientKeyHeader, base64.StdEncoding.EncodeToString(pemData),
	)
	_, err = newChatClient(t, srv, forged, key).GetModels(context.Background())
	require.ErrorAs(t, err, &serverErr)
	assert.Equal(t, http.StatusUnauthorized, serverErr.StatusCode)
}

func TestGatewayConversationLifecycle(t *testing.T) {
	srv := newGateway(t, devgateway.RouterConfig{})
	headers := auth.Static("alice")
	convs := conversations.New(conversations.ClientConfig{
		BaseURL:    srv.URL,
		HTTPClient: srv.Client(),
	}, headers, nil, nil)
	ctx := context.Background()

	created, err := convs.Create(ctx, "My first chat")
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)

	list, err := convs.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "My first chat", list[0].Title)

	require.NoError(t, convs.UpdateTitle(ctx, created.ID, "Renamed"))
	require.NoError(t, convs.AddMessage(ctx, created.ID, model.RoleUser, "hello"))

	got, err := convs.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Title)
	assert.Equal(t, 1, got.MessageCount)

	require.NoError(t, convs.Delete(ctx, created.ID))
	_, err = convs.Get(ctx, created.ID)
	var serverErr *model.ServerError
	require.ErrorAs(t, err, &serverErr)
	assert.Equal(t, http.StatusNotFound, serverErr.StatusCode)
}

func TestGatewayConversationOwnership(t *testing.T) {
	srv := newGateway(t, devgateway.RouterConfig{})
	ctx := context.Background()

	alice := conversations.New(conversations.ClientConfig{BaseURL: srv.URL, HTTPClient: srv.Client()},
		auth.Static("alice"), nil, nil)
	bob := conversations.New(conversations.ClientConfig{BaseURL: srv.URL, HTTPClient: srv.Client()},
		auth.Static("bob"), nil, nil)

	created, err := alice.Create(ctx, "private")
	require.NoError(t, err)

	_, err = bob.Get(ctx, created.ID)
	var serverErr *model.ServerError
	require.ErrorAs(t, err, &serverErr)
	assert.Equal(t, http.StatusNotFound, serverErr.StatusCode)

	list, err := bob.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestGatewayStreamPersistsTurns(t *testing.T) {
	srv := newGateway(t, devgateway.RouterConfig{})
	key, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	headers := clientHeaders(t, "alice", key)
	ctx := context.Background()

	convs := conversations.New(conversations.ClientConfig{BaseURL: srv.URL, HTTPClient: srv.Client()},
		headers, nil, nil)
	created, err := convs.Create(ctx, "persisted chat")
	require.NoError(t, err)

	client := newChatClient(t, srv, headers, key)
	err = client.StreamChat(ctx, "gpt-test",
		[]model.ChatMessage{model.NewUserMessage("Hi there")}, created.ID, nil,
		func(model.Delta) error { return nil })
	require.NoError(t, err)

	got, err := convs.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.MessageCount, "user turn and assistant reply are both stored")
}

func TestGatewayRateLimit(t *testing.T) {
	srv := newGateway(t, devgateway.RouterConfig{
		RateLimitRequests: 2,
		RateLimitWindow:   time.Minute,
	})

	status := func() int {
		req, err := http.NewRequest(http.MethodGet, srv.URL+"/models/list", nil)
		require.NoError(t, err)
		req.Header.Set("X-Username", "alice")
		resp, err := srv.Client().Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		return resp.StatusCode
	}

	assert.Equal(t, http.StatusOK, status())
	assert.Equal(t, http.StatusOK, status())
	assert.Equal(t, http.StatusTooManyRequests, status())
}
