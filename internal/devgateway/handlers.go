package devgateway

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/aithena-ai/chatstream/internal/crypto"
	"github.com/aithena-ai/chatstream/internal/model"
	"github.com/aithena-ai/chatstream/pkg/logger"
	"github.com/aithena-ai/chatstream/pkg/metrics"
)

// ClientKeyHeader carries the caller's base64-encoded public key PEM used to
// wrap per-message keys in the response.
const ClientKeyHeader = "X-Client-Public-Key"

// Handler implements the gateway endpoints.
type Handler struct {
	store    *Store
	streamer TokenStreamer
	models   []model.ModelInfo
	logger   *logger.Logger
}

// NewHandler creates a gateway handler.
func NewHandler(store *Store, streamer TokenStreamer, models []model.ModelInfo, log *logger.Logger) *Handler {
	if log == nil {
		log = logger.NewNop()
	}
	return &Handler{store: store, streamer: streamer, models: models, logger: log}
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeDetail writes the error shape the wire protocol uses.
func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

func (h *Handler) knownModel(name string) bool {
	for _, m := range h.models {
		if m.ID == name || m.DisplayName == name {
			return true
		}
	}
	return false
}

// clientEnvelope builds the per-request encrypting transform from the
// caller's public key header.
func clientEnvelope(r *http.Request) (*crypto.Envelope, error) {
	encoded := r.Header.Get(ClientKeyHeader)
	if encoded == "" {
		return nil, fmt.Errorf("%s header is required", ClientKeyHeader)
	}
	pemData, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("malformed %s header", ClientKeyHeader)
	}
	key, err := crypto.ParsePublicKeyPEM(pemData)
	if err != nil {
		return nil, fmt.Errorf("invalid client public key: %v", err)
	}
	return crypto.NewEnvelope(nil, key), nil
}

// Models handles GET /models/list.
func (h *Handler) Models(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.models)
}

// Chat handles POST /chat/{model}/generate.
func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	username := GetUsername(r.Context())
	modelName := chi.URLParam(r, "model")

	if !h.knownModel(modelName) {
		writeDetail(w, http.StatusNotFound, "Model not found")
		return
	}

	var req model.ConversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Messages) == 0 {
		writeDetail(w, http.StatusBadRequest, "messages must not be empty")
		return
	}

	envelope, err := clientEnvelope(r)
	if err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}

	// Persist the submitted user turn when it targets a stored conversation,
	// like the production backend does.
	if req.ConversationID != "" {
		last := req.Messages[len(req.Messages)-1]
		if last.Role == model.RoleUser {
			h.store.AddMessage(username, req.ConversationID, StoredMessage{
				Role:    model.RoleUser,
				Content: last.Content,
			})
		}
	}

	if req.Stream {
		h.streamChat(w, r, username, modelName, req, envelope)
		return
	}
	h.completeChat(w, r, username, modelName, req, envelope)
}

func (h *Handler) streamChat(w http.ResponseWriter, r *http.Request, username, modelName string, req model.ConversationRequest, envelope *crypto.Envelope) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeDetail(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	metrics.GatewayStreamsActive.Inc()
	defer metrics.GatewayStreamsActive.Dec()

	var full strings.Builder
	err := h.streamer.StreamTokens(r.Context(), modelName, req, func(token string) error {
		bundle, err := envelope.Encrypt(token)
		if err != nil {
			return err
		}
		full.WriteString(token)
		return writeSSEChunk(w, flusher, bundle)
	})
	if err != nil {
		// In-band error object; the stream stays open and terminates
		// normally afterwards.
		h.logger.Error("token stream failed",
			zap.String("model", modelName),
			zap.Error(err),
		)
		writeSSEChunk(w, flusher, map[string]string{"error": err.Error()})
	} else if req.ConversationID != "" {
		h.store.AddMessage(username, req.ConversationID, StoredMessage{
			Role:    model.RoleAssistant,
			Content: full.String(),
		})
	}

	writeSSEChunk(w, flusher, map[string]bool{"is_final": true})
	fmt.Fprint(w, "data: [DONE]\n\n")
	flusher.Flush()
}

func (h *Handler) completeChat(w http.ResponseWriter, r *http.Request, username, modelName string, req model.ConversationRequest, envelope *crypto.Envelope) {
	var full strings.Builder
	err := h.streamer.StreamTokens(r.Context(), modelName, req, func(token string) error {
		full.WriteString(token)
		return nil
	})
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, "Error generating response: "+err.Error())
		return
	}

	bundle, err := envelope.Encrypt(full.String())
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, "Error encrypting response: "+err.Error())
		return
	}

	if req.ConversationID != "" {
		h.store.AddMessage(username, req.ConversationID, StoredMessage{
			Role:    model.RoleAssistant,
			Content: full.String(),
		})
	}

	isEncrypted := true
	writeJSON(w, http.StatusOK, model.CompletionResponse{
		Content:      &bundle.Content,
		EncryptedKey: &bundle.EncryptedKey,
		IV:           &bundle.IV,
		Tag:          &bundle.Tag,
		IsEncrypted:  &isEncrypted,
	})
}

func writeSSEChunk(w http.ResponseWriter, flusher http.Flusher, data interface{}) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}

// CreateConversation handles POST /conversations.
func (h *Handler) CreateConversation(w http.ResponseWriter, r *http.Request) {
	var req model.CreateConversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid request body")
		return
	}
	conv := h.store.Create(GetUsername(r.Context()), req.Title)
	writeJSON(w, http.StatusCreated, conv)
}

// ListConversations handles GET /conversations/list.
func (h *Handler) ListConversations(w http.ResponseWriter, r *http.Request) {
	conversations := h.store.List(GetUsername(r.Context()))
	writeJSON(w, http.StatusOK, model.ListConversationsResponse{
		Conversations: conversations,
		Total:         len(conversations),
	})
}

// GetConversation handles GET /conversations/{id}/get.
func (h *Handler) GetConversation(w http.ResponseWriter, r *http.Request) {
	conv, ok := h.store.Get(GetUsername(r.Context()), chi.URLParam(r, "id"))
	if !ok {
		writeDetail(w, http.StatusNotFound, "Conversation not found")
		return
	}
	writeJSON(w, http.StatusOK, conv)
}

// UpdateConversationTitle handles PUT /conversations/{id}/update_title.
func (h *Handler) UpdateConversationTitle(w http.ResponseWriter, r *http.Request) {
	var req model.UpdateTitleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid request body")
		return
	}
	conv, ok := h.store.UpdateTitle(GetUsername(r.Context()), chi.URLParam(r, "id"), req.Title)
	if !ok {
		writeDetail(w, http.StatusNotFound, "Conversation not found")
		return
	}
	writeJSON(w, http.StatusOK, conv)
}

// DeleteConversation handles DELETE /conversations/{id}/delete.
func (h *Handler) DeleteConversation(w http.ResponseWriter, r *http.Request) {
	if !h.store.Delete(GetUsername(r.Context()), chi.URLParam(r, "id")) {
		writeDetail(w, http.StatusNotFound, "Conversation not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AddConversationMessage handles POST /conversations/{id}/add_message.
func (h *Handler) AddConversationMessage(w http.ResponseWriter, r *http.Request) {
	var req model.AddMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid request body")
		return
	}
	msg := StoredMessage{Role: req.Role, Content: req.Content, Encrypted: req.Encrypted}
	if !h.store.AddMessage(GetUsername(r.Context()), chi.URLParam(r, "id"), msg) {
		writeDetail(w, http.StatusNotFound, "Conversation not found")
		return
	}
	w.WriteHeader(http.StatusCreated)
}
