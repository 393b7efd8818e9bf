package devgateway

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/aithena-ai/chatstream/internal/model"
)

// StoredMessage is one message held by the in-memory store. Content and
// Encrypted are mutually exclusive, mirroring AddMessageRequest.
type StoredMessage struct {
	Role      model.Role
	Content   string
	Encrypted *model.EncryptedPayload
	CreatedAt time.Time
}

type storedConversation struct {
	conv     model.Conversation
	owner    string
	messages []StoredMessage
}

// Store is an in-memory conversation store scoped per username.
type Store struct {
	mu            sync.RWMutex
	conversations map[string]*storedConversation
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{conversations: make(map[string]*storedConversation)}
}

// Create adds a new conversation owned by owner.
func (s *Store) Create(owner, title string) model.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	conv := model.Conversation{
		ID:        uuid.New().String(),
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.conversations[conv.ID] = &storedConversation{conv: conv, owner: owner}
	return conv
}

// List returns all conversations owned by owner.
func (s *Store) List(owner string) []model.Conversation {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Conversation, 0)
	for _, sc := range s.conversations {
		if sc.owner == owner {
			c := sc.conv
			c.MessageCount = len(sc.messages)
			out = append(out, c)
		}
	}
	return out
}

// Get returns one conversation if it exists and is owned by owner.
func (s *Store) Get(owner, id string) (model.Conversation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sc, ok := s.conversations[id]
	if !ok || sc.owner != owner {
		return model.Conversation{}, false
	}
	c := sc.conv
	c.MessageCount = len(sc.messages)
	return c, true
}

// UpdateTitle renames a conversation.
func (s *Store) UpdateTitle(owner, id, title string) (model.Conversation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sc, ok := s.conversations[id]
	if !ok || sc.owner != owner {
		return model.Conversation{}, false
	}
	sc.conv.Title = title
	sc.conv.UpdatedAt = time.Now()
	return sc.conv, true
}

// Delete removes a conversation.
func (s *Store) Delete(owner, id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	sc, ok := s.conversations[id]
	if !ok || sc.owner != owner {
		return false
	}
	delete(s.conversations, id)
	return true
}

// AddMessage appends a message to a conversation.
func (s *Store) AddMessage(owner, id string, msg StoredMessage) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	sc, ok := s.conversations[id]
	if !ok || sc.owner != owner {
		return false
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	sc.messages = append(sc.messages, msg)
	sc.conv.UpdatedAt = time.Now()
	return true
}
