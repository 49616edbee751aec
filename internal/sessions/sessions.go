// Package sessions provides in-memory conversation history for multi-turn
// chats. History is keyed by session ID and survives agent cache
// invalidation: rebuilding an agent must not lose the conversation.
package sessions

import (
	"context"
	"sync"
	"time"

	"github.com/agentllm/agentllm/pkg/models"
)

// Session is one conversation's accumulated history.
type Session struct {
	ID        string
	UserID    string
	AgentType string
	Messages  []models.ChatMessage
	CreatedAt time.Time
	UpdatedAt time.Time
}

// MemorySessionStore is a thread-safe in-memory history store.
type MemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session // key: session ID
}

// NewMemorySessionStore creates a new in-memory session store.
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{
		sessions: make(map[string]*Session),
	}
}

// History returns a copy of the stored messages for a session. A missing
// session yields an empty history, not an error: the first turn of any
// conversation has no history yet.
func (s *MemorySessionStore) History(_ context.Context, sessionID string) []models.ChatMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil
	}
	out := make([]models.ChatMessage, len(sess.Messages))
	copy(out, sess.Messages)
	return out
}

// Append records messages onto a session, creating it on first use.
func (s *MemorySessionStore) Append(_ context.Context, sessionID, userID, agentType string, msgs ...models.ChatMessage) {
	if sessionID == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		sess = &Session{
			ID:        sessionID,
			UserID:    userID,
			AgentType: agentType,
			CreatedAt: time.Now().UTC(),
		}
		s.sessions[sessionID] = sess
	}
	sess.Messages = append(sess.Messages, msgs...)
	sess.UpdatedAt = time.Now().UTC()
}

// Delete removes a session and its history.
func (s *MemorySessionStore) Delete(_ context.Context, sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
}

// Len returns the number of live sessions.
func (s *MemorySessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
