package history

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store. It backs the bot when no database path
// is configured and doubles as the store used in tests.
type MemoryStore struct {
	mu    sync.RWMutex
	turns map[string][]Turn
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		turns: make(map[string][]Turn),
	}
}

// Append records a turn for the conversation.
func (s *MemoryStore) Append(_ context.Context, conversationID string, turn Turn) error {
	if conversationID == "" {
		return fmt.Errorf("conversation ID cannot be empty")
	}

	if turn.Timestamp.IsZero() {
		turn.Timestamp = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns[conversationID] = append(s.turns[conversationID], turn)
	return nil
}

// ReadRecent returns up to limit most recent turns, oldest first.
func (s *MemoryStore) ReadRecent(_ context.Context, conversationID string, limit int) ([]Turn, error) {
	if conversationID == "" {
		return nil, fmt.Errorf("conversation ID cannot be empty")
	}
	if limit <= 0 {
		limit = DefaultWindowSize
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	all := s.turns[conversationID]
	start := 0
	if len(all) > limit {
		start = len(all) - limit
	}

	window := make([]Turn, len(all)-start)
	copy(window, all[start:])
	return window, nil
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error {
	return nil
}
