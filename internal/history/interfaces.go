// Package history provides the conversational history store: an ordered
// append-only log of prior exchanges, keyed by conversation.
package history

import "context"

// DefaultWindowSize is the maximum number of turns returned as context.
const DefaultWindowSize = 10

// Store abstracts the history log. The pipeline only appends and reads
// bounded recent windows; it never edits or deletes.
type Store interface {
	// Append records a turn for the conversation.
	Append(ctx context.Context, conversationID string, turn Turn) error

	// ReadRecent returns up to limit most recent turns for the
	// conversation, oldest first. An empty history is not an error.
	ReadRecent(ctx context.Context, conversationID string, limit int) ([]Turn, error)

	// Close releases any resources held by the store.
	Close() error
}
