package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store on top of an embedded SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database at path and ensures the
// schema exists. Use ":memory:" for an ephemeral store.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, fmt.Errorf("database path cannot be empty")
	}

	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initialize(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

// initialize creates the turns table.
func (s *SQLiteStore) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS turns (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		conversation_id TEXT NOT NULL,
		role TEXT NOT NULL,
		text TEXT NOT NULL,
		sender_id TEXT NOT NULL,
		sender_display TEXT NOT NULL,
		actor_id TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_turns_conversation ON turns(conversation_id, id);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return nil
}

// Append records a turn for the conversation.
func (s *SQLiteStore) Append(ctx context.Context, conversationID string, turn Turn) error {
	if conversationID == "" {
		return fmt.Errorf("conversation ID cannot be empty")
	}

	ts := turn.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO turns (conversation_id, role, text, sender_id, sender_display, actor_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		conversationID, string(turn.Role), turn.Text, turn.SenderID, turn.SenderDisplay, turn.ActorID, ts.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to append turn: %w", err)
	}
	return nil
}

// ReadRecent returns up to limit most recent turns, oldest first.
func (s *SQLiteStore) ReadRecent(ctx context.Context, conversationID string, limit int) ([]Turn, error) {
	if conversationID == "" {
		return nil, fmt.Errorf("conversation ID cannot be empty")
	}
	if limit <= 0 {
		limit = DefaultWindowSize
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT role, text, sender_id, sender_display, actor_id, created_at
		 FROM turns WHERE conversation_id = ?
		 ORDER BY id DESC LIMIT ?`,
		conversationID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to read history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var newestFirst []Turn
	for rows.Next() {
		var (
			turn Turn
			role string
			ts   string
		)
		if err := rows.Scan(&role, &turn.Text, &turn.SenderID, &turn.SenderDisplay, &turn.ActorID, &ts); err != nil {
			return nil, fmt.Errorf("failed to scan turn: %w", err)
		}
		turn.Role = Role(role)
		if parsed, parseErr := time.Parse(time.RFC3339Nano, ts); parseErr == nil {
			turn.Timestamp = parsed
		}
		newestFirst = append(newestFirst, turn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate turns: %w", err)
	}

	// The query returns newest first; the window contract is oldest first.
	window := make([]Turn, 0, len(newestFirst))
	for i := len(newestFirst) - 1; i >= 0; i-- {
		window = append(window, newestFirst[i])
	}
	return window, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}
