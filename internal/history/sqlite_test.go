package history

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"
)

func TestSQLiteStoreAppendAndRead(t *testing.T) {
	ctx := context.Background()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore() error = %v", err)
	}
	defer func() { _ = store.Close() }()

	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 15; i++ {
		turn := Turn{
			Role:          RoleUser,
			Text:          fmt.Sprintf("message %d", i),
			SenderID:      "42",
			SenderDisplay: "Asha",
			Timestamp:     base.Add(time.Duration(i) * time.Second),
		}
		if i%2 == 1 {
			turn.Role = RoleBot
		}
		if err := store.Append(ctx, "chat-1", turn); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}

	window, err := store.ReadRecent(ctx, "chat-1", 10)
	if err != nil {
		t.Fatalf("ReadRecent() error = %v", err)
	}
	if len(window) != 10 {
		t.Fatalf("ReadRecent() returned %d turns, want 10", len(window))
	}
	if window[0].Text != "message 5" {
		t.Errorf("oldest turn in window = %q, want %q", window[0].Text, "message 5")
	}
	if window[9].Text != "message 14" {
		t.Errorf("newest turn in window = %q, want %q", window[9].Text, "message 14")
	}
	for i := 1; i < len(window); i++ {
		if window[i].Timestamp.Before(window[i-1].Timestamp) {
			t.Errorf("window not ordered oldest first at index %d", i)
		}
	}
}

func TestSQLiteStoreEmptyHistory(t *testing.T) {
	ctx := context.Background()
	store, err := NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("NewSQLiteStore() error = %v", err)
	}
	defer func() { _ = store.Close() }()

	window, err := store.ReadRecent(ctx, "never-seen", 10)
	if err != nil {
		t.Fatalf("ReadRecent() on empty history error = %v", err)
	}
	if len(window) != 0 {
		t.Errorf("ReadRecent() on empty history returned %d turns, want 0", len(window))
	}
}

func TestSQLiteStorePreservesTurnFields(t *testing.T) {
	ctx := context.Background()
	store, err := NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("NewSQLiteStore() error = %v", err)
	}
	defer func() { _ = store.Close() }()

	want := Turn{
		Role:          RoleBot,
		Text:          "He's my ex-boyfriend, but I still connect with him.",
		SenderID:      "999",
		SenderDisplay: "Shruti",
		ActorID:       "proc-1",
		Timestamp:     time.Date(2025, 6, 1, 12, 30, 0, 0, time.UTC),
	}
	if err := store.Append(ctx, "chat-1", want); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	window, err := store.ReadRecent(ctx, "chat-1", 1)
	if err != nil {
		t.Fatalf("ReadRecent() error = %v", err)
	}
	if len(window) != 1 {
		t.Fatalf("ReadRecent() returned %d turns, want 1", len(window))
	}
	got := window[0]
	if got.Role != want.Role || got.Text != want.Text || got.SenderID != want.SenderID ||
		got.SenderDisplay != want.SenderDisplay || got.ActorID != want.ActorID ||
		!got.Timestamp.Equal(want.Timestamp) {
		t.Errorf("round-tripped turn = %+v, want %+v", got, want)
	}
}

func TestSQLiteStoreRejectsEmptyPath(t *testing.T) {
	if _, err := NewSQLiteStore(""); err == nil {
		t.Error("NewSQLiteStore(\"\") should fail")
	}
}
