package history

import (
	"context"
	"fmt"
	"testing"
	"time"
)

func TestMemoryStoreWindowBounds(t *testing.T) {
	tests := []struct {
		name      string
		stored    int
		limit     int
		wantCount int
	}{
		{name: "empty history", stored: 0, limit: 10, wantCount: 0},
		{name: "fewer than limit", stored: 3, limit: 10, wantCount: 3},
		{name: "exactly limit", stored: 10, limit: 10, wantCount: 10},
		{name: "more than limit", stored: 25, limit: 10, wantCount: 10},
		{name: "zero limit falls back to default", stored: 15, limit: 0, wantCount: DefaultWindowSize},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			store := NewMemoryStore()

			base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
			for i := 0; i < tt.stored; i++ {
				err := store.Append(ctx, "chat-1", Turn{
					Role:      RoleUser,
					Text:      fmt.Sprintf("message %d", i),
					Timestamp: base.Add(time.Duration(i) * time.Second),
				})
				if err != nil {
					t.Fatalf("Append() error = %v", err)
				}
			}

			window, err := store.ReadRecent(ctx, "chat-1", tt.limit)
			if err != nil {
				t.Fatalf("ReadRecent() error = %v", err)
			}
			if len(window) != tt.wantCount {
				t.Fatalf("ReadRecent() returned %d turns, want %d", len(window), tt.wantCount)
			}

			// Window must be oldest first and must end at the newest turn.
			for i := 1; i < len(window); i++ {
				if window[i].Timestamp.Before(window[i-1].Timestamp) {
					t.Errorf("window not ordered oldest first at index %d", i)
				}
			}
			if tt.stored > 0 {
				wantLast := fmt.Sprintf("message %d", tt.stored-1)
				if got := window[len(window)-1].Text; got != wantLast {
					t.Errorf("last turn = %q, want %q", got, wantLast)
				}
			}
		})
	}
}

func TestMemoryStoreIsolatesConversations(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	if err := store.Append(ctx, "chat-1", Turn{Role: RoleUser, Text: "hello"}); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if err := store.Append(ctx, "chat-2", Turn{Role: RoleBot, Text: "hi there"}); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	window, err := store.ReadRecent(ctx, "chat-1", 10)
	if err != nil {
		t.Fatalf("ReadRecent() error = %v", err)
	}
	if len(window) != 1 || window[0].Text != "hello" {
		t.Errorf("chat-1 window = %+v, want single hello turn", window)
	}
}

func TestMemoryStoreRejectsEmptyConversationID(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	if err := store.Append(ctx, "", Turn{Role: RoleUser, Text: "x"}); err == nil {
		t.Error("Append() with empty conversation ID should fail")
	}
	if _, err := store.ReadRecent(ctx, "", 10); err == nil {
		t.Error("ReadRecent() with empty conversation ID should fail")
	}
}

func TestMemoryStoreStampsTimestamp(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	if err := store.Append(ctx, "chat-1", Turn{Role: RoleUser, Text: "no timestamp"}); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	window, err := store.ReadRecent(ctx, "chat-1", 1)
	if err != nil {
		t.Fatalf("ReadRecent() error = %v", err)
	}
	if window[0].Timestamp.IsZero() {
		t.Error("Append() should stamp a timestamp when none is provided")
	}
}
