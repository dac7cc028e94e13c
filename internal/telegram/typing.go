package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// DefaultTypingInterval is the refresh interval for typing indicators.
// The Bot API expires a typing action after about five seconds.
const DefaultTypingInterval = 4 * time.Second

// TypingManager keeps typing indicators alive for chats while a reply is
// being generated.
type TypingManager interface {
	// Start begins sending typing indicators for a chat.
	Start(ctx context.Context, chatID int64) error

	// Stop stops sending typing indicators for a chat.
	Stop(chatID int64)

	// StopAll stops all active typing indicators.
	StopAll()
}

// typingIndicator represents an active typing indicator.
type typingIndicator struct {
	cancel context.CancelFunc
}

// typingManager implements TypingManager.
type typingManager struct {
	messenger  Messenger
	logger     *slog.Logger
	indicators map[int64]*typingIndicator
	mu         sync.Mutex
	interval   time.Duration
}

// NewTypingManager creates a typing manager with the default interval.
func NewTypingManager(messenger Messenger, logger *slog.Logger) TypingManager {
	return NewTypingManagerWithInterval(messenger, logger, DefaultTypingInterval)
}

// NewTypingManagerWithInterval creates a typing manager with a custom interval.
func NewTypingManagerWithInterval(messenger Messenger, logger *slog.Logger, interval time.Duration) TypingManager {
	if logger == nil {
		logger = slog.Default()
	}
	return &typingManager{
		messenger:  messenger,
		logger:     logger,
		indicators: make(map[int64]*typingIndicator),
		interval:   interval,
	}
}

// Start begins sending typing indicators for a chat.
func (m *typingManager) Start(ctx context.Context, chatID int64) error {
	m.mu.Lock()
	if _, exists := m.indicators[chatID]; exists {
		m.mu.Unlock()
		return fmt.Errorf("typing indicator already active for chat %d", chatID)
	}
	indicatorCtx, cancel := context.WithCancel(ctx)
	m.indicators[chatID] = &typingIndicator{cancel: cancel}
	m.mu.Unlock()

	// First indicator goes out synchronously so the chat shows activity
	// before reply generation starts; refreshes run in the background.
	m.send(indicatorCtx, chatID)
	go m.runIndicator(indicatorCtx, chatID)

	return nil
}

// Stop stops sending typing indicators for a chat.
func (m *typingManager) Stop(chatID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if indicator, exists := m.indicators[chatID]; exists {
		indicator.cancel()
		delete(m.indicators, chatID)
	}
}

// StopAll stops all active typing indicators.
func (m *typingManager) StopAll() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for chatID, indicator := range m.indicators {
		indicator.cancel()
		delete(m.indicators, chatID)
	}
}

// runIndicator refreshes the indicator until it is stopped. Send failures
// are logged and do not stop the loop; the indicator is cosmetic.
func (m *typingManager) runIndicator(ctx context.Context, chatID int64) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.send(ctx, chatID)
		}
	}
}

func (m *typingManager) send(ctx context.Context, chatID int64) {
	if err := m.messenger.SendTyping(ctx, chatID); err != nil {
		if ctx.Err() != nil {
			return
		}
		m.logger.Debug("typing indicator send failed",
			slog.Int64("chat_id", chatID),
			slog.Any("error", err))
	}
}
