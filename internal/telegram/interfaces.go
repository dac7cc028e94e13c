// Package telegram provides the Telegram Bot API transport: wire types,
// an HTTP client, and typing-indicator management.
package telegram

import "context"

// Messenger abstracts outbound Telegram communication.
type Messenger interface {
	// SendMessage sends a text message to the chat.
	SendMessage(ctx context.Context, chatID int64, text string) error

	// SendTyping sends a typing activity indicator to the chat.
	SendTyping(ctx context.Context, chatID int64) error
}
