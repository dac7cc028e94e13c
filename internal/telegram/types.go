package telegram

import "time"

// Chat types reported by the Bot API.
const (
	ChatTypePrivate    = "private"
	ChatTypeGroup      = "group"
	ChatTypeSupergroup = "supergroup"
)

// MaxMessageLength is the Bot API limit for a single text message.
const MaxMessageLength = 4096

// Truncate bounds text to max characters without splitting a rune.
// The Bot API limit counts characters, not bytes.
func Truncate(text string, max int) string {
	if max <= 0 {
		return ""
	}
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	return string(runes[:max])
}

// User is a Telegram account.
type User struct {
	ID        int64  `json:"id"`
	IsBot     bool   `json:"is_bot"`
	FirstName string `json:"first_name"`
	Username  string `json:"username"`
}

// Chat is the conversation a message belongs to.
type Chat struct {
	ID   int64  `json:"id"`
	Type string `json:"type"`
}

// Message is an inbound Telegram message.
type Message struct {
	MessageID      int64    `json:"message_id"`
	From           *User    `json:"from"`
	Chat           Chat     `json:"chat"`
	Date           int64    `json:"date"`
	Text           string   `json:"text"`
	ReplyToMessage *Message `json:"reply_to_message"`
}

// Update is the envelope delivered to the webhook.
type Update struct {
	UpdateID int64    `json:"update_id"`
	Message  *Message `json:"message"`
}

// Identity is the bot's own account, discovered once at startup via getMe.
// Activation logic for group chats requires it; a zero Identity means the
// bot has not self-identified yet.
type Identity struct {
	ID        int64
	Username  string
	FirstName string
}

// Known reports whether self-identification has completed.
func (i Identity) Known() bool {
	return i.ID != 0 && i.Username != ""
}

// IncomingMessage is the normalized inbound event handed to the pipeline.
type IncomingMessage struct {
	ChatID          int64
	IsGroup         bool
	SenderID        int64
	SenderUsername  string
	SenderFirstName string
	Text            string
	ReplyToSenderID int64
	Timestamp       time.Time
}

// Incoming normalizes an update into the pipeline's inbound event shape.
// The second return is false for updates the pipeline cannot act on: no
// message, no sender, or no text. Non-text messages (photos, stickers,
// voice notes, service events) are dropped here so they never reach the
// pipeline.
func (u *Update) Incoming() (IncomingMessage, bool) {
	if u == nil || u.Message == nil || u.Message.From == nil || u.Message.Text == "" {
		return IncomingMessage{}, false
	}

	msg := u.Message
	incoming := IncomingMessage{
		ChatID:          msg.Chat.ID,
		IsGroup:         msg.Chat.Type == ChatTypeGroup || msg.Chat.Type == ChatTypeSupergroup,
		SenderID:        msg.From.ID,
		SenderUsername:  msg.From.Username,
		SenderFirstName: msg.From.FirstName,
		Text:            msg.Text,
		Timestamp:       time.Unix(msg.Date, 0).UTC(),
	}
	if msg.ReplyToMessage != nil && msg.ReplyToMessage.From != nil {
		incoming.ReplyToSenderID = msg.ReplyToMessage.From.ID
	}
	return incoming, true
}
