package history

import "time"

// Role identifies who authored a turn.
type Role string

const (
	// RoleUser marks a turn written by a human participant.
	RoleUser Role = "user"

	// RoleBot marks a turn written by the bot.
	RoleBot Role = "bot"
)

// Turn is one message exchange unit stored in history.
// Turns are immutable once written; ordering is by timestamp ascending.
type Turn struct {
	Role          Role      `json:"role"`
	Text          string    `json:"text"`
	SenderID      string    `json:"sender_id"`
	SenderDisplay string    `json:"sender_display"`
	Timestamp     time.Time `json:"timestamp"`

	// ActorID identifies the process instance that wrote a bot turn.
	// Empty for user turns.
	ActorID string `json:"actor_id,omitempty"`
}
