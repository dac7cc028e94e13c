package agent

import (
	"strings"

	"shrutibot/internal/telegram"
)

const (
	// DiagnosticCommand is the identity lookup command. It bypasses the
	// activation gate entirely.
	DiagnosticCommand = "/whoami"

	commandPrefix = "/"
)

// IsDiagnosticCommand reports whether the message invokes the identity
// lookup. A bare "/whoami" always matches; the suffixed "/whoami@name"
// form is addressed to one bot and matches only this bot's username.
func IsDiagnosticCommand(text, botUsername string) bool {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return false
	}
	first := strings.ToLower(fields[0])
	if first == DiagnosticCommand {
		return true
	}
	suffix, ok := strings.CutPrefix(first, DiagnosticCommand+"@")
	if !ok {
		return false
	}
	return botUsername != "" && suffix == strings.ToLower(botUsername)
}

// ShouldRespond decides whether a message activates the pipeline.
//
// The diagnostic command always activates. Other slash commands never
// do. Private chats activate unconditionally. Group chats activate only
// when the bot has self-identified and the message either mentions the
// bot's handle or replies to one of the bot's messages.
func ShouldRespond(msg telegram.IncomingMessage, bot telegram.Identity) bool {
	if IsDiagnosticCommand(msg.Text, bot.Username) {
		return true
	}
	if strings.HasPrefix(strings.TrimSpace(msg.Text), commandPrefix) {
		return false
	}
	if !msg.IsGroup {
		return true
	}

	// Group chats fail closed until the bot knows its own identity.
	if !bot.Known() {
		return false
	}
	if msg.ReplyToSenderID != 0 && msg.ReplyToSenderID == bot.ID {
		return true
	}
	return strings.Contains(strings.ToLower(msg.Text), "@"+strings.ToLower(bot.Username))
}
