package persona

import "fmt"

// Fallback replies keep the bot in character when the remote model cannot
// be reached. Each one carries the resolved display name so degraded
// service still reads as personal.

// MissingCredentialsReply is used when no endpoint credentials are
// configured, before any call is attempted.
func MissingCredentialsReply(displayName string) string {
	return fmt.Sprintf("Hey %s, my brain is on airplane mode right now. "+
		"Try again once the API key finds its coffee.", displayName)
}

// DegradedServiceReply is used after the gateway has exhausted its retries.
func DegradedServiceReply(displayName string) string {
	return fmt.Sprintf("Hey %s! I'm having trouble connecting to my AI brain right now. "+
		"Try again in a bit, or ask me something simple like 'who are you?'", displayName)
}

// InternalErrorReply is used when reply generation fails unexpectedly.
func InternalErrorReply(displayName string) string {
	return fmt.Sprintf("%s, my processor tripped over its shoelaces. "+
		"Give me a sec and ask again.", displayName)
}
