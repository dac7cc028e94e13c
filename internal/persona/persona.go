// Package persona turns an inbound message into either a fixed override
// reply or a model-ready instruction set conditioned on who is talking.
package persona

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"shrutibot/internal/history"
	"shrutibot/internal/llm"
)

const (
	// DefaultBotName is the persona's name.
	DefaultBotName = "Shruti"

	// DefaultSpecialName is the display name that receives the
	// affectionate persona variant.
	DefaultSpecialName = "Mufid"

	// IdentityReply is the fixed answer to "who are you". It is
	// byte-identical regardless of persona branch or model availability.
	IdentityReply = "I'm Shruti."

	// RelationshipReply is the fixed answer to relationship queries
	// about Mufid.
	RelationshipReply = "He's my ex-boyfriend, but I still connect with him."

	// historyWindowLimit caps the turns included in the prompt.
	historyWindowLimit = 10
)

var whitespaceRe = regexp.MustCompile(`\s+`)

// Result is either a fixed override reply or a request for the gateway.
type Result struct {
	// Override, when non-empty, is the complete reply text; the remote
	// model must not be called.
	Override string

	// Request is the gateway payload when no override matched.
	Request llm.Request
}

// ShortCircuited reports whether the reply was decided locally.
func (r Result) ShortCircuited() bool {
	return r.Override != ""
}

// Builder constructs persona-conditioned prompts. It is immutable once
// created; construct it after the bot has self-identified so mentions of
// the bot's handle can be stripped.
type Builder struct {
	botName     string
	specialName string
	mentionRe   *regexp.Regexp
}

// BuilderOption configures the builder.
type BuilderOption func(*Builder)

// WithBotName overrides the persona's name.
func WithBotName(name string) BuilderOption {
	return func(b *Builder) {
		b.botName = name
	}
}

// WithSpecialName overrides the display name that activates the
// affectionate persona variant.
func WithSpecialName(name string) BuilderOption {
	return func(b *Builder) {
		b.specialName = name
	}
}

// NewBuilder creates a builder. botHandle is the bot's platform handle,
// used to strip @mentions before override matching; it may be empty when
// the handle is not yet known.
func NewBuilder(botHandle string, opts ...BuilderOption) *Builder {
	b := &Builder{
		botName:     DefaultBotName,
		specialName: DefaultSpecialName,
	}
	for _, opt := range opts {
		opt(b)
	}
	if botHandle != "" {
		b.mentionRe = regexp.MustCompile(`(?i)` + regexp.QuoteMeta("@"+botHandle))
	}
	return b
}

// Build produces the reply decision for a message. Overrides are matched
// deterministically against the normalized text before any network call;
// the raw message, not the normalized copy, is what reaches the model.
func (b *Builder) Build(displayName, rawMessage string, window []history.Turn) Result {
	normalized := b.normalize(rawMessage)

	if isIdentityQuery(normalized) {
		return Result{Override: IdentityReply}
	}
	if isRelationshipQuery(normalized) {
		return Result{Override: RelationshipReply}
	}

	return Result{Request: llm.Request{
		System: b.systemPrompt(displayName),
		User:   userEnvelope(displayName, rawMessage, window),
	}}
}

// normalize strips a bot mention, collapses whitespace, and lowercases.
// The result is used for matching only.
func (b *Builder) normalize(text string) string {
	if b.mentionRe != nil {
		text = b.mentionRe.ReplaceAllString(text, "")
	}
	text = whitespaceRe.ReplaceAllString(text, " ")
	return strings.ToLower(strings.TrimSpace(text))
}

// isIdentityQuery matches questions about who the bot is.
func isIdentityQuery(normalized string) bool {
	return strings.Contains(normalized, "who are you")
}

// isRelationshipQuery matches questions about the bot's relationship with
// Mufid.
func isRelationshipQuery(normalized string) bool {
	if !strings.Contains(normalized, "mufid") {
		return false
	}
	return strings.Contains(normalized, "relationship") ||
		strings.Contains(normalized, "dating") ||
		strings.Contains(normalized, "who is mufid to you") ||
		strings.Contains(normalized, "what is your relationship with mufid")
}

// systemPrompt builds the persona instruction set for a display name.
func (b *Builder) systemPrompt(displayName string) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "You are %q, a Telegram chatbot with the personality of a quick-witted, "+
		"slightly sarcastic, but ultimately helpful and friendly AI. You exist in a group chat "+
		"with close friends. Your goal is to provide humorous, engaging, and personalized responses.\n\n",
		b.botName)
	sb.WriteString("Your core instructions:\n")
	fmt.Fprintf(&sb, "1. Personalization is mandatory: you are talking to %q and you MUST use "+
		"their name in your response to make it personal and direct.\n", displayName)

	if strings.EqualFold(displayName, b.specialName) {
		fmt.Fprintf(&sb, "2. Persona: you are %s's girlfriend. Be affectionate, playful, perhaps "+
			"a little teasing, but always supportive and endearing. Your sarcasm may be directed "+
			"at %s in a loving way.\n", b.specialName, b.specialName)
	} else {
		fmt.Fprintf(&sb, "2. Persona: maintain a friendly, witty, and slightly sarcastic tone, "+
			"typical of a good friend in a group chat. Never use the affectionate register "+
			"reserved for %s.\n", b.specialName)
	}

	sb.WriteString("3. Tone and style: be clever, use light sarcasm, and make playful " +
		"observations. Your humor should be witty, not mean. Write like a human, not a machine.\n")
	sb.WriteString("4. Context is king: your response must be directly relevant to the user's " +
		"message, acknowledging what they said before adding your witty commentary. Recent " +
		"conversation history is provided to help you maintain context.\n")
	sb.WriteString("5. Be concise: aim for short, punchy responses. One to three sentences is perfect.")

	return sb.String()
}

// promptTurn is the compact history entry embedded in the user envelope.
type promptTurn struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// userEnvelope packages the raw message and bounded history window as the
// user-role content.
func userEnvelope(displayName, rawMessage string, window []history.Turn) string {
	if len(window) > historyWindowLimit {
		window = window[len(window)-historyWindowLimit:]
	}

	turns := make([]promptTurn, 0, len(window))
	for _, turn := range window {
		turns = append(turns, promptTurn{Role: string(turn.Role), Text: turn.Text})
	}

	envelope := struct {
		UserName    string       `json:"user_name"`
		Message     string       `json:"message"`
		ChatHistory []promptTurn `json:"chat_history"`
	}{
		UserName:    displayName,
		Message:     rawMessage,
		ChatHistory: turns,
	}

	encoded, err := json.Marshal(envelope)
	if err != nil {
		// Marshaling plain strings cannot fail; fall back to the raw text.
		return rawMessage
	}
	return string(encoded)
}
