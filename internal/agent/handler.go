// Package agent orchestrates the message-response pipeline: activation
// gating, history context, persona prompt construction, the model call,
// and best-effort persistence of both turns.
package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"shrutibot/internal/history"
	"shrutibot/internal/llm"
	"shrutibot/internal/persona"
	"shrutibot/internal/telegram"
)

// Handler processes one inbound message per call. It is safe for
// concurrent use; events for the same conversation may interleave, which
// the history store tolerates by design.
type Handler struct {
	messenger  telegram.Messenger
	store      history.Store
	builder    *persona.Builder
	gateway    llm.LLM
	typing     telegram.TypingManager
	identity   telegram.Identity
	identities persona.IdentityMap
	actorID    string
	logger     *slog.Logger
}

// HandlerOption configures a handler.
type HandlerOption func(*Handler)

// WithGateway sets the model gateway. Without one the handler treats the
// remote model as unconfigured and answers with the credentials fallback.
func WithGateway(gateway llm.LLM) HandlerOption {
	return func(h *Handler) {
		h.gateway = gateway
	}
}

// WithTypingManager enables typing indicators while replies are generated.
func WithTypingManager(typing telegram.TypingManager) HandlerOption {
	return func(h *Handler) {
		h.typing = typing
	}
}

// WithIdentity sets the bot's self-identity for activation checks.
func WithIdentity(identity telegram.Identity) HandlerOption {
	return func(h *Handler) {
		h.identity = identity
	}
}

// WithIdentityMap sets the handle-to-display-name mapping.
func WithIdentityMap(identities persona.IdentityMap) HandlerOption {
	return func(h *Handler) {
		h.identities = identities
	}
}

// WithActorID stamps stored bot turns with a per-process actor id.
func WithActorID(actorID string) HandlerOption {
	return func(h *Handler) {
		h.actorID = actorID
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) HandlerOption {
	return func(h *Handler) {
		h.logger = logger
	}
}

// NewHandler creates a handler. Messenger, store, and builder are
// required; the gateway is optional (see WithGateway).
func NewHandler(messenger telegram.Messenger, store history.Store, builder *persona.Builder, opts ...HandlerOption) (*Handler, error) {
	if messenger == nil {
		return nil, fmt.Errorf("handler creation failed: messenger is required")
	}
	if store == nil {
		return nil, fmt.Errorf("handler creation failed: history store is required")
	}
	if builder == nil {
		return nil, fmt.Errorf("handler creation failed: persona builder is required")
	}

	h := &Handler{
		messenger:  messenger,
		store:      store,
		builder:    builder,
		identities: persona.NewIdentityMap(nil),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// Handle processes one inbound message end to end. Every failure past the
// activation gate degrades to fallback text or a no-op; only a failure to
// send the reply itself is terminal for the message.
func (h *Handler) Handle(ctx context.Context, msg telegram.IncomingMessage) {
	if !ShouldRespond(msg, h.identity) {
		return
	}

	if IsDiagnosticCommand(msg.Text, h.identity.Username) {
		h.handleDiagnostic(ctx, msg)
		return
	}

	displayName := h.identities.Resolve(
		msg.SenderUsername,
		strconv.FormatInt(msg.SenderID, 10),
		msg.SenderFirstName,
	)

	if h.typing != nil {
		if err := h.typing.Start(ctx, msg.ChatID); err == nil {
			defer h.typing.Stop(msg.ChatID)
		}
	}

	reply := h.generateReply(ctx, msg, displayName)

	if err := h.messenger.SendMessage(ctx, msg.ChatID, telegram.Truncate(reply, telegram.MaxMessageLength)); err != nil {
		h.logger.Error("failed to send reply",
			slog.Int64("chat_id", msg.ChatID),
			slog.Any("error", err))
		return
	}

	h.recordExchange(ctx, msg, reply)
}

// generateReply builds the reply text for an activated message. It never
// panics outward: unexpected failures become an apologetic personalized
// reply.
func (h *Handler) generateReply(ctx context.Context, msg telegram.IncomingMessage, displayName string) (reply string) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("reply generation panicked",
				slog.Int64("chat_id", msg.ChatID),
				slog.Any("panic", r))
			reply = persona.InternalErrorReply(displayName)
		}
	}()

	conversationID := strconv.FormatInt(msg.ChatID, 10)
	window, err := h.store.ReadRecent(ctx, conversationID, history.DefaultWindowSize)
	if err != nil {
		h.logger.Warn("history read failed, continuing without context",
			slog.String("conversation_id", conversationID),
			slog.Any("error", err))
		window = nil
	}

	result := h.builder.Build(displayName, msg.Text, window)
	if result.ShortCircuited() {
		return result.Override
	}

	if h.gateway == nil {
		h.logger.Warn("llm credentials missing, using canned fallback")
		return persona.MissingCredentialsReply(displayName)
	}

	text, ok := h.gateway.Call(ctx, result.Request)
	if !ok {
		return persona.DegradedServiceReply(displayName)
	}
	return text
}

// recordExchange appends the user turn and the bot turn, best effort. The
// reply has already been delivered; persistence failures are logged and
// dropped, never retried or rolled back.
func (h *Handler) recordExchange(ctx context.Context, msg telegram.IncomingMessage, reply string) {
	conversationID := strconv.FormatInt(msg.ChatID, 10)

	senderDisplay := msg.SenderUsername
	if senderDisplay == "" {
		senderDisplay = msg.SenderFirstName
	}

	userTurn := history.Turn{
		Role:          history.RoleUser,
		Text:          msg.Text,
		SenderID:      strconv.FormatInt(msg.SenderID, 10),
		SenderDisplay: senderDisplay,
		Timestamp:     msg.Timestamp,
	}
	if err := h.store.Append(ctx, conversationID, userTurn); err != nil {
		h.logger.Warn("failed to persist user turn",
			slog.String("conversation_id", conversationID),
			slog.Any("error", err))
	}

	botDisplay := h.identity.Username
	if botDisplay == "" {
		botDisplay = persona.DefaultBotName
	}
	botTurn := history.Turn{
		Role:          history.RoleBot,
		Text:          reply,
		SenderID:      strconv.FormatInt(h.identity.ID, 10),
		SenderDisplay: botDisplay,
		ActorID:       h.actorID,
		Timestamp:     time.Now().UTC(),
	}
	if err := h.store.Append(ctx, conversationID, botTurn); err != nil {
		h.logger.Warn("failed to persist bot turn",
			slog.String("conversation_id", conversationID),
			slog.Any("error", err))
	}
}

// handleDiagnostic answers the /whoami command with the sender's raw
// identifiers so the identity map can be filled in. It bypasses persona
// logic and history entirely.
func (h *Handler) handleDiagnostic(ctx context.Context, msg telegram.IncomingMessage) {
	handle := "(no username)"
	if msg.SenderUsername != "" {
		handle = "@" + msg.SenderUsername
	}

	reply := fmt.Sprintf("You are %s (%s)\nUser ID: %d\nChat ID: %d",
		msg.SenderFirstName, handle, msg.SenderID, msg.ChatID)

	if err := h.messenger.SendMessage(ctx, msg.ChatID, reply); err != nil {
		h.logger.Error("failed to send whoami reply",
			slog.Int64("chat_id", msg.ChatID),
			slog.Any("error", err))
	}
}
