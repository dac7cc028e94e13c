// Package server exposes the bot's HTTP surface: the Telegram webhook,
// health and debug endpoints, and manual webhook registration.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"shrutibot/internal/telegram"
)

// shutdownTimeout bounds graceful HTTP shutdown.
const shutdownTimeout = 10 * time.Second

// UpdateHandler processes one normalized inbound message.
type UpdateHandler interface {
	Handle(ctx context.Context, msg telegram.IncomingMessage)
}

// WebhookRegistrar registers the webhook URL with the platform.
type WebhookRegistrar interface {
	SetWebhook(ctx context.Context, webhookURL string) error
}

// DebugInfo is the non-secret configuration snapshot served at /debug.
type DebugInfo struct {
	TelegramTokenPresent bool   `json:"telegram_token_present"`
	LLMKeyPresent        bool   `json:"llm_api_key_present"`
	LLMURL               string `json:"llm_api_url"`
	LLMModel             string `json:"llm_model"`
	AppID                string `json:"app_id"`
	BotUsername          string `json:"bot_username"`
	BotID                int64  `json:"bot_id"`
	Timestamp            string `json:"timestamp"`
}

// Server is the bot's HTTP server.
type Server struct {
	addr        string
	handler     UpdateHandler
	registrar   WebhookRegistrar
	externalURL string
	debug       DebugInfo
	logger      *slog.Logger
}

// Option configures the server.
type Option func(*Server)

// WithRegistrar enables the /set_webhook endpoint.
func WithRegistrar(registrar WebhookRegistrar, externalURL string) Option {
	return func(s *Server) {
		s.registrar = registrar
		s.externalURL = externalURL
	}
}

// WithDebugInfo sets the /debug snapshot.
func WithDebugInfo(debug DebugInfo) Option {
	return func(s *Server) {
		s.debug = debug
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// New creates a server handling webhook deliveries with handler.
func New(addr string, handler UpdateHandler, opts ...Option) (*Server, error) {
	if addr == "" {
		return nil, fmt.Errorf("listen address cannot be empty")
	}
	if handler == nil {
		return nil, fmt.Errorf("update handler is required")
	}

	s := &Server{
		addr:    addr,
		handler: handler,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Routes builds the HTTP handler.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/webhook", s.handleWebhook)
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/debug", s.handleDebug)
	mux.HandleFunc("/set_webhook", s.handleSetWebhook)
	return mux
}

// Run serves until the context is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:              s.addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		s.logger.Info("http server listening", slog.String("addr", s.addr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	})

	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown failed: %w", err)
		}
		return nil
	})

	if err := group.Wait(); err != nil {
		return err
	}
	return nil
}

// handleWebhook decodes a Bot API update and runs the pipeline for it.
// Updates the pipeline cannot act on are acknowledged and dropped; the
// platform retries deliveries that are not acknowledged.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var update telegram.Update
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		s.logger.Warn("failed to decode webhook update", slog.Any("error", err))
		s.writeJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "error": "malformed update"})
		return
	}

	if msg, ok := update.Incoming(); ok {
		s.handler.Handle(r.Context(), msg)
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleDebug(w http.ResponseWriter, _ *http.Request) {
	debug := s.debug
	debug.Timestamp = time.Now().UTC().Format(time.RFC3339)
	s.writeJSON(w, http.StatusOK, debug)
}

// handleSetWebhook re-registers the webhook against the configured
// external URL, for recovery after the platform drops the registration.
func (s *Server) handleSetWebhook(w http.ResponseWriter, r *http.Request) {
	if s.registrar == nil {
		s.writeJSON(w, http.StatusServiceUnavailable, map[string]any{"ok": false, "error": "webhook registrar not ready"})
		return
	}
	if s.externalURL == "" {
		s.writeJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "error": "external URL not configured"})
		return
	}

	webhookURL := WebhookURL(s.externalURL)
	if err := s.registrar.SetWebhook(r.Context(), webhookURL); err != nil {
		s.logger.Error("webhook registration failed", slog.Any("error", err))
		s.writeJSON(w, http.StatusInternalServerError, map[string]any{"ok": false, "error": err.Error()})
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"ok": true, "url": webhookURL})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Warn("failed to encode response", slog.Any("error", err))
	}
}

// WebhookURL derives the webhook endpoint from the external base URL.
func WebhookURL(externalURL string) string {
	return strings.TrimRight(externalURL, "/") + "/webhook"
}
