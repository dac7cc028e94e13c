package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"shrutibot/internal/agent"
	"shrutibot/internal/config"
	"shrutibot/internal/history"
	"shrutibot/internal/llm"
	"shrutibot/internal/persona"
	"shrutibot/internal/server"
	"shrutibot/internal/telegram"
)

const (
	// selfIdentifyAttempts is how many times getMe is tried at startup.
	selfIdentifyAttempts = 3

	// selfIdentifyDelay separates getMe attempts.
	selfIdentifyDelay = 2 * time.Second
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the webhook server",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runServe(cmd.Context())
	},
}

func runServe(parentCtx context.Context) error {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	rawIdentities, err := cfg.LoadIdentityMap(logger)
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	ctx, stop := signal.NotifyContext(parentCtx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client, err := telegram.NewClient(cfg.TelegramToken)
	if err != nil {
		return fmt.Errorf("telegram client error: %w", err)
	}

	identity, err := selfIdentify(ctx, client, logger)
	if err != nil {
		return fmt.Errorf("self-identification failed: %w", err)
	}
	logger.Info("bot self-identified",
		slog.String("username", identity.Username),
		slog.Int64("id", identity.ID))

	store, err := openStore(cfg, logger)
	if err != nil {
		return fmt.Errorf("history store error: %w", err)
	}
	defer func() {
		if closeErr := store.Close(); closeErr != nil {
			logger.Warn("failed to close history store", slog.Any("error", closeErr))
		}
	}()

	typing := telegram.NewTypingManager(client, logger)
	defer typing.StopAll()

	handlerOpts := []agent.HandlerOption{
		agent.WithIdentity(identity),
		agent.WithIdentityMap(persona.NewIdentityMap(rawIdentities)),
		agent.WithTypingManager(typing),
		agent.WithActorID(uuid.NewString()),
		agent.WithLogger(logger),
	}
	if cfg.LLMConfigured() {
		gateway := llm.NewGateway(llm.Config{
			URL:    cfg.LLMAPIURL,
			APIKey: cfg.LLMAPIKey,
			Model:  cfg.LLMModel,
		}, llm.WithLogger(logger))
		handlerOpts = append(handlerOpts, agent.WithGateway(gateway))
	} else {
		logger.Warn("llm endpoint not configured, replies degrade to canned fallbacks")
	}

	handler, err := agent.NewHandler(client, store, persona.NewBuilder(identity.Username), handlerOpts...)
	if err != nil {
		return fmt.Errorf("handler setup error: %w", err)
	}

	registerWebhook(ctx, client, cfg.ExternalURL, logger)

	srv, err := server.New(cfg.ListenAddr(), handler,
		server.WithRegistrar(client, cfg.ExternalURL),
		server.WithDebugInfo(server.DebugInfo{
			TelegramTokenPresent: cfg.TelegramToken != "",
			LLMKeyPresent:        cfg.LLMAPIKey != "",
			LLMURL:               cfg.LLMAPIURL,
			LLMModel:             cfg.LLMModel,
			AppID:                cfg.AppID,
			BotUsername:          identity.Username,
			BotID:                identity.ID,
		}),
		server.WithLogger(logger),
	)
	if err != nil {
		return fmt.Errorf("server setup error: %w", err)
	}

	if err := srv.Run(ctx); err != nil {
		return err
	}
	logger.Info("shutdown complete")
	return nil
}

// selfIdentify fetches the bot identity, retrying briefly. Group-chat
// activation depends on it, so the process does not start without it.
func selfIdentify(ctx context.Context, client *telegram.Client, logger *slog.Logger) (telegram.Identity, error) {
	var lastErr error
	for attempt := 1; attempt <= selfIdentifyAttempts; attempt++ {
		identity, err := client.GetMe(ctx)
		if err == nil {
			return identity, nil
		}
		lastErr = err
		logger.Warn("getMe failed",
			slog.Int("attempt", attempt),
			slog.Any("error", err))

		if attempt < selfIdentifyAttempts {
			select {
			case <-ctx.Done():
				return telegram.Identity{}, ctx.Err()
			case <-time.After(selfIdentifyDelay):
			}
		}
	}
	return telegram.Identity{}, lastErr
}

// openStore selects the SQLite store when a database path is configured,
// otherwise the in-memory store.
func openStore(cfg *config.Config, logger *slog.Logger) (history.Store, error) {
	if cfg.HistoryDBPath == "" {
		logger.Warn("no history database configured, conversation context is lost on restart")
		return history.NewMemoryStore(), nil
	}

	store, err := history.NewSQLiteStore(cfg.HistoryDBPath)
	if err != nil {
		return nil, err
	}
	logger.Info("history store ready", slog.String("path", cfg.HistoryDBPath))
	return store, nil
}

// registerWebhook registers the webhook when an external URL is
// configured. Failure is logged, not fatal: /set_webhook allows recovery.
func registerWebhook(ctx context.Context, client *telegram.Client, externalURL string, logger *slog.Logger) {
	if externalURL == "" {
		logger.Info("external URL not set, register the webhook manually")
		return
	}

	webhookURL := server.WebhookURL(externalURL)
	if err := client.SetWebhook(ctx, webhookURL); err != nil {
		logger.Error("webhook registration failed", slog.Any("error", err))
		return
	}
	logger.Info("webhook registered", slog.String("url", webhookURL))
}
