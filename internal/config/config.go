// Package config loads process configuration from the environment and the
// identity-map file. Configuration is resolved once at startup; a process
// must never accept inbound events in a partially configured state.
package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Defaults for optional settings.
const (
	DefaultModel = "gpt-4o-mini"
	DefaultPort  = "8000"
	DefaultUsers = "users.json"
	DefaultAppID = "app"
)

// Config holds all process configuration.
type Config struct {
	// TelegramToken authenticates against the Bot API. Required.
	TelegramToken string

	// LLMAPIURL and LLMAPIKey configure the model endpoint. Both may be
	// empty; the bot then answers with canned fallbacks only.
	LLMAPIURL string
	LLMAPIKey string

	// LLMModel is the model identifier sent with each request.
	LLMModel string

	// ExternalURL, when set, is used to register the webhook at startup.
	ExternalURL string

	// Port is the HTTP listen port.
	Port string

	// UsersFile is the identity-map file path.
	UsersFile string

	// HistoryDBPath is the SQLite database path. Empty selects the
	// in-memory store (history is lost on restart).
	HistoryDBPath string

	// AppID namespaces stored data.
	AppID string
}

// Load reads a .env file if present, then resolves configuration from the
// environment. Missing required settings are an error: startup is the only
// place configuration failures are allowed to be fatal.
func Load() (*Config, error) {
	// A missing .env is fine; the environment may be set directly.
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("gemini_model", DefaultModel)
	v.SetDefault("port", DefaultPort)
	v.SetDefault("users_file", DefaultUsers)
	v.SetDefault("app_id", DefaultAppID)

	cfg := &Config{
		TelegramToken: v.GetString("telegram_token"),
		LLMAPIURL:     v.GetString("gemini_api_url"),
		LLMAPIKey:     v.GetString("gemini_api_key"),
		LLMModel:      v.GetString("gemini_model"),
		ExternalURL:   v.GetString("render_external_url"),
		Port:          v.GetString("port"),
		UsersFile:     v.GetString("users_file"),
		HistoryDBPath: v.GetString("history_db_path"),
		AppID:         v.GetString("app_id"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.TelegramToken == "" {
		return fmt.Errorf("TELEGRAM_TOKEN is required")
	}
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	return nil
}

// LLMConfigured reports whether the model endpoint can be called.
func (c *Config) LLMConfigured() bool {
	return c.LLMAPIURL != "" && c.LLMAPIKey != ""
}

// ListenAddr is the address the HTTP server binds to.
func (c *Config) ListenAddr() string {
	return ":" + c.Port
}

// LoadIdentityMap reads the identity-map file: a flat JSON object mapping
// handles (or numeric ids as strings) to display names. A missing file is
// not an error; resolution then falls back to first names.
func (c *Config) LoadIdentityMap(logger *slog.Logger) (map[string]string, error) {
	if logger == nil {
		logger = slog.Default()
	}

	data, err := os.ReadFile(c.UsersFile)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Info("identity map file not found, falling back to first names",
				slog.String("path", c.UsersFile))
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("failed to read identity map: %w", err)
	}

	var raw map[string]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse identity map: %w", err)
	}

	logger.Info("loaded identity map",
		slog.String("path", c.UsersFile),
		slog.Int("entries", len(raw)))
	return raw, nil
}
