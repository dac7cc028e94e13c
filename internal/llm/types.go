// Package llm provides the gateway to the remote language-model endpoint:
// a bounded-retry HTTP call with tolerant response-schema extraction.
package llm

import "time"

const (
	// DefaultMaxRetries is the number of attempts before giving up.
	DefaultMaxRetries = 3

	// DefaultAttemptTimeout bounds each individual HTTP attempt.
	DefaultAttemptTimeout = 20 * time.Second

	// DefaultBackoffBase is the initial delay between attempts; it doubles
	// after every failed attempt.
	DefaultBackoffBase = time.Second

	// DefaultJitterStep is added per attempt number on top of the backoff
	// to avoid thundering-herd alignment with other callers.
	DefaultJitterStep = 100 * time.Millisecond

	// DefaultTemperature is the sampling temperature sent to the endpoint.
	DefaultTemperature = 0.8

	// DefaultMaxTokens bounds the generated reply length.
	DefaultMaxTokens = 220
)

// Request is a model-ready instruction set: a system instruction plus the
// user content handed to the endpoint verbatim.
type Request struct {
	System string
	User   string
}

// Config holds the gateway's endpoint settings.
type Config struct {
	// URL is the chat-completion endpoint. Empty means no endpoint is
	// configured; Call fails every attempt without touching the network.
	URL string

	// APIKey is sent as a bearer token.
	APIKey string

	// Model is the model identifier included in the payload.
	Model string

	// MaxRetries caps the number of attempts. Zero means DefaultMaxRetries.
	MaxRetries int

	// AttemptTimeout bounds each attempt. Zero means DefaultAttemptTimeout.
	AttemptTimeout time.Duration
}

// Configured reports whether the remote endpoint can be called at all.
func (c Config) Configured() bool {
	return c.URL != "" && c.APIKey != ""
}
