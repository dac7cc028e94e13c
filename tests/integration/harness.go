//go:build integration
// +build integration

package integration

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"shrutibot/internal/agent"
	"shrutibot/internal/history"
	"shrutibot/internal/llm"
	"shrutibot/internal/persona"
	"shrutibot/internal/server"
	"shrutibot/internal/telegram"
)

// TestHarness wires real components against fake HTTP endpoints for the
// Bot API and the model endpoint, so full webhook flows can be driven
// deterministically.
type TestHarness struct {
	t *testing.T

	// Fake external endpoints.
	botAPI   *httptest.Server
	modelAPI *httptest.Server

	// Real components under test.
	webhook *httptest.Server
	store   history.Store

	mu       sync.Mutex
	sent     []sentMessage
	llmCalls []llmCall
	llmReply string
	llmFail  bool
}

type sentMessage struct {
	ChatID int64
	Text   string
}

type llmCall struct {
	System string
	User   string
}

// HarnessConfig controls optional harness behavior.
type HarnessConfig struct {
	// WithoutGateway omits the model gateway, simulating missing
	// credentials.
	WithoutGateway bool

	// IdentityMap seeds the handle-to-display-name map.
	IdentityMap map[string]string
}

// NewTestHarness builds the harness. All servers are torn down via
// t.Cleanup.
func NewTestHarness(t *testing.T, cfg HarnessConfig) *TestHarness {
	t.Helper()

	h := &TestHarness{t: t, llmReply: "hello from the model"}

	h.botAPI = httptest.NewServer(http.HandlerFunc(h.serveBotAPI))
	t.Cleanup(h.botAPI.Close)

	h.modelAPI = httptest.NewServer(http.HandlerFunc(h.serveModelAPI))
	t.Cleanup(h.modelAPI.Close)

	client, err := telegram.NewClient("test-token", telegram.WithBaseURL(h.botAPI.URL))
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}

	h.store = history.NewMemoryStore()
	logger := slog.New(slog.NewTextHandler(testWriter{t}, &slog.HandlerOptions{Level: slog.LevelError}))

	opts := []agent.HandlerOption{
		agent.WithIdentity(telegram.Identity{ID: botID, Username: botUsername}),
		agent.WithIdentityMap(persona.NewIdentityMap(cfg.IdentityMap)),
		agent.WithActorID("harness-actor"),
		agent.WithLogger(logger),
	}
	if !cfg.WithoutGateway {
		gateway := llm.NewGateway(llm.Config{
			URL:    h.modelAPI.URL,
			APIKey: "test-key",
			Model:  "test-model",
		}, llm.WithLogger(logger))
		opts = append(opts, agent.WithGateway(gateway))
	}

	handler, err := agent.NewHandler(client, h.store, persona.NewBuilder(botUsername), opts...)
	if err != nil {
		t.Fatalf("NewHandler() error = %v", err)
	}

	srv, err := server.New(":0", handler, server.WithLogger(logger))
	if err != nil {
		t.Fatalf("server.New() error = %v", err)
	}
	h.webhook = httptest.NewServer(srv.Routes())
	t.Cleanup(h.webhook.Close)

	return h
}

const (
	botID       = int64(424242)
	botUsername = "ShrutiBot"
)

// serveBotAPI fakes the Bot API, recording sendMessage calls.
func (h *TestHarness) serveBotAPI(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	_ = json.NewDecoder(r.Body).Decode(&body)

	switch {
	case strings.HasSuffix(r.URL.Path, "/sendMessage"):
		h.mu.Lock()
		h.sent = append(h.sent, sentMessage{
			ChatID: int64(body["chat_id"].(float64)),
			Text:   body["text"].(string),
		})
		h.mu.Unlock()
		fmt.Fprint(w, `{"ok":true,"result":{}}`)
	case strings.HasSuffix(r.URL.Path, "/sendChatAction"):
		fmt.Fprint(w, `{"ok":true,"result":true}`)
	default:
		fmt.Fprint(w, `{"ok":true,"result":{}}`)
	}
}

// serveModelAPI fakes the model endpoint with a chat-completion schema.
func (h *TestHarness) serveModelAPI(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	_ = json.NewDecoder(r.Body).Decode(&payload)

	h.mu.Lock()
	call := llmCall{}
	for _, m := range payload.Messages {
		switch m.Role {
		case "system":
			call.System = m.Content
		case "user":
			call.User = m.Content
		}
	}
	h.llmCalls = append(h.llmCalls, call)
	fail := h.llmFail
	reply := h.llmReply
	h.mu.Unlock()

	if fail {
		http.Error(w, "upstream down", http.StatusInternalServerError)
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]any{
		"choices": []map[string]any{
			{"message": map[string]any{"content": reply}},
		},
	})
}

// SetLLMReply sets the fake model reply text.
func (h *TestHarness) SetLLMReply(text string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.llmReply = text
}

// FailLLM makes every model call return a server error.
func (h *TestHarness) FailLLM() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.llmFail = true
}

// Deliver posts a webhook update and returns the HTTP status. The
// webhook handler runs the pipeline synchronously, so once this returns
// all side effects are observable.
func (h *TestHarness) Deliver(update string) int {
	h.t.Helper()

	resp, err := http.Post(h.webhook.URL+"/webhook", "application/json", strings.NewReader(update))
	if err != nil {
		h.t.Fatalf("POST /webhook error = %v", err)
	}
	defer func() { _ = resp.Body.Close() }()
	return resp.StatusCode
}

// SentMessages returns a copy of all messages the bot sent.
func (h *TestHarness) SentMessages() []sentMessage {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]sentMessage, len(h.sent))
	copy(out, h.sent)
	return out
}

// LLMCalls returns a copy of all recorded model calls.
func (h *TestHarness) LLMCalls() []llmCall {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]llmCall, len(h.llmCalls))
	copy(out, h.llmCalls)
	return out
}

// History reads the stored window for a conversation.
func (h *TestHarness) History(conversationID string) []history.Turn {
	h.t.Helper()

	turns, err := h.store.ReadRecent(context.Background(), conversationID, history.DefaultWindowSize)
	if err != nil {
		h.t.Fatalf("ReadRecent() error = %v", err)
	}
	return turns
}

// privateUpdate builds a private-chat update JSON body.
func privateUpdate(updateID int, senderID int64, username, firstName, text string) string {
	return fmt.Sprintf(
		`{"update_id":%d,"message":{"message_id":1,"from":{"id":%d,"first_name":%q,"username":%q},"chat":{"id":%d,"type":"private"},"date":1700000000,"text":%q}}`,
		updateID, senderID, firstName, username, senderID, text)
}

// groupUpdate builds a group-chat update JSON body.
func groupUpdate(updateID int, chatID, senderID int64, username, firstName, text string) string {
	return fmt.Sprintf(
		`{"update_id":%d,"message":{"message_id":1,"from":{"id":%d,"first_name":%q,"username":%q},"chat":{"id":%d,"type":"group"},"date":1700000000,"text":%q}}`,
		updateID, senderID, firstName, username, chatID, text)
}

// testWriter routes log output through the test log.
type testWriter struct {
	t *testing.T
}

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(strings.TrimSuffix(string(p), "\n"))
	return len(p), nil
}
