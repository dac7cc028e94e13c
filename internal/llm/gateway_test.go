package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

// noSleep removes inter-attempt delays in tests.
var noSleep = withSleep(func(_ context.Context, _ time.Duration) {})

func newTestGateway(url string, opts ...GatewayOption) *Gateway {
	config := Config{
		URL:    url,
		APIKey: "test-key",
		Model:  "test-model",
	}
	return NewGateway(config, append([]GatewayOption{noSleep}, opts...)...)
}

func TestGatewayExhaustsRetriesOnPersistentFailure(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	text, ok := newTestGateway(server.URL).Call(context.Background(), Request{System: "s", User: "u"})
	if ok {
		t.Fatalf("Call() ok = true, want false (got %q)", text)
	}
	if got := attempts.Load(); got != DefaultMaxRetries {
		t.Errorf("endpoint hit %d times, want exactly %d", got, DefaultMaxRetries)
	}
}

func TestGatewayRecoversAfterSingleFailure(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if attempts.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"Doing great, thanks for asking!"}}]}`))
	}))
	defer server.Close()

	text, ok := newTestGateway(server.URL).Call(context.Background(), Request{System: "s", User: "u"})
	if !ok {
		t.Fatal("Call() ok = false, want true")
	}
	if text != "Doing great, thanks for asking!" {
		t.Errorf("Call() text = %q", text)
	}
	if got := attempts.Load(); got != 2 {
		t.Errorf("endpoint hit %d times, want exactly 2", got)
	}
}

func TestGatewayRetriesUnparseableBody(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		attempts.Add(1)
		_, _ = w.Write([]byte(`not json at all`))
	}))
	defer server.Close()

	if _, ok := newTestGateway(server.URL).Call(context.Background(), Request{}); ok {
		t.Fatal("Call() ok = true, want false for unparseable bodies")
	}
	if got := attempts.Load(); got != DefaultMaxRetries {
		t.Errorf("endpoint hit %d times, want %d", got, DefaultMaxRetries)
	}
}

func TestGatewayFailsWithoutEndpoint(t *testing.T) {
	gateway := NewGateway(Config{APIKey: "key", Model: "m"}, noSleep)
	if _, ok := gateway.Call(context.Background(), Request{}); ok {
		t.Error("Call() without an endpoint URL should not succeed")
	}
}

func TestGatewaySendsExpectedPayload(t *testing.T) {
	var (
		gotAuth    string
		gotPayload map[string]any
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotPayload)
		_, _ = w.Write([]byte(`{"output":"hi"}`))
	}))
	defer server.Close()

	_, ok := newTestGateway(server.URL).Call(context.Background(), Request{System: "be witty", User: "envelope"})
	if !ok {
		t.Fatal("Call() ok = false, want true")
	}
	if gotAuth != "Bearer test-key" {
		t.Errorf("Authorization = %q, want bearer token", gotAuth)
	}
	if gotPayload["model"] != "test-model" {
		t.Errorf("payload model = %v", gotPayload["model"])
	}
	messages, _ := gotPayload["messages"].([]any)
	if len(messages) != 2 {
		t.Fatalf("payload has %d messages, want 2", len(messages))
	}
	system, _ := messages[0].(map[string]any)
	if system["role"] != "system" || system["content"] != "be witty" {
		t.Errorf("system message = %v", system)
	}
	user, _ := messages[1].(map[string]any)
	if user["role"] != "user" || user["content"] != "envelope" {
		t.Errorf("user message = %v", user)
	}
}

func TestGatewayStopsRetryingOnContextCancel(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	gateway := NewGateway(
		Config{URL: server.URL, APIKey: "k", Model: "m"},
		withSleep(func(_ context.Context, _ time.Duration) { cancel() }),
	)

	if _, ok := gateway.Call(ctx, Request{}); ok {
		t.Fatal("Call() should fail once the context is canceled")
	}
	if got := attempts.Load(); got >= DefaultMaxRetries {
		t.Errorf("endpoint hit %d times, want fewer than %d after cancel", got, DefaultMaxRetries)
	}
}

func TestExtractTextSchemaPriority(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    string
		wantErr bool
	}{
		{
			name: "chat completion message content",
			body: `{"choices":[{"message":{"content":"from message"}}]}`,
			want: "from message",
		},
		{
			name: "chat completion text field",
			body: `{"choices":[{"text":"from text"}]}`,
			want: "from text",
		},
		{
			name: "message content wins over choice text",
			body: `{"choices":[{"message":{"content":"primary"},"text":"secondary"}]}`,
			want: "primary",
		},
		{
			name: "flat output field",
			body: `{"output":"from output"}`,
			want: "from output",
		},
		{
			name: "flat content string",
			body: `{"content":"from content"}`,
			want: "from content",
		},
		{
			name: "generation style parts",
			body: `{"candidates":[{"content":{"parts":[{"text":"from parts"}]}}]}`,
			want: "from parts",
		},
		{
			name: "generation style flat content",
			body: `{"candidates":[{"content":"from candidate content"}]}`,
			want: "from candidate content",
		},
		{
			name: "generation style text field",
			body: `{"candidates":[{"text":"from candidate text"}]}`,
			want: "from candidate text",
		},
		{
			name: "whitespace trimmed",
			body: `{"output":"  padded  "}`,
			want: "padded",
		},
		{
			name:    "empty strings are no match",
			body:    `{"choices":[{"message":{"content":""}}],"output":""}`,
			wantErr: true,
		},
		{
			name:    "unrecognized shape",
			body:    `{"result":{"reply":"hidden"}}`,
			wantErr: true,
		},
		{
			name:    "object content is not a flat string",
			body:    `{"content":{"nested":"x"}}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractText([]byte(tt.body))
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ExtractText() = %q, want error", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ExtractText() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("ExtractText() = %q, want %q", got, tt.want)
			}
		})
	}
}
