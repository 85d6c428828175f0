package ollama

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petedillo/ollama-chat-api/internal/usecase/chat"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := DefaultConfig()
	cfg.BaseURL = server.URL
	cfg.HTTPClient = server.Client()
	return NewClient(cfg), server
}

func TestChatNormalizesAllReplyShapes(t *testing.T) {
	bodies := map[string]string{
		"native":                            `{"model":"llama3","message":{"role":"assistant","content":"hi"},"done":true}`,
		"openai":                            `{"id":"chatcmpl-1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"hi"},"finish_reason":"stop"}]}`,
		"completion":                        `{"model":"llama3","response":"hi","done":true}`,
		"native with odd response field":    `{"message":{"content":"hi"},"response":42}`,
		"openai with string created":        `{"id":"chatcmpl-1","created":"2024-01-01","choices":[{"message":{"role":"assistant","content":"hi"}}]}`,
		"completion with odd message":       `{"message":"oops","response":"hi"}`,
		"completion with odd choices":       `{"choices":{"message":"x"},"response":"hi"}`,
		"openai after empty native content": `{"message":{"content":""},"choices":[{"message":{"content":"hi"}}]}`,
	}

	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				_, _ = io.WriteString(w, body)
			})

			reply, err := client.Chat(context.Background(), []chat.Message{{Role: "user", Content: "hello"}})
			require.NoError(t, err)
			assert.Equal(t, chat.Message{Role: "assistant", Content: "hi"}, reply)
		})
	}
}

func TestChatSendsNonStreamingRequestWithDefaults(t *testing.T) {
	var got map[string]any
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/chat", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = io.WriteString(w, `{"message":{"role":"assistant","content":"ok"}}`)
	})

	_, err := client.Chat(context.Background(), []chat.Message{
		{Role: "system", Content: "be nice"},
		{Role: "user", Content: "hello"},
	})
	require.NoError(t, err)

	assert.Equal(t, DefaultModel, got["model"])
	assert.Equal(t, false, got["stream"])
	assert.Equal(t, []any{
		map[string]any{"role": "system", "content": "be nice"},
		map[string]any{"role": "user", "content": "hello"},
	}, got["messages"])

	opts, ok := got["options"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 0.7, opts["temperature"])
	assert.Equal(t, 0.9, opts["top_p"])
	assert.Equal(t, float64(40), opts["top_k"])
	assert.Equal(t, float64(1024), opts["max_tokens"])
	assert.Equal(t, float64(1024), opts["num_predict"])
	assert.Equal(t, []any{"</s>", "\nUser:", "\n\nUser:"}, opts["stop"])
	assert.Equal(t, 1.1, opts["repeat_penalty"])
}

func TestChatSendsExplicitZeroOptions(t *testing.T) {
	var got map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = io.WriteString(w, `{"message":{"role":"assistant","content":"ok"}}`)
	}))
	t.Cleanup(server.Close)

	client := NewClient(Config{BaseURL: server.URL, Options: GenerationOptions{Temperature: Float(0)}})
	_, err := client.Chat(context.Background(), []chat.Message{{Role: "user", Content: "hello"}})
	require.NoError(t, err)

	opts, ok := got["options"].(map[string]any)
	require.True(t, ok)
	temperature, present := opts["temperature"]
	require.True(t, present)
	assert.Equal(t, 0.0, temperature)
	assert.Equal(t, 0.9, opts["top_p"])
}

func TestChatRejectsUnrecognizedShape(t *testing.T) {
	for name, body := range map[string]string{
		"empty object":      `{}`,
		"empty content":     `{"message":{"role":"assistant","content":""}}`,
		"empty choices":     `{"choices":[]}`,
		"empty response":    `{"response":""}`,
		"unrelated payload": `{"status":"ok"}`,
		"array body":        `[{"response":"hi"}]`,
		"string body":       `"hi"`,
		"null body":         `null`,
	} {
		t.Run(name, func(t *testing.T) {
			client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				_, _ = io.WriteString(w, body)
			})

			reply, err := client.Chat(context.Background(), []chat.Message{{Role: "user", Content: "hello"}})
			require.Error(t, err)
			assert.Empty(t, reply.Content)
			assert.True(t, IsResponseFormat(err))
			assert.ErrorIs(t, err, ErrUnrecognizedReply)

			var ce *ClientError
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, KindResponseFormat, ce.Kind)
		})
	}
}

func TestChatDistinguishesMalformedBody(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"message": {"content": "hi"`)
	})

	_, err := client.Chat(context.Background(), []chat.Message{{Role: "user", Content: "hello"}})
	require.Error(t, err)
	assert.True(t, IsResponseFormat(err))
	assert.NotErrorIs(t, err, ErrUnrecognizedReply)

	var ce *ClientError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, KindMalformedBody, ce.Kind)
}

func TestChatBackendAPIErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		message string
	}{
		{name: "ollama error field", status: http.StatusNotFound, body: `{"error":"model 'llama3' not found"}`, message: "model 'llama3' not found"},
		{name: "openai error object", status: http.StatusBadRequest, body: `{"error":{"message":"bad prompt","type":"invalid_request_error"}}`, message: "bad prompt"},
		{name: "reason phrase fallback", status: http.StatusServiceUnavailable, body: `not json`, message: "Service Unavailable"},
		{name: "unknown status", status: 599, body: ``, message: "Unknown error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			})

			_, err := client.Chat(context.Background(), []chat.Message{{Role: "user", Content: "hello"}})
			require.Error(t, err)
			assert.True(t, IsBackendAPI(err))
			assert.Equal(t, tt.status, StatusCode(err))

			var ce *ClientError
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, tt.message, ce.Message)
			assert.Contains(t, err.Error(), tt.message)
		})
	}
}

func TestChatDoesNotRetry(t *testing.T) {
	var calls atomic.Int32
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := client.Chat(context.Background(), []chat.Message{{Role: "user", Content: "hello"}})
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestChatTimeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(server.Close)
	t.Cleanup(func() { close(release) })

	client := NewClient(Config{BaseURL: server.URL, ChatTimeout: 50 * time.Millisecond})

	start := time.Now()
	_, err := client.Chat(context.Background(), []chat.Message{{Role: "user", Content: "hello"}})
	require.Error(t, err)
	assert.True(t, IsTransport(err))
	assert.True(t, IsTimeout(err))
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestChatUnreachableBackend(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	client := NewClient(Config{BaseURL: url})
	_, err := client.Chat(context.Background(), []chat.Message{{Role: "user", Content: "hello"}})
	require.Error(t, err)
	assert.True(t, IsTransport(err))
	assert.False(t, IsTimeout(err))
	assert.False(t, IsBackendAPI(err))
}

func TestChatRejectsMisplacedSystemMessage(t *testing.T) {
	var calls atomic.Int32
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	})

	_, err := client.Chat(context.Background(), []chat.Message{
		{Role: "system", Content: "one"},
		{Role: "user", Content: "hello"},
		{Role: "system", Content: "two"},
	})
	require.Error(t, err)
	assert.Equal(t, int32(0), calls.Load())
	assert.True(t, IsInvalidRequest(err))

	var ce *ClientError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, KindInvalidRequest, ce.Kind)
	assert.Contains(t, ce.Error(), "position 2")
}

func TestGenerateTitle(t *testing.T) {
	var got map[string]any
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = io.WriteString(w, `{"response":"  'Italian Restaurant Ideas'\n\n "}`)
	})

	title, ok := client.GenerateTitle(context.Background(), "What are some good Italian restaurants?")
	require.True(t, ok)
	assert.Equal(t, "Italian Restaurant Ideas", title)

	assert.Equal(t, TitleModel, got["model"])
	assert.Equal(t, false, got["stream"])
	assert.Equal(t,
		`Generate a short 3-4 word title for this chat message: "What are some good Italian restaurants?". Return only the title, no quotes or formatting.`,
		got["prompt"])
	opts, ok := got["options"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 0.7, opts["temperature"])
	assert.Equal(t, float64(15), opts["max_tokens"])
}

func TestGenerateTitleIgnoresChatModel(t *testing.T) {
	var model string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req generateRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		model = req.Model
		_, _ = io.WriteString(w, `{"response":"Title"}`)
	}))
	t.Cleanup(server.Close)

	client := NewClient(Config{BaseURL: server.URL, Model: "mistral"})
	_, ok := client.GenerateTitle(context.Background(), "hi")
	require.True(t, ok)
	assert.Equal(t, TitleModel, model)
}

func TestGenerateTitleEmptyResponseFallsBack(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"response":" \"\" \n"}`)
	})

	title, ok := client.GenerateTitle(context.Background(), "hi")
	require.True(t, ok)
	assert.Equal(t, "New Chat", title)
}

func TestGenerateTitleFailuresReturnNotOK(t *testing.T) {
	handlers := map[string]http.HandlerFunc{
		"api error": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = io.WriteString(w, `{"error":"boom"}`)
		},
		"malformed body": func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.WriteString(w, `<html>`)
		},
		"missing response": func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.WriteString(w, `{"done":true}`)
		},
	}

	for name, handler := range handlers {
		t.Run(name, func(t *testing.T) {
			client, _ := newTestClient(t, handler)
			title, ok := client.GenerateTitle(context.Background(), "hi")
			assert.False(t, ok)
			assert.Empty(t, title)
		})
	}

	t.Run("unreachable", func(t *testing.T) {
		server := httptest.NewServer(http.NotFoundHandler())
		url := server.URL
		server.Close()

		title, ok := NewClient(Config{BaseURL: url}).GenerateTitle(context.Background(), "hi")
		assert.False(t, ok)
		assert.Empty(t, title)
	})
}

func TestPing(t *testing.T) {
	t.Run("ok", func(t *testing.T) {
		client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodHead, r.Method)
			assert.Equal(t, "/", r.URL.Path)
			w.WriteHeader(http.StatusOK)
		})
		assert.True(t, client.Ping(context.Background()))
	})

	t.Run("non-success status", func(t *testing.T) {
		client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		})
		assert.False(t, client.Ping(context.Background()))
	})

	t.Run("unreachable", func(t *testing.T) {
		server := httptest.NewServer(http.NotFoundHandler())
		url := server.URL
		server.Close()

		assert.False(t, NewClient(Config{BaseURL: url}).Ping(context.Background()))
	})
}
