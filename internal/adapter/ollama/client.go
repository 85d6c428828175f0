package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/petedillo/ollama-chat-api/internal/domain"
	"github.com/petedillo/ollama-chat-api/internal/usecase/chat"
)

const (
	DefaultBaseURL = "http://macpro:11434"
	DefaultModel   = "llama3"
	DefaultTimeout = 30 * time.Second

	// TitleModel generates session titles regardless of the chat model.
	TitleModel = "gemma3"

	maxErrorBody = 64 << 10
)

var tracer = otel.Tracer("github.com/petedillo/ollama-chat-api/internal/adapter/ollama")

type Config struct {
	BaseURL string
	Model   string

	// ChatTimeout bounds a single /api/chat call.
	ChatTimeout time.Duration

	// TitleTimeout bounds a single /api/generate call.
	TitleTimeout time.Duration

	Options    GenerationOptions
	HTTPClient *http.Client
}

func DefaultConfig() Config {
	return Config{
		BaseURL:      DefaultBaseURL,
		Model:        DefaultModel,
		ChatTimeout:  DefaultTimeout,
		TitleTimeout: DefaultTimeout,
		Options:      DefaultOptions(),
	}
}

// Client sends conversations to an Ollama server. It keeps no per-call
// state and is safe for concurrent use. Calls are never retried.
type Client struct {
	cfg  Config
	http *http.Client
}

func NewClient(cfg Config) *Client {
	def := DefaultConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = def.BaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Model == "" {
		cfg.Model = def.Model
	}
	if cfg.ChatTimeout <= 0 {
		cfg.ChatTimeout = def.ChatTimeout
	}
	if cfg.TitleTimeout <= 0 {
		cfg.TitleTimeout = def.TitleTimeout
	}
	cfg.Options = def.Options.Merge(cfg.Options)
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{cfg: cfg, http: httpClient}
}

type wireMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string            `json:"model"`
	Messages []wireMessage     `json:"messages"`
	Stream   bool              `json:"stream"`
	Options  GenerationOptions `json:"options"`
}

type generateRequest struct {
	Model   string            `json:"model"`
	Prompt  string            `json:"prompt"`
	Stream  bool              `json:"stream"`
	Options GenerationOptions `json:"options"`
}

type generateResponse struct {
	Response *string `json:"response"`
}

// Chat sends the conversation to /api/chat and returns the assistant reply
// in canonical form, whichever of the supported body shapes the backend
// used. Failures are *ClientError values.
func (c *Client) Chat(ctx context.Context, messages []chat.Message) (chat.Message, error) {
	ctx, span := tracer.Start(ctx, "ollama.chat", trace.WithAttributes(
		attribute.String("ollama.model", c.cfg.Model),
		attribute.Int("ollama.messages", len(messages)),
	))
	defer span.End()

	reply, err := c.chat(ctx, messages)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.Printf("ollama chat failed: %v", err)
		return chat.Message{}, err
	}
	return chat.Message{Role: reply.Message.Role, Content: reply.Message.Content}, nil
}

func (c *Client) chat(ctx context.Context, messages []chat.Message) (Reply, error) {
	if err := validateHistory(messages); err != nil {
		return Reply{}, err
	}

	wire := make([]wireMessage, 0, len(messages))
	for _, m := range messages {
		wire = append(wire, wireMessage{Role: m.Role, Content: m.Content})
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.ChatTimeout)
	defer cancel()

	status, body, err := c.post(ctx, "/api/chat", chatRequest{
		Model:    c.cfg.Model,
		Messages: wire,
		Stream:   false,
		Options:  c.cfg.Options,
	})
	if err != nil {
		return Reply{}, err
	}
	if status < 200 || status >= 300 {
		return Reply{}, &ClientError{Kind: KindBackendAPI, Status: status, Message: apiErrorMessage(status, body)}
	}

	shape, err := recognizeReply(body)
	if err != nil {
		return Reply{}, err
	}
	return shape.canonical(), nil
}

// GenerateTitle asks the title model for a short title for message. Any
// failure is logged and reported as ok=false.
func (c *Client) GenerateTitle(ctx context.Context, message string) (string, bool) {
	ctx, span := tracer.Start(ctx, "ollama.generate_title", trace.WithAttributes(
		attribute.String("ollama.model", TitleModel),
	))
	defer span.End()

	title, err := c.generateTitle(ctx, message)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.Printf("title generation failed: %v", err)
		return "", false
	}
	span.SetAttributes(attribute.String("chat.title", title))
	return title, true
}

func (c *Client) generateTitle(ctx context.Context, message string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.TitleTimeout)
	defer cancel()

	status, body, err := c.post(ctx, "/api/generate", generateRequest{
		Model:  TitleModel,
		Prompt: titlePrompt(message),
		Stream: false,
		Options: GenerationOptions{
			Temperature: Float(0.7),
			MaxTokens:   Int(15),
		},
	})
	if err != nil {
		return "", err
	}
	if status < 200 || status >= 300 {
		return "", &ClientError{Kind: KindBackendAPI, Status: status, Message: apiErrorMessage(status, body)}
	}

	var resp generateResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", &ClientError{Kind: KindMalformedBody, Message: "failed to parse title response", Cause: err}
	}
	if resp.Response == nil {
		return "", &ClientError{Kind: KindResponseFormat, Message: "title response has no response field", Cause: ErrUnrecognizedReply}
	}
	return CleanTitle(*resp.Response), nil
}

// Ping probes the backend root with a HEAD request. It reports false on any
// failure.
func (c *Client) Ping(ctx context.Context) bool {
	ctx, span := tracer.Start(ctx, "ollama.ping")
	defer span.End()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.cfg.BaseURL+"/", nil)
	if err != nil {
		log.Printf("failed to ping ollama: %v", err)
		return false
	}
	resp, err := c.http.Do(req)
	if err != nil {
		span.RecordError(err)
		log.Printf("failed to ping ollama: %v", err)
		return false
	}
	drainAndClose(resp.Body)

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Printf("failed to ping ollama: status %s", resp.Status)
		return false
	}
	return true
}

// post sends payload as JSON and returns the status and the full body.
func (c *Client) post(ctx context.Context, path string, payload any) (int, []byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return 0, nil, &ClientError{Kind: KindInvalidRequest, Message: "failed to encode request", Cause: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return 0, nil, &ClientError{Kind: KindTransport, Message: "failed to create request", Cause: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, transportError(err)
	}
	defer resp.Body.Close()

	reader := io.Reader(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		reader = io.LimitReader(resp.Body, maxErrorBody)
	}
	respBody, err := io.ReadAll(reader)
	if err != nil {
		return 0, nil, transportError(err)
	}
	return resp.StatusCode, respBody, nil
}

func transportError(err error) *ClientError {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return &ClientError{Kind: KindTransport, Timeout: true, Message: "request to ollama api timed out", Cause: err}
	}
	return &ClientError{Kind: KindTransport, Message: "failed to reach ollama api", Cause: err}
}

// validateHistory enforces that a system message, if any, is single and first.
func validateHistory(messages []chat.Message) error {
	for i, m := range messages {
		if m.Role == domain.RoleSystem && i != 0 {
			return &ClientError{
				Kind:    KindInvalidRequest,
				Message: fmt.Sprintf("system message at position %d: only a leading system message is allowed", i),
			}
		}
	}
	return nil
}

func drainAndClose(r io.ReadCloser) {
	_, _ = io.Copy(io.Discard, r)
	_ = r.Close()
}

var _ chat.Client = (*Client)(nil)
