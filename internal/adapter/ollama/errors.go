package ollama

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	openaiapi "github.com/sashabaranov/go-openai"
)

// ErrorKind classifies client failures.
type ErrorKind int

const (
	// KindTransport covers connection refused, DNS failures and timeouts.
	KindTransport ErrorKind = iota + 1
	// KindBackendAPI is a non-success HTTP status from the backend.
	KindBackendAPI
	// KindMalformedBody is a success status with a body that is not JSON.
	KindMalformedBody
	// KindResponseFormat is valid JSON matching none of the reply shapes.
	KindResponseFormat
	// KindInvalidRequest is a request rejected before it was sent.
	KindInvalidRequest
)

func (k ErrorKind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindBackendAPI:
		return "backend_api"
	case KindMalformedBody:
		return "malformed_body"
	case KindResponseFormat:
		return "response_format"
	case KindInvalidRequest:
		return "invalid_request"
	default:
		return "unknown"
	}
}

// ClientError is returned by every failing Chat call.
type ClientError struct {
	Kind    ErrorKind
	Status  int // HTTP status for KindBackendAPI, zero otherwise
	Message string
	Timeout bool
	Cause   error
}

func (e *ClientError) Error() string {
	msg := e.Message
	if e.Kind == KindBackendAPI {
		msg = fmt.Sprintf("ollama api error (%d): %s", e.Status, e.Message)
	}
	if e.Cause != nil {
		return msg + ": " + e.Cause.Error()
	}
	return msg
}

func (e *ClientError) Unwrap() error {
	return e.Cause
}

var ErrUnrecognizedReply = errors.New("unexpected response format from ollama api")

func IsTransport(err error) bool {
	return hasKind(err, KindTransport)
}

func IsTimeout(err error) bool {
	var ce *ClientError
	return errors.As(err, &ce) && ce.Kind == KindTransport && ce.Timeout
}

func IsInvalidRequest(err error) bool {
	return hasKind(err, KindInvalidRequest)
}

func IsBackendAPI(err error) bool {
	return hasKind(err, KindBackendAPI)
}

// IsResponseFormat reports both unparseable bodies and unrecognized shapes.
func IsResponseFormat(err error) bool {
	return hasKind(err, KindMalformedBody) || hasKind(err, KindResponseFormat)
}

// StatusCode returns the backend HTTP status carried by err, or zero.
func StatusCode(err error) int {
	var ce *ClientError
	if errors.As(err, &ce) {
		return ce.Status
	}
	return 0
}

func hasKind(err error, kind ErrorKind) bool {
	var ce *ClientError
	return errors.As(err, &ce) && ce.Kind == kind
}

// apiErrorMessage picks the best available message for a failed response:
// the body's error field, then the status reason phrase, then a generic text.
// Ollama sends {"error": "..."}; OpenAI-compatible servers send
// {"error": {"message": "..."}}.
func apiErrorMessage(status int, body []byte) string {
	var envelope struct {
		Error json.RawMessage `json:"error"`
	}
	if json.Unmarshal(body, &envelope) == nil && len(envelope.Error) > 0 {
		var text string
		if json.Unmarshal(envelope.Error, &text) == nil && strings.TrimSpace(text) != "" {
			return text
		}
		var apiErr openaiapi.APIError
		// APIError fills Message before it looks at the optional fields, so a
		// partial decode still yields the text.
		_ = json.Unmarshal(envelope.Error, &apiErr)
		if strings.TrimSpace(apiErr.Message) != "" {
			return apiErr.Message
		}
	}
	if text := http.StatusText(status); text != "" {
		return text
	}
	return "Unknown error"
}
