package ollama

import (
	"encoding/json"

	openaiapi "github.com/sashabaranov/go-openai"

	"github.com/petedillo/ollama-chat-api/internal/domain"
)

// Reply is the canonical chat response: {"message": {"role", "content"}}.
type Reply struct {
	Message wireMessage `json:"message"`
}

// replyShape is one of the three body layouts a backend may answer with,
// depending on whether it runs Ollama's native API, an OpenAI-compatible
// layer, or a raw completion endpoint.
type replyShape interface {
	canonical() Reply
}

// nativeReply is Ollama's /api/chat body; it is already canonical.
type nativeReply struct {
	Message wireMessage
}

func (r nativeReply) canonical() Reply {
	msg := r.Message
	if msg.Role == "" {
		msg.Role = domain.RoleAssistant
	}
	return Reply{Message: msg}
}

// openAIReply is the first choice of an OpenAI-compatible chat.completion.
type openAIReply struct {
	msg openaiapi.ChatCompletionMessage
}

func (r openAIReply) canonical() Reply {
	return Reply{Message: wireMessage{
		Role:    openaiapi.ChatMessageRoleAssistant,
		Content: r.msg.Content,
	}}
}

// completionReply is a raw completion body such as /api/generate returns.
type completionReply struct {
	Response string
}

func (r completionReply) canonical() Reply {
	return Reply{Message: wireMessage{Role: domain.RoleAssistant, Content: r.Response}}
}

// recognizeReply inspects body and returns its shape, trying the native,
// OpenAI-compatible and raw completion layouts in that order. Each layout
// looks only at its own key, so an odd value elsewhere in the body does not
// hide a usable reply.
func recognizeReply(body []byte) (replyShape, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(body, &top); err != nil {
		if json.Valid(body) {
			return nil, &ClientError{Kind: KindResponseFormat, Message: "response from ollama api is not an object", Cause: ErrUnrecognizedReply}
		}
		return nil, &ClientError{Kind: KindMalformedBody, Message: "failed to parse response from ollama api", Cause: err}
	}

	if msg, ok := nativeMessage(top["message"]); ok {
		return nativeReply{Message: msg}, nil
	}
	if msg, ok := firstChoice(top["choices"]); ok {
		return openAIReply{msg: msg}, nil
	}
	var response string
	if json.Unmarshal(top["response"], &response) == nil && response != "" {
		return completionReply{Response: response}, nil
	}
	return nil, &ClientError{Kind: KindResponseFormat, Message: "failed to parse response from ollama api", Cause: ErrUnrecognizedReply}
}

func nativeMessage(raw json.RawMessage) (wireMessage, bool) {
	var msg wireMessage
	if !hasValue(raw) || json.Unmarshal(raw, &msg) != nil || msg.Content == "" {
		return wireMessage{}, false
	}
	return msg, true
}

func firstChoice(raw json.RawMessage) (openaiapi.ChatCompletionMessage, bool) {
	var choices []struct {
		Message json.RawMessage `json:"message"`
	}
	if !hasValue(raw) || json.Unmarshal(raw, &choices) != nil || len(choices) == 0 || !hasValue(choices[0].Message) {
		return openaiapi.ChatCompletionMessage{}, false
	}
	var msg openaiapi.ChatCompletionMessage
	if err := json.Unmarshal(choices[0].Message, &msg); err != nil {
		return openaiapi.ChatCompletionMessage{}, false
	}
	return msg, true
}

func hasValue(raw json.RawMessage) bool {
	return len(raw) > 0 && string(raw) != "null"
}
