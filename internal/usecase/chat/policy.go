package chat

import "github.com/petedillo/ollama-chat-api/internal/domain"

// SystemPreamble is sent ahead of the first exchange of every session.
const SystemPreamble = `You are a helpful, respectful, and honest AI assistant.
- Be concise but thorough in your responses.
- Use markdown formatting when appropriate.
- If you don't know something, say so instead of making up information.
- Break down complex topics into easy-to-understand points.
- Always respond in the same language as the user's message.`

// IsFirstUserMessage reports whether history holds exactly one user message.
// A nil history has no user messages and reports false.
func IsFirstUserMessage(history []Message) bool {
	count := 0
	for _, m := range history {
		if m.Role == domain.RoleUser {
			count++
		}
	}
	return count == 1
}

func NeedsSystemPreamble(history []Message) bool {
	return IsFirstUserMessage(history)
}

// NeedsTitleGeneration fires once per session: on the first user message,
// and only while the session still carries the default title.
func NeedsTitleGeneration(history []Message, currentTitle string) bool {
	return IsFirstUserMessage(history) && currentTitle == domain.DefaultTitle
}

// BuildPrompt returns the messages to send to the model. Stored system
// messages are dropped so the preamble, when present, is the only system
// message and always comes first.
func BuildPrompt(history []Message) []Message {
	prompt := make([]Message, 0, len(history)+1)
	if NeedsSystemPreamble(history) {
		prompt = append(prompt, Message{Role: domain.RoleSystem, Content: SystemPreamble})
	}
	for _, m := range history {
		if m.Role == domain.RoleSystem {
			continue
		}
		prompt = append(prompt, m)
	}
	return prompt
}
