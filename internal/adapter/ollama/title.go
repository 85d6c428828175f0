package ollama

import (
	"fmt"
	"strings"

	"github.com/petedillo/ollama-chat-api/internal/domain"
)

func titlePrompt(message string) string {
	return fmt.Sprintf("Generate a short 3-4 word title for this chat message: \"%s\". Return only the title, no quotes or formatting.", message)
}

// CleanTitle trims the model output, strips one surrounding quote on each
// side and collapses whitespace runs. An empty result becomes the default
// session title.
func CleanTitle(raw string) string {
	title := strings.TrimSpace(raw)
	title = trimQuote(title, strings.HasPrefix, strings.TrimPrefix)
	title = trimQuote(title, strings.HasSuffix, strings.TrimSuffix)
	title = strings.Join(strings.Fields(title), " ")
	if title == "" {
		return domain.DefaultTitle
	}
	return title
}

func trimQuote(s string, has func(string, string) bool, trim func(string, string) string) string {
	for _, q := range []string{`"`, `'`} {
		if has(s, q) {
			return trim(s, q)
		}
	}
	return s
}
