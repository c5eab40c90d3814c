package prompt

import (
	"strings"
)

// flattenInstruct serializes the system prompt, history, and current query
// into a single instruction-block string for instruction-tuned models that
// take one flat prompt instead of a message list.
func flattenInstruct(systemPrompt string, c *Context) string {
	var sb strings.Builder
	sb.WriteString(systemPrompt)
	sb.WriteString("\n")

	if len(c.History) > 0 {
		sb.WriteString("\n### Conversation so far\n")
		for _, m := range c.History {
			sb.WriteString(roleLabel(m.Role))
			sb.WriteString(": ")
			sb.WriteString(m.Content)
			sb.WriteString("\n")
		}
	}

	sb.WriteString("\n### Current request\n")
	sb.WriteString(c.Query)
	sb.WriteString("\n\n### Response\n")
	return sb.String()
}

func roleLabel(role string) string {
	switch role {
	case "assistant":
		return "Assistant"
	case "system":
		return "System"
	default:
		return "User"
	}
}
