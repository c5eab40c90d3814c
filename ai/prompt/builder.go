package prompt

import (
	"bytes"

	"github.com/pkg/errors"

	"github.com/hrygo/famulus/ai/llm"
)

// timestampLayout is the fixed rendering of Context.Now inside prompts.
const timestampLayout = "2006-01-02 15:04 Monday"

// templateData is the view of a Context exposed to system prompt templates.
// History and Query are deliberately absent: they are serialized by the
// formatting strategy, not by the template.
type templateData struct {
	Persona   string
	Rules     string
	Memories  []MemorySnippet
	Summaries []string
	Timestamp string
}

// Builder renders prompts from registered templates.
type Builder struct {
	registry *Registry
}

// NewBuilder creates a Builder over the given registry.
func NewBuilder(registry *Registry) *Builder {
	return &Builder{registry: registry}
}

// Build renders the final payload for a (provider, mode) pair. The render is
// deterministic: identical contexts produce byte-identical payloads.
func (b *Builder) Build(provider, mode string, format Format, c *Context) (*Payload, error) {
	tmpl, err := b.registry.Lookup(provider, mode)
	if err != nil {
		return nil, err
	}

	data := templateData{
		Persona:   c.Persona,
		Rules:     c.Rules,
		Memories:  c.Memories,
		Summaries: c.Summaries,
		Timestamp: c.Now.Format(timestampLayout),
	}

	var buf bytes.Buffer
	if err := tmpl.tmpl.Execute(&buf, data); err != nil {
		return nil, errors.Wrapf(err, "render prompt template %q", tmpl.Name)
	}
	systemPrompt := buf.String()

	switch format {
	case FormatChat:
		return &Payload{
			Messages: chatMessages(systemPrompt, c),
		}, nil
	case FormatInstruct:
		flattened := flattenInstruct(systemPrompt, c)
		return &Payload{
			Prompt:   flattened,
			Messages: []llm.Message{llm.UserMessage(flattened)},
		}, nil
	default:
		return nil, errors.Errorf("unknown prompt format %q", format)
	}
}

// chatMessages builds the native message list: system prompt, history
// unchanged, then the current query.
func chatMessages(systemPrompt string, c *Context) []llm.Message {
	messages := make([]llm.Message, 0, len(c.History)+2)
	messages = append(messages, llm.SystemPrompt(systemPrompt))
	messages = append(messages, c.History...)
	messages = append(messages, llm.UserMessage(c.Query))
	return messages
}
