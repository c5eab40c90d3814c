// Package prompt renders final prompts for model backends. A registry maps
// (provider, mode) pairs to versioned templates; the builder merges the
// caller-supplied context into the template and serializes multi-turn
// history according to the provider's declared formatting strategy.
package prompt

import (
	"time"

	"github.com/hrygo/famulus/ai/llm"
)

// Format selects how multi-turn history is serialized for a provider family.
type Format string

const (
	// FormatInstruct flattens the whole conversation into a single
	// instruction-block string, for instruction-tuned local models.
	FormatInstruct Format = "instruct"

	// FormatChat passes the native message list through unchanged, for
	// providers exposing multi-message chat APIs.
	FormatChat Format = "chat"
)

// Valid reports whether f is a known formatting strategy.
func (f Format) Valid() bool {
	return f == FormatInstruct || f == FormatChat
}

// MemorySnippet is one retrieved memory, in the order supplied by the
// caller. The builder never re-ranks snippets.
type MemorySnippet struct {
	Source  string `json:"source,omitempty"`
	Content string `json:"content"`
}

// Context carries everything a render may depend on. Rendering is a pure
// function of (template, context): the current time is passed in as Now and
// never sampled during the render.
type Context struct {
	Persona   string          `json:"persona,omitempty"`
	Rules     string          `json:"rules,omitempty"`
	Memories  []MemorySnippet `json:"memories,omitempty"`
	Summaries []string        `json:"summaries,omitempty"`
	History   []llm.Message   `json:"history,omitempty"`
	Query     string          `json:"query"`
	Now       time.Time       `json:"now"`
}

// Payload is the rendered result handed to the dispatcher. Messages is
// always populated; Prompt additionally carries the flattened instruction
// block for instruct-formatted providers.
type Payload struct {
	Prompt   string
	Messages []llm.Message
}
