package prompt

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/famulus/ai/llm"
)

func testContext() *Context {
	return &Context{
		Persona: "You are Famulus, a personal assistant.",
		Rules:   "Never invent calendar events.",
		Memories: []MemorySnippet{
			{Source: "contacts", Content: "Alice prefers email over phone."},
			{Content: "The user works from home on Fridays."},
		},
		Summaries: []string{"Earlier the user asked about travel plans."},
		History: []llm.Message{
			llm.UserMessage("What time is my flight?"),
			llm.AssistantMessage("Your flight leaves at 14:05."),
		},
		Query: "And when should I leave for the airport?",
		Now:   time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC),
	}
}

func TestBuild_ChatFormatKeepsHistoryStructured(t *testing.T) {
	b := NewBuilder(NewRegistry())

	payload, err := b.Build("openai", "chat", FormatChat, testContext())
	require.NoError(t, err)

	require.Len(t, payload.Messages, 4)
	assert.Equal(t, "system", payload.Messages[0].Role)
	assert.Equal(t, "user", payload.Messages[1].Role)
	assert.Equal(t, "What time is my flight?", payload.Messages[1].Content)
	assert.Equal(t, "assistant", payload.Messages[2].Role)
	assert.Equal(t, "user", payload.Messages[3].Role)
	assert.Equal(t, "And when should I leave for the airport?", payload.Messages[3].Content)

	// No flattening for chat providers.
	assert.Empty(t, payload.Prompt)
}

func TestBuild_InstructFormatFlattensHistory(t *testing.T) {
	b := NewBuilder(NewRegistry())

	payload, err := b.Build("ollama", "chat", FormatInstruct, testContext())
	require.NoError(t, err)

	require.Len(t, payload.Messages, 1)
	assert.Equal(t, "user", payload.Messages[0].Role)
	assert.Equal(t, payload.Prompt, payload.Messages[0].Content)

	assert.Contains(t, payload.Prompt, "### Conversation so far")
	assert.Contains(t, payload.Prompt, "User: What time is my flight?")
	assert.Contains(t, payload.Prompt, "Assistant: Your flight leaves at 14:05.")
	assert.Contains(t, payload.Prompt, "### Current request")
	assert.Contains(t, payload.Prompt, "And when should I leave for the airport?")
}

func TestBuild_SystemPromptIncludesContext(t *testing.T) {
	b := NewBuilder(NewRegistry())

	payload, err := b.Build("openai", "chat", FormatChat, testContext())
	require.NoError(t, err)

	system := payload.Messages[0].Content
	assert.Contains(t, system, "You are Famulus, a personal assistant.")
	assert.Contains(t, system, "Never invent calendar events.")
	assert.Contains(t, system, "[contacts] Alice prefers email over phone.")
	assert.Contains(t, system, "The user works from home on Fridays.")
	assert.Contains(t, system, "Earlier the user asked about travel plans.")
	assert.Contains(t, system, "2026-03-14 09:30 Saturday")
}

func TestBuild_Deterministic(t *testing.T) {
	b := NewBuilder(NewRegistry())

	first, err := b.Build("ollama", "default", FormatInstruct, testContext())
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		again, err := b.Build("ollama", "default", FormatInstruct, testContext())
		require.NoError(t, err)
		assert.Equal(t, first.Prompt, again.Prompt)
	}
}

func TestBuild_MemoryOrderPreserved(t *testing.T) {
	b := NewBuilder(NewRegistry())
	c := testContext()
	c.Memories = []MemorySnippet{
		{Content: "third"},
		{Content: "first"},
		{Content: "second"},
	}

	payload, err := b.Build("openai", "chat", FormatChat, c)
	require.NoError(t, err)

	system := payload.Messages[0].Content
	// Caller-supplied order is authoritative; the builder never re-ranks.
	posThird := strings.Index(system, "third")
	posFirst := strings.Index(system, "first")
	posSecond := strings.Index(system, "second")
	require.True(t, posThird >= 0 && posFirst >= 0 && posSecond >= 0)
	assert.Less(t, posThird, posFirst)
	assert.Less(t, posFirst, posSecond)
}

func TestBuild_UnknownFormat(t *testing.T) {
	b := NewBuilder(NewRegistry())

	_, err := b.Build("openai", "chat", Format("carrier-pigeon"), testContext())
	assert.Error(t, err)
}
