// Package llm provides the outbound client for OpenAI-compatible model
// backends. Every supported provider (local ollama runtime included) speaks
// the same chat-completion protocol and differs only in base URL and
// credentials.
package llm

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/sashabaranov/go-openai"
)

// Message represents a chat message.
type Message struct {
	Role    string // system, user, assistant
	Content string
}

// Options are the per-request generation parameters resolved from a mode.
type Options struct {
	MaxTokens   int     `json:"max_tokens" yaml:"max_tokens"`
	Temperature float32 `json:"temperature" yaml:"temperature"`
}

// CallStats carries token usage and timing for a single backend call.
type CallStats struct {
	PromptTokens     int   `json:"prompt_tokens"`
	CompletionTokens int   `json:"completion_tokens"`
	TotalTokens      int   `json:"total_tokens"`
	DurationMs       int64 `json:"duration_ms"`
}

// Client is the backend call surface used by the task executors.
// The model is passed per call because the dispatcher resolves it per task.
type Client interface {
	// Chat performs a synchronous chat completion. Returns content,
	// statistics, and error.
	Chat(ctx context.Context, model string, messages []Message, opts Options) (string, *CallStats, error)

	// Warmup sends a lightweight ping request to establish and warm up the
	// backend connection. Best effort.
	Warmup(ctx context.Context, model string)
}

// Config represents backend client configuration for one provider.
type Config struct {
	Provider string // ollama, openai, deepseek, siliconflow, openrouter
	APIKey   string
	BaseURL  string
}

type client struct {
	api      *openai.Client
	provider string
}

// NewClient creates a Client for one provider. Unknown providers fall back
// to a generic OpenAI-compatible client using the configured base URL.
func NewClient(cfg Config) (Client, error) {
	httpClient := newHTTPClient()

	var clientConfig openai.ClientConfig

	switch cfg.Provider {
	case "ollama":
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = "http://localhost:11434/v1"
		}
		clientConfig = openai.DefaultConfig(cfg.APIKey)
		clientConfig.BaseURL = baseURL
		clientConfig.HTTPClient = httpClient

	case "openai":
		clientConfig = openai.DefaultConfig(cfg.APIKey)
		if cfg.BaseURL != "" {
			clientConfig.BaseURL = cfg.BaseURL
		}
		clientConfig.HTTPClient = httpClient

	case "deepseek":
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = "https://api.deepseek.com"
		}
		clientConfig = openai.DefaultConfig(cfg.APIKey)
		clientConfig.BaseURL = baseURL
		clientConfig.HTTPClient = httpClient

	case "siliconflow":
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = "https://api.siliconflow.cn/v1"
		}
		clientConfig = openai.DefaultConfig(cfg.APIKey)
		clientConfig.BaseURL = baseURL
		clientConfig.HTTPClient = httpClient

	case "openrouter":
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = "https://openrouter.ai/api/v1"
		}
		clientConfig = openai.DefaultConfig(cfg.APIKey)
		clientConfig.BaseURL = baseURL
		clientConfig.HTTPClient = httpClient

	default:
		// Generic fallback for any other OpenAI-compatible provider.
		slog.Info("Using generic OpenAI-compatible provider", "provider", cfg.Provider)
		clientConfig = openai.DefaultConfig(cfg.APIKey)
		if cfg.BaseURL != "" {
			clientConfig.BaseURL = cfg.BaseURL
		}
		clientConfig.HTTPClient = httpClient
	}

	return &client{
		api:      openai.NewClientWithConfig(clientConfig),
		provider: cfg.Provider,
	}, nil
}

func (c *client) Chat(ctx context.Context, model string, messages []Message, opts Options) (string, *CallStats, error) {
	slog.Debug("LLM: chat request",
		"provider", c.provider,
		"model", model,
		"messages_count", len(messages),
		"max_tokens", opts.MaxTokens,
	)

	startTime := time.Now()

	req := openai.ChatCompletionRequest{
		Model:       model,
		MaxTokens:   opts.MaxTokens,
		Temperature: opts.Temperature,
		Messages:    convertMessages(messages),
	}

	resp, err := c.api.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", nil, fmt.Errorf("LLM chat failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", nil, fmt.Errorf("empty response from LLM")
	}

	totalDuration := time.Since(startTime)

	stats := &CallStats{
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		TotalTokens:      resp.Usage.TotalTokens,
		DurationMs:       totalDuration.Milliseconds(),
	}

	slog.Debug("LLM: chat response received",
		"provider", c.provider,
		"content_length", len(resp.Choices[0].Message.Content),
		"total_tokens", stats.TotalTokens,
		"duration_ms", stats.DurationMs,
	)

	return resp.Choices[0].Message.Content, stats, nil
}

// Warmup sends a minimal request to establish the connection. Failures are
// logged and ignored; warmup never affects startup.
func (c *client) Warmup(ctx context.Context, model string) {
	req := openai.ChatCompletionRequest{
		Model:     model,
		MaxTokens: 1,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: "ping"},
		},
	}
	if _, err := c.api.CreateChatCompletion(ctx, req); err != nil {
		slog.Debug("LLM: warmup request failed", "provider", c.provider, "error", err)
		return
	}
	slog.Debug("LLM: warmup complete", "provider", c.provider, "model", model)
}

// SystemPrompt creates a system message.
func SystemPrompt(content string) Message {
	return Message{Role: "system", Content: content}
}

// UserMessage creates a user message.
func UserMessage(content string) Message {
	return Message{Role: "user", Content: content}
}

// AssistantMessage creates an assistant message.
func AssistantMessage(content string) Message {
	return Message{Role: "assistant", Content: content}
}

func convertMessages(messages []Message) []openai.ChatCompletionMessage {
	llmMessages := make([]openai.ChatCompletionMessage, len(messages))
	for i, m := range messages {
		switch m.Role {
		case "system":
			llmMessages[i] = openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleSystem,
				Content: m.Content,
			}
		case "assistant":
			llmMessages[i] = openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleAssistant,
				Content: m.Content,
			}
		default:
			llmMessages[i] = openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleUser,
				Content: m.Content,
			}
		}
	}
	return llmMessages
}

// newHTTPClient creates an HTTP client shared by all backend calls.
// The overall request deadline comes from the per-call context, so no
// client-level timeout is set here.
func newHTTPClient() *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout:   30 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			MaxIdleConns:          100,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		},
	}
}
