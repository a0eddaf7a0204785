package llm

import (
	"context"
	"fmt"
	"log/slog"

	anthropic "github.com/liushuangls/go-anthropic/v2"
)

const anthropicMaxTokens = 1024

// AnthropicClient talks to the Anthropic Messages API.
type AnthropicClient struct {
	client *anthropic.Client
	model  string
	logger *slog.Logger
}

// NewAnthropicClient creates an Anthropic client for the given model.
func NewAnthropicClient(apiKey, model string, logger *slog.Logger) (*AnthropicClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key is required")
	}
	if model == "" {
		model = string(anthropic.ModelClaude3Dot5SonnetLatest)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AnthropicClient{
		client: anthropic.NewClient(apiKey),
		model:  model,
		logger: logger,
	}, nil
}

// Chat sends a Messages API request.
func (c *AnthropicClient) Chat(ctx context.Context, messages []Message) (*Response, error) {
	converted := convertToAnthropic(messages)
	c.logger.Debug("preparing request", "model", c.model, "messages", len(converted))

	resp, err := c.client.CreateMessages(ctx, anthropic.MessagesRequest{
		Model:     anthropic.Model(c.model),
		Messages:  converted,
		MaxTokens: anthropicMaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("create messages: %w", err)
	}

	content := resp.GetFirstContentText()
	c.logger.Log(ctx, LevelTrace, "response content", "content", content)

	return &Response{
		Model:        string(resp.Model),
		Content:      content,
		InputTokens:  resp.Usage.InputTokens,
		OutputTokens: resp.Usage.OutputTokens,
	}, nil
}

// Ping verifies the API key with a minimal one-token request.
func (c *AnthropicClient) Ping(ctx context.Context) error {
	_, err := c.client.CreateMessages(ctx, anthropic.MessagesRequest{
		Model:     anthropic.Model(c.model),
		Messages:  []anthropic.Message{anthropic.NewUserTextMessage("ping")},
		MaxTokens: 1,
	})
	if err != nil {
		return fmt.Errorf("anthropic ping: %w", err)
	}
	return nil
}

// convertToAnthropic maps neutral messages to the Messages API format.
// The API requires alternating user/assistant roles starting with user,
// so consecutive same-role messages are merged first.
func convertToAnthropic(messages []Message) []anthropic.Message {
	merged := mergeAdjacent(messages)
	out := make([]anthropic.Message, 0, len(merged))
	for _, m := range merged {
		if m.Role == "model" {
			out = append(out, anthropic.NewAssistantTextMessage(m.Content))
		} else {
			out = append(out, anthropic.NewUserTextMessage(m.Content))
		}
	}
	return out
}

// mergeAdjacent joins consecutive same-role messages with blank lines
// and drops empty ones. A leading model message gets a placeholder user
// message in front so the sequence starts with user.
func mergeAdjacent(messages []Message) []Message {
	var out []Message
	for _, m := range messages {
		if m.Content == "" {
			continue
		}
		role := "user"
		if m.Role == "model" {
			role = "model"
		}
		if n := len(out); n > 0 && out[n-1].Role == role {
			out[n-1].Content += "\n\n" + m.Content
			continue
		}
		out = append(out, Message{Role: role, Content: m.Content})
	}
	if len(out) > 0 && out[0].Role == "model" {
		out = append([]Message{{Role: "user", Content: "..."}}, out...)
	}
	return out
}
