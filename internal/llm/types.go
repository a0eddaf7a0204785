// Package llm provides chat completion clients for the supported
// model providers.
package llm

import "log/slog"

// LevelTrace is below Debug, used for wire-level payload logging.
const LevelTrace = slog.Level(-8)

// Message is a single provider-neutral chat message. Role is either
// "user" or "model"; conversion to each provider's role vocabulary
// happens inside the client implementations.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Response is the unified result of a chat completion from any provider.
type Response struct {
	Model   string
	Content string

	// Token usage (provider-neutral, zero when the provider omits it)
	InputTokens  int
	OutputTokens int
}
