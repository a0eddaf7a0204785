package llm

import "context"

// Client is the interface that all model providers implement.
// The target model is fixed at construction time.
type Client interface {
	// Chat sends a completion request and returns the response.
	Chat(ctx context.Context, messages []Message) (*Response, error)

	// Ping checks if the provider is reachable and the credentials work.
	Ping(ctx context.Context) error
}
