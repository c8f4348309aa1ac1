package domain

import "context"

// CompletionRequest is a single-turn chat request.
type CompletionRequest struct {
	System      string
	User        string
	JSON        bool // ask the provider for a JSON object response
	MaxTokens   int
	Temperature float32
}

// Completion is a chat response with the model that produced it.
type Completion struct {
	Text             string
	Model            string
	PromptTokens     int
	CompletionTokens int
}

// LLM is the chat completion contract shared by expansion, interpretation, reranking and generation.
type LLM interface {
	Complete(ctx context.Context, req CompletionRequest) (Completion, error)
}
