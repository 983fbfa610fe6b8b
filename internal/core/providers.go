package core

import "context"

type ChatRequest struct {
	Model        string
	Messages     []Message
	SystemPrompt string
	MaxTokens    int
}

type ChatResponse struct {
	Content      string  `json:"content"`
	InputTokens  int     `json:"inputTokens"`
	OutputTokens int     `json:"outputTokens"`
	Model        string  `json:"model"`
	Provider     string  `json:"provider"`
	CostUSD      float64 `json:"costUsd"`
}

// DeltaFunc receives incremental text. Returning an error aborts the stream.
type DeltaFunc func(delta string) error

// Provider is one language-model backend.
type Provider interface {
	Chat(ctx context.Context, req ChatRequest) (ChatResponse, error)
	Stream(ctx context.Context, req ChatRequest, onDelta DeltaFunc) (ChatResponse, error)
}

// Completer is the gateway contract consumed by the services.
type Completer interface {
	Chat(ctx context.Context, provider string, req ChatRequest) (ChatResponse, error)
	Stream(ctx context.Context, provider string, req ChatRequest, onDelta DeltaFunc) (ChatResponse, error)
}

// EmbeddingModel turns text into vectors.
type EmbeddingModel interface {
	EncodeQuery(ctx context.Context, text string) ([]float32, error)
	EncodePassage(ctx context.Context, text string) ([]float32, error)
	Dims() int
}

type Authorizer interface {
	Authorize(ctx context.Context, subject Subject, action string, resource map[string]any) error
}

const (
	ActionConversationAccess = "conversation.access"
	ActionMaterialApprove    = "material.approve"
	ActionMaterialReject     = "material.reject"
	ActionMaterialDelete     = "material.delete"
	ActionMemoryAccess       = "memory.access"
)

type Model struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	ContextLength int    `json:"context_length"`
}
