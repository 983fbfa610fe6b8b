package core

import "context"

// MemoryStore is the semantic store consumed by the orchestrator and workers.
type MemoryStore interface {
	Store(ctx context.Context, id, text string, meta Metadata) (StoreResult, error)
	Search(ctx context.Context, query string, topK int, filter Filter) (SearchResult, error)
	Delete(ctx context.Context, id string) error
	DeleteWhere(ctx context.Context, filter Filter) error
	RagQuery(ctx context.Context, query, ownerID, conversationID string) (RagContext, error)
}

type StoreResult struct {
	ID       string
	Disabled bool
}

// Err converts a disabled result into ErrMemoryStoreDisabled.
func (r StoreResult) Err() error {
	if r.Disabled {
		return ErrMemoryStoreDisabled
	}
	return nil
}

type SearchResult struct {
	Matches  []SearchMatch
	Disabled bool
}

type RagContext struct {
	Query    string
	Context  string
	Matches  []SearchMatch
	Disabled bool
}

// KnowledgeSource supplies curated knowledge to the orchestrator.
type KnowledgeSource interface {
	RelevantContext(ctx context.Context, query string, limit int) (string, error)
	EnhanceResponse(ctx context.Context, query, base string) string
}

type StreamEventType string

const (
	StreamContent StreamEventType = "content"
	StreamDone    StreamEventType = "done"
	StreamError   StreamEventType = "error"
)

type StreamEvent struct {
	Type               StreamEventType `json:"type"`
	Delta              string          `json:"delta,omitempty"`
	TokensUsed         int             `json:"tokensUsed,omitempty"`
	CostUSD            float64         `json:"costUsd,omitempty"`
	UserMessageID      string          `json:"userMessageId,omitempty"`
	AssistantMessageID string          `json:"assistantMessageId,omitempty"`
	Error              string          `json:"error,omitempty"`
}
