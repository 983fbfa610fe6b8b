package rag

import (
	"context"
	"fmt"
	"time"

	"github.com/sandevgo/tuskchat/internal/config"
)

// NewEmbeddingModel builds the configured encoder. It returns nil without
// an error when embeddings are disabled.
func NewEmbeddingModel(ctx context.Context, cfg *config.RAGConfig, providers *config.ProviderConfig) (DualEncoder, error) {
	if !cfg.Enabled() {
		return nil, nil
	}

	switch cfg.Provider {
	case ModelNameHash:
		return NewHashModel(cfg.Dims), nil
	case "openai":
		key := cfg.APIKey
		if key == "" {
			key = providers.OpenAIAPIKey
		}
		if key == "" {
			return nil, fmt.Errorf("openai embeddings require TUSK_EMBEDDING_API_KEY or TUSK_OPENAI_API_KEY")
		}
		return NewOpenAIModel(cfg.BaseURL, key, cfg.Model, cfg.Dims), nil
	case "gemini":
		key := cfg.APIKey
		if key == "" {
			key = providers.GeminiAPIKey
		}
		if key == "" {
			return nil, fmt.Errorf("gemini embeddings require TUSK_EMBEDDING_API_KEY or TUSK_GEMINI_API_KEY")
		}
		return NewGeminiModel(ctx, key, cfg.Model, cfg.Dims)
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s", cfg.Provider)
	}
}

// NewEmbedderFromConfig wraps the configured model. Nil means disabled.
func NewEmbedderFromConfig(ctx context.Context, cfg *config.RAGConfig, providers *config.ProviderConfig) (*Embedder, error) {
	model, err := NewEmbeddingModel(ctx, cfg, providers)
	if err != nil || model == nil {
		return nil, err
	}
	return NewEmbedder(model,
		WithTimeout(30*time.Second),
		WithChunker(ChunkerConfig{MaxTokens: cfg.ChunkTokens, OverlapTokens: cfg.ChunkTokens / 8}),
		WithQueryCache(cfg.CacheSize),
	), nil
}
