package config

import (
	"context"
	"time"
)

type RAGConfig struct {
	// Provider is one of hash, openai, gemini. Empty disables the memory store.
	Provider string `env:"TUSK_EMBEDDING_PROVIDER"`
	Model    string `env:"TUSK_EMBEDDING_MODEL"`
	Dims     int    `env:"TUSK_EMBEDDING_DIMS" envDefault:"256"`
	APIKey   string `env:"TUSK_EMBEDDING_API_KEY"`
	BaseURL  string `env:"TUSK_EMBEDDING_BASE_URL" envDefault:"https://api.openai.com/v1"`

	Persist       bool    `env:"TUSK_RAG_PERSIST" envDefault:"false"`
	TopK          int     `env:"TUSK_RAG_TOP_K" envDefault:"5"`
	MinSimilarity float32 `env:"TUSK_RAG_MIN_SIMILARITY" envDefault:"0.2"`
	ChunkTokens   int     `env:"TUSK_RAG_CHUNK_TOKENS" envDefault:"400"`
	CacheSize     int64   `env:"TUSK_EMBEDDING_CACHE_SIZE" envDefault:"1024"`

	EmbedInterval   time.Duration `env:"TUSK_EMBED_INTERVAL" envDefault:"10s"`
	ExtractInterval time.Duration `env:"TUSK_EXTRACT_INTERVAL" envDefault:"1m"`
	// Fact extraction runs on the default backend unless set.
	ExtractProvider string `env:"TUSK_EXTRACT_PROVIDER"`
	ExtractModel    string `env:"TUSK_EXTRACT_MODEL"`
}

func NewRAGConfig(ctx context.Context) *RAGConfig {
	return mustLoad[RAGConfig](ctx, "RAG")
}

func (c RAGConfig) Enabled() bool {
	return c.Provider != "" && c.Provider != "none"
}
