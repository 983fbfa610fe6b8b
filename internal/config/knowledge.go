package config

import (
	"context"
	"time"
)

type KnowledgeConfig struct {
	MaxTopics      int           `env:"TUSK_KNOWLEDGE_MAX_TOPICS" envDefault:"5"`
	Provider       string        `env:"TUSK_KNOWLEDGE_PROVIDER"`
	Model          string        `env:"TUSK_KNOWLEDGE_MODEL"`
	WorkerInterval time.Duration `env:"TUSK_KNOWLEDGE_INTERVAL" envDefault:"30s"`
	FetchTimeout   time.Duration `env:"TUSK_KNOWLEDGE_FETCH_TIMEOUT" envDefault:"30s"`

	InboxEnabled  bool     `env:"TUSK_INBOX_ENABLED" envDefault:"false"`
	InboxPatterns []string `env:"TUSK_INBOX_PATTERNS" envSeparator:"," envDefault:"**/*.md,**/*.txt,**/*.html"`
	InboxOwner    string   `env:"TUSK_INBOX_OWNER" envDefault:"inbox"`
}

func NewKnowledgeConfig(ctx context.Context) *KnowledgeConfig {
	return mustLoad[KnowledgeConfig](ctx, "Knowledge")
}
