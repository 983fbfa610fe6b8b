package command

import (
	"context"

	"github.com/sandevgo/tuskchat/internal/core"
	"github.com/sandevgo/tuskchat/internal/service/chat"
	"github.com/sandevgo/tuskchat/internal/service/memory"
)

// Conversations is the part of the chat orchestrator the commands use.
type Conversations interface {
	Create(ctx context.Context, subject core.Subject, in chat.CreateInput) (core.Conversation, error)
	Ensure(ctx context.Context, sess *core.Session) (core.Conversation, error)
	Archive(ctx context.Context, subject core.Subject, id string) (core.Conversation, error)
	SetModel(ctx context.Context, subject core.Subject, id, provider, model string) (core.Conversation, error)
}

type ModelCatalog interface {
	Providers() []string
	DefaultProvider() string
	DefaultModel(provider string) string
	Models(ctx context.Context, provider string) ([]core.Model, error)
}

type Memories interface {
	Create(ctx context.Context, subject core.Subject, in memory.CreateItem) (core.MemoryItem, error)
	Search(ctx context.Context, subject core.Subject, query string, limit int, contentType string) ([]core.MemoryItem, error)
}

type Knowledge interface {
	Query(ctx context.Context, topic string, limit int) ([]core.KnowledgeEntry, error)
}

// NewCommands builds the chat commands. kb may be nil when the knowledge
// pipeline is off.
func NewCommands(
	convs Conversations,
	models ModelCatalog,
	items Memories,
	kb Knowledge,
) []core.Command {
	cmds := []core.Command{
		NewNewCommand(convs),
		NewModelCommand(convs, models),
		NewArchiveCommand(convs),
		NewRememberCommand(items),
		NewRecallCommand(items),
	}
	if kb != nil {
		cmds = append(cmds, NewKnowledgeCommand(kb))
	}
	return cmds
}
