package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/sandevgo/tuskchat/internal/core"
	"github.com/sandevgo/tuskchat/pkg/log"
	"github.com/sandevgo/tuskchat/pkg/srv"
)

const (
	EmbedderBatchSize    = 30
	EmbedderPollInterval = 5 * time.Second
)

// EmbedderWorker indexes persisted conversation messages into the memory
// store in the background.
type EmbedderWorker struct {
	*srv.Ticker
	repo      core.MessagesRepository
	store     core.MemoryStore
	batchSize int
}

func NewEmbedderWorker(repo core.MessagesRepository, store core.MemoryStore, interval time.Duration) *EmbedderWorker {
	if interval <= 0 {
		interval = EmbedderPollInterval
	}
	w := &EmbedderWorker{
		repo:      repo,
		store:     store,
		batchSize: EmbedderBatchSize,
	}
	w.Ticker = srv.NewTicker("embedder_worker", interval, w.ProcessBatch)
	return w
}

// ProcessBatch embeds one batch of pending messages. Messages that fail to
// embed stay pending and are retried on the next tick.
func (w *EmbedderWorker) ProcessBatch(ctx context.Context) error {
	logger := log.FromCtx(ctx)

	msgs, err := w.repo.GetUnembeddedMessages(ctx, w.batchSize)
	if err != nil {
		return err
	}

	if len(msgs) == 0 {
		return nil
	}

	done := make([]string, 0, len(msgs))
	for _, msg := range msgs {
		if msg.Content == "" || msg.Failed() {
			done = append(done, msg.ID)
			continue
		}

		res, err := w.store.Store(ctx, msg.ID, msg.Content, core.Metadata{
			core.MetaOwner:        msg.OwnerID,
			core.MetaType:         core.RecordMessage,
			core.MetaConversation: msg.ConversationID,
			core.MetaRole:         msg.Role,
			core.MetaCreatedAt:    msg.CreatedAt.UTC().Format(time.RFC3339),
		})
		if err != nil {
			logger.Warn().
				Err(err).
				Str("msg_id", msg.ID).
				Msg("failed to embed message")
			continue
		}
		if res.Disabled {
			// keep the backlog for when an embedding provider is configured
			return nil
		}
		done = append(done, msg.ID)
	}

	if err := w.repo.MarkMessagesEmbedded(ctx, done); err != nil {
		return err
	}
	if len(done) == 0 {
		return fmt.Errorf("no message of %d embedded", len(msgs))
	}

	logger.Debug().Int("count", len(done)).Msg("messages embedded")
	return nil
}
