package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"github.com/sandevgo/tuskchat/internal/core"
	"github.com/sandevgo/tuskchat/pkg/log"
)

type MessagesRepo struct {
	db *sql.DB
}

func NewMessagesRepo(db *sql.DB) *MessagesRepo {
	return &MessagesRepo{db: db}
}

func (r *MessagesRepo) AppendTurn(ctx context.Context, user, assistant *core.StoredMessage) error {
	return r.append(ctx, false, user, assistant)
}

// AppendFailedTurn stores the user message of a turn that produced no reply.
// Workers never pick it up and the conversation counters do not change.
func (r *MessagesRepo) AppendFailedTurn(ctx context.Context, user *core.StoredMessage) error {
	return r.append(ctx, true, user)
}

func (r *MessagesRepo) append(ctx context.Context, failed bool, msgs ...*core.StoredMessage) error {
	convID := msgs[0].ConversationID

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var last sql.NullInt64
	if err := tx.QueryRowContext(ctx,
		`SELECT MAX(created_at) FROM messages WHERE conversation_id = ?`, convID,
	).Scan(&last); err != nil {
		return fmt.Errorf("failed to read last message time: %w", err)
	}

	tokens := 0
	processed := boolInt(failed)
	for _, msg := range msgs {
		// created_at is strictly increasing inside a conversation
		ts := toMicros(msg.CreatedAt)
		if last.Valid && ts <= last.Int64 {
			ts = last.Int64 + 1
		}
		last = sql.NullInt64{Int64: ts, Valid: true}

		meta, err := marshalMetadata(msg.Metadata)
		if err != nil {
			return err
		}

		res, err := tx.ExecContext(ctx,
			`INSERT INTO messages (id, conversation_id, role, content, tokens_used, metadata, embedded, extracted, failed, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			msg.ID, convID, msg.Role, msg.Content, msg.TokensUsed, meta, processed, processed, processed, ts,
		)
		if err != nil {
			return fmt.Errorf("failed to insert message: %w", err)
		}
		seq, err := res.LastInsertId()
		if err != nil {
			return err
		}

		msg.Seq = seq
		msg.CreatedAt = fromMicros(ts)
		tokens += msg.TokensUsed
	}

	// a failed turn only touches updated_at
	count := len(msgs)
	if failed {
		count, tokens = 0, 0
	}
	res, err := tx.ExecContext(ctx,
		`UPDATE conversations
		 SET message_count = message_count + ?, token_count = token_count + ?, updated_at = ?
		 WHERE id = ?`,
		count, tokens, last.Int64, convID,
	)
	if err != nil {
		return fmt.Errorf("failed to update conversation counters: %w", err)
	}
	if err := expectOne(res, core.ErrConversationNotFound); err != nil {
		return err
	}

	return tx.Commit()
}

const messageColumns = `m.seq, m.id, m.conversation_id, c.owner_id, m.role, m.content, m.tokens_used, m.metadata, m.created_at`

// ListMessages returns the newest limit messages in chronological order.
// A non-positive limit returns the whole conversation.
func (r *MessagesRepo) ListMessages(ctx context.Context, conversationID string, limit int) ([]core.StoredMessage, error) {
	messages, err := r.query(ctx,
		`SELECT `+messageColumns+` FROM messages m JOIN conversations c ON c.id = m.conversation_id
		 WHERE m.conversation_id = ? ORDER BY m.seq DESC LIMIT ?`,
		conversationID, limitOrAll(limit),
	)
	if err != nil {
		return nil, err
	}

	slices.Reverse(messages)
	log.FromCtx(ctx).Debug().Int("count", len(messages)).Msg("loaded history messages")
	return messages, nil
}

// ListContextMessages is ListMessages without failed turns. The limit
// applies after they are filtered out.
func (r *MessagesRepo) ListContextMessages(ctx context.Context, conversationID string, limit int) ([]core.StoredMessage, error) {
	messages, err := r.query(ctx,
		`SELECT `+messageColumns+` FROM messages m JOIN conversations c ON c.id = m.conversation_id
		 WHERE m.conversation_id = ? AND m.failed = 0 ORDER BY m.seq DESC LIMIT ?`,
		conversationID, limitOrAll(limit),
	)
	if err != nil {
		return nil, err
	}

	slices.Reverse(messages)
	return messages, nil
}

func (r *MessagesRepo) GetUnembeddedMessages(ctx context.Context, limit int) ([]core.StoredMessage, error) {
	return r.query(ctx,
		`SELECT `+messageColumns+` FROM messages m JOIN conversations c ON c.id = m.conversation_id
		 WHERE m.embedded = 0 ORDER BY m.seq ASC LIMIT ?`,
		limit,
	)
}

func (r *MessagesRepo) MarkMessagesEmbedded(ctx context.Context, ids []string) error {
	return r.mark(ctx, "embedded", ids)
}

func (r *MessagesRepo) GetUnextractedMessages(ctx context.Context, limit int) ([]core.StoredMessage, error) {
	return r.query(ctx,
		`SELECT `+messageColumns+` FROM messages m JOIN conversations c ON c.id = m.conversation_id
		 WHERE m.extracted = 0 ORDER BY m.seq ASC LIMIT ?`,
		limit,
	)
}

func (r *MessagesRepo) MarkMessagesExtracted(ctx context.Context, ids []string) error {
	return r.mark(ctx, "extracted", ids)
}

// GetRecentExtractedMessages returns already extracted messages of the
// conversation written before the given time, oldest first.
func (r *MessagesRepo) GetRecentExtractedMessages(ctx context.Context, conversationID string, before time.Time, limit int) ([]core.StoredMessage, error) {
	messages, err := r.query(ctx,
		`SELECT `+messageColumns+` FROM messages m JOIN conversations c ON c.id = m.conversation_id
		 WHERE m.conversation_id = ? AND m.extracted = 1 AND m.created_at < ?
		 ORDER BY m.seq DESC LIMIT ?`,
		conversationID, toMicros(before), limit,
	)
	if err != nil {
		return nil, err
	}
	slices.Reverse(messages)
	return messages, nil
}

func (r *MessagesRepo) mark(ctx context.Context, column string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	query := fmt.Sprintf(`UPDATE messages SET %s = 1 WHERE id IN (%s)`, column, placeholders(len(ids)))
	if _, err := r.db.ExecContext(ctx, query, stringArgs(ids)...); err != nil {
		return fmt.Errorf("failed to mark messages %s: %w", column, err)
	}
	return nil
}

func (r *MessagesRepo) query(ctx context.Context, query string, args ...any) ([]core.StoredMessage, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	var messages []core.StoredMessage
	for rows.Next() {
		var (
			msg     core.StoredMessage
			meta    string
			created int64
		)
		if err := rows.Scan(&msg.Seq, &msg.ID, &msg.ConversationID, &msg.OwnerID,
			&msg.Role, &msg.Content, &msg.TokensUsed, &meta, &created); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		if meta != "" && meta != "{}" {
			if err := json.Unmarshal([]byte(meta), &msg.Metadata); err != nil {
				return nil, fmt.Errorf("failed to unmarshal message metadata: %w", err)
			}
		}
		msg.CreatedAt = fromMicros(created)
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

func marshalMetadata(meta map[string]any) (string, error) {
	if len(meta) == 0 {
		return "{}", nil
	}
	b, err := json.Marshal(meta)
	if err != nil {
		return "", fmt.Errorf("failed to marshal message metadata: %w", err)
	}
	return string(b), nil
}
