package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/sandevgo/tuskchat/internal/core"
)

type ConversationsRepo struct {
	db *sql.DB
}

func NewConversationsRepo(db *sql.DB) *ConversationsRepo {
	return &ConversationsRepo{db: db}
}

const conversationColumns = `id, owner_id, title, mode, provider, model, message_count, token_count, archived, created_at, updated_at`

func (r *ConversationsRepo) CreateConversation(ctx context.Context, c core.Conversation) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO conversations (`+conversationColumns+`) VALUES (?, ?, ?, ?, ?, ?, 0, 0, ?, ?, ?)`,
		c.ID, c.OwnerID, c.Title, c.Mode, c.Provider, c.Model,
		boolInt(c.Archived), toMicros(c.CreatedAt), toMicros(c.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert conversation: %w", err)
	}
	return nil
}

func (r *ConversationsRepo) GetConversation(ctx context.Context, id string) (core.Conversation, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+conversationColumns+` FROM conversations WHERE id = ?`, id)
	c, err := scanConversation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Conversation{}, core.ErrConversationNotFound
	}
	if err != nil {
		return core.Conversation{}, fmt.Errorf("failed to load conversation: %w", err)
	}
	return c, nil
}

func (r *ConversationsRepo) ListConversations(ctx context.Context, ownerID string, includeArchived bool) ([]core.Conversation, error) {
	query := `SELECT ` + conversationColumns + ` FROM conversations WHERE owner_id = ?`
	if !includeArchived {
		query += ` AND archived = 0`
	}
	query += ` ORDER BY updated_at DESC`

	rows, err := r.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to query conversations: %w", err)
	}
	defer rows.Close()

	var out []core.Conversation
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan conversation: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *ConversationsRepo) UpdateConversation(ctx context.Context, c core.Conversation) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE conversations SET title = ?, mode = ?, provider = ?, model = ?, archived = ?, updated_at = ? WHERE id = ?`,
		c.Title, c.Mode, c.Provider, c.Model, boolInt(c.Archived), toMicros(c.UpdatedAt), c.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update conversation: %w", err)
	}
	return expectOne(res, core.ErrConversationNotFound)
}

// DeleteConversation removes the conversation; messages go with it via cascade.
func (r *ConversationsRepo) DeleteConversation(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM conversations WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete conversation: %w", err)
	}
	return expectOne(res, core.ErrConversationNotFound)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanConversation(s scanner) (core.Conversation, error) {
	var (
		c                core.Conversation
		archived         int
		created, updated int64
	)
	err := s.Scan(&c.ID, &c.OwnerID, &c.Title, &c.Mode, &c.Provider, &c.Model,
		&c.MessageCount, &c.TokenCount, &archived, &created, &updated)
	if err != nil {
		return core.Conversation{}, err
	}
	c.Archived = archived != 0
	c.CreatedAt = fromMicros(created)
	c.UpdatedAt = fromMicros(updated)
	return c, nil
}

func expectOne(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}
