package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/sandevgo/tuskchat/internal/core"
)

type MemoriesRepo struct {
	db *sql.DB
}

func NewMemoriesRepo(db *sql.DB) *MemoriesRepo {
	return &MemoriesRepo{db: db}
}

const memoryColumns = `id, owner_id, title, content, content_type, tags, pinned, created_at, updated_at`

func (r *MemoriesRepo) CreateMemory(ctx context.Context, m core.MemoryItem) error {
	tags, err := json.Marshal(nonNil(m.Tags))
	if err != nil {
		return fmt.Errorf("failed to marshal tags: %w", err)
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO memories (`+memoryColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.OwnerID, m.Title, m.Content, m.ContentType, string(tags), boolInt(m.Pinned),
		toMicros(m.CreatedAt), toMicros(m.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert memory: %w", err)
	}
	return nil
}

func (r *MemoriesRepo) GetMemory(ctx context.Context, id string) (core.MemoryItem, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+memoryColumns+` FROM memories WHERE id = ?`, id)
	m, err := scanMemory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.MemoryItem{}, core.ErrMemoryNotFound
	}
	if err != nil {
		return core.MemoryItem{}, fmt.Errorf("failed to load memory: %w", err)
	}
	return m, nil
}

func (r *MemoriesRepo) ListMemories(ctx context.Context, ownerID string, limit int) ([]core.MemoryItem, error) {
	return r.query(ctx,
		`SELECT `+memoryColumns+` FROM memories WHERE owner_id = ?
		 ORDER BY pinned DESC, updated_at DESC LIMIT ?`,
		ownerID, limitOrAll(limit),
	)
}

// SearchMemories matches any query term against title, content and tags.
func (r *MemoriesRepo) SearchMemories(ctx context.Context, ownerID, query, contentType string, limit int) ([]core.MemoryItem, error) {
	terms := strings.Fields(query)
	if len(terms) == 0 {
		return nil, nil
	}

	var (
		conds []string
		args  = []any{ownerID}
	)
	for _, term := range terms {
		p := likePattern(term)
		conds = append(conds, `(title LIKE ? ESCAPE '\' OR content LIKE ? ESCAPE '\' OR tags LIKE ? ESCAPE '\')`)
		args = append(args, p, p, p)
	}

	q := `SELECT ` + memoryColumns + ` FROM memories WHERE owner_id = ? AND (` + strings.Join(conds, " OR ") + `)`
	if contentType != "" {
		q += ` AND content_type = ?`
		args = append(args, contentType)
	}
	q += ` ORDER BY pinned DESC, updated_at DESC LIMIT ?`
	args = append(args, limitOrAll(limit))

	return r.query(ctx, q, args...)
}

func (r *MemoriesRepo) SetMemoryPinned(ctx context.Context, id string, pinned bool) error {
	res, err := r.db.ExecContext(ctx, `UPDATE memories SET pinned = ? WHERE id = ?`, boolInt(pinned), id)
	if err != nil {
		return fmt.Errorf("failed to pin memory: %w", err)
	}
	return expectOne(res, core.ErrMemoryNotFound)
}

func (r *MemoriesRepo) DeleteMemory(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM memories WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete memory: %w", err)
	}
	return expectOne(res, core.ErrMemoryNotFound)
}

func (r *MemoriesRepo) query(ctx context.Context, query string, args ...any) ([]core.MemoryItem, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query memories: %w", err)
	}
	defer rows.Close()

	var out []core.MemoryItem
	for rows.Next() {
		m, err := scanMemory(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan memory: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func scanMemory(s scanner) (core.MemoryItem, error) {
	var (
		m                core.MemoryItem
		tags             string
		pinned           int
		created, updated int64
	)
	if err := s.Scan(&m.ID, &m.OwnerID, &m.Title, &m.Content, &m.ContentType,
		&tags, &pinned, &created, &updated); err != nil {
		return core.MemoryItem{}, err
	}
	if err := json.Unmarshal([]byte(tags), &m.Tags); err != nil {
		return core.MemoryItem{}, fmt.Errorf("failed to unmarshal tags: %w", err)
	}
	m.Pinned = pinned != 0
	m.CreatedAt = fromMicros(created)
	m.UpdatedAt = fromMicros(updated)
	return m, nil
}

func limitOrAll(limit int) int {
	if limit <= 0 {
		return -1
	}
	return limit
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
