package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/sandevgo/tuskchat/internal/core"
)

type KnowledgeRepo struct {
	db *sql.DB
}

func NewKnowledgeRepo(db *sql.DB) *KnowledgeRepo {
	return &KnowledgeRepo{db: db}
}

const knowledgeColumns = `topic, knowledge_data, confidence_score, source_materials, version, last_updated`

func (r *KnowledgeRepo) GetKnowledge(ctx context.Context, topic string) (core.KnowledgeEntry, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+knowledgeColumns+` FROM knowledge_entries WHERE topic = ?`, topic)
	e, err := scanKnowledge(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.KnowledgeEntry{}, core.ErrKnowledgeNotFound
	}
	if err != nil {
		return core.KnowledgeEntry{}, fmt.Errorf("failed to load knowledge entry: %w", err)
	}
	return e, nil
}

// ListKnowledge returns the most confident entries first.
func (r *KnowledgeRepo) ListKnowledge(ctx context.Context, limit int) ([]core.KnowledgeEntry, error) {
	return r.query(ctx,
		`SELECT `+knowledgeColumns+` FROM knowledge_entries ORDER BY confidence_score DESC, last_updated DESC LIMIT ?`,
		limitOrAll(limit),
	)
}

// SearchKnowledge matches any term against topic names and their insight log.
func (r *KnowledgeRepo) SearchKnowledge(ctx context.Context, terms []string, limit int) ([]core.KnowledgeEntry, error) {
	if len(terms) == 0 {
		return nil, nil
	}

	var (
		conds []string
		args  []any
	)
	for _, term := range terms {
		p := likePattern(term)
		conds = append(conds, `(topic LIKE ? ESCAPE '\' OR knowledge_data LIKE ? ESCAPE '\')`)
		args = append(args, p, p)
	}
	args = append(args, limitOrAll(limit))

	return r.query(ctx,
		`SELECT `+knowledgeColumns+` FROM knowledge_entries WHERE `+strings.Join(conds, " OR ")+`
		 ORDER BY confidence_score DESC, last_updated DESC LIMIT ?`,
		args...,
	)
}

// MergeKnowledge folds one material into a topic inside a transaction.
// The write is guarded by the version read in the same transaction, so a
// concurrent writer yields ErrVersionConflict instead of a lost update.
// A material already listed in source_materials leaves the entry untouched.
func (r *KnowledgeRepo) MergeKnowledge(ctx context.Context, m core.KnowledgeMerge) (core.KnowledgeEntry, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.KnowledgeEntry{}, err
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	insight := core.KnowledgeInsight{
		MaterialID: m.MaterialID,
		Insights:   m.Insights,
		Patterns:   m.Patterns,
		AddedAt:    now,
	}

	row := tx.QueryRowContext(ctx, `SELECT `+knowledgeColumns+` FROM knowledge_entries WHERE topic = ?`, m.Topic)
	entry, err := scanKnowledge(row)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		entry = core.KnowledgeEntry{
			Topic: m.Topic,
			KnowledgeData: core.KnowledgeData{
				Insights: []core.KnowledgeInsight{insight},
				Patterns: mergePatterns(nil, m.Patterns),
			},
			ConfidenceScore: m.Confidence,
			SourceMaterials: []string{m.MaterialID},
			Version:         1,
			LastUpdated:     now,
		}
		if err := r.insertEntry(ctx, tx, entry); err != nil {
			return core.KnowledgeEntry{}, err
		}
	case err != nil:
		return core.KnowledgeEntry{}, fmt.Errorf("failed to load knowledge entry: %w", err)
	case entry.HasSource(m.MaterialID):
		return entry, nil
	default:
		expected := entry.Version
		n := float64(len(entry.SourceMaterials))

		entry.KnowledgeData.Insights = append(entry.KnowledgeData.Insights, insight)
		entry.KnowledgeData.Patterns = mergePatterns(entry.KnowledgeData.Patterns, m.Patterns)
		entry.ConfidenceScore = (entry.ConfidenceScore*n + m.Confidence) / (n + 1)
		entry.SourceMaterials = append(entry.SourceMaterials, m.MaterialID)
		entry.Version = expected + 1
		entry.LastUpdated = now

		if err := r.updateEntry(ctx, tx, entry, expected); err != nil {
			return core.KnowledgeEntry{}, err
		}
	}

	if err := tx.Commit(); err != nil {
		return core.KnowledgeEntry{}, fmt.Errorf("failed to commit knowledge merge: %w", err)
	}
	return entry, nil
}

func (r *KnowledgeRepo) insertEntry(ctx context.Context, tx *sql.Tx, e core.KnowledgeEntry) error {
	data, sources, err := marshalEntry(e)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO knowledge_entries (`+knowledgeColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		e.Topic, data, e.ConfidenceScore, sources, e.Version, toMicros(e.LastUpdated),
	)
	if isConstraintError(err) {
		return core.ErrVersionConflict
	}
	if err != nil {
		return fmt.Errorf("failed to insert knowledge entry: %w", err)
	}
	return nil
}

func (r *KnowledgeRepo) updateEntry(ctx context.Context, tx *sql.Tx, e core.KnowledgeEntry, expected int) error {
	data, sources, err := marshalEntry(e)
	if err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx,
		`UPDATE knowledge_entries
		 SET knowledge_data = ?, confidence_score = ?, source_materials = ?, version = ?, last_updated = ?
		 WHERE topic = ? AND version = ?`,
		data, e.ConfidenceScore, sources, e.Version, toMicros(e.LastUpdated), e.Topic, expected,
	)
	if err != nil {
		return fmt.Errorf("failed to update knowledge entry: %w", err)
	}
	return expectOne(res, core.ErrVersionConflict)
}

func (r *KnowledgeRepo) query(ctx context.Context, query string, args ...any) ([]core.KnowledgeEntry, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query knowledge: %w", err)
	}
	defer rows.Close()

	var out []core.KnowledgeEntry
	for rows.Next() {
		e, err := scanKnowledge(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan knowledge entry: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func scanKnowledge(s scanner) (core.KnowledgeEntry, error) {
	var (
		e             core.KnowledgeEntry
		data, sources string
		updated       int64
	)
	if err := s.Scan(&e.Topic, &data, &e.ConfidenceScore, &sources, &e.Version, &updated); err != nil {
		return core.KnowledgeEntry{}, err
	}
	if err := json.Unmarshal([]byte(data), &e.KnowledgeData); err != nil {
		return core.KnowledgeEntry{}, fmt.Errorf("failed to unmarshal knowledge data: %w", err)
	}
	if err := json.Unmarshal([]byte(sources), &e.SourceMaterials); err != nil {
		return core.KnowledgeEntry{}, fmt.Errorf("failed to unmarshal source materials: %w", err)
	}
	e.LastUpdated = fromMicros(updated)
	return e, nil
}

func marshalEntry(e core.KnowledgeEntry) (string, string, error) {
	data, err := json.Marshal(e.KnowledgeData)
	if err != nil {
		return "", "", fmt.Errorf("failed to marshal knowledge data: %w", err)
	}
	sources, err := json.Marshal(e.SourceMaterials)
	if err != nil {
		return "", "", fmt.Errorf("failed to marshal source materials: %w", err)
	}
	return string(data), string(sources), nil
}

func mergePatterns(existing, added []string) []string {
	out := slices.Clone(existing)
	if out == nil {
		out = []string{}
	}
	for _, p := range added {
		p = strings.TrimSpace(p)
		if p != "" && !slices.Contains(out, p) {
			out = append(out, p)
		}
	}
	return out
}
