package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sandevgo/tuskchat/internal/core"
)

type MaterialsRepo struct {
	db *sql.DB
}

func NewMaterialsRepo(db *sql.DB) *MaterialsRepo {
	return &MaterialsRepo{db: db}
}

const materialColumns = `id, title, content, material_type, source, status, submitted_by, approver, reject_reason, submitted_at, approved_at, processed_at`

func (r *MaterialsRepo) CreateMaterial(ctx context.Context, m core.LearningMaterial) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO learning_materials (`+materialColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.Title, m.Content, m.MaterialType, m.Source, string(m.Status), m.SubmittedBy,
		m.Approver, m.RejectReason, toMicros(m.SubmittedAt), nullMicros(m.ApprovedAt), nullMicros(m.ProcessedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert material: %w", err)
	}
	return nil
}

func (r *MaterialsRepo) GetMaterial(ctx context.Context, id string) (core.LearningMaterial, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+materialColumns+` FROM learning_materials WHERE id = ?`, id)
	m, err := scanMaterial(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.LearningMaterial{}, core.ErrMaterialNotFound
	}
	if err != nil {
		return core.LearningMaterial{}, fmt.Errorf("failed to load material: %w", err)
	}
	return m, nil
}

// ListMaterials lists materials newest first. An empty status lists all.
func (r *MaterialsRepo) ListMaterials(ctx context.Context, status core.MaterialStatus, limit int) ([]core.LearningMaterial, error) {
	q := `SELECT ` + materialColumns + ` FROM learning_materials`
	var args []any
	if status != "" {
		q += ` WHERE status = ?`
		args = append(args, string(status))
	}
	q += ` ORDER BY submitted_at DESC LIMIT ?`
	args = append(args, limitOrAll(limit))
	return r.query(ctx, q, args...)
}

func (r *MaterialsRepo) ApproveMaterial(ctx context.Context, id, approver string, at time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE learning_materials SET status = 'approved', approver = ?, approved_at = ?
		 WHERE id = ? AND status = 'pending'`,
		approver, toMicros(at), id,
	)
	if err != nil {
		return false, fmt.Errorf("failed to approve material: %w", err)
	}
	return r.transitioned(ctx, res, id)
}

func (r *MaterialsRepo) RejectMaterial(ctx context.Context, id, approver, reason string) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE learning_materials SET status = 'rejected', approver = ?, reject_reason = ?
		 WHERE id = ? AND status = 'pending'`,
		approver, reason, id,
	)
	if err != nil {
		return false, fmt.Errorf("failed to reject material: %w", err)
	}
	return r.transitioned(ctx, res, id)
}

// DeleteMaterial removes pending or rejected materials only.
func (r *MaterialsRepo) DeleteMaterial(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM learning_materials WHERE id = ? AND status IN ('pending', 'rejected')`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete material: %w", err)
	}
	return r.transitioned(ctx, res, id)
}

func (r *MaterialsRepo) MarkMaterialProcessed(ctx context.Context, id string, at time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE learning_materials SET processed_at = ? WHERE id = ?`, toMicros(at), id)
	if err != nil {
		return fmt.Errorf("failed to mark material processed: %w", err)
	}
	return expectOne(res, core.ErrMaterialNotFound)
}

func (r *MaterialsRepo) ListUnprocessedMaterials(ctx context.Context, limit int) ([]core.LearningMaterial, error) {
	return r.query(ctx,
		`SELECT `+materialColumns+` FROM learning_materials
		 WHERE status = 'approved' AND processed_at IS NULL
		 ORDER BY approved_at ASC LIMIT ?`,
		limitOrAll(limit),
	)
}

// transitioned reports whether the conditional statement hit the row,
// distinguishing "wrong state" from "no such material".
func (r *MaterialsRepo) transitioned(ctx context.Context, res sql.Result, id string) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n > 0 {
		return true, nil
	}
	if _, err := r.GetMaterial(ctx, id); err != nil {
		return false, err
	}
	return false, nil
}

func (r *MaterialsRepo) query(ctx context.Context, query string, args ...any) ([]core.LearningMaterial, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query materials: %w", err)
	}
	defer rows.Close()

	var out []core.LearningMaterial
	for rows.Next() {
		m, err := scanMaterial(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan material: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func scanMaterial(s scanner) (core.LearningMaterial, error) {
	var (
		m                   core.LearningMaterial
		status              string
		submitted           int64
		approved, processed sql.NullInt64
	)
	if err := s.Scan(&m.ID, &m.Title, &m.Content, &m.MaterialType, &m.Source, &status,
		&m.SubmittedBy, &m.Approver, &m.RejectReason, &submitted, &approved, &processed); err != nil {
		return core.LearningMaterial{}, err
	}
	m.Status = core.MaterialStatus(status)
	m.SubmittedAt = fromMicros(submitted)
	m.ApprovedAt = fromNullMicros(approved)
	m.ProcessedAt = fromNullMicros(processed)
	return m, nil
}
