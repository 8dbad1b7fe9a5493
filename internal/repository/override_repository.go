package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/marksvault/internal/models"
)

// OverrideRepository stores the append-only manual override trail.
type OverrideRepository struct {
	db sqlx.ExtContext
}

// NewOverrideRepository constructs an OverrideRepository.
func NewOverrideRepository(db sqlx.ExtContext) *OverrideRepository {
	return &OverrideRepository{db: db}
}

// Create appends an override record.
func (r *OverrideRepository) Create(ctx context.Context, override *models.Override) error {
	if override.ID == "" {
		override.ID = uuid.NewString()
	}
	if override.CreatedAt.IsZero() {
		override.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO student_overrides (id, student_id, reason, note, award, final_mark, created_at)
        VALUES (:id, :student_id, :reason, :note, :award, :final_mark, :created_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.db, query, override); err != nil {
		return fmt.Errorf("create override: %w", err)
	}
	return nil
}

// ListByStudent returns a student's overrides, oldest first.
func (r *OverrideRepository) ListByStudent(ctx context.Context, studentID string) ([]models.Override, error) {
	var overrides []models.Override
	const query = `SELECT id, student_id, reason, note, award, final_mark, created_at FROM student_overrides WHERE student_id = ? ORDER BY created_at, id`
	if err := sqlx.SelectContext(ctx, r.db, &overrides, query, studentID); err != nil {
		return nil, fmt.Errorf("list overrides: %w", err)
	}
	return overrides, nil
}
