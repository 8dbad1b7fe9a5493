package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/marksvault/internal/models"
)

// AcademicYearRepository manages the academic year domain.
type AcademicYearRepository struct {
	db sqlx.ExtContext
}

// NewAcademicYearRepository constructs an AcademicYearRepository.
func NewAcademicYearRepository(db sqlx.ExtContext) *AcademicYearRepository {
	return &AcademicYearRepository{db: db}
}

// Ensure records the year if it is not known yet.
func (r *AcademicYearRepository) Ensure(ctx context.Context, year models.AcademicYear) error {
	if !year.Valid() {
		return fmt.Errorf("ensure academic year: %w: %q", models.ErrInvalidAcademicYear, year)
	}
	if _, err := r.db.ExecContext(ctx, "INSERT OR IGNORE INTO academic_years (id) VALUES (?)", string(year)); err != nil {
		return fmt.Errorf("ensure academic year: %w", err)
	}
	return nil
}

// List returns all known years in chronological order.
func (r *AcademicYearRepository) List(ctx context.Context) ([]models.AcademicYear, error) {
	var years []models.AcademicYear
	if err := sqlx.SelectContext(ctx, r.db, &years, "SELECT id FROM academic_years ORDER BY id"); err != nil {
		return nil, fmt.Errorf("list academic years: %w", err)
	}
	return years, nil
}
