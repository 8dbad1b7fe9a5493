package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/marksvault/internal/models"
)

// ResultRepository manages year-level results.
type ResultRepository struct {
	db sqlx.ExtContext
}

// NewResultRepository constructs a ResultRepository.
func NewResultRepository(db sqlx.ExtContext) *ResultRepository {
	return &ResultRepository{db: db}
}

const resultColumns = `student_id, academic_year, year_of_study, autumn_credits, autumn_mean, spring_credits, spring_mean,
        year_credits, year_mean, failed_credits, progression, remarks`

// ListByStudent returns a student's results ordered by academic year.
func (r *ResultRepository) ListByStudent(ctx context.Context, studentID string) ([]models.Result, error) {
	var results []models.Result
	query := "SELECT " + resultColumns + " FROM results WHERE student_id = ? ORDER BY academic_year"
	if err := sqlx.SelectContext(ctx, r.db, &results, query, studentID); err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}
	return results, nil
}

// Find fetches the result for a (student, year). It returns sql.ErrNoRows when absent.
func (r *ResultRepository) Find(ctx context.Context, studentID string, year models.AcademicYear) (*models.Result, error) {
	var result models.Result
	query := "SELECT " + resultColumns + " FROM results WHERE student_id = ? AND academic_year = ?"
	if err := sqlx.GetContext(ctx, r.db, &result, query, studentID, year); err != nil {
		return nil, err
	}
	return &result, nil
}

// Replace deletes any stored result for the (student, year) and inserts result in its place.
func (r *ResultRepository) Replace(ctx context.Context, result *models.Result) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM results WHERE student_id = ? AND academic_year = ?", result.StudentID, result.AcademicYear); err != nil {
		return fmt.Errorf("clear result: %w", err)
	}
	const query = `INSERT INTO results (student_id, academic_year, year_of_study, autumn_credits, autumn_mean, spring_credits, spring_mean,
        year_credits, year_mean, failed_credits, progression, remarks)
        VALUES (:student_id, :academic_year, :year_of_study, :autumn_credits, :autumn_mean, :spring_credits, :spring_mean,
        :year_credits, :year_mean, :failed_credits, :progression, :remarks)`
	if _, err := sqlx.NamedExecContext(ctx, r.db, query, result); err != nil {
		return fmt.Errorf("insert result: %w", err)
	}
	return nil
}

// ListAll returns every result ordered by student then year.
func (r *ResultRepository) ListAll(ctx context.Context) ([]models.Result, error) {
	var results []models.Result
	if err := sqlx.SelectContext(ctx, r.db, &results, "SELECT "+resultColumns+" FROM results ORDER BY student_id, academic_year"); err != nil {
		return nil, fmt.Errorf("list all results: %w", err)
	}
	return results, nil
}
