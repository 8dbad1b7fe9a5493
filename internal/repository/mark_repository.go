package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/marksvault/internal/models"
)

// Unit identifies one (student, academic year) recompute unit.
type Unit struct {
	StudentID    string              `db:"student_id" json:"student_id"`
	AcademicYear models.AcademicYear `db:"academic_year" json:"academic_year"`
}

// MarkRepository manages module attempt rows.
type MarkRepository struct {
	db sqlx.ExtContext
}

// NewMarkRepository constructs a MarkRepository.
func NewMarkRepository(db sqlx.ExtContext) *MarkRepository {
	return &MarkRepository{db: db}
}

const markColumns = "student_id, module_code, academic_year, mark, retake1, retake2, status, retake_pass, final_mark, fill"

// ListByStudent returns a student's marks ordered by academic year then module code.
func (r *MarkRepository) ListByStudent(ctx context.Context, studentID string) ([]models.Mark, error) {
	var marks []models.Mark
	query := "SELECT " + markColumns + " FROM marks WHERE student_id = ? ORDER BY academic_year, module_code"
	if err := sqlx.SelectContext(ctx, r.db, &marks, query, studentID); err != nil {
		return nil, fmt.Errorf("list marks: %w", err)
	}
	return marks, nil
}

// ListByUnit returns the marks of one (student, year) ordered by module code.
func (r *MarkRepository) ListByUnit(ctx context.Context, studentID string, year models.AcademicYear) ([]models.Mark, error) {
	var marks []models.Mark
	query := "SELECT " + markColumns + " FROM marks WHERE student_id = ? AND academic_year = ? ORDER BY module_code"
	if err := sqlx.SelectContext(ctx, r.db, &marks, query, studentID, year); err != nil {
		return nil, fmt.Errorf("list unit marks: %w", err)
	}
	return marks, nil
}

// ReplaceUnit swaps the stored marks of a (student, year) for marks.
func (r *MarkRepository) ReplaceUnit(ctx context.Context, studentID string, year models.AcademicYear, marks []models.Mark) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM marks WHERE student_id = ? AND academic_year = ?", studentID, year); err != nil {
		return fmt.Errorf("clear unit marks: %w", err)
	}
	if len(marks) == 0 {
		return nil
	}
	const query = `INSERT INTO marks (student_id, module_code, academic_year, mark, retake1, retake2, status, retake_pass, final_mark, fill)
        VALUES (:student_id, :module_code, :academic_year, :mark, :retake1, :retake2, :status, :retake_pass, :final_mark, :fill)`
	for i := range marks {
		if _, err := sqlx.NamedExecContext(ctx, r.db, query, &marks[i]); err != nil {
			return fmt.Errorf("insert mark %s: %w", marks[i].ModuleCode, err)
		}
	}
	return nil
}

// UnitsForModule lists every (student, year) with a mark for the module.
func (r *MarkRepository) UnitsForModule(ctx context.Context, code string) ([]Unit, error) {
	var units []Unit
	query := "SELECT DISTINCT student_id, academic_year FROM marks WHERE module_code = ? ORDER BY student_id, academic_year"
	if err := sqlx.SelectContext(ctx, r.db, &units, query, code); err != nil {
		return nil, fmt.Errorf("list module units: %w", err)
	}
	return units, nil
}

// Units lists every (student, year) that has marks or a result.
func (r *MarkRepository) Units(ctx context.Context) ([]Unit, error) {
	var units []Unit
	query := `SELECT student_id, academic_year FROM marks
        UNION SELECT student_id, academic_year FROM results
        ORDER BY student_id, academic_year`
	if err := sqlx.SelectContext(ctx, r.db, &units, query); err != nil {
		return nil, fmt.Errorf("list units: %w", err)
	}
	return units, nil
}
