package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/marksvault/internal/models"
)

// StudentRepository manages persistence for student records.
type StudentRepository struct {
	db sqlx.ExtContext
}

// NewStudentRepository constructs a StudentRepository.
func NewStudentRepository(db sqlx.ExtContext) *StudentRepository {
	return &StudentRepository{db: db}
}

const studentColumns = `id, first_name, last_name, career_no, program, program_desc, plan, plan_desc, intake, qaa, calc_model, intake_year, graduation_year,
        raw_mark, truncated_mark, final_mark, borderline, borderline_reason, calculation, degree_award, recommendation, review_required,
        selected, exception_data, updated_at`

// List returns students matching the provided filters.
func (r *StudentRepository) List(ctx context.Context, filter models.StudentFilter) ([]models.StudentInfo, int, error) {
	conditions := []string{"1=1"}
	var args []interface{}
	if filter.Search != "" {
		conditions = append(conditions, "(LOWER(first_name || ' ' || last_name) LIKE ? OR id LIKE ?)")
		pattern := "%" + strings.ToLower(filter.Search) + "%"
		args = append(args, pattern, pattern)
	}
	if filter.CalcModel != "" {
		conditions = append(conditions, "UPPER(calc_model) = ?")
		args = append(args, strings.ToUpper(filter.CalcModel))
	}
	if filter.Borderline != nil {
		conditions = append(conditions, "borderline = ?")
		args = append(args, *filter.Borderline)
	}
	where := strings.Join(conditions, " AND ")

	allowedSorts := map[string]string{
		"id":         "id",
		"last_name":  "last_name",
		"final_mark": "final_mark",
		"updated_at": "updated_at",
	}
	column, ok := allowedSorts[filter.SortBy]
	if !ok {
		column = "id"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "ASC"
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 500 {
		size = 50
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s FROM students WHERE %s ORDER BY %s %s LIMIT %d OFFSET %d", studentColumns, where, column, order, size, offset)
	var students []models.StudentInfo
	if err := sqlx.SelectContext(ctx, r.db, &students, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list students: %w", err)
	}

	var total int
	if err := sqlx.GetContext(ctx, r.db, &total, "SELECT COUNT(*) FROM students WHERE "+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count students: %w", err)
	}
	return students, total, nil
}

// FindByID fetches a student. It returns sql.ErrNoRows when absent.
func (r *StudentRepository) FindByID(ctx context.Context, id string) (*models.StudentInfo, error) {
	var student models.StudentInfo
	if err := sqlx.GetContext(ctx, r.db, &student, "SELECT "+studentColumns+" FROM students WHERE id = ?", id); err != nil {
		return nil, err
	}
	return &student, nil
}

// ListIDs returns every student id in order.
func (r *StudentRepository) ListIDs(ctx context.Context) ([]string, error) {
	var ids []string
	if err := sqlx.SelectContext(ctx, r.db, &ids, "SELECT id FROM students ORDER BY id"); err != nil {
		return nil, fmt.Errorf("list student ids: %w", err)
	}
	return ids, nil
}

// ListGraduating returns students graduating in year ordered by surname. An empty year
// returns every student that has a graduation year.
func (r *StudentRepository) ListGraduating(ctx context.Context, year models.AcademicYear) ([]models.StudentInfo, error) {
	query := "SELECT " + studentColumns + " FROM students WHERE graduation_year IS NOT NULL"
	var args []interface{}
	if year != "" {
		query += " AND graduation_year = ?"
		args = append(args, string(year))
	}
	query += " ORDER BY last_name, first_name, id"

	var students []models.StudentInfo
	if err := sqlx.SelectContext(ctx, r.db, &students, query, args...); err != nil {
		return nil, fmt.Errorf("list graduating students: %w", err)
	}
	return students, nil
}

// Create inserts a student with enrolment metadata only.
func (r *StudentRepository) Create(ctx context.Context, student *models.StudentInfo) error {
	student.UpdatedAt = time.Now().UTC()
	const query = `INSERT INTO students (id, first_name, last_name, career_no, program, program_desc, plan, plan_desc, intake, qaa, calc_model, intake_year, graduation_year, updated_at)
        VALUES (:id, :first_name, :last_name, :career_no, :program, :program_desc, :plan, :plan_desc, :intake, :qaa, :calc_model, :intake_year, :graduation_year, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.db, query, student); err != nil {
		return fmt.Errorf("create student: %w", err)
	}
	return nil
}

// UpdateInfo rewrites enrolment metadata. Derived and override columns are untouched.
func (r *StudentRepository) UpdateInfo(ctx context.Context, student *models.StudentInfo) error {
	student.UpdatedAt = time.Now().UTC()
	const query = `UPDATE students SET first_name = :first_name, last_name = :last_name, career_no = :career_no, program = :program,
        program_desc = :program_desc, plan = :plan, plan_desc = :plan_desc, intake = :intake, qaa = :qaa, calc_model = :calc_model,
        intake_year = :intake_year, graduation_year = :graduation_year, updated_at = :updated_at WHERE id = :id`
	if _, err := sqlx.NamedExecContext(ctx, r.db, query, student); err != nil {
		return fmt.Errorf("update student: %w", err)
	}
	return nil
}

// SaveClassification writes the engine-derived columns.
func (r *StudentRepository) SaveClassification(ctx context.Context, id string, c models.Classification) error {
	const query = `UPDATE students SET raw_mark = ?, truncated_mark = ?, final_mark = ?, borderline = ?, borderline_reason = ?, calculation = ?,
        degree_award = ?, recommendation = ?, review_required = ?, updated_at = ? WHERE id = ?`
	if _, err := r.db.ExecContext(ctx, query, c.RawMark, c.TruncatedMark, c.FinalMark, c.Borderline, c.BorderlineReason, c.Calculation,
		c.DegreeAward, c.Recommendation, c.ReviewRequired, time.Now().UTC(), id); err != nil {
		return fmt.Errorf("save classification: %w", err)
	}
	return nil
}

// StampOverride marks the student as manually adjusted.
func (r *StudentRepository) StampOverride(ctx context.Context, id, note string) error {
	const query = `UPDATE students SET selected = 1, exception_data = ?, updated_at = ? WHERE id = ?`
	if _, err := r.db.ExecContext(ctx, query, note, time.Now().UTC(), id); err != nil {
		return fmt.Errorf("stamp override: %w", err)
	}
	return nil
}
