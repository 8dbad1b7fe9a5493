package repository

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/marksvault/internal/models"
)

func newMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

var studentRowColumns = []string{"id", "first_name", "last_name", "career_no", "program", "program_desc", "plan", "plan_desc", "intake", "qaa",
	"calc_model", "intake_year", "graduation_year", "raw_mark", "truncated_mark", "final_mark", "borderline", "borderline_reason", "calculation",
	"degree_award", "recommendation", "review_required", "selected", "exception_data", "updated_at"}

func studentRow(id string) []driver.Value {
	return []driver.Value{id, "Ada", "Lovelace", nil, "CS", nil, "BSC", nil, "SEP", nil,
		"UG-STANDARD", "2021/2022", nil, 69.5, 69, 69, 1, "within 1 of First", "UG-STANDARD",
		"Upper Second", "First", 0, 0, nil, time.Now()}
}

func TestStudentRepositoryList(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectQuery(`SELECT (.+) FROM students WHERE 1=1 AND \(LOWER\(first_name \|\| ' ' \|\| last_name\) LIKE \? OR id LIKE \?\) AND borderline = \? ORDER BY last_name DESC LIMIT 10 OFFSET 10`).
		WithArgs("%ada%", "%ada%", true).
		WillReturnRows(sqlmock.NewRows(studentRowColumns).AddRow(studentRow("S1")...))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM students WHERE 1=1 AND")).
		WithArgs("%ada%", "%ada%", true).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(11))

	borderline := true
	students, total, err := repo.List(context.Background(), models.StudentFilter{
		Search: "Ada", Borderline: &borderline, Page: 2, PageSize: 10, SortBy: "last_name", SortOrder: "desc",
	})
	require.NoError(t, err)
	require.Len(t, students, 1)
	assert.Equal(t, 11, total)
	assert.True(t, students[0].Borderline)
	require.NotNil(t, students[0].IntakeYear)
	assert.Equal(t, models.AcademicYear("2021/2022"), *students[0].IntakeYear)
	assert.Equal(t, 69, *students[0].TruncatedMark)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryListRejectsUnknownSort(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectQuery(`SELECT (.+) FROM students WHERE 1=1 ORDER BY id ASC LIMIT 50 OFFSET 0`).
		WillReturnRows(sqlmock.NewRows(studentRowColumns))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM students WHERE 1=1")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	_, total, err := repo.List(context.Background(), models.StudentFilter{SortBy: "password; DROP TABLE students"})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryFindByIDNotFound(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectQuery(`SELECT (.+) FROM students WHERE id = \?`).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByID(context.Background(), "missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	args := make([]driver.Value, 14)
	for i := range args {
		args[i] = sqlmock.AnyArg()
	}
	mock.ExpectExec("INSERT INTO students").WithArgs(args...).WillReturnResult(sqlmock.NewResult(1, 1))

	student := &models.StudentInfo{ID: "S1", FirstName: "Ada", LastName: "Lovelace"}
	require.NoError(t, repo.Create(context.Background(), student))
	assert.False(t, student.UpdatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositorySaveClassificationLeavesOverrideColumns(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	raw := 69.9
	truncated := 69
	mock.ExpectExec(`UPDATE students SET raw_mark = \?, truncated_mark = \?, final_mark = \?, borderline = \?`).
		WithArgs(raw, truncated, truncated, true, sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), false, sqlmock.AnyArg(), "S1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.SaveClassification(context.Background(), "S1", models.Classification{RawMark: &raw, TruncatedMark: &truncated, FinalMark: &truncated, Borderline: true})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryStampOverride(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE students SET selected = 1, exception_data = ?, updated_at = ? WHERE id = ?")).
		WithArgs("board approved First", sqlmock.AnyArg(), "S1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.StampOverride(context.Background(), "S1", "board approved First"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryListGraduating(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectQuery(`SELECT (.+) FROM students WHERE graduation_year IS NOT NULL AND graduation_year = \? ORDER BY last_name, first_name, id`).
		WithArgs("2024/2025").
		WillReturnRows(sqlmock.NewRows(studentRowColumns).AddRow(studentRow("S1")...))

	students, err := repo.ListGraduating(context.Background(), "2024/2025")
	require.NoError(t, err)
	require.Len(t, students, 1)
	assert.Equal(t, "S1", students[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
