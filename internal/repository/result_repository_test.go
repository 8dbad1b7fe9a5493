package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/marksvault/internal/models"
)

var resultRowColumns = []string{"student_id", "academic_year", "year_of_study", "autumn_credits", "autumn_mean", "spring_credits", "spring_mean",
	"year_credits", "year_mean", "failed_credits", "progression", "remarks"}

func TestResultRepositoryListByStudent(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewResultRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM results WHERE student_id = ? ORDER BY academic_year")).
		WithArgs("S1").
		WillReturnRows(sqlmock.NewRows(resultRowColumns).
			AddRow("S1", "2022/2023", 1, 60, 58.5, 60, nil, 120, 58.5, 0, "Pass", nil).
			AddRow("S1", "2023/2024", 2, 60, 61.0, 60, 64.0, 120, 62.5, 15, "Pass", "condoned"))

	results, err := repo.ListByStudent(context.Background(), "S1")
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Nil(t, results[0].SpringMean)
	assert.Equal(t, models.ProgressionPass, results[1].Progression)
	require.NotNil(t, results[1].Remarks)
	assert.Equal(t, "condoned", *results[1].Remarks)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResultRepositoryFindMissing(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewResultRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM results WHERE student_id = ? AND academic_year = ?")).
		WithArgs("S1", models.AcademicYear("2030/2031")).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.Find(context.Background(), "S1", "2030/2031")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestResultRepositoryReplaceDeletesBeforeInsert(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewResultRepository(db)

	year := models.AcademicYear("2023/2024")
	mean := 62.5
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM results WHERE student_id = ? AND academic_year = ?")).
		WithArgs("S1", year).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO results").
		WithArgs("S1", year, 2, 60, nil, 60, nil, 120, mean, 0, models.ProgressionPass, nil).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := repo.Replace(context.Background(), &models.Result{
		StudentID: "S1", AcademicYear: year, YearOfStudy: 2, AutumnCredits: 60, SpringCredits: 60, YearCredits: 120,
		YearMean: &mean, Progression: models.ProgressionPass,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
