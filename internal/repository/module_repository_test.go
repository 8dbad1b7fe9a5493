package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/marksvault/internal/models"
)

func TestModuleRepositoryListFilters(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewModuleRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT code, credit, name, term, updated_at FROM modules WHERE 1=1 AND term = ? AND (LOWER(code) LIKE ? OR LOWER(COALESCE(name, '')) LIKE ?) ORDER BY code")).
		WithArgs(models.TermSpring, "%comp%", "%comp%").
		WillReturnRows(sqlmock.NewRows([]string{"code", "credit", "name", "term", "updated_at"}).
			AddRow("COMP2001", 20, "Algorithms", "SPRING", time.Now()))

	modules, err := repo.List(context.Background(), models.ModuleFilter{Term: models.TermSpring, Search: "COMP"})
	require.NoError(t, err)
	require.Len(t, modules, 1)
	assert.Equal(t, 20, modules[0].Credit)
	assert.Equal(t, models.TermSpring, modules[0].Term)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestModuleRepositoryCatalogue(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewModuleRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM modules WHERE 1=1 ORDER BY code")).
		WillReturnRows(sqlmock.NewRows([]string{"code", "credit", "name", "term", "updated_at"}).
			AddRow("COMP1001", 20, nil, "AUTUMN", time.Now()).
			AddRow("COMP1002", 10, nil, "SPRING", time.Now()))

	catalogue, err := repo.Catalogue(context.Background())
	require.NoError(t, err)
	assert.Len(t, catalogue, 2)
	assert.Equal(t, 10, catalogue["COMP1002"].Credit)
}

func TestModuleRepositoryUpsertKeepsStoredName(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewModuleRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("ON CONFLICT (code) DO UPDATE SET credit = excluded.credit, name = COALESCE(excluded.name, modules.name)")).
		WithArgs("COMP1001", 20, nil, models.TermAutumn, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, repo.Upsert(context.Background(), &models.Module{Code: "COMP1001", Credit: 20, Term: models.TermAutumn}))
	assert.NoError(t, mock.ExpectationsWereMet())
}
