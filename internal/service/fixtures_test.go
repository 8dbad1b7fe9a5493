package service

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/marksvault/internal/engine"
	"github.com/noah-isme/marksvault/internal/models"
	"github.com/noah-isme/marksvault/internal/policy"
	"github.com/noah-isme/marksvault/internal/store"
)

func ptrFloat(v float64) *float64 { return &v }
func ptrString(v string) *string   { return &v }

func newUnlockedStore(t *testing.T) *store.Store {
	t.Helper()
	st := store.New(store.Config{
		VaultPath:  filepath.Join(t.TempDir(), "vault", "marks.vault"),
		WorkDir:    t.TempDir(),
		Iterations: 1000,
	}, nil)
	ok, err := st.Unlock(context.Background(), "correct horse")
	require.NoError(t, err)
	require.True(t, ok)
	t.Cleanup(func() { _ = st.Lock() })
	return st
}

func newEngine(t *testing.T) *engine.Engine {
	t.Helper()
	registry, err := policy.NewRegistry()
	require.NoError(t, err)
	return engine.New(registry)
}

func seed(t *testing.T, st *store.Store, fn func(ctx context.Context, tx *store.Tx) error) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, st.Update(ctx, func(tx *store.Tx) error { return fn(ctx, tx) }))
}

func seedCatalogue(t *testing.T, st *store.Store) {
	t.Helper()
	seed(t, st, func(ctx context.Context, tx *store.Tx) error {
		for _, m := range []models.Module{
			{Code: "M1", Credit: 20, Term: models.TermAutumn},
			{Code: "M2", Credit: 20, Term: models.TermSpring},
		} {
			m := m
			if err := tx.Modules.Create(ctx, &m); err != nil {
				return err
			}
		}
		return nil
	})
}

func seedStudent(t *testing.T, st *store.Store, id, calcModel string) {
	t.Helper()
	seed(t, st, func(ctx context.Context, tx *store.Tx) error {
		intake := models.AcademicYear("2022/2023")
		if err := tx.Years.Ensure(ctx, intake); err != nil {
			return err
		}
		student := &models.StudentInfo{ID: id, FirstName: "Ada", LastName: "Lovelace", IntakeYear: &intake}
		if calcModel != "" {
			student.CalcModel = ptrString(calcModel)
		}
		return tx.Students.Create(ctx, student)
	})
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func viewStudent(t *testing.T, st *store.Store, id string) *models.StudentInfo {
	t.Helper()
	var student *models.StudentInfo
	require.NoError(t, st.View(context.Background(), func(tx *store.Tx) error {
		var err error
		student, err = tx.Students.FindByID(context.Background(), id)
		return err
	}))
	return student
}
