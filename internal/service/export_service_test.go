package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/marksvault/internal/models"
	"github.com/noah-isme/marksvault/internal/store"
	appErrors "github.com/noah-isme/marksvault/pkg/errors"
)

func graduate(t *testing.T, st *store.Store, id string, year models.AcademicYear) {
	t.Helper()
	seed(t, st, func(ctx context.Context, tx *store.Tx) error {
		if err := tx.Years.Ensure(ctx, year); err != nil {
			return err
		}
		student, err := tx.Students.FindByID(ctx, id)
		if err != nil {
			return err
		}
		student.GraduationYear = &year
		return tx.Students.UpdateInfo(ctx, student)
	})
}

func TestExportAwardsCSV(t *testing.T) {
	st := newUnlockedStore(t)
	seedCatalogue(t, st)
	seedStudent(t, st, "S1", "UG-STANDARD")
	seedStudent(t, st, "S2", "UG-STANDARD")
	recompute := NewRecomputeService(st, newEngine(t), nil, nil)
	_, err := recompute.Recompute(context.Background(), "S1", unitYear, []models.RawMarkRecord{
		rawMark(2, "S1", "M1", 72),
		rawMark(3, "S1", "M2", 35),
	})
	require.NoError(t, err)
	graduate(t, st, "S1", unitYear)

	svc := NewExportService(st, nil, nil, nil)
	svc.now = func() time.Time { return time.Date(2025, 7, 1, 9, 30, 0, 0, time.UTC) }

	file, err := svc.Awards(context.Background(), "CSV", unitYear)
	require.NoError(t, err)
	assert.Equal(t, "awards_2024-2025_20250701_093000.csv", file.Filename)
	assert.Equal(t, "text/csv", file.ContentType)
	assert.Equal(t, 1, file.Rows)

	records, err := csv.NewReader(bytes.NewReader(file.Data)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, awardHeaders, records[0])
	row := records[1]
	assert.Equal(t, "S1", row[0])
	assert.Equal(t, "53.5", row[6])
	assert.Equal(t, "Lower Second", row[8])
	assert.Equal(t, "Y", row[11])

	all, err := svc.Awards(context.Background(), "", "")
	require.NoError(t, err)
	assert.Equal(t, "awards_all_20250701_093000.csv", all.Filename)
}

func TestExportAwardsPDFAndValidation(t *testing.T) {
	st := newUnlockedStore(t)
	svc := NewExportService(st, nil, nil, nil)
	ctx := context.Background()

	file, err := svc.Awards(ctx, "pdf", "")
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", file.ContentType)
	assert.True(t, bytes.HasPrefix(file.Data, []byte("%PDF-")))

	_, err = svc.Awards(ctx, "xlsx", "")
	assert.Equal(t, appErrors.ErrValidation.Code, appCode(t, err))

	_, err = svc.Awards(ctx, "csv", "2024-2025")
	assert.Equal(t, appErrors.ErrValidation.Code, appCode(t, err))

	require.NoError(t, st.Lock())
	_, err = svc.Awards(ctx, "csv", "")
	assert.Equal(t, appErrors.ErrLocked.Code, appCode(t, err))
}
