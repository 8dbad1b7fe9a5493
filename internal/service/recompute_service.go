package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/marksvault/internal/engine"
	"github.com/noah-isme/marksvault/internal/models"
	"github.com/noah-isme/marksvault/internal/repository"
	"github.com/noah-isme/marksvault/internal/store"
	"github.com/noah-isme/marksvault/pkg/jobs"
	appErrors "github.com/noah-isme/marksvault/pkg/errors"
)

// RecomputeJobType tags recompute jobs on the queue.
const RecomputeJobType = "recompute"

type txViewer interface {
	View(ctx context.Context, fn func(*store.Tx) error) error
}

type txUpdater interface {
	txViewer
	Update(ctx context.Context, fn func(*store.Tx) error) error
}

type recomputeStore interface {
	txUpdater
	Simulate(ctx context.Context, fn func(*store.Tx) error) error
}

type jobEnqueuer interface {
	Enqueue(job jobs.Job) error
}

// RecomputeResult is the state written for one (student, academic year).
type RecomputeResult struct {
	Student  models.StudentInfo     `json:"student"`
	Result   *models.Result         `json:"result,omitempty"`
	Marks    []models.Mark          `json:"marks"`
	Rejected []models.RowDiagnostic `json:"rejected"`
}

// RecomputeService runs the calculation engine against stored state and writes the
// derived rows back in the same transaction.
type RecomputeService struct {
	store   recomputeStore
	engine  *engine.Engine
	metrics *MetricsService
	logger  *zap.Logger
}

// NewRecomputeService constructs a RecomputeService.
func NewRecomputeService(st recomputeStore, eng *engine.Engine, metrics *MetricsService, logger *zap.Logger) *RecomputeService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RecomputeService{store: st, engine: eng, metrics: metrics, logger: logger}
}

// Recompute merges raw into the stored marks of (studentID, year) and replaces the
// derived Mark, Result and classification rows atomically.
func (s *RecomputeService) Recompute(ctx context.Context, studentID, year string, raw []models.RawMarkRecord) (*RecomputeResult, error) {
	academicYear, err := models.ParseAcademicYear(year)
	if err != nil {
		return nil, translate(err, "invalid academic year")
	}
	var result *RecomputeResult
	err = s.store.Update(ctx, func(tx *store.Tx) error {
		var err error
		result, err = s.apply(ctx, tx, studentID, academicYear, raw)
		return err
	})
	if err != nil {
		return nil, translate(err, "failed to recompute results")
	}
	return result, nil
}

// RecomputeStored rederives (studentID, year) from the marks already stored.
func (s *RecomputeService) RecomputeStored(ctx context.Context, studentID, year string) (*RecomputeResult, error) {
	return s.Recompute(ctx, studentID, year, nil)
}

// HandleJob is the recompute queue handler.
func (s *RecomputeService) HandleJob(ctx context.Context, job jobs.Job) error {
	unit, ok := job.Payload.(repository.Unit)
	if !ok {
		return fmt.Errorf("recompute job %s: unexpected payload %T", job.ID, job.Payload)
	}
	_, err := s.RecomputeStored(ctx, unit.StudentID, string(unit.AcademicYear))
	var appErr *appErrors.Error
	if errors.As(err, &appErr) && appErr.Code != appErrors.ErrStore.Code && appErr.Code != appErrors.ErrInternal.Code {
		// Locked stores and policy problems do not improve on retry.
		s.logger.Warn("recompute job dropped", zap.String("job_id", job.ID), zap.String("code", appErr.Code))
		return nil
	}
	return err
}

// UnitJob builds the queue job for a (student, year).
func UnitJob(unit repository.Unit) jobs.Job {
	return jobs.Job{
		Key:     unit.StudentID + "|" + string(unit.AcademicYear),
		Type:    RecomputeJobType,
		Payload: unit,
	}
}

// apply runs inside a caller-owned transaction.
func (s *RecomputeService) apply(ctx context.Context, tx *store.Tx, studentID string, year models.AcademicYear, raw []models.RawMarkRecord) (result *RecomputeResult, err error) {
	start := time.Now()
	defer func() {
		s.metrics.RecordRecompute(outcome(err), time.Since(start))
	}()

	if err := tx.Years.Ensure(ctx, year); err != nil {
		return nil, err
	}
	student, err := tx.Students.FindByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: student %q", engine.ErrReference, studentID)
		}
		return nil, err
	}
	catalogue, err := tx.Modules.Catalogue(ctx)
	if err != nil {
		return nil, err
	}
	existing, err := tx.Marks.ListByUnit(ctx, studentID, year)
	if err != nil {
		return nil, err
	}
	stored, err := tx.Results.Find(ctx, studentID, year)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	others, err := tx.Results.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, err
	}

	out, err := s.engine.Recompute(engine.Input{
		Student:      *student,
		Year:         year,
		Modules:      catalogue,
		Existing:     existing,
		Incoming:     raw,
		StoredResult: stored,
		OtherResults: others,
	})
	if err != nil {
		return nil, err
	}

	result = &RecomputeResult{Student: out.Student, Marks: out.Marks, Rejected: out.Rejected}
	if len(out.Marks) == 0 {
		return result, nil
	}

	if err := s.resolveFills(ctx, tx, out.Marks, raw, out.Rejected); err != nil {
		return nil, err
	}
	if err := tx.Marks.ReplaceUnit(ctx, studentID, year, out.Marks); err != nil {
		return nil, err
	}
	if err := tx.Results.Replace(ctx, &out.Result); err != nil {
		return nil, err
	}
	if err := tx.Students.SaveClassification(ctx, studentID, out.Student.Classification()); err != nil {
		return nil, err
	}
	result.Result = &out.Result
	return result, nil
}

// resolveFills stores the highlight of each accepted raw row and points its mark at it.
// Marks without a new highlight keep the stored one.
func (s *RecomputeService) resolveFills(ctx context.Context, tx *store.Tx, marks []models.Mark, raw []models.RawMarkRecord, rejected []models.RowDiagnostic) error {
	skip := make(map[int]bool, len(rejected))
	for _, d := range rejected {
		skip[d.Row] = true
	}
	fills := make(map[string]models.FillColour)
	for _, r := range raw {
		if r.Fill != nil && !skip[r.Row] {
			fills[r.ModuleCode] = *r.Fill
		}
	}
	for i := range marks {
		colour, ok := fills[marks[i].ModuleCode]
		if !ok {
			continue
		}
		id, err := tx.Colours.Resolve(ctx, colour)
		if err != nil {
			return err
		}
		marks[i].Fill = &id
	}
	return nil
}

// reclassify rederives the student's classification from stored results.
func (s *RecomputeService) reclassify(ctx context.Context, tx *store.Tx, studentID string) (*models.StudentInfo, error) {
	student, err := tx.Students.FindByID(ctx, studentID)
	if err != nil {
		return nil, err
	}
	results, err := tx.Results.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, err
	}
	updated, err := s.engine.Reclassify(*student, results)
	if err != nil {
		return nil, err
	}
	if err := tx.Students.SaveClassification(ctx, studentID, updated.Classification()); err != nil {
		return nil, err
	}
	return &updated, nil
}

func outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, engine.ErrReference):
		return OutcomeReference
	case errors.Is(err, engine.ErrPolicy):
		return OutcomePolicy
	default:
		return OutcomeFailed
	}
}
