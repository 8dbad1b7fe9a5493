package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/marksvault/internal/ingest"
	"github.com/noah-isme/marksvault/internal/models"
	"github.com/noah-isme/marksvault/internal/repository"
	"github.com/noah-isme/marksvault/internal/store"
	appErrors "github.com/noah-isme/marksvault/pkg/errors"
)

type batchNormalizer interface {
	NormalizeFile(dataType models.DataType, year models.AcademicYear, path string) (*ingest.Batch, error)
}

type batchStore interface {
	txViewer
	Batch(ctx context.Context, fn func(*store.Batch) error) error
}

// InsertRequest describes one upload.
type InsertRequest struct {
	DataType     string `json:"data_type" validate:"required"`
	AcademicYear string `json:"academic_year" validate:"required"`
	Path         string `json:"-" validate:"required"`
}

// IngestConfig tunes ingestion.
type IngestConfig struct {
	Workers          int
	DefaultCalcModel string
}

// IngestService turns uploaded sheets into committed marks, students and modules.
type IngestService struct {
	store      batchStore
	normalizer batchNormalizer
	recompute  *RecomputeService
	queue      jobEnqueuer
	metrics    *MetricsService
	validator  *validator.Validate
	logger     *zap.Logger
	cfg        IngestConfig
}

// NewIngestService constructs an IngestService. A nil queue recomputes module changes inline.
func NewIngestService(st batchStore, normalizer batchNormalizer, recompute *RecomputeService, queue jobEnqueuer, metrics *MetricsService, cfg IngestConfig, validate *validator.Validate, logger *zap.Logger) *IngestService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	return &IngestService{
		store:      st,
		normalizer: normalizer,
		recompute:  recompute,
		queue:      queue,
		metrics:    metrics,
		validator:  validate,
		logger:     logger,
		cfg:        cfg,
	}
}

// unitPlan is the prepared work for one (student, year).
type unitPlan struct {
	studentID string
	year      models.AcademicYear
	rows      []models.RawMarkRecord
	create    *models.StudentInfo
	rejected  []models.RowDiagnostic
	failure   *models.UnitFailure
}

// Insert normalises the file outside any store lock, then commits every (student, year)
// unit independently under a single exclusive hold of the store.
func (s *IngestService) Insert(ctx context.Context, req InsertRequest) (*models.IngestReport, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid import request")
	}
	dataType, err := models.ParseDataType(req.DataType)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}
	year, err := models.ParseAcademicYear(req.AcademicYear)
	if err != nil {
		return nil, translate(err, "invalid academic year")
	}
	if _, err := os.Stat(req.Path); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "import file not readable")
	}

	batch, err := s.normalizer.NormalizeFile(dataType, year, req.Path)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}

	report := &models.IngestReport{
		BatchID:      uuid.NewString(),
		DataType:     dataType,
		AcademicYear: year,
		Rejected:     append([]models.RowDiagnostic{}, batch.Diagnostics...),
		Failures:     []models.UnitFailure{},
	}
	logger := s.logger.With(zap.String("batch_id", report.BatchID), zap.String("data_type", string(dataType)), zap.String("academic_year", string(year)))

	switch dataType {
	case models.DataTypeAward:
		err = s.insertStudents(ctx, year, batch.Students, report)
	case models.DataTypeModules:
		err = s.insertModules(ctx, batch.Modules, report)
	default:
		err = s.insertMarks(ctx, dataType, batch.Marks, report)
	}
	if err != nil {
		logger.Error("import aborted", zap.Error(err))
		return nil, translate(err, "import aborted")
	}

	sort.SliceStable(report.Rejected, func(i, j int) bool { return report.Rejected[i].Row < report.Rejected[j].Row })
	s.metrics.RecordIngest(string(dataType), report.Accepted, len(report.Rejected))
	logger.Info("import finished",
		zap.Int("rows", batch.Rows()+len(batch.Diagnostics)),
		zap.Int("accepted", report.Accepted),
		zap.Int("rejected", len(report.Rejected)),
		zap.Int("failed_units", len(report.Failures)))
	return report, nil
}

func (s *IngestService) insertMarks(ctx context.Context, dataType models.DataType, rows []models.RawMarkRecord, report *models.IngestReport) error {
	plans := groupUnits(rows)
	if len(plans) == 0 {
		return nil
	}

	catalogue, err := s.catalogue(ctx)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Workers)
	for _, plan := range plans {
		plan := plan
		g.Go(func() error {
			return s.store.View(gctx, func(tx *store.Tx) error {
				return s.prepare(gctx, tx, dataType, catalogue, plan)
			})
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	return s.store.Batch(ctx, func(b *store.Batch) error {
		for _, plan := range plans {
			report.Rejected = append(report.Rejected, plan.rejected...)
			if plan.failure != nil {
				report.Failures = append(report.Failures, *plan.failure)
				continue
			}
			if len(plan.rows) == 0 {
				continue
			}

			var result *RecomputeResult
			err := b.Unit(func(tx *store.Tx) error {
				if plan.create != nil {
					if err := s.createIfMissing(ctx, tx, plan.create); err != nil {
						return err
					}
				}
				var err error
				result, err = s.recompute.apply(ctx, tx, plan.studentID, plan.year, plan.rows)
				return err
			})
			if err != nil {
				if errors.Is(err, store.ErrStore) {
					return err
				}
				report.Failures = append(report.Failures, unitFailure(plan.studentID, plan.year, err))
				continue
			}
			report.Accepted += len(plan.rows) - len(result.Rejected)
			report.Rejected = append(report.Rejected, result.Rejected...)
		}
		return nil
	})
}

// prepare checks references for one unit under a read lock. Rows naming unknown
// modules are rejected individually so the rest of the unit can still commit.
func (s *IngestService) prepare(ctx context.Context, tx *store.Tx, dataType models.DataType, catalogue map[string]models.Module, plan *unitPlan) error {
	accepted := plan.rows[:0]
	for _, row := range plan.rows {
		if _, ok := catalogue[row.ModuleCode]; !ok {
			plan.rejected = append(plan.rejected, models.RowDiagnostic{
				Row:        row.Row,
				StudentID:  row.StudentID,
				ModuleCode: row.ModuleCode,
				Code:       models.DiagnosticValidation,
				Reason:     fmt.Sprintf("row %d: unknown module %s", row.Row, row.ModuleCode),
			})
			continue
		}
		accepted = append(accepted, row)
	}
	plan.rows = accepted
	if len(plan.rows) == 0 {
		return nil
	}

	_, err := tx.Students.FindByID(ctx, plan.studentID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return err
	}

	named := firstNamed(plan.rows)
	if dataType != models.DataTypeResult || named == nil {
		plan.failure = &models.UnitFailure{
			StudentID:    plan.studentID,
			AcademicYear: plan.year,
			Code:         models.DiagnosticReference,
			Reason:       fmt.Sprintf("unknown student %s", plan.studentID),
		}
		return nil
	}
	plan.create = &models.StudentInfo{
		ID:        plan.studentID,
		FirstName: named.FirstName,
		LastName:  named.LastName,
		Plan:      named.Plan,
		CalcModel: defaultModel(s.cfg.DefaultCalcModel),
	}
	return nil
}

func (s *IngestService) catalogue(ctx context.Context) (map[string]models.Module, error) {
	var catalogue map[string]models.Module
	err := s.store.View(ctx, func(tx *store.Tx) error {
		var err error
		catalogue, err = tx.Modules.Catalogue(ctx)
		return err
	})
	return catalogue, err
}

func (s *IngestService) createIfMissing(ctx context.Context, tx *store.Tx, student *models.StudentInfo) error {
	if _, err := tx.Students.FindByID(ctx, student.ID); err == nil {
		return nil
	} else if !errors.Is(err, sql.ErrNoRows) {
		return err
	}
	created := *student
	return tx.Students.Create(ctx, &created)
}

func (s *IngestService) insertStudents(ctx context.Context, year models.AcademicYear, records []models.RawStudentRecord, report *models.IngestReport) error {
	if len(records) == 0 {
		return nil
	}
	return s.store.Batch(ctx, func(b *store.Batch) error {
		for _, record := range records {
			record := record
			err := b.Unit(func(tx *store.Tx) error {
				return s.upsertStudent(ctx, tx, year, record)
			})
			if err != nil {
				if errors.Is(err, store.ErrStore) {
					return err
				}
				report.Failures = append(report.Failures, unitFailure(record.ID, year, err))
				continue
			}
			report.Accepted++
		}
		return nil
	})
}

func (s *IngestService) upsertStudent(ctx context.Context, tx *store.Tx, year models.AcademicYear, record models.RawStudentRecord) error {
	if err := tx.Years.Ensure(ctx, year); err != nil {
		return err
	}
	if record.IntakeYear != nil {
		if err := tx.Years.Ensure(ctx, *record.IntakeYear); err != nil {
			return err
		}
	}

	student, err := tx.Students.FindByID(ctx, record.ID)
	exists := err == nil
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return err
	}
	if !exists {
		student = &models.StudentInfo{ID: record.ID}
	}

	mergeStudent(student, record)
	if student.CalcModel == nil {
		student.CalcModel = defaultModel(s.cfg.DefaultCalcModel)
	}
	graduation := year
	student.GraduationYear = &graduation

	if exists {
		err = tx.Students.UpdateInfo(ctx, student)
	} else {
		err = tx.Students.Create(ctx, student)
	}
	if err != nil {
		return err
	}
	_, err = s.recompute.reclassify(ctx, tx, record.ID)
	return err
}

func (s *IngestService) insertModules(ctx context.Context, records []models.RawModuleRecord, report *models.IngestReport) error {
	if len(records) == 0 {
		return nil
	}
	var affected []repository.Unit
	err := s.store.Batch(ctx, func(b *store.Batch) error {
		for _, record := range records {
			record := record
			var units []repository.Unit
			err := b.Unit(func(tx *store.Tx) error {
				var err error
				units, err = upsertModule(ctx, tx, models.Module{Code: record.Code, Credit: record.Credit, Name: record.Name, Term: record.Term})
				return err
			})
			if err != nil {
				if errors.Is(err, store.ErrStore) {
					return err
				}
				report.Rejected = append(report.Rejected, models.RowDiagnostic{
					Row: record.Row, ModuleCode: record.Code, Code: models.DiagnosticValidation, Reason: err.Error(),
				})
				continue
			}
			report.Accepted++
			affected = append(affected, units...)
		}
		return nil
	})
	if err != nil {
		return err
	}
	scheduleRecompute(ctx, s.queue, s.recompute, s.logger, affected)
	return nil
}

// upsertModule writes the module and returns the stored units whose derived state
// depends on a changed credit or term.
func upsertModule(ctx context.Context, tx *store.Tx, module models.Module) ([]repository.Unit, error) {
	current, err := tx.Modules.FindByCode(ctx, module.Code)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err := tx.Modules.Upsert(ctx, &module); err != nil {
		return nil, err
	}
	if current == nil || (current.Credit == module.Credit && current.Term == module.Term) {
		return nil, nil
	}
	return tx.Marks.UnitsForModule(ctx, module.Code)
}

// scheduleRecompute queues recomputation of units, or runs it inline when no queue is wired.
func scheduleRecompute(ctx context.Context, queue jobEnqueuer, recompute *RecomputeService, logger *zap.Logger, units []repository.Unit) {
	for _, unit := range units {
		if queue != nil {
			if err := queue.Enqueue(UnitJob(unit)); err != nil {
				logger.Error("enqueue recompute failed", zap.String("academic_year", string(unit.AcademicYear)), zap.Error(err))
			}
			continue
		}
		if _, err := recompute.RecomputeStored(ctx, unit.StudentID, string(unit.AcademicYear)); err != nil {
			logger.Error("recompute failed", zap.String("academic_year", string(unit.AcademicYear)), zap.Error(err))
		}
	}
}

func groupUnits(rows []models.RawMarkRecord) []*unitPlan {
	var plans []*unitPlan
	index := make(map[string]*unitPlan)
	for _, row := range rows {
		key := row.StudentID + "|" + string(row.AcademicYear)
		plan, ok := index[key]
		if !ok {
			plan = &unitPlan{studentID: row.StudentID, year: row.AcademicYear}
			index[key] = plan
			plans = append(plans, plan)
		}
		plan.rows = append(plan.rows, row)
	}
	return plans
}

func firstNamed(rows []models.RawMarkRecord) *models.RawMarkRecord {
	for i := range rows {
		if rows[i].FirstName != "" || rows[i].LastName != "" {
			return &rows[i]
		}
	}
	return nil
}

func mergeStudent(student *models.StudentInfo, record models.RawStudentRecord) {
	if record.FirstName != "" {
		student.FirstName = record.FirstName
	}
	if record.LastName != "" {
		student.LastName = record.LastName
	}
	setIfPresent(&student.Program, record.Program)
	setIfPresent(&student.ProgramDesc, record.ProgramDesc)
	setIfPresent(&student.Plan, record.Plan)
	setIfPresent(&student.PlanDesc, record.PlanDesc)
	setIfPresent(&student.Intake, record.Intake)
	setIfPresent(&student.QAA, record.QAA)
	setIfPresent(&student.CalcModel, record.CalcModel)
	if record.CareerNo != nil {
		student.CareerNo = record.CareerNo
	}
	if record.IntakeYear != nil {
		student.IntakeYear = record.IntakeYear
	}
}

func setIfPresent(dst **string, v *string) {
	if v != nil && *v != "" {
		*dst = v
	}
}

func defaultModel(id string) *string {
	if id == "" {
		return nil
	}
	return &id
}

func unitFailure(studentID string, year models.AcademicYear, err error) models.UnitFailure {
	return models.UnitFailure{StudentID: studentID, AcademicYear: year, Code: diagnosticCode(err), Reason: err.Error()}
}
