package service

import (
	"context"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/marksvault/internal/models"
	"github.com/noah-isme/marksvault/internal/store"
	appErrors "github.com/noah-isme/marksvault/pkg/errors"
)

// OverrideRequest records a manual adjustment to a student's classification.
type OverrideRequest struct {
	Reason    string  `json:"reason" validate:"required,max=200"`
	Note      string  `json:"note" validate:"required,max=2000"`
	Award     *string `json:"award" validate:"omitempty,max=100"`
	FinalMark *int    `json:"final_mark" validate:"omitempty,min=0,max=100"`
}

// StudentDetail is a student together with the override trail.
type StudentDetail struct {
	models.StudentInfo
	Overrides []models.Override `json:"overrides"`
}

// StudentService exposes read access to student records and the override path.
type StudentService struct {
	store     txUpdater
	recompute *RecomputeService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewStudentService constructs a StudentService.
func NewStudentService(st txUpdater, recompute *RecomputeService, validate *validator.Validate, logger *zap.Logger) *StudentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StudentService{store: st, recompute: recompute, validator: validate, logger: logger}
}

// List returns a page of students.
func (s *StudentService) List(ctx context.Context, filter models.StudentFilter) ([]models.StudentInfo, *models.Pagination, error) {
	var students []models.StudentInfo
	var total int
	err := s.store.View(ctx, func(tx *store.Tx) error {
		var err error
		students, total, err = tx.Students.List(ctx, filter)
		return err
	})
	if err != nil {
		return nil, nil, translate(err, "failed to list students")
	}
	if students == nil {
		students = []models.StudentInfo{}
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 500 {
		size = 50
	}
	return students, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get answers get_student.
func (s *StudentService) Get(ctx context.Context, id string) (*StudentDetail, error) {
	id = strings.TrimSpace(id)
	var detail StudentDetail
	err := s.store.View(ctx, func(tx *store.Tx) error {
		student, err := tx.Students.FindByID(ctx, id)
		if err != nil {
			return err
		}
		overrides, err := tx.Overrides.ListByStudent(ctx, id)
		if err != nil {
			return err
		}
		detail.StudentInfo = *student
		detail.Overrides = overrides
		return nil
	})
	if err != nil {
		return nil, translate(err, "student")
	}
	if detail.Overrides == nil {
		detail.Overrides = []models.Override{}
	}
	return &detail, nil
}

// Marks answers get_marks, ordered by academic year then module code.
func (s *StudentService) Marks(ctx context.Context, id string) ([]models.Mark, error) {
	var marks []models.Mark
	err := s.store.View(ctx, func(tx *store.Tx) error {
		if _, err := tx.Students.FindByID(ctx, id); err != nil {
			return err
		}
		var err error
		marks, err = tx.Marks.ListByStudent(ctx, id)
		return err
	})
	if err != nil {
		return nil, translate(err, "student")
	}
	if marks == nil {
		marks = []models.Mark{}
	}
	return marks, nil
}

// Results answers get_results, ordered by academic year.
func (s *StudentService) Results(ctx context.Context, id string) ([]models.Result, error) {
	var results []models.Result
	err := s.store.View(ctx, func(tx *store.Tx) error {
		if _, err := tx.Students.FindByID(ctx, id); err != nil {
			return err
		}
		var err error
		results, err = tx.Results.ListByStudent(ctx, id)
		return err
	})
	if err != nil {
		return nil, translate(err, "student")
	}
	if results == nil {
		results = []models.Result{}
	}
	return results, nil
}

// Override appends an override record and stamps the student as manually adjusted.
// The engine-derived classification is left as computed.
func (s *StudentService) Override(ctx context.Context, id string, req OverrideRequest) (*models.Override, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid override payload")
	}
	override := &models.Override{
		StudentID: id,
		Reason:    strings.TrimSpace(req.Reason),
		Note:      strings.TrimSpace(req.Note),
		Award:     req.Award,
		FinalMark: req.FinalMark,
	}
	err := s.store.Update(ctx, func(tx *store.Tx) error {
		if _, err := tx.Students.FindByID(ctx, id); err != nil {
			return err
		}
		if err := tx.Overrides.Create(ctx, override); err != nil {
			return err
		}
		return tx.Students.StampOverride(ctx, id, override.Reason+": "+override.Note)
	})
	if err != nil {
		return nil, translate(err, "student")
	}
	s.logger.Info("override recorded", zap.String("override_id", override.ID))
	return override, nil
}

// Reclassify rederives the student's classification from stored results, e.g. after a
// calculation model change.
func (s *StudentService) Reclassify(ctx context.Context, id string) (*models.StudentInfo, error) {
	var student *models.StudentInfo
	err := s.store.Update(ctx, func(tx *store.Tx) error {
		var err error
		student, err = s.recompute.reclassify(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, translate(err, "student")
	}
	return student, nil
}
