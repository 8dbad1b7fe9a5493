package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/marksvault/internal/models"
	"github.com/noah-isme/marksvault/internal/repository"
	"github.com/noah-isme/marksvault/internal/store"
	appErrors "github.com/noah-isme/marksvault/pkg/errors"
)

// ModuleRequest is the payload for creating or updating a module.
type ModuleRequest struct {
	Code   string  `json:"code" validate:"required,max=32"`
	Credit int     `json:"credit" validate:"gt=0"`
	Name   *string `json:"name" validate:"omitempty,max=200"`
	Term   string  `json:"term" validate:"omitempty,oneof=AUTUMN SPRING autumn spring"`
}

// ModuleUpdate is the outcome of update_module.
type ModuleUpdate struct {
	Module      models.Module `json:"module"`
	Recomputing int           `json:"recomputing"`
}

// ModuleService manages the module catalogue.
type ModuleService struct {
	store     txUpdater
	recompute *RecomputeService
	queue     jobEnqueuer
	validator *validator.Validate
	logger    *zap.Logger
}

// NewModuleService constructs a ModuleService. A nil queue recomputes inline.
func NewModuleService(st txUpdater, recompute *RecomputeService, queue jobEnqueuer, validate *validator.Validate, logger *zap.Logger) *ModuleService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ModuleService{store: st, recompute: recompute, queue: queue, validator: validate, logger: logger}
}

// List answers get_modules.
func (s *ModuleService) List(ctx context.Context, filter models.ModuleFilter) ([]models.Module, error) {
	var modules []models.Module
	err := s.store.View(ctx, func(tx *store.Tx) error {
		var err error
		modules, err = tx.Modules.List(ctx, filter)
		return err
	})
	if err != nil {
		return nil, translate(err, "failed to list modules")
	}
	if modules == nil {
		modules = []models.Module{}
	}
	return modules, nil
}

// Create registers a new module.
func (s *ModuleService) Create(ctx context.Context, req ModuleRequest) (*models.Module, error) {
	module, err := s.validate(req)
	if err != nil {
		return nil, err
	}
	err = s.store.Update(ctx, func(tx *store.Tx) error {
		if _, err := tx.Modules.FindByCode(ctx, module.Code); err == nil {
			return appErrors.Clone(appErrors.ErrConflict, "module "+module.Code+" already exists")
		} else if !errors.Is(err, sql.ErrNoRows) {
			return err
		}
		return tx.Modules.Create(ctx, module)
	})
	if err != nil {
		return nil, translate(err, "failed to create module")
	}
	return module, nil
}

// Update answers update_module. A changed credit or term recomputes every stored
// (student, year) that took the module.
func (s *ModuleService) Update(ctx context.Context, code string, req ModuleRequest) (*ModuleUpdate, error) {
	if req.Code == "" {
		req.Code = code
	}
	if !strings.EqualFold(strings.TrimSpace(req.Code), strings.TrimSpace(code)) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "module code cannot be changed")
	}
	module, err := s.validate(req)
	if err != nil {
		return nil, err
	}

	var affected []repository.Unit
	err = s.store.Update(ctx, func(tx *store.Tx) error {
		current, err := tx.Modules.FindByCode(ctx, module.Code)
		if err != nil {
			return err
		}
		if module.Name == nil {
			module.Name = current.Name
		}
		if req.Term == "" {
			module.Term = current.Term
		}
		if err := tx.Modules.Update(ctx, module); err != nil {
			return err
		}
		if current.Credit == module.Credit && current.Term == module.Term {
			return nil
		}
		affected, err = tx.Marks.UnitsForModule(ctx, module.Code)
		return err
	})
	if err != nil {
		return nil, translate(err, "module")
	}

	if len(affected) > 0 {
		s.logger.Info("module change schedules recompute", zap.String("module", module.Code), zap.Int("units", len(affected)))
		scheduleRecompute(ctx, s.queue, s.recompute, s.logger, affected)
	}
	return &ModuleUpdate{Module: *module, Recomputing: len(affected)}, nil
}

func (s *ModuleService) validate(req ModuleRequest) (*models.Module, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid module payload")
	}
	module := &models.Module{
		Code:   strings.ToUpper(strings.TrimSpace(req.Code)),
		Credit: req.Credit,
		Name:   req.Name,
		Term:   models.ParseModuleTerm(req.Term),
	}
	return module, nil
}
