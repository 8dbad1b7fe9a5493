package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/marksvault/internal/models"
)

// ModuleRepository manages the module catalogue.
type ModuleRepository struct {
	db sqlx.ExtContext
}

// NewModuleRepository constructs a ModuleRepository.
func NewModuleRepository(db sqlx.ExtContext) *ModuleRepository {
	return &ModuleRepository{db: db}
}

const moduleColumns = "code, credit, name, term, updated_at"

// List returns modules ordered by code.
func (r *ModuleRepository) List(ctx context.Context, filter models.ModuleFilter) ([]models.Module, error) {
	conditions := []string{"1=1"}
	var args []interface{}
	if filter.Term != "" {
		conditions = append(conditions, "term = ?")
		args = append(args, filter.Term)
	}
	if filter.Search != "" {
		conditions = append(conditions, "(LOWER(code) LIKE ? OR LOWER(COALESCE(name, '')) LIKE ?)")
		pattern := "%" + strings.ToLower(filter.Search) + "%"
		args = append(args, pattern, pattern)
	}
	query := fmt.Sprintf("SELECT %s FROM modules WHERE %s ORDER BY code", moduleColumns, strings.Join(conditions, " AND "))

	var modules []models.Module
	if err := sqlx.SelectContext(ctx, r.db, &modules, query, args...); err != nil {
		return nil, fmt.Errorf("list modules: %w", err)
	}
	return modules, nil
}

// Catalogue returns every module keyed by code.
func (r *ModuleRepository) Catalogue(ctx context.Context) (map[string]models.Module, error) {
	modules, err := r.List(ctx, models.ModuleFilter{})
	if err != nil {
		return nil, err
	}
	catalogue := make(map[string]models.Module, len(modules))
	for _, m := range modules {
		catalogue[m.Code] = m
	}
	return catalogue, nil
}

// FindByCode fetches a module. It returns sql.ErrNoRows when absent.
func (r *ModuleRepository) FindByCode(ctx context.Context, code string) (*models.Module, error) {
	var module models.Module
	if err := sqlx.GetContext(ctx, r.db, &module, "SELECT "+moduleColumns+" FROM modules WHERE code = ?", code); err != nil {
		return nil, err
	}
	return &module, nil
}

// Create inserts a new module.
func (r *ModuleRepository) Create(ctx context.Context, module *models.Module) error {
	module.UpdatedAt = time.Now().UTC()
	const query = `INSERT INTO modules (code, credit, name, term, updated_at) VALUES (:code, :credit, :name, :term, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.db, query, module); err != nil {
		return fmt.Errorf("create module: %w", err)
	}
	return nil
}

// Update modifies credit, name and term of an existing module.
func (r *ModuleRepository) Update(ctx context.Context, module *models.Module) error {
	module.UpdatedAt = time.Now().UTC()
	const query = `UPDATE modules SET credit = :credit, name = :name, term = :term, updated_at = :updated_at WHERE code = :code`
	if _, err := sqlx.NamedExecContext(ctx, r.db, query, module); err != nil {
		return fmt.Errorf("update module: %w", err)
	}
	return nil
}

// Upsert inserts the module or refreshes an existing entry. A nil name keeps the stored one.
func (r *ModuleRepository) Upsert(ctx context.Context, module *models.Module) error {
	module.UpdatedAt = time.Now().UTC()
	const query = `INSERT INTO modules (code, credit, name, term, updated_at) VALUES (:code, :credit, :name, :term, :updated_at)
        ON CONFLICT (code) DO UPDATE SET credit = excluded.credit, name = COALESCE(excluded.name, modules.name), term = excluded.term, updated_at = excluded.updated_at`
	if _, err := sqlx.NamedExecContext(ctx, r.db, query, module); err != nil {
		return fmt.Errorf("upsert module: %w", err)
	}
	return nil
}
