package store

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/marksvault/internal/repository"
)

// Tx exposes the typed repositories bound to one transaction on the working copy.
type Tx struct {
	Years     *repository.AcademicYearRepository
	Modules   *repository.ModuleRepository
	Students  *repository.StudentRepository
	Marks     *repository.MarkRepository
	Results   *repository.ResultRepository
	Colours   *repository.FillColourRepository
	Overrides *repository.OverrideRepository
}

func newTx(tx *sqlx.Tx) *Tx {
	return &Tx{
		Years:     repository.NewAcademicYearRepository(tx),
		Modules:   repository.NewModuleRepository(tx),
		Students:  repository.NewStudentRepository(tx),
		Marks:     repository.NewMarkRepository(tx),
		Results:   repository.NewResultRepository(tx),
		Colours:   repository.NewFillColourRepository(tx),
		Overrides: repository.NewOverrideRepository(tx),
	}
}

// Batch runs a sequence of independently committed units under one exclusive hold of the store.
type Batch struct {
	ctx       context.Context
	store     *Store
	committed int
}

// Unit runs fn in its own transaction. A non-nil error rolls back this unit only.
func (b *Batch) Unit(fn func(*Tx) error) error {
	if err := b.store.inTx(b.ctx, fn, true); err != nil {
		return err
	}
	b.committed++
	return nil
}

// Committed reports how many units have been committed so far.
func (b *Batch) Committed() int {
	return b.committed
}
