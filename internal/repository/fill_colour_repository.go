package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/marksvault/internal/models"
)

// FillColourRepository stores cell highlight colours.
type FillColourRepository struct {
	db sqlx.ExtContext
}

// NewFillColourRepository constructs a FillColourRepository.
func NewFillColourRepository(db sqlx.ExtContext) *FillColourRepository {
	return &FillColourRepository{db: db}
}

// Resolve returns the id of colour, inserting it on first use.
func (r *FillColourRepository) Resolve(ctx context.Context, colour models.FillColour) (int64, error) {
	const insert = `INSERT OR IGNORE INTO fill_colours (alpha, red, green, blue) VALUES (?, ?, ?, ?)`
	if _, err := r.db.ExecContext(ctx, insert, colour.Alpha, colour.Red, colour.Green, colour.Blue); err != nil {
		return 0, fmt.Errorf("insert fill colour: %w", err)
	}
	var id int64
	const query = `SELECT id FROM fill_colours WHERE alpha = ? AND red = ? AND green = ? AND blue = ?`
	if err := sqlx.GetContext(ctx, r.db, &id, query, colour.Alpha, colour.Red, colour.Green, colour.Blue); err != nil {
		return 0, fmt.Errorf("resolve fill colour: %w", err)
	}
	return id, nil
}

// List returns all colours.
func (r *FillColourRepository) List(ctx context.Context) ([]models.FillColour, error) {
	var colours []models.FillColour
	if err := sqlx.SelectContext(ctx, r.db, &colours, "SELECT id, alpha, red, green, blue FROM fill_colours ORDER BY id"); err != nil {
		return nil, fmt.Errorf("list fill colours: %w", err)
	}
	return colours, nil
}
