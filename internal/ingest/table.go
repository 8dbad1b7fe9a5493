package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/noah-isme/marksvault/internal/models"
)

// ErrUnsupportedFormat is returned for files that are neither CSV nor XLSX.
var ErrUnsupportedFormat = errors.New("unsupported file format")

// Table is a flat sheet: one header row followed by data rows.
type Table struct {
	Header []string
	Rows   []Row
}

// Row is one data row. Number is the 1-based sheet row, counting the header.
type Row struct {
	Number int
	Cells  []string
	Fills  []*models.FillColour
}

// Cell returns the trimmed value at idx, or "" when the row is short.
func (r Row) Cell(idx int) string {
	if idx < 0 || idx >= len(r.Cells) {
		return ""
	}
	return strings.TrimSpace(r.Cells[idx])
}

// Fill returns the highlight of the cell at idx, if any.
func (r Row) Fill(idx int) *models.FillColour {
	if idx < 0 || idx >= len(r.Fills) {
		return nil
	}
	return r.Fills[idx]
}

func (r Row) empty() bool {
	for _, c := range r.Cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// ReadFile loads a table from path, choosing the reader by extension.
func ReadFile(path string) (*Table, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return ReadCSV(f)
	case ".xlsx", ".xlsm":
		return ReadXLSX(path)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))
	}
}

// ReadCSV reads a comma separated table. Ragged rows are allowed.
func ReadCSV(r io.Reader) (*Table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	if len(records) == 0 {
		return nil, errors.New("read csv: missing header row")
	}

	header := records[0]
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}
	table := &Table{Header: header}
	for i, record := range records[1:] {
		row := Row{Number: i + 2, Cells: record}
		if row.empty() {
			continue
		}
		table.Rows = append(table.Rows, row)
	}
	return table, nil
}

// ReadXLSX reads the first worksheet of a workbook, carrying solid cell fills along.
func ReadXLSX(path string) (*Table, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("open workbook: no worksheets")
	}
	sheet := sheets[0]

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read worksheet %s: %w", sheet, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("read worksheet %s: missing header row", sheet)
	}

	fills := fillReader{file: f, sheet: sheet, cache: map[int]*models.FillColour{}}
	table := &Table{Header: rows[0]}
	for i, cells := range rows[1:] {
		row := Row{Number: i + 2, Cells: cells}
		if row.empty() {
			continue
		}
		row.Fills = make([]*models.FillColour, len(cells))
		for col := range cells {
			fill, err := fills.at(col+1, row.Number)
			if err != nil {
				return nil, err
			}
			row.Fills[col] = fill
		}
		table.Rows = append(table.Rows, row)
	}
	return table, nil
}

type fillReader struct {
	file  *excelize.File
	sheet string
	cache map[int]*models.FillColour
}

func (r fillReader) at(col, row int) (*models.FillColour, error) {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return nil, err
	}
	styleID, err := r.file.GetCellStyle(r.sheet, cell)
	if err != nil {
		return nil, fmt.Errorf("read style of %s: %w", cell, err)
	}
	if fill, ok := r.cache[styleID]; ok {
		return fill, nil
	}

	var fill *models.FillColour
	if styleID > 0 {
		style, err := r.file.GetStyle(styleID)
		if err != nil {
			return nil, fmt.Errorf("read style %d: %w", styleID, err)
		}
		if style != nil && style.Fill.Type == "pattern" && style.Fill.Pattern == 1 && len(style.Fill.Color) > 0 {
			if parsed, err := models.ParseFillColour(style.Fill.Color[0]); err == nil {
				fill = &parsed
			}
		}
	}
	r.cache[styleID] = fill
	return fill, nil
}
