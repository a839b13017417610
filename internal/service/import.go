package service

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"cmt-backend/internal/schema"
	"cmt-backend/internal/storage"
)

var ErrEmptyWorkbook = errors.New("workbook has no header row")

// ImportedRow is one data line of the sheet. Line is the 1-based sheet row.
type ImportedRow struct {
	Line   int                      `json:"line"`
	Values storage.Row              `json:"values"`
	Errors []schema.ValidationError `json:"errors,omitempty"`
}

type ImportResult struct {
	Sheet    string        `json:"sheet"`
	Rows     []ImportedRow `json:"rows"`
	Unmapped []string      `json:"unmapped,omitempty"`
}

// ImportRows reads the first sheet of an xlsx workbook. The first row holds
// headers matched against column ids or labels (case-insensitive). Blank lines
// are skipped; every data line is validated against s.
func ImportRows(r io.Reader, s storage.TemplateSchema) (*ImportResult, error) {
	const op = "service.ImportRows"

	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("%s: open workbook: %w", op, err)
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	lines, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("%s: read sheet %q: %w", op, sheet, err)
	}
	if len(lines) == 0 {
		return nil, fmt.Errorf("%s: %w", op, ErrEmptyWorkbook)
	}

	res := &ImportResult{Sheet: sheet, Rows: []ImportedRow{}}

	columns := make([]*storage.TemplateColumn, len(lines[0]))
	for i, header := range lines[0] {
		header = strings.TrimSpace(header)
		if header == "" {
			continue
		}
		if c := matchColumn(s, header); c != nil {
			columns[i] = c
			continue
		}
		res.Unmapped = append(res.Unmapped, header)
	}

	for n, line := range lines[1:] {
		row := storage.Row{}
		for i, cell := range line {
			cell = strings.TrimSpace(cell)
			if i >= len(columns) || columns[i] == nil || cell == "" {
				continue
			}
			row[columns[i].ID] = cellValue(*columns[i], cell)
		}
		if len(row) == 0 {
			continue
		}
		res.Rows = append(res.Rows, ImportedRow{
			Line:   n + 2,
			Values: row,
			Errors: schema.ValidateRow(s, row),
		})
	}

	return res, nil
}

func matchColumn(s storage.TemplateSchema, header string) *storage.TemplateColumn {
	for i := range s.Columns {
		c := &s.Columns[i]
		if strings.EqualFold(c.ID, header) || strings.EqualFold(c.Label, header) {
			return c
		}
	}
	return nil
}

// cellValue keeps number cells as float64 when they parse; anything else stays
// text and is reported by validation.
func cellValue(c storage.TemplateColumn, cell string) any {
	if c.Type == storage.ColumnNumber {
		if f, err := strconv.ParseFloat(strings.ReplaceAll(cell, ",", "."), 64); err == nil {
			return f
		}
	}
	return cell
}
