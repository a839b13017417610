// Package testdef holds the built-in test definitions and runs their
// calculation pipeline.
package testdef

import (
	"sort"

	"cmt-backend/internal/aggregate"
	"cmt-backend/internal/storage"
)

// Row processors.
const (
	ProcessorAggregate = "aggregate"
	ProcessorSieve     = "sieve"
	ProcessorCBR       = "cbr"
)

type Field struct {
	ID       string             `json:"id" yaml:"id"`
	Label    string             `json:"label" yaml:"label"`
	Type     storage.ColumnType `json:"type" yaml:"type"`
	Unit     string             `json:"unit,omitempty" yaml:"unit,omitempty"`
	Options  []string           `json:"options,omitempty" yaml:"options,omitempty"`
	Decimals *int               `json:"decimals,omitempty" yaml:"decimals,omitempty"`
	Locked   bool               `json:"locked,omitempty" yaml:"locked,omitempty"`
}

type Validation struct {
	Min      *float64 `json:"min,omitempty" yaml:"min,omitempty"`
	Max      *float64 `json:"max,omitempty" yaml:"max,omitempty"`
	Required bool     `json:"required,omitempty" yaml:"required,omitempty"`
}

// Step is one page of the test wizard.
type Step struct {
	ID           string                `json:"id" yaml:"id"`
	Title        string                `json:"title" yaml:"title"`
	Fields       []Field               `json:"fields" yaml:"fields"`
	Calculations map[string]string     `json:"calculations,omitempty" yaml:"calculations,omitempty"`
	Validations  map[string]Validation `json:"validations,omitempty" yaml:"validations,omitempty"`
}

// Schema turns the step fields and validations into a template schema so rows
// are validated the same way as template data.
func (s Step) Schema() storage.TemplateSchema {
	return buildSchema(s.Fields, s.Validations)
}

type AggregateSpec struct {
	Func  string `json:"func" yaml:"func"`
	Field string `json:"field" yaml:"field"`
	// By is only used by "at_max".
	By string `json:"by,omitempty" yaml:"by,omitempty"`
}

const funcAtMax = "at_max"

// RowSet describes repeated sample rows (sieves, penetration readings, ...).
type RowSet struct {
	Title        string                   `json:"title" yaml:"title"`
	Fields       []Field                  `json:"fields" yaml:"fields"`
	Validations  map[string]Validation    `json:"validations,omitempty" yaml:"validations,omitempty"`
	Calculations map[string]string        `json:"calculations,omitempty" yaml:"calculations,omitempty"`
	MinRows      int                      `json:"min_rows,omitempty" yaml:"min_rows,omitempty"`
	Processor    string                   `json:"processor,omitempty" yaml:"processor,omitempty"`
	Aggregates   map[string]AggregateSpec `json:"aggregates,omitempty" yaml:"aggregates,omitempty"`
	// TotalField names the input holding the sample weight for the sieve processor.
	TotalField string               `json:"total_field,omitempty" yaml:"total_field,omitempty"`
	CBR        aggregate.CBROptions `json:"cbr,omitempty" yaml:"cbr,omitempty"`
}

func (r RowSet) Schema() storage.TemplateSchema {
	return buildSchema(r.Fields, r.Validations)
}

// Band labels values up to and including Max. A band without Max catches the rest.
type Band struct {
	Max   *float64 `json:"max,omitempty" yaml:"max,omitempty"`
	Label string   `json:"label" yaml:"label"`
}

type Classification struct {
	Value string `json:"value" yaml:"value"`
	Bands []Band `json:"bands" yaml:"bands"`
}

// Classify returns the label of the first band v falls into.
func (c Classification) Classify(v float64) (string, bool) {
	for _, b := range c.Bands {
		if b.Max == nil || v <= *b.Max {
			return b.Label, true
		}
	}
	return "", false
}

// Definition is the generic description of a laboratory test.
type Definition struct {
	Code           string             `json:"code" yaml:"code"`
	Name           string             `json:"name" yaml:"name"`
	Standard       string             `json:"standard,omitempty" yaml:"standard,omitempty"`
	Category       string             `json:"category" yaml:"category"`
	Steps          []Step             `json:"steps" yaml:"steps"`
	Rows           *RowSet            `json:"rows,omitempty" yaml:"rows,omitempty"`
	Calculations   map[string]string  `json:"calculations,omitempty" yaml:"calculations,omitempty"`
	Thresholds     map[string]float64 `json:"thresholds,omitempty" yaml:"thresholds,omitempty"`
	PassCondition  string             `json:"pass_condition,omitempty" yaml:"pass_condition,omitempty"`
	Classification *Classification    `json:"classification,omitempty" yaml:"classification,omitempty"`
	// Precision is the number of decimals per output; DefaultPrecision applies otherwise.
	Precision        map[string]int `json:"precision,omitempty" yaml:"precision,omitempty"`
	DefaultPrecision *int           `json:"default_precision,omitempty" yaml:"default_precision,omitempty"`
}

const defaultDecimals = 2

func (d Definition) decimals(output string) int {
	if p, ok := d.Precision[output]; ok {
		return p
	}
	if d.DefaultPrecision != nil {
		return *d.DefaultPrecision
	}
	return defaultDecimals
}

// StepOf returns the index of the step that owns field, or -1.
func (d Definition) StepOf(field string) int {
	for i, s := range d.Steps {
		for _, f := range s.Fields {
			if f.ID == field {
				return i
			}
		}
	}
	return -1
}

func buildSchema(fields []Field, validations map[string]Validation) storage.TemplateSchema {
	s := storage.TemplateSchema{Columns: make([]storage.TemplateColumn, 0, len(fields))}
	for _, f := range fields {
		col := storage.TemplateColumn{
			ID:       f.ID,
			Label:    f.Label,
			Type:     f.Type,
			Unit:     f.Unit,
			Decimals: f.Decimals,
			Options:  f.Options,
			Locked:   f.Locked,
		}
		if v, ok := validations[f.ID]; ok {
			col.Min, col.Max, col.Required = v.Min, v.Max, v.Required
		}
		if col.Required {
			s.Required = append(s.Required, f.ID)
		}
		if col.Locked {
			s.Locked = append(s.Locked, f.ID)
		}
		s.Columns = append(s.Columns, col)
	}
	return s
}

func sortedNames[M ~map[string]V, V any](m M) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
