package storage

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

type ColumnType string

const (
	ColumnText   ColumnType = "text"
	ColumnNumber ColumnType = "number"
	ColumnSelect ColumnType = "select"
	ColumnDate   ColumnType = "date"
)

// TemplateColumn is one field of a dynamic form.
type TemplateColumn struct {
	ID       string     `json:"id" yaml:"id"`
	Label    string     `json:"label" yaml:"label"`
	Type     ColumnType `json:"type" yaml:"type"`
	Required bool       `json:"required,omitempty" yaml:"required,omitempty"`
	Locked   bool       `json:"locked,omitempty" yaml:"locked,omitempty"`
	Unit     string     `json:"unit,omitempty" yaml:"unit,omitempty"`
	Decimals *int       `json:"decimals,omitempty" yaml:"decimals,omitempty"`
	Min      *float64   `json:"min,omitempty" yaml:"min,omitempty"`
	Max      *float64   `json:"max,omitempty" yaml:"max,omitempty"`
	Options  []string   `json:"options,omitempty" yaml:"options,omitempty"`
}

type TemplateSchema struct {
	Columns     []TemplateColumn    `json:"columns" yaml:"columns"`
	Locked      []string            `json:"locked" yaml:"locked"`
	Required    []string            `json:"required" yaml:"required"`
	NamedRanges map[string][]string `json:"named_ranges,omitempty" yaml:"named_ranges,omitempty"`
}

// Column looks a column up by id.
func (s TemplateSchema) Column(id string) (TemplateColumn, bool) {
	for _, c := range s.Columns {
		if c.ID == id {
			return c, true
		}
	}
	return TemplateColumn{}, false
}

// IsRequired reports whether the column is required either by its own flag or
// by the schema-level list.
func (s TemplateSchema) IsRequired(id string) bool {
	if c, ok := s.Column(id); ok && c.Required {
		return true
	}
	for _, r := range s.Required {
		if r == id {
			return true
		}
	}
	return false
}

// TemplateRules is declarative; evaluation lives in calc and compliance.
type TemplateRules struct {
	KPIs          map[string]string  `json:"kpis,omitempty" yaml:"kpis,omitempty"`
	Thresholds    map[string]float64 `json:"thresholds,omitempty" yaml:"thresholds,omitempty"`
	PassCondition string             `json:"pass_condition,omitempty" yaml:"pass_condition,omitempty"`
	Remarks       string             `json:"remarks,omitempty" yaml:"remarks,omitempty"`
}

type Template struct {
	ID        int64          `json:"id"`
	Code      string         `json:"code" yaml:"code"`
	Name      string         `json:"name" yaml:"name"`
	TestType  string         `json:"test_type" yaml:"test_type"`
	Schema    TemplateSchema `json:"schema" yaml:"schema"`
	Rules     TemplateRules  `json:"rules" yaml:"rules"`
	IsActive  bool           `json:"is_active" yaml:"is_active"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// Row is one sample/row record keyed by column id. Values arrive as decoded
// JSON (float64, string, bool, nil).
type Row map[string]any

// Number returns the field as a finite float64. JSON numbers and numeric
// strings are accepted.
func (r Row) Number(field string) (float64, bool) {
	return ToNumber(r[field])
}

func ToNumber(v any) (float64, bool) {
	var f float64
	switch x := v.(type) {
	case float64:
		f = x
	case float32:
		f = float64(x)
	case int:
		f = float64(x)
	case int64:
		f = float64(x)
	case json.Number:
		var err error
		if f, err = x.Float64(); err != nil {
			return 0, false
		}
	case string:
		var err error
		if f, err = strconv.ParseFloat(strings.TrimSpace(x), 64); err != nil {
			return 0, false
		}
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
