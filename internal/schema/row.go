package schema

import (
	"fmt"
	"strings"
	"time"

	"cmt-backend/internal/calc"
	"cmt-backend/internal/storage"
)

var dateLayouts = []string{"2006-01-02", time.RFC3339}

// ValidateRow checks row against s and returns every violation in column order.
// Keys that are not columns (calculated outputs, UI state) are ignored.
func ValidateRow(s storage.TemplateSchema, row storage.Row) []ValidationError {
	var errs []ValidationError
	for _, c := range s.Columns {
		v, present := row[c.ID]
		if isEmpty(v, present) {
			if s.IsRequired(c.ID) {
				errs = append(errs, ValidationError{Field: c.ID, Reason: ReasonRequired, Message: "value is required"})
			}
			continue
		}
		if e, bad := checkValue(c, v); bad {
			errs = append(errs, e)
		}
	}
	return errs
}

func isEmpty(v any, present bool) bool {
	if !present || v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && strings.TrimSpace(s) == ""
}

func checkValue(c storage.TemplateColumn, v any) (ValidationError, bool) {
	mismatch := func(want string) (ValidationError, bool) {
		return ValidationError{Field: c.ID, Reason: ReasonTypeMismatch, Message: fmt.Sprintf("expected %s, got %T", want, v)}, true
	}

	switch c.Type {
	case storage.ColumnNumber:
		f, ok := storage.ToNumber(v)
		if !ok {
			return mismatch("a number")
		}
		if (c.Min != nil && f < *c.Min) || (c.Max != nil && f > *c.Max) {
			return ValidationError{Field: c.ID, Reason: ReasonOutOfRange, Message: boundsMessage(c)}, true
		}
	case storage.ColumnSelect:
		str, ok := v.(string)
		if !ok {
			return mismatch("one of the options")
		}
		for _, o := range c.Options {
			if o == str {
				return ValidationError{}, false
			}
		}
		return ValidationError{Field: c.ID, Reason: ReasonInvalidOption, Message: fmt.Sprintf("%q is not an option", str)}, true
	case storage.ColumnDate:
		str, ok := v.(string)
		if !ok {
			return mismatch("a date")
		}
		for _, layout := range dateLayouts {
			if _, err := time.Parse(layout, strings.TrimSpace(str)); err == nil {
				return ValidationError{}, false
			}
		}
		return mismatch("a date (YYYY-MM-DD)")
	default:
		switch v.(type) {
		case string, float64:
		default:
			return mismatch("text")
		}
	}
	return ValidationError{}, false
}

func boundsMessage(c storage.TemplateColumn) string {
	switch {
	case c.Min != nil && c.Max != nil:
		return fmt.Sprintf("must be between %g and %g", *c.Min, *c.Max)
	case c.Min != nil:
		return fmt.Sprintf("must be at least %g", *c.Min)
	default:
		return fmt.Sprintf("must be at most %g", *c.Max)
	}
}

// NumericValues extracts the number columns of row that hold a valid number.
func NumericValues(s storage.TemplateSchema, row storage.Row) calc.Values {
	values := calc.Values{}
	for _, c := range s.Columns {
		if c.Type != storage.ColumnNumber {
			continue
		}
		if f, ok := row.Number(c.ID); ok {
			values[c.ID] = f
		}
	}
	return values
}

// EvaluateKPIs computes the template KPIs for one row. Thresholds are visible
// to KPI formulas; a column value wins over a threshold of the same name.
func EvaluateKPIs(engine *calc.Engine, t storage.Template, row storage.Row) calc.Result {
	env := calc.Values{}
	for name, v := range t.Rules.Thresholds {
		env[name] = v
	}
	for name, v := range NumericValues(t.Schema, row) {
		env[name] = v
	}
	plan := engine.PlanNodes(t.Rules.KPIs, func(n *calc.Node) *calc.Node {
		return calc.ExpandRanges(n, t.Schema.NamedRanges)
	})
	return plan.Run(env)
}
