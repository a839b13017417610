// Package schema checks template definitions and the rows entered against them.
package schema

import (
	"fmt"
	"sort"
	"strings"

	"cmt-backend/internal/calc"
	"cmt-backend/internal/storage"
)

var columnTypes = map[storage.ColumnType]bool{
	storage.ColumnText:   true,
	storage.ColumnNumber: true,
	storage.ColumnSelect: true,
	storage.ColumnDate:   true,
}

// ValidateSchema reports every structural problem of s. An empty result means
// the schema can be saved.
func ValidateSchema(s storage.TemplateSchema) []SchemaError {
	var errs []SchemaError
	add := func(path, format string, args ...any) {
		errs = append(errs, SchemaError{Path: path, Message: fmt.Sprintf(format, args...)})
	}

	ids := make(map[string]storage.ColumnType, len(s.Columns))
	for i, c := range s.Columns {
		path := fmt.Sprintf("columns[%d]", i)
		switch {
		case strings.TrimSpace(c.ID) == "":
			add(path+".id", "column id is empty")
		case hasID(ids, c.ID):
			add(path+".id", "duplicate column id %q", c.ID)
		default:
			ids[c.ID] = c.Type
		}

		if !columnTypes[c.Type] {
			add(path+".type", "unknown column type %q", c.Type)
		}
		if c.Type == storage.ColumnSelect && len(c.Options) == 0 {
			add(path+".options", "select column %q has no options", c.ID)
		}
		if c.Type != storage.ColumnSelect && len(c.Options) > 0 {
			add(path+".options", "options are only allowed on select columns")
		}
		if c.Min != nil && c.Max != nil && *c.Min > *c.Max {
			add(path, "min %g is greater than max %g", *c.Min, *c.Max)
		}
		if c.Decimals != nil && *c.Decimals < 0 {
			add(path+".decimals", "decimals must not be negative")
		}
	}

	for i, id := range s.Locked {
		if _, ok := ids[id]; !ok {
			add(fmt.Sprintf("locked[%d]", i), "unknown column id %q", id)
		}
	}
	for i, id := range s.Required {
		if _, ok := ids[id]; !ok {
			add(fmt.Sprintf("required[%d]", i), "unknown column id %q", id)
		}
	}

	names := make([]string, 0, len(s.NamedRanges))
	for name := range s.NamedRanges {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		path := "named_ranges." + name
		if _, clash := ids[name]; clash {
			add(path, "range name shadows a column id")
		}
		members := s.NamedRanges[name]
		if len(members) == 0 {
			add(path, "range is empty")
		}
		for _, id := range members {
			typ, ok := ids[id]
			switch {
			case !ok:
				add(path, "unknown column id %q", id)
			case typ != storage.ColumnNumber:
				add(path, "column %q is not a number column", id)
			}
		}
	}
	return errs
}

func hasID(ids map[string]storage.ColumnType, id string) bool {
	_, ok := ids[id]
	return ok
}

// ValidateRules checks that every KPI formula and the pass condition parse and
// reference only number columns, other KPIs, thresholds or named ranges.
func ValidateRules(s storage.TemplateSchema, r storage.TemplateRules) []SchemaError {
	var errs []SchemaError
	add := func(path, format string, args ...any) {
		errs = append(errs, SchemaError{Path: path, Message: fmt.Sprintf(format, args...)})
	}

	known := map[string]bool{}
	columns := map[string]bool{}
	for _, c := range s.Columns {
		columns[c.ID] = true
		if c.Type == storage.ColumnNumber {
			known[c.ID] = true
		}
	}
	for name := range r.Thresholds {
		known[name] = true
	}
	for name := range r.KPIs {
		known[name] = true
	}

	kpiNames := make([]string, 0, len(r.KPIs))
	for name := range r.KPIs {
		kpiNames = append(kpiNames, name)
	}
	sort.Strings(kpiNames)

	for _, name := range kpiNames {
		path := "kpis." + name
		if columns[name] {
			add(path, "KPI name shadows a column id")
		}
		if _, ok := r.Thresholds[name]; ok {
			add(path, "KPI name shadows a threshold")
		}
		node, err := calc.ParseFormula(r.KPIs[name])
		if err != nil {
			add(path, "%v", err)
			continue
		}
		node = calc.ExpandRanges(node, s.NamedRanges)
		for _, v := range calc.Variables(node) {
			if v == name {
				add(path, "KPI references itself")
				continue
			}
			if !known[v] {
				add(path, "unknown identifier %q", v)
			}
		}
	}

	if cycle := calc.New(nil).Plan(r.KPIs).Cycle(); len(cycle) > 0 {
		add("kpis", "reference cycle between %s", strings.Join(cycle, ", "))
	}

	if strings.TrimSpace(r.PassCondition) != "" {
		node, err := calc.ParseCondition(r.PassCondition)
		if err != nil {
			add("pass_condition", "%v", err)
		} else {
			for _, v := range calc.Variables(calc.ExpandRanges(node, s.NamedRanges)) {
				if !known[v] {
					add("pass_condition", "unknown identifier %q", v)
				}
			}
		}
	}
	return errs
}

// ValidateTemplate runs ValidateSchema and ValidateRules on t.
func ValidateTemplate(t storage.Template) []SchemaError {
	var errs []SchemaError
	if strings.TrimSpace(t.Code) == "" {
		errs = append(errs, SchemaError{Path: "code", Message: "code is required"})
	}
	if strings.TrimSpace(t.Name) == "" {
		errs = append(errs, SchemaError{Path: "name", Message: "name is required"})
	}
	errs = append(errs, ValidateSchema(t.Schema)...)
	errs = append(errs, ValidateRules(t.Schema, t.Rules)...)
	return errs
}
