package testdef

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"cmt-backend/internal/calc"
	"cmt-backend/internal/schema"
	"cmt-backend/internal/storage"
)

//go:embed definitions/*.yaml
var builtin embed.FS

// Catalog is an immutable set of definitions keyed by code.
type Catalog struct {
	defs map[string]Definition
}

// Builtin loads the definitions shipped with the binary.
func Builtin() (*Catalog, error) {
	sub, err := fs.Sub(builtin, "definitions")
	if err != nil {
		return nil, err
	}
	return Load(sub)
}

// Load reads every *.yaml file at the root of fsys.
func Load(fsys fs.FS) (*Catalog, error) {
	const op = "testdef.Load"

	files, err := fs.Glob(fsys, "*.yaml")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	sort.Strings(files)

	c := &Catalog{defs: make(map[string]Definition, len(files))}
	for _, name := range files {
		raw, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, fmt.Errorf("%s: %s: %w", op, name, err)
		}
		def, err := Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("%s: %s: %w", op, path.Base(name), err)
		}
		if _, dup := c.defs[def.Code]; dup {
			return nil, fmt.Errorf("%s: %s: duplicate definition code %q", op, name, def.Code)
		}
		c.defs[def.Code] = def
	}
	return c, nil
}

// Parse decodes and checks one YAML definition.
func Parse(raw []byte) (Definition, error) {
	var def Definition
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&def); err != nil {
		return Definition{}, fmt.Errorf("decode: %w", err)
	}
	if err := Check(def); err != nil {
		return Definition{}, err
	}
	return def, nil
}

// Get returns the definition with code.
func (c *Catalog) Get(code string) (Definition, bool) {
	d, ok := c.defs[code]
	return d, ok
}

// List returns all definitions ordered by code.
func (c *Catalog) List() []Definition {
	out := make([]Definition, 0, len(c.defs))
	for _, code := range sortedNames(c.defs) {
		out = append(out, c.defs[code])
	}
	return out
}

// Check reports configuration errors in def: bad step schemas, validations on
// unknown fields, unparsable formulas and unknown row processors.
func Check(def Definition) error {
	var errs []error
	if strings.TrimSpace(def.Code) == "" {
		errs = append(errs, errors.New("code is required"))
	}
	if len(def.Steps) == 0 {
		errs = append(errs, errors.New("at least one step is required"))
	}

	seen := map[string]string{}
	checkFields := func(where string, fields []Field, validations map[string]Validation, s func() storage.TemplateSchema) {
		for _, se := range schema.ValidateSchema(s()) {
			errs = append(errs, fmt.Errorf("%s: %w", where, se))
		}
		ids := map[string]bool{}
		for _, f := range fields {
			ids[f.ID] = true
			if prev, ok := seen[f.ID]; ok && where != "rows" {
				errs = append(errs, fmt.Errorf("%s: field %q already defined in %s", where, f.ID, prev))
			}
			if where != "rows" {
				seen[f.ID] = where
			}
		}
		for _, id := range sortedNames(validations) {
			if !ids[id] {
				errs = append(errs, fmt.Errorf("%s: validation for unknown field %q", where, id))
			}
		}
	}
	checkFormulas := func(where string, calcs map[string]string) {
		for _, name := range sortedNames(calcs) {
			if _, err := calc.ParseFormula(calcs[name]); err != nil {
				errs = append(errs, fmt.Errorf("%s.%s: %w", where, name, err))
			}
		}
	}

	for _, st := range def.Steps {
		where := "steps." + st.ID
		checkFields(where, st.Fields, st.Validations, st.Schema)
		checkFormulas(where, st.Calculations)
	}
	if r := def.Rows; r != nil {
		checkFields("rows", r.Fields, r.Validations, r.Schema)
		checkFormulas("rows", r.Calculations)
		switch r.Processor {
		case "", ProcessorAggregate, ProcessorSieve, ProcessorCBR:
		default:
			errs = append(errs, fmt.Errorf("rows: unknown processor %q", r.Processor))
		}
	}
	checkFormulas("calculations", def.Calculations)
	if def.PassCondition != "" {
		if _, err := calc.ParseCondition(def.PassCondition); err != nil {
			errs = append(errs, fmt.Errorf("pass_condition: %w", err))
		}
	}
	return errors.Join(errs...)
}
