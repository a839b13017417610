package testdef

import (
	"fmt"
	"strings"

	"cmt-backend/internal/aggregate"
	"cmt-backend/internal/calc"
	"cmt-backend/internal/compliance"
	"cmt-backend/internal/schema"
	"cmt-backend/internal/storage"
)

// Data is what one report-editing session collects for a definition.
type Data struct {
	Values          storage.Row   `json:"values"`
	Rows            []storage.Row `json:"rows,omitempty"`
	RetestConfirmed bool          `json:"retest_confirmed,omitempty"`
}

// FieldError locates a ValidationError in a step or a row.
type FieldError struct {
	Step string `json:"step,omitempty"`
	Row  *int   `json:"row,omitempty"`
	schema.ValidationError
}

// Summary is the computed result handed to persistence and export.
type Summary struct {
	Code           string                 `json:"code"`
	Name           string                 `json:"name"`
	Standard       string                 `json:"standard,omitempty"`
	Values         calc.Values            `json:"values"`
	Rows           []storage.Row          `json:"rows,omitempty"`
	Sieve          *aggregate.SieveResult `json:"sieve,omitempty"`
	CBR            *aggregate.CBRResult   `json:"cbr,omitempty"`
	Compliance     compliance.Result      `json:"compliance"`
	Classification string                 `json:"classification,omitempty"`
	Complete       bool                   `json:"complete"`
	Errors         []FieldError           `json:"errors,omitempty"`
	Skipped        []calc.Skip            `json:"skipped,omitempty"`
	Warnings       []string               `json:"warnings,omitempty"`
}

// Run executes the pipeline of def on data: step calculations with inputs
// accumulating across steps, row calculations, the row processor,
// definition-level calculations, compliance and classification.
func Run(engine *calc.Engine, def Definition, data Data) Summary {
	sum := Summary{Code: def.Code, Name: def.Name, Standard: def.Standard, Values: calc.Values{}}
	env := calc.Values{}
	var outputs []string

	merge := func(res calc.Result) {
		for _, name := range sortedNames(res.Outputs) {
			env[name] = res.Outputs[name]
			outputs = append(outputs, name)
		}
		sum.Skipped = append(sum.Skipped, res.Skipped...)
	}

	for _, st := range def.Steps {
		sch := st.Schema()
		for _, e := range schema.ValidateRow(sch, data.Values) {
			sum.Errors = append(sum.Errors, FieldError{Step: st.ID, ValidationError: e})
		}
		for k, v := range schema.NumericValues(sch, data.Values) {
			env[k] = v
		}
		merge(engine.Plan(st.Calculations).Run(env))
	}

	if def.Rows != nil {
		runRows(engine, def, data, env, &sum, merge)
	}

	merge(engine.Plan(def.Calculations).Run(env))

	sum.Complete = len(sum.Errors) == 0
	if sum.Complete {
		sum.Compliance = compliance.Evaluate(env, def.Thresholds, def.PassCondition)
	} else {
		sum.Compliance = compliance.Result{Status: compliance.StatusPending, Reason: "validation errors"}
	}

	if c := def.Classification; c != nil {
		if v, ok := env[c.Value]; ok {
			sum.Classification, _ = c.Classify(v)
		}
	}

	for _, name := range outputs {
		sum.Values[name] = calc.Round(env[name], def.decimals(name))
	}
	return sum
}

func runRows(engine *calc.Engine, def Definition, data Data, env calc.Values, sum *Summary, merge func(calc.Result)) {
	rs := def.Rows
	sch := rs.Schema()
	plan := engine.Plan(rs.Calculations)

	if len(data.Rows) < rs.MinRows {
		sum.Errors = append(sum.Errors, FieldError{ValidationError: schema.ValidationError{
			Field:   "rows",
			Reason:  schema.ReasonRequired,
			Message: fmt.Sprintf("at least %d rows are required", rs.MinRows),
		}})
	}

	computed := make([]storage.Row, 0, len(data.Rows))
	for i, row := range data.Rows {
		idx := i
		for _, e := range schema.ValidateRow(sch, row) {
			sum.Errors = append(sum.Errors, FieldError{Row: &idx, ValidationError: e})
		}
		rowEnv := env.Clone()
		for k, v := range schema.NumericValues(sch, row) {
			rowEnv[k] = v
		}
		res := plan.Run(rowEnv)
		out := make(storage.Row, len(row)+len(res.Outputs))
		for k, v := range row {
			out[k] = v
		}
		for k, v := range res.Outputs {
			out[k] = v
		}
		for _, s := range res.Skipped {
			s.Output = fmt.Sprintf("rows[%d].%s", i, s.Output)
			sum.Skipped = append(sum.Skipped, s)
		}
		computed = append(computed, out)
	}
	sum.Rows = computed

	switch rs.Processor {
	case ProcessorSieve:
		total := env[rs.TotalField]
		res, err := aggregate.SieveAnalysis(computed, total)
		if err != nil {
			sum.Warnings = append(sum.Warnings, err.Error())
			return
		}
		sum.Sieve = &res
		merge(calc.Result{Outputs: res.Values()})
	case ProcessorCBR:
		opts := rs.CBR
		opts.RetestConfirmed = data.RetestConfirmed
		res, err := aggregate.CBR(computed, opts)
		if err != nil {
			sum.Warnings = append(sum.Warnings, err.Error())
			return
		}
		sum.CBR = &res
		merge(calc.Result{Outputs: res.Values()})
	default:
		out := calc.Result{Outputs: calc.Values{}}
		for _, name := range sortedNames(rs.Aggregates) {
			spec := rs.Aggregates[name]
			var (
				v   float64
				ok  bool
				err error
			)
			if spec.Func == funcAtMax {
				v, ok = aggregate.ValueAtMax(computed, spec.Field, spec.By)
			} else {
				v, ok, err = aggregate.Apply(spec.Func, computed, spec.Field)
			}
			switch {
			case err != nil:
				sum.Warnings = append(sum.Warnings, fmt.Sprintf("%s: %v", name, err))
			case !ok:
				out.Skipped = append(out.Skipped, calc.Skip{
					Output: name,
					Reason: calc.SkipMissingVariable,
					Detail: "no row holds " + strings.TrimSpace(spec.Field),
				})
			default:
				out.Outputs[name] = v
			}
		}
		merge(out)
	}
}
