package calc

import (
	"errors"
	"log/slog"
	"sort"
)

// SkipReason explains why an output was left blank.
type SkipReason string

const (
	SkipMissingVariable SkipReason = "missing_variable"
	SkipInvalidFormula  SkipReason = "invalid_formula"
	SkipDivisionByZero  SkipReason = "division_by_zero"
	SkipNonFinite       SkipReason = "non_finite"
	SkipCycle           SkipReason = "cycle"
)

// Skip records an output that was not produced. It is an outcome, not a failure.
type Skip struct {
	Output string     `json:"output"`
	Reason SkipReason `json:"reason"`
	Detail string     `json:"detail,omitempty"`
}

// Result of evaluating a set of formulas.
type Result struct {
	Outputs Values `json:"outputs"`
	Skipped []Skip `json:"skipped,omitempty"`
}

// Engine evaluates formulas and reports skips on its logger.
type Engine struct {
	log *slog.Logger
}

func New(log *slog.Logger) *Engine {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Engine{log: log}
}

var defaultEngine = New(nil)

// Calculate evaluates one formula against values. ok is false when the output
// must stay blank (missing input, unsafe text, division by zero, NaN/Inf).
func Calculate(formula string, values Values) (float64, bool) {
	return defaultEngine.Calculate(formula, values)
}

func (e *Engine) Calculate(formula string, values Values) (float64, bool) {
	v, skip := e.evaluate("", formula, values)
	return v, skip == nil
}

// Evaluate is Calculate with the skip reason exposed.
func (e *Engine) Evaluate(formula string, values Values) (float64, *Skip) {
	return e.evaluate("", formula, values)
}

func (e *Engine) evaluate(output, formula string, values Values) (float64, *Skip) {
	node, err := ParseFormula(formula)
	if err != nil {
		s := &Skip{Output: output, Reason: SkipInvalidFormula, Detail: err.Error()}
		e.log.Warn("formula rejected", slog.String("op", "calc.Evaluate"),
			slog.String("output", output), slog.String("formula", formula), slog.String("error", err.Error()))
		return 0, s
	}
	return e.evaluateNode(output, node, values)
}

func (e *Engine) evaluateNode(output string, node *Node, values Values) (float64, *Skip) {
	v, err := Evaluate(node, values)
	if err == nil {
		return v, nil
	}
	s := &Skip{Output: output, Reason: reasonFor(err), Detail: err.Error()}
	e.log.Debug("calculation skipped", slog.String("op", "calc.Evaluate"),
		slog.String("output", output), slog.String("reason", string(s.Reason)), slog.String("detail", s.Detail))
	return 0, s
}

func reasonFor(err error) SkipReason {
	switch {
	case errors.Is(err, ErrMissingVariable):
		return SkipMissingVariable
	case errors.Is(err, ErrDivisionByZero):
		return SkipDivisionByZero
	case errors.Is(err, ErrNonFinite):
		return SkipNonFinite
	default:
		return SkipInvalidFormula
	}
}

// EvaluateEach runs every formula independently against inputs only; outputs
// never feed each other within the pass.
func (e *Engine) EvaluateEach(calcs map[string]string, inputs Values) Result {
	res := Result{Outputs: Values{}}
	for _, name := range sortedKeys(calcs) {
		v, skip := e.evaluate(name, calcs[name], inputs)
		if skip != nil {
			res.Skipped = append(res.Skipped, *skip)
			continue
		}
		res.Outputs[name] = v
	}
	return res
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
