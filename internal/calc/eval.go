package calc

import (
	"errors"
	"fmt"
	"math"
)

// Values holds named numeric inputs or outputs.
type Values map[string]float64

// Clone returns a shallow copy.
func (v Values) Clone() Values {
	out := make(Values, len(v))
	for k, x := range v {
		out[k] = x
	}
	return out
}

var (
	ErrMissingVariable = errors.New("missing variable")
	ErrDivisionByZero  = errors.New("division by zero")
	ErrNonFinite       = errors.New("non-finite result")
)

// MissingVariableError names the identifier that had no value.
type MissingVariableError struct {
	Name string
}

func (e *MissingVariableError) Error() string { return "missing variable " + e.Name }

func (e *MissingVariableError) Unwrap() error { return ErrMissingVariable }

type function struct {
	minArgs int
	maxArgs int // -1 = variadic
	apply   func(args []float64) float64
}

var functions = map[string]function{
	"min": {minArgs: 1, maxArgs: -1, apply: func(a []float64) float64 {
		m := a[0]
		for _, x := range a[1:] {
			m = math.Min(m, x)
		}
		return m
	}},
	"max": {minArgs: 1, maxArgs: -1, apply: func(a []float64) float64 {
		m := a[0]
		for _, x := range a[1:] {
			m = math.Max(m, x)
		}
		return m
	}},
	"sum": {minArgs: 1, maxArgs: -1, apply: func(a []float64) float64 {
		s := 0.0
		for _, x := range a {
			s += x
		}
		return s
	}},
	"avg": {minArgs: 1, maxArgs: -1, apply: func(a []float64) float64 {
		s := 0.0
		for _, x := range a {
			s += x
		}
		return s / float64(len(a))
	}},
	"abs":  {minArgs: 1, maxArgs: 1, apply: func(a []float64) float64 { return math.Abs(a[0]) }},
	"sqrt": {minArgs: 1, maxArgs: 1, apply: func(a []float64) float64 { return math.Sqrt(a[0]) }},
	"pow":  {minArgs: 2, maxArgs: 2, apply: func(a []float64) float64 { return math.Pow(a[0], a[1]) }},
}

// Evaluate computes an arithmetic node. The result is always finite when err is nil.
func Evaluate(n *Node, values Values) (float64, error) {
	v, err := eval(n, values)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, ErrNonFinite
	}
	return v, nil
}

func eval(n *Node, values Values) (float64, error) {
	if n == nil {
		return 0, errors.New("nil node")
	}
	switch n.Op {
	case OpNumber:
		return n.Value, nil
	case OpVar:
		v, ok := values[n.Name]
		if !ok {
			return 0, &MissingVariableError{Name: n.Name}
		}
		return v, nil
	case OpNeg:
		v, err := eval(n.Left, values)
		return -v, err
	case OpCall:
		fn, ok := functions[n.Name]
		if !ok {
			return 0, fmt.Errorf("unknown function %q", n.Name)
		}
		args := make([]float64, len(n.Args))
		for i, a := range n.Args {
			v, err := eval(a, values)
			if err != nil {
				return 0, err
			}
			args[i] = v
		}
		r := fn.apply(args)
		if math.IsNaN(r) || math.IsInf(r, 0) {
			return 0, ErrNonFinite
		}
		return r, nil
	}
	if !arithmeticOps[n.Op] {
		return 0, fmt.Errorf("operator %q is not arithmetic", n.Op)
	}
	l, err := eval(n.Left, values)
	if err != nil {
		return 0, err
	}
	r, err := eval(n.Right, values)
	if err != nil {
		return 0, err
	}
	switch n.Op {
	case "+":
		return l + r, nil
	case "-":
		return l - r, nil
	case "*":
		return l * r, nil
	default:
		if r == 0 {
			return 0, ErrDivisionByZero
		}
		return l / r, nil
	}
}

// EvaluateCondition computes a boolean node.
func EvaluateCondition(n *Node, values Values) (bool, error) {
	if n == nil {
		return false, errors.New("nil node")
	}
	switch n.Op {
	case OpNot:
		v, err := EvaluateCondition(n.Left, values)
		return !v, err
	case OpAnd:
		l, err := EvaluateCondition(n.Left, values)
		if err != nil {
			return false, err
		}
		r, err := EvaluateCondition(n.Right, values)
		if err != nil {
			return false, err
		}
		return l && r, nil
	case OpOr:
		l, err := EvaluateCondition(n.Left, values)
		if err != nil {
			return false, err
		}
		r, err := EvaluateCondition(n.Right, values)
		if err != nil {
			return false, err
		}
		return l || r, nil
	}
	if !comparisonOps[n.Op] {
		return false, fmt.Errorf("operator %q is not boolean", n.Op)
	}
	l, err := Evaluate(n.Left, values)
	if err != nil {
		return false, err
	}
	r, err := Evaluate(n.Right, values)
	if err != nil {
		return false, err
	}
	return compare(n.Op, l, r), nil
}

func compare(op string, l, r float64) bool {
	switch op {
	case "<":
		return l < r
	case "<=":
		return l <= r
	case ">":
		return l > r
	case ">=":
		return l >= r
	case "==":
		return l == r
	default:
		return l != r
	}
}

// Round applies display precision. It is never used during evaluation.
func Round(v float64, decimals int) float64 {
	if decimals < 0 {
		return v
	}
	p := math.Pow(10, float64(decimals))
	return math.Round(v*p) / p
}
