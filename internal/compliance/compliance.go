// Package compliance decides pass/fail/pending for computed KPIs.
package compliance

import (
	"fmt"
	"sort"
	"strings"

	"cmt-backend/internal/calc"
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusComputed Status = "computed"
	StatusPass     Status = "pass"
	StatusFail     Status = "fail"
)

type Result struct {
	Status  Status   `json:"status"`
	Reason  string   `json:"reason,omitempty"`
	Missing []string `json:"missing,omitempty"`
}

const (
	minPrefix = "min_"
	maxPrefix = "max_"
)

// EvaluateCompliance is Evaluate without the explanation.
func EvaluateCompliance(kpis, thresholds calc.Values, condition string) Status {
	return Evaluate(kpis, thresholds, condition).Status
}

// Evaluate checks condition against kpis and thresholds. A KPI shadows a
// threshold of the same name. An empty condition falls back to the min_<kpi>
// and max_<kpi> thresholds.
func Evaluate(kpis, thresholds calc.Values, condition string) Result {
	env := thresholds.Clone()
	for k, v := range kpis {
		env[k] = v
	}

	condition = strings.TrimSpace(condition)
	if condition == "" {
		condition = ImplicitCondition(thresholds)
		if condition == "" {
			return Result{Status: StatusPending, Reason: "no pass condition"}
		}
	}

	node, err := calc.ParseCondition(condition)
	if err != nil {
		return Result{Status: StatusPending, Reason: fmt.Sprintf("invalid pass condition: %v", err)}
	}

	var missing []string
	for _, v := range calc.Variables(node) {
		if _, ok := env[v]; !ok {
			missing = append(missing, v)
		}
	}
	if len(missing) > 0 {
		return Result{
			Status:  StatusPending,
			Reason:  "missing values: " + strings.Join(missing, ", "),
			Missing: missing,
		}
	}

	ok, err := calc.EvaluateCondition(node, env)
	if err != nil {
		return Result{Status: StatusPending, Reason: err.Error()}
	}
	if ok {
		return Result{Status: StatusPass, Reason: "all conditions met"}
	}
	return Result{Status: StatusFail, Reason: strings.Join(explain(node, env), "; ")}
}

// ImplicitCondition builds "kpi >= min_kpi && kpi <= max_kpi ..." from the
// threshold names. It returns "" when no threshold follows the convention.
func ImplicitCondition(thresholds calc.Values) string {
	names := make([]string, 0, len(thresholds))
	for name := range thresholds {
		names = append(names, name)
	}
	sort.Strings(names)

	var parts []string
	for _, name := range names {
		switch {
		case strings.HasPrefix(name, minPrefix) && len(name) > len(minPrefix):
			parts = append(parts, name[len(minPrefix):]+" >= "+name)
		case strings.HasPrefix(name, maxPrefix) && len(name) > len(maxPrefix):
			parts = append(parts, name[len(maxPrefix):]+" <= "+name)
		}
	}
	return strings.Join(parts, " && ")
}

// explain lists the comparisons that made a false node false.
func explain(n *calc.Node, env calc.Values) []string {
	switch n.Op {
	case calc.OpAnd, calc.OpOr:
		var out []string
		for _, side := range []*calc.Node{n.Left, n.Right} {
			if ok, err := calc.EvaluateCondition(side, env); err == nil && !ok {
				out = append(out, explain(side, env)...)
			}
		}
		return out
	case calc.OpNot:
		return []string{"!(" + n.Left.String() + ")"}
	}
	l, _ := calc.Evaluate(n.Left, env)
	r, _ := calc.Evaluate(n.Right, env)
	return []string{fmt.Sprintf("%s %s %s (%g %s %g)", n.Left, n.Op, n.Right, l, n.Op, r)}
}
