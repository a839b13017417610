package calc

import (
	"log/slog"
	"sort"
)

type planStep struct {
	name     string
	formula  string
	node     *Node
	parseErr error
	cyclic   bool
}

// Plan is a set of named formulas ordered so that every output is evaluated
// after the outputs it references.
type Plan struct {
	engine *Engine
	steps  []planStep
	cycle  []string
}

// Plan parses calcs and orders them by reference. Formulas that fail to parse
// stay in the plan and are reported as skips when run; outputs on a reference
// cycle are skipped with SkipCycle.
func (e *Engine) Plan(calcs map[string]string) *Plan {
	return e.PlanNodes(calcs, nil)
}

// PlanNodes is Plan with a rewrite applied to each parsed node (used to expand
// named ranges before ordering).
func (e *Engine) PlanNodes(calcs map[string]string, rewrite func(*Node) *Node) *Plan {
	byName := make(map[string]*planStep, len(calcs))
	names := sortedKeys(calcs)
	for _, name := range names {
		st := &planStep{name: name, formula: calcs[name]}
		st.node, st.parseErr = ParseFormula(calcs[name])
		if st.parseErr == nil && rewrite != nil {
			st.node = rewrite(st.node)
		}
		byName[name] = st
	}

	deps := make(map[string][]string, len(names))
	for _, name := range names {
		st := byName[name]
		if st.node == nil {
			continue
		}
		for _, v := range Variables(st.node) {
			if v != name && byName[v] != nil {
				deps[name] = append(deps[name], v)
			}
		}
		sort.Strings(deps[name])
	}

	p := &Plan{engine: e}
	for _, scc := range stronglyConnected(names, deps) {
		if len(scc) > 1 {
			for _, n := range scc {
				byName[n].cyclic = true
				p.cycle = append(p.cycle, n)
			}
		}
	}
	sort.Strings(p.cycle)

	visited := make(map[string]bool, len(names))
	var visit func(string)
	visit = func(name string) {
		if visited[name] {
			return
		}
		visited[name] = true
		for _, d := range deps[name] {
			if !byName[d].cyclic {
				visit(d)
			}
		}
		p.steps = append(p.steps, *byName[name])
	}
	for _, name := range names {
		visit(name)
	}
	return p
}

// Order returns output names in evaluation order.
func (p *Plan) Order() []string {
	out := make([]string, len(p.steps))
	for i, s := range p.steps {
		out[i] = s.name
	}
	return out
}

// Cycle returns the outputs that reference each other in a loop.
func (p *Plan) Cycle() []string { return p.cycle }

// Run evaluates the plan. Each successful output joins the environment of the
// formulas after it; a skipped output is removed from it so dependents skip too.
// inputs is not modified.
func (p *Plan) Run(inputs Values) Result {
	env := inputs.Clone()
	res := Result{Outputs: Values{}}
	for _, st := range p.steps {
		var skip *Skip
		var v float64
		switch {
		case st.cyclic:
			skip = &Skip{Output: st.name, Reason: SkipCycle, Detail: "reference cycle"}
			p.engine.log.Warn("formula on reference cycle", slog.String("op", "calc.Plan.Run"), slog.String("output", st.name))
		case st.parseErr != nil:
			skip = &Skip{Output: st.name, Reason: SkipInvalidFormula, Detail: st.parseErr.Error()}
			p.engine.log.Warn("formula rejected", slog.String("op", "calc.Plan.Run"),
				slog.String("output", st.name), slog.String("formula", st.formula), slog.String("error", st.parseErr.Error()))
		default:
			v, skip = p.engine.evaluateNode(st.name, st.node, env)
		}
		if skip != nil {
			delete(env, st.name)
			res.Skipped = append(res.Skipped, *skip)
			continue
		}
		env[st.name] = v
		res.Outputs[st.name] = v
	}
	return res
}

// stronglyConnected is Tarjan's algorithm over the reference graph.
func stronglyConnected(names []string, deps map[string][]string) [][]string {
	index := 0
	indices := map[string]int{}
	low := map[string]int{}
	onStack := map[string]bool{}
	var stack []string
	var out [][]string

	var connect func(string)
	connect = func(v string) {
		indices[v] = index
		low[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true
		for _, w := range deps[v] {
			if _, seen := indices[w]; !seen {
				connect(w)
				low[v] = min(low[v], low[w])
			} else if onStack[w] {
				low[v] = min(low[v], indices[w])
			}
		}
		if low[v] == indices[v] {
			var scc []string
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			out = append(out, scc)
		}
	}
	for _, n := range names {
		if _, seen := indices[n]; !seen {
			connect(n)
		}
	}
	return out
}
