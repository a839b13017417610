package calc

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculate_Deterministic(t *testing.T) {
	values := Values{"a": 3, "b": 4}
	v1, ok1 := Calculate("sqrt(a*a + b*b) / 2", values)
	v2, ok2 := Calculate("sqrt(a*a + b*b) / 2", values)
	assert.True(t, ok1)
	assert.Equal(t, ok1, ok2)
	assert.Equal(t, v1, v2)
	assert.Equal(t, 2.5, v1)

	_, ok1 = Calculate("a + c", values)
	_, ok2 = Calculate("a + c", values)
	assert.False(t, ok1)
	assert.False(t, ok2)
}

func TestCalculate_MissingVariable(t *testing.T) {
	v, ok := Calculate("a + b", Values{"a": 1})
	assert.False(t, ok)
	assert.Zero(t, v)

	_, skip := New(nil).Evaluate("a + b", Values{"a": 1})
	require.NotNil(t, skip)
	assert.Equal(t, SkipMissingVariable, skip.Reason)
	assert.Contains(t, skip.Detail, "b")
}

func TestCalculate_DivisionByZero(t *testing.T) {
	_, ok := Calculate("a / b", Values{"a": 1, "b": 0})
	assert.False(t, ok)

	_, skip := New(nil).Evaluate("a / (b - b)", Values{"a": 1, "b": 7})
	require.NotNil(t, skip)
	assert.Equal(t, SkipDivisionByZero, skip.Reason)
}

func TestCalculate_NonFinite(t *testing.T) {
	_, skip := New(nil).Evaluate("sqrt(a)", Values{"a": -4})
	require.NotNil(t, skip)
	assert.Equal(t, SkipNonFinite, skip.Reason)
}

func TestCalculate_Precedence(t *testing.T) {
	tests := []struct {
		formula string
		want    float64
	}{
		{"1 + 2 * 3", 7},
		{"(1 + 2) * 3", 9},
		{"10 - 4 - 3", 3},
		{"100 / 10 / 2", 5},
		{"-a + 5", 2},
		{"-(a * 2)", -6},
		{"min(a, 10, 1.5)", 1.5},
		{"max(a, 10)", 10},
		{"abs(0 - a)", 3},
		{"pow(a, 2)", 9},
		{"avg(a, 5, 7)", 5},
		{"sum(a, a, a)", 9},
	}
	for _, tt := range tests {
		t.Run(tt.formula, func(t *testing.T) {
			v, ok := Calculate(tt.formula, Values{"a": 3})
			require.True(t, ok)
			assert.InDelta(t, tt.want, v, 1e-9)
		})
	}
}

func TestCalculate_UnsafeTextRejected(t *testing.T) {
	var buf bytes.Buffer
	engine := New(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))

	for _, formula := range []string{
		"a; alert(1)",
		"a + `b`",
		"process.exit(1)",
		"a = 5",
		"1.2.3 + a",
		"a +",
		"(a + 1",
		"a + 1)",
		"unknown_fn(a)",
		"a > 1",
		"",
	} {
		_, skip := engine.Evaluate(formula, Values{"a": 1})
		require.NotNil(t, skip, formula)
		assert.Equal(t, SkipInvalidFormula, skip.Reason, formula)
	}
	assert.Contains(t, buf.String(), "formula rejected")
}

func TestCalculate_WholeIdentifierMatch(t *testing.T) {
	// "dry" must not match inside "dry_density".
	v, ok := Calculate("dry_density - dry", Values{"dry": 1, "dry_density": 1900})
	require.True(t, ok)
	assert.Equal(t, 1899.0, v)

	// identifiers are case-sensitive
	_, ok = Calculate("Mass * 2", Values{"mass": 1})
	assert.False(t, ok)
}

func TestFieldDensityScenario(t *testing.T) {
	engine := New(nil)
	plan := engine.Plan(map[string]string{
		"field_dry_density": "field_wet_density / (1 + field_moisture / 100)",
		"degree_compaction": "(field_dry_density / max_dry_density) * 100",
	})
	assert.Equal(t, []string{"field_dry_density", "degree_compaction"}, plan.Order())

	res := plan.Run(Values{"field_wet_density": 2200, "field_moisture": 12, "max_dry_density": 2000})
	require.Empty(t, res.Skipped)
	assert.InDelta(t, 1964.29, res.Outputs["field_dry_density"], 0.01)
	assert.InDelta(t, 98.21, res.Outputs["degree_compaction"], 0.01)
}

func TestEvaluateEach_DoesNotChain(t *testing.T) {
	engine := New(nil)
	calcs := map[string]string{
		"wet_density": "wet_mass / volume",
		"dry_density": "wet_density / (1 + moisture / 100)",
	}
	inputs := Values{"wet_mass": 4400, "volume": 2, "moisture": 10}

	single := engine.EvaluateEach(calcs, inputs)
	assert.InDelta(t, 2200, single.Outputs["wet_density"], 1e-9)
	assert.NotContains(t, single.Outputs, "dry_density")
	require.Len(t, single.Skipped, 1)
	assert.Equal(t, "dry_density", single.Skipped[0].Output)

	// explicit second pass after merging outputs
	merged := inputs.Clone()
	for k, v := range single.Outputs {
		merged[k] = v
	}
	second := engine.EvaluateEach(calcs, merged)
	assert.InDelta(t, 2000, second.Outputs["dry_density"], 1e-9)

	// the plan does the same in one run
	planned := engine.Plan(calcs).Run(inputs)
	assert.InDelta(t, 2000, planned.Outputs["dry_density"], 1e-9)
	assert.NotContains(t, inputs, "wet_density", "inputs must not be mutated")
}

func TestPlan_FailedUpstreamSkipsDependents(t *testing.T) {
	res := New(nil).Plan(map[string]string{
		"ratio":   "a / b",
		"percent": "ratio * 100",
	}).Run(Values{"a": 1, "b": 0, "ratio": 0.7})

	assert.Empty(t, res.Outputs)
	require.Len(t, res.Skipped, 2)
	assert.Equal(t, SkipDivisionByZero, res.Skipped[0].Reason)
	assert.Equal(t, SkipMissingVariable, res.Skipped[1].Reason)
}

func TestPlan_Cycle(t *testing.T) {
	plan := New(nil).Plan(map[string]string{
		"x": "y + 1",
		"y": "x + 1",
		"z": "a * 2",
	})
	assert.Equal(t, []string{"x", "y"}, plan.Cycle())

	res := plan.Run(Values{"a": 2})
	assert.Equal(t, Values{"z": 4}, res.Outputs)
	require.Len(t, res.Skipped, 2)
	for _, s := range res.Skipped {
		assert.Equal(t, SkipCycle, s.Reason)
	}
}

func TestPlan_SelfReferenceReadsInput(t *testing.T) {
	res := New(nil).Plan(map[string]string{"load": "load * 9.81"}).Run(Values{"load": 10})
	assert.InDelta(t, 98.1, res.Outputs["load"], 1e-9)
}

func TestEvaluateCondition(t *testing.T) {
	values := Values{"degree_compaction": 98.21, "min_compaction": 95, "moisture": 12}
	tests := []struct {
		cond string
		want bool
	}{
		{"degree_compaction >= min_compaction", true},
		{"degree_compaction < min_compaction", false},
		{"degree_compaction >= 95 && moisture <= 10", false},
		{"degree_compaction >= 95 and moisture <= 15", true},
		{"degree_compaction >= 99 || moisture == 12", true},
		{"not (moisture != 12)", true},
		{"!(degree_compaction > 100)", true},
		{"(degree_compaction - min_compaction) * 2 > 6", true},
	}
	for _, tt := range tests {
		t.Run(tt.cond, func(t *testing.T) {
			node, err := ParseCondition(tt.cond)
			require.NoError(t, err)
			got, err := EvaluateCondition(node, values)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseCondition_Invalid(t *testing.T) {
	for _, cond := range []string{
		"a + b",
		"a > b > c",
		"(a > 1) + 2",
		"a && b",
		"a >= ",
	} {
		_, err := ParseCondition(cond)
		assert.ErrorIs(t, err, ErrInvalidFormula, cond)
	}
}

func TestVariablesAndString(t *testing.T) {
	node, err := ParseFormula("(passing / total) * 100 + passing")
	require.NoError(t, err)
	assert.Equal(t, []string{"passing", "total"}, Variables(node))
	assert.Equal(t, "((passing / total) * 100) + passing", node.String())
}

func TestExpandRanges(t *testing.T) {
	node, err := ParseFormula("sum(readings) / 3 + max(readings)")
	require.NoError(t, err)
	expanded := ExpandRanges(node, map[string][]string{"readings": {"r1", "r2", "r3"}})

	assert.Equal(t, []string{"readings"}, Variables(node), "original tree untouched")
	assert.Equal(t, []string{"r1", "r2", "r3"}, Variables(expanded))

	v, err := Evaluate(expanded, Values{"r1": 3, "r2": 6, "r3": 9})
	require.NoError(t, err)
	assert.InDelta(t, 15, v, 1e-9)
}

func TestRound(t *testing.T) {
	assert.Equal(t, 1964.29, Round(2200/1.12, 2))
	assert.Equal(t, 102.2, Round(102.189, 1))
	assert.Equal(t, 3.14159, Round(3.14159, -1))
}

func TestParse_NestingLimit(t *testing.T) {
	nested := func(n int) string {
		return strings.Repeat("(", n) + "a" + strings.Repeat(")", n)
	}

	v, ok := Calculate(nested(maxDepth), Values{"a": 3})
	require.True(t, ok)
	assert.Equal(t, 3.0, v)

	_, err := ParseFormula(nested(maxDepth + 1))
	assert.ErrorIs(t, err, ErrInvalidFormula)

	_, err = ParseFormula(strings.Repeat("-", maxDepth+1) + "a")
	assert.ErrorIs(t, err, ErrInvalidFormula)

	_, err = ParseCondition(strings.Repeat("!", maxDepth+1) + "(a > 1)")
	assert.ErrorIs(t, err, ErrInvalidFormula)

	_, err = ParseFormula(strings.Repeat("abs(", maxDepth+1) + "a" + strings.Repeat(")", maxDepth+1))
	assert.ErrorIs(t, err, ErrInvalidFormula)

	huge := strings.Repeat("(", 3_000_000) + "1" + strings.Repeat(")", 3_000_000)
	_, skip := New(nil).Evaluate(huge, nil)
	require.NotNil(t, skip)
	assert.Equal(t, SkipInvalidFormula, skip.Reason)

	_, err = ParseFormula("a" + strings.Repeat(" + a", maxTokens))
	assert.ErrorIs(t, err, ErrInvalidFormula)
}

func TestParse_KeywordsAreLowercase(t *testing.T) {
	node, err := ParseCondition("a > 1 and b < 2")
	require.NoError(t, err)
	assert.Equal(t, OpAnd, node.Op)

	v, ok := Calculate("And + OR * Not", Values{"And": 1, "OR": 2, "Not": 3})
	require.True(t, ok)
	assert.Equal(t, 7.0, v)
}
