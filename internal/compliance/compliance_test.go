package compliance

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cmt-backend/internal/calc"
)

func TestEvaluate_FieldDensityPasses(t *testing.T) {
	res := Evaluate(
		calc.Values{"degree_compaction": 98.21},
		calc.Values{"min_compaction": 95},
		"degree_compaction >= min_compaction",
	)
	assert.Equal(t, StatusPass, res.Status)
	assert.Empty(t, res.Missing)
}

func TestEvaluate_FailExplainsComparisons(t *testing.T) {
	res := Evaluate(
		calc.Values{"degree_compaction": 93.5, "moisture": 18},
		calc.Values{"min_compaction": 95, "max_moisture": 15},
		"degree_compaction >= min_compaction && moisture <= max_moisture",
	)
	require.Equal(t, StatusFail, res.Status)
	assert.Equal(t,
		"degree_compaction >= min_compaction (93.5 >= 95); moisture <= max_moisture (18 <= 15)",
		res.Reason)
}

func TestEvaluate_PendingOnMissing(t *testing.T) {
	res := Evaluate(calc.Values{"cbr": 12}, calc.Values{}, "cbr >= min_cbr && swell <= 2")
	assert.Equal(t, StatusPending, res.Status)
	assert.Equal(t, []string{"min_cbr", "swell"}, res.Missing)
	assert.Equal(t, StatusPending, EvaluateCompliance(calc.Values{}, calc.Values{"min_cbr": 8}, "cbr >= min_cbr"))
}

func TestEvaluate_KPIShadowsThreshold(t *testing.T) {
	res := Evaluate(calc.Values{"limit": 10}, calc.Values{"limit": 1}, "limit > 5")
	assert.Equal(t, StatusPass, res.Status)
}

func TestEvaluate_ImplicitThresholds(t *testing.T) {
	thresholds := calc.Values{"max_acv": 30, "min_cbr": 8, "ignored": 1}
	assert.Equal(t, "acv <= max_acv && cbr >= min_cbr", ImplicitCondition(thresholds))

	assert.Equal(t, StatusPass, EvaluateCompliance(calc.Values{"acv": 12.5, "cbr": 10}, thresholds, ""))
	assert.Equal(t, StatusFail, EvaluateCompliance(calc.Values{"acv": 31, "cbr": 10}, thresholds, "  "))
	assert.Equal(t, StatusPending, EvaluateCompliance(calc.Values{"acv": 12.5}, thresholds, ""))
}

func TestEvaluate_NoCondition(t *testing.T) {
	res := Evaluate(calc.Values{"acv": 12.5}, calc.Values{"limit": 30}, "")
	assert.Equal(t, Result{Status: StatusPending, Reason: "no pass condition"}, res)
}

func TestEvaluate_InvalidCondition(t *testing.T) {
	res := Evaluate(calc.Values{"a": 1}, nil, "a = 1")
	assert.Equal(t, StatusPending, res.Status)
	assert.Contains(t, res.Reason, "invalid pass condition")
}

func TestEvaluate_DivisionInCondition(t *testing.T) {
	res := Evaluate(calc.Values{"a": 1, "b": 0}, nil, "a / b > 1")
	assert.Equal(t, StatusPending, res.Status)
}

func TestEvaluate_OrAndNot(t *testing.T) {
	kpis := calc.Values{"fm": 3.2}
	assert.Equal(t, StatusPass, EvaluateCompliance(kpis, nil, "fm < 2.3 or fm >= 3.1"))

	res := Evaluate(kpis, nil, "fm < 2.3 || fm > 3.5")
	assert.Equal(t, StatusFail, res.Status)
	assert.Equal(t, "fm < 2.3 (3.2 < 2.3); fm > 3.5 (3.2 > 3.5)", res.Reason)

	res = Evaluate(kpis, nil, "not (fm > 3)")
	assert.Equal(t, StatusFail, res.Status)
	assert.Equal(t, "!(fm > 3)", res.Reason)
}

func TestTransition(t *testing.T) {
	tests := []struct {
		from    Status
		ev      Event
		want    Status
		illegal bool
	}{
		{StatusPending, EventComplete, StatusComputed, false},
		{StatusPending, EventPassed, StatusPending, true},
		{StatusComputed, EventPassed, StatusPass, false},
		{StatusComputed, EventFailed, StatusFail, false},
		{StatusPass, EventComplete, StatusComputed, false},
		{StatusFail, EventComplete, StatusComputed, false},
		{StatusPass, EventFailed, StatusPass, true},
		{StatusFail, EventCleared, StatusPending, false},
		{StatusPass, EventCleared, StatusPending, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"/"+string(tt.ev), func(t *testing.T) {
			got, err := Transition(tt.from, tt.ev)
			if tt.illegal {
				assert.ErrorIs(t, err, ErrIllegalTransition)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAdvance(t *testing.T) {
	st, err := Advance(StatusPending, true, StatusPass)
	require.NoError(t, err)
	assert.Equal(t, StatusPass, st)

	st, err = Advance(StatusPass, true, StatusFail)
	require.NoError(t, err)
	assert.Equal(t, StatusFail, st)

	st, err = Advance(StatusFail, true, StatusPending)
	require.NoError(t, err)
	assert.Equal(t, StatusComputed, st)

	st, err = Advance(StatusPass, false, StatusPending)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, st)
}

func TestParseStatus(t *testing.T) {
	st, err := ParseStatus("")
	require.NoError(t, err)
	assert.Equal(t, StatusPending, st)

	st, err = ParseStatus("fail")
	require.NoError(t, err)
	assert.Equal(t, StatusFail, st)

	_, err = ParseStatus("approved")
	assert.Error(t, err)
}
