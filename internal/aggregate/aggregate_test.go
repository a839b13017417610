package aggregate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cmt-backend/internal/calc"
	"cmt-backend/internal/storage"
)

func TestGenericAggregates(t *testing.T) {
	rows := []storage.Row{
		{"mass": 10.0},
		{"mass": "14"},
		{"mass": ""},
		{"other": 3.0},
		{"mass": 12.0},
	}

	v, ok := Sum(rows, "mass")
	assert.True(t, ok)
	assert.Equal(t, 36.0, v)

	v, ok = Average(rows, "mass")
	assert.True(t, ok)
	assert.Equal(t, 12.0, v)

	v, _ = Min(rows, "mass")
	assert.Equal(t, 10.0, v)
	v, _ = Max(rows, "mass")
	assert.Equal(t, 14.0, v)
	v, _ = Count(rows, "mass")
	assert.Equal(t, 3.0, v)

	_, ok = Average(rows, "missing")
	assert.False(t, ok)
	_, ok = Sum(nil, "mass")
	assert.False(t, ok)
}

func TestApply(t *testing.T) {
	rows := []storage.Row{{"v": 1.0}, {"v": 3.0}}
	v, ok, err := Apply(FuncAvg, rows, "v")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 2.0, v)

	_, _, err = Apply("median", rows, "v")
	assert.Error(t, err)
}

func TestSieveAnalysis_FinenessModulus(t *testing.T) {
	rows := []storage.Row{
		{"sieve": "4.75 mm", "size_mm": 4.75, "retained": 125.0},
		{"sieve": "2.36 mm", "size_mm": 2.36, "retained": 100.0},
		{"sieve": "1.18 mm", "size_mm": 1.18, "retained": 100.0},
		{"sieve": "600 um", "size_mm": 0.6, "retained": 100.0},
		{"sieve": "300 um", "size_mm": 0.3, "retained": "75"},
	}

	res, err := SieveAnalysis(rows, 500)
	require.NoError(t, err)
	require.Len(t, res.Sieves, 5)

	cumulative := []float64{25, 45, 65, 85, 100}
	sum := 0.0
	for i, s := range res.Sieves {
		assert.InDelta(t, cumulative[i], s.CumulativePercent, 1e-9)
		assert.InDelta(t, 100-cumulative[i], s.PassingPercent, 1e-9)
		sum += s.CumulativePercent
	}
	assert.InDelta(t, 320.0, sum, 1e-9)
	assert.InDelta(t, 3.20, res.FinenessModulus, 1e-9)
	assert.InDelta(t, sum/100, res.FinenessModulus, 1e-12)
	assert.Equal(t, "4.75 mm", res.Sieves[0].Label)
}

func TestSieveAnalysis_TotalFallback(t *testing.T) {
	rows := []storage.Row{{"retained": 40.0}, {"retained": 60.0}, {"sieve": "pan"}}
	res, err := SieveAnalysis(rows, 0)
	require.NoError(t, err)
	assert.Equal(t, 100.0, res.TotalWeight)
	assert.Len(t, res.Sieves, 2)
	assert.InDelta(t, 40, res.Sieves[0].RetainedPercent, 1e-9)

	_, err = SieveAnalysis(nil, 0)
	assert.ErrorIs(t, err, ErrNoSampleWeight)
}

func cbrRows() []storage.Row {
	return []storage.Row{
		{"penetration": 0.0, "load": 0.0},
		{"penetration": 1.25, "load": 800.0},
		{"penetration": 2.5, "load": 1450.0},
		{"penetration": 4.0, "load": 1900.0},
		{"penetration": 5.0, "load": 2100.0},
		{"penetration": 7.5, "load": 2500.0},
	}
}

func TestCBR_MinRule(t *testing.T) {
	res, err := CBR(cbrRows(), CBROptions{})
	require.NoError(t, err)

	assert.Equal(t, 105.8, calc.Round(res.CBR2_5, 1))
	assert.Equal(t, 102.19, calc.Round(res.CBR5_0, 2))
	assert.Equal(t, 102.19, calc.Round(res.CBR, 2))
	assert.Equal(t, "5.0", res.Governing)
	assert.Equal(t, res.CBR, res.Values()["cbr"])
}

func TestCBR_StandardRule(t *testing.T) {
	res, err := CBR(cbrRows(), CBROptions{Rule: CBRRuleStandard})
	require.NoError(t, err)
	assert.Equal(t, "2.5", res.Governing)
	assert.Equal(t, res.CBR2_5, res.CBR)

	// 5.0 mm governs only when larger and confirmed by a retest
	rows := []storage.Row{{"penetration": 2.5, "load": 1000.0}, {"penetration": 5.0, "load": 2055.0}}
	res, err = CBR(rows, CBROptions{Rule: CBRRuleStandard})
	require.NoError(t, err)
	assert.Equal(t, "2.5", res.Governing)

	res, err = CBR(rows, CBROptions{Rule: CBRRuleStandard, RetestConfirmed: true})
	require.NoError(t, err)
	assert.Equal(t, "5.0", res.Governing)
	assert.InDelta(t, 100, res.CBR, 1e-9)
}

func TestCBR_Interpolation(t *testing.T) {
	rows := []storage.Row{
		{"penetration": 2.0, "load": 1000.0},
		{"penetration": 3.0, "load": 1400.0},
		{"penetration": 6.0, "load": 2300.0},
		{"penetration": 4.0, "load": 1700.0},
	}
	res, err := CBR(rows, CBROptions{Rule: CBRRuleMin})
	require.NoError(t, err)
	assert.InDelta(t, 1200, res.Load2_5, 1e-9)
	assert.InDelta(t, 2000, res.Load5_0, 1e-9)
}

func TestCBR_Errors(t *testing.T) {
	_, err := CBR([]storage.Row{{"penetration": 2.5, "load": 1450.0}}, CBROptions{})
	assert.ErrorIs(t, err, ErrPenetrationNotCovered)

	_, err = CBR(cbrRows(), CBROptions{Rule: "max"})
	assert.Error(t, err)
}

func TestValueAtMax(t *testing.T) {
	rows := []storage.Row{
		{"moisture": 8.0, "dry_density": 1850.0},
		{"moisture": 10.0, "dry_density": 1930.0},
		{"moisture": 12.0, "dry_density": 1890.0},
		{"moisture": 14.0},
	}
	v, ok := ValueAtMax(rows, "moisture", "dry_density")
	assert.True(t, ok)
	assert.Equal(t, 10.0, v)

	_, ok = ValueAtMax(nil, "moisture", "dry_density")
	assert.False(t, ok)
}
