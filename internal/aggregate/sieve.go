package aggregate

import (
	"errors"

	"cmt-backend/internal/calc"
	"cmt-backend/internal/storage"
)

// Row fields read by SieveAnalysis.
const (
	FieldSieve    = "sieve"
	FieldSizeMM   = "size_mm"
	FieldRetained = "retained"
)

var ErrNoSampleWeight = errors.New("sieve analysis: no sample weight")

type Sieve struct {
	Label             string  `json:"sieve"`
	SizeMM            float64 `json:"size_mm,omitempty"`
	Retained          float64 `json:"retained"`
	RetainedPercent   float64 `json:"retained_percent"`
	CumulativePercent float64 `json:"cumulative_percent"`
	PassingPercent    float64 `json:"passing_percent"`
}

type SieveResult struct {
	Sieves          []Sieve `json:"sieves"`
	TotalWeight     float64 `json:"total_weight"`
	FinenessModulus float64 `json:"fineness_modulus"`
}

// SieveAnalysis computes retained, cumulative retained and passing percentages
// for rows ordered from the coarsest sieve down. Rows without a retained mass
// are left out. A non-positive totalWeight falls back to the sum retained.
func SieveAnalysis(rows []storage.Row, totalWeight float64) (SieveResult, error) {
	var sieves []Sieve
	retainedSum := 0.0
	for _, r := range rows {
		m, ok := r.Number(FieldRetained)
		if !ok {
			continue
		}
		s := Sieve{Retained: m}
		s.Label, _ = r[FieldSieve].(string)
		s.SizeMM, _ = r.Number(FieldSizeMM)
		sieves = append(sieves, s)
		retainedSum += m
	}

	total := totalWeight
	if total <= 0 {
		total = retainedSum
	}
	if total <= 0 {
		return SieveResult{}, ErrNoSampleWeight
	}

	res := SieveResult{Sieves: sieves, TotalWeight: total}
	cumulative := 0.0
	sumCumulative := 0.0
	for i := range res.Sieves {
		s := &res.Sieves[i]
		s.RetainedPercent = s.Retained / total * 100
		cumulative += s.RetainedPercent
		s.CumulativePercent = cumulative
		s.PassingPercent = 100 - cumulative
		sumCumulative += cumulative
	}
	res.FinenessModulus = sumCumulative / 100
	return res, nil
}

// Values flattens the scalar results for formulas and summaries.
func (r SieveResult) Values() calc.Values {
	return calc.Values{
		"total_weight":     r.TotalWeight,
		"fineness_modulus": r.FinenessModulus,
	}
}
