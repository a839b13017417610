package aggregate

import (
	"errors"
	"fmt"
	"sort"

	"cmt-backend/internal/calc"
	"cmt-backend/internal/storage"
)

// Standard loads (kg) of crushed stone at 2.5 mm and 5.0 mm penetration.
const (
	StandardLoad2_5 = 1370.0
	StandardLoad5_0 = 2055.0
)

// Row fields read by CBR.
const (
	FieldPenetration = "penetration"
	FieldLoad        = "load"
)

type CBRRule string

const (
	// CBRRuleMin reports the lower of the two ratios.
	CBRRuleMin CBRRule = "min"
	// CBRRuleStandard reports the 2.5 mm ratio unless the 5.0 mm ratio is
	// larger and a retest confirmed it.
	CBRRuleStandard CBRRule = "standard"
)

var ErrPenetrationNotCovered = errors.New("cbr: penetration not covered by readings")

type CBROptions struct {
	Rule            CBRRule `json:"rule" yaml:"rule"`
	RetestConfirmed bool    `json:"retest_confirmed" yaml:"retest_confirmed"`
}

type CBRResult struct {
	Load2_5   float64 `json:"load_2_5"`
	Load5_0   float64 `json:"load_5_0"`
	CBR2_5    float64 `json:"cbr_2_5"`
	CBR5_0    float64 `json:"cbr_5_0"`
	CBR       float64 `json:"cbr"`
	Governing string  `json:"governing"`
}

type point struct{ pen, load float64 }

// CBR reads corrected loads at 2.5 mm and 5.0 mm from penetration rows,
// interpolating linearly between readings, and applies the selection rule.
func CBR(rows []storage.Row, opts CBROptions) (CBRResult, error) {
	var pts []point
	for _, r := range rows {
		p, okP := r.Number(FieldPenetration)
		l, okL := r.Number(FieldLoad)
		if okP && okL {
			pts = append(pts, point{p, l})
		}
	}
	sort.Slice(pts, func(i, j int) bool { return pts[i].pen < pts[j].pen })

	l25, err := loadAt(pts, 2.5)
	if err != nil {
		return CBRResult{}, err
	}
	l50, err := loadAt(pts, 5.0)
	if err != nil {
		return CBRResult{}, err
	}

	res := CBRResult{
		Load2_5: l25,
		Load5_0: l50,
		CBR2_5:  l25 / StandardLoad2_5 * 100,
		CBR5_0:  l50 / StandardLoad5_0 * 100,
	}

	switch opts.Rule {
	case CBRRuleStandard:
		res.CBR, res.Governing = res.CBR2_5, "2.5"
		if res.CBR5_0 > res.CBR2_5 && opts.RetestConfirmed {
			res.CBR, res.Governing = res.CBR5_0, "5.0"
		}
	case CBRRuleMin, "":
		res.CBR, res.Governing = res.CBR2_5, "2.5"
		if res.CBR5_0 < res.CBR2_5 {
			res.CBR, res.Governing = res.CBR5_0, "5.0"
		}
	default:
		return CBRResult{}, fmt.Errorf("cbr: unknown rule %q", opts.Rule)
	}
	return res, nil
}

func loadAt(pts []point, pen float64) (float64, error) {
	for i, p := range pts {
		if p.pen == pen {
			return p.load, nil
		}
		if p.pen > pen {
			if i == 0 {
				break
			}
			prev := pts[i-1]
			return prev.load + (p.load-prev.load)*(pen-prev.pen)/(p.pen-prev.pen), nil
		}
	}
	return 0, fmt.Errorf("%w: %g mm", ErrPenetrationNotCovered, pen)
}

func (r CBRResult) Values() calc.Values {
	return calc.Values{
		"load_2_5": r.Load2_5,
		"load_5_0": r.Load5_0,
		"cbr_2_5":  r.CBR2_5,
		"cbr_5_0":  r.CBR5_0,
		"cbr":      r.CBR,
	}
}
