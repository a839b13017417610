// Package aggregate reduces sample/row sets to summary values.
package aggregate

import (
	"fmt"

	"cmt-backend/internal/storage"
)

func numbers(rows []storage.Row, field string) []float64 {
	out := make([]float64, 0, len(rows))
	for _, r := range rows {
		if v, ok := r.Number(field); ok {
			out = append(out, v)
		}
	}
	return out
}

// Sum adds the numeric values of field. Rows without one are ignored.
func Sum(rows []storage.Row, field string) (float64, bool) {
	vals := numbers(rows, field)
	if len(vals) == 0 {
		return 0, false
	}
	s := 0.0
	for _, v := range vals {
		s += v
	}
	return s, true
}

func Average(rows []storage.Row, field string) (float64, bool) {
	s, ok := Sum(rows, field)
	if !ok {
		return 0, false
	}
	return s / float64(len(numbers(rows, field))), true
}

func Min(rows []storage.Row, field string) (float64, bool) {
	vals := numbers(rows, field)
	if len(vals) == 0 {
		return 0, false
	}
	m := vals[0]
	for _, v := range vals[1:] {
		m = min(m, v)
	}
	return m, true
}

func Max(rows []storage.Row, field string) (float64, bool) {
	vals := numbers(rows, field)
	if len(vals) == 0 {
		return 0, false
	}
	m := vals[0]
	for _, v := range vals[1:] {
		m = max(m, v)
	}
	return m, true
}

// Count is the number of rows holding a numeric field value.
func Count(rows []storage.Row, field string) (float64, bool) {
	n := len(numbers(rows, field))
	return float64(n), n > 0
}

// Func names accepted by Apply.
const (
	FuncAvg   = "avg"
	FuncSum   = "sum"
	FuncMin   = "min"
	FuncMax   = "max"
	FuncCount = "count"
)

var funcs = map[string]func([]storage.Row, string) (float64, bool){
	FuncAvg:   Average,
	FuncSum:   Sum,
	FuncMin:   Min,
	FuncMax:   Max,
	FuncCount: Count,
}

// Apply runs the aggregate named fn. ok is false when no row held a value.
func Apply(fn string, rows []storage.Row, field string) (v float64, ok bool, err error) {
	f, found := funcs[fn]
	if !found {
		return 0, false, fmt.Errorf("unknown aggregate %q", fn)
	}
	v, ok = f(rows, field)
	return v, ok, nil
}

// ValueAtMax returns field from the row where by is largest, e.g. the
// moisture content at the peak dry density of a compaction curve.
func ValueAtMax(rows []storage.Row, field, by string) (float64, bool) {
	best, found := 0.0, false
	var at float64
	for _, r := range rows {
		b, okB := r.Number(by)
		v, okV := r.Number(field)
		if !okB || !okV {
			continue
		}
		if !found || b > best {
			best, at, found = b, v, true
		}
	}
	return at, found
}
