package testdef

import (
	"errors"
	"fmt"

	"cmt-backend/internal/calc"
	"cmt-backend/internal/schema"
	"cmt-backend/internal/storage"
)

var (
	ErrUnknownField = errors.New("unknown field")
	ErrStepLocked   = errors.New("step is not reached yet")
	ErrSessionDone  = errors.New("all steps are complete")
)

// Session tracks one user editing one report. Steps unlock one at a time:
// a step opens only after the previous one completed without validation errors.
// Editing a completed step reopens it.
type Session struct {
	def     Definition
	engine  *calc.Engine
	current int
	data    Data
}

func NewSession(engine *calc.Engine, def Definition) *Session {
	if engine == nil {
		engine = calc.New(nil)
	}
	return &Session{def: def, engine: engine, data: Data{Values: storage.Row{}}}
}

// Resume restores a session from saved data, completing every step that
// validates in order.
func Resume(engine *calc.Engine, def Definition, data Data) *Session {
	s := NewSession(engine, def)
	if data.Values != nil {
		s.data.Values = data.Values
	}
	s.data.Rows = data.Rows
	s.data.RetestConfirmed = data.RetestConfirmed
	for !s.Done() {
		if errs, _ := s.CompleteStep(); len(errs) > 0 {
			break
		}
	}
	return s
}

// Current returns the open step. ok is false once every step is complete.
func (s *Session) Current() (Step, int, bool) {
	if s.Done() {
		return Step{}, s.current, false
	}
	return s.def.Steps[s.current], s.current, true
}

func (s *Session) Done() bool { return s.current >= len(s.def.Steps) }

// Progress is the wizard position of a session. Errors are what keeps the open
// step from completing.
type Progress struct {
	Step   string                   `json:"step,omitempty"`
	Index  int                      `json:"index"`
	Steps  int                      `json:"steps"`
	Done   bool                     `json:"done"`
	Errors []schema.ValidationError `json:"errors,omitempty"`
}

func (s *Session) Progress() Progress {
	p := Progress{Index: s.current, Steps: len(s.def.Steps), Done: s.Done()}
	if st, _, ok := s.Current(); ok {
		p.Step = st.ID
		p.Errors = schema.ValidateRow(st.Schema(), s.data.Values)
	}
	return p
}

// SetValue stores a field of the open step or of a completed one.
func (s *Session) SetValue(field string, v any) error {
	idx := s.def.StepOf(field)
	if idx < 0 {
		return fmt.Errorf("%w: %q", ErrUnknownField, field)
	}
	if idx > s.current {
		return fmt.Errorf("%w: %q belongs to step %q", ErrStepLocked, field, s.def.Steps[idx].ID)
	}
	s.data.Values[field] = v
	if idx < s.current {
		s.current = idx
	}
	return nil
}

// CompleteStep validates the open step and advances when it is clean.
func (s *Session) CompleteStep() ([]schema.ValidationError, error) {
	if s.Done() {
		return nil, ErrSessionDone
	}
	errs := schema.ValidateRow(s.def.Steps[s.current].Schema(), s.data.Values)
	if len(errs) > 0 {
		return errs, nil
	}
	s.current++
	return nil, nil
}

// Inputs returns the numeric inputs of completed steps and their calculated
// outputs, as the next step sees them.
func (s *Session) Inputs() calc.Values {
	env := calc.Values{}
	for _, st := range s.def.Steps[:min(s.current, len(s.def.Steps))] {
		for k, v := range schema.NumericValues(st.Schema(), s.data.Values) {
			env[k] = v
		}
		for k, v := range s.engine.Plan(st.Calculations).Run(env).Outputs {
			env[k] = v
		}
	}
	return env
}

// Data returns a copy of what was collected so far.
func (s *Session) Data() Data {
	values := make(storage.Row, len(s.data.Values))
	for k, v := range s.data.Values {
		values[k] = v
	}
	return Data{Values: values, Rows: append([]storage.Row(nil), s.data.Rows...), RetestConfirmed: s.data.RetestConfirmed}
}

// Summary runs the full pipeline over the collected data.
func (s *Session) Summary() Summary {
	return Run(s.engine, s.def, s.Data())
}
