package schema

import "fmt"

// SchemaError describes a malformed template definition. Path points at the
// offending element, e.g. "columns[2].options" or "kpis.cbr".
type SchemaError struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

func (e SchemaError) Error() string {
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

type Reason string

const (
	ReasonRequired      Reason = "required"
	ReasonOutOfRange    Reason = "out_of_range"
	ReasonTypeMismatch  Reason = "type_mismatch"
	ReasonInvalidOption Reason = "invalid_option"
)

// ValidationError is a user-input problem on one field.
type ValidationError struct {
	Field   string `json:"field"`
	Reason  Reason `json:"reason"`
	Message string `json:"message,omitempty"`
}

func (e ValidationError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("%s: %s (%s)", e.Field, e.Reason, e.Message)
}
