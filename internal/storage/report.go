package storage

import (
	"encoding/json"
	"time"
)

type ReportKind string

const (
	// ReportKindTemplate reports hold rows for a dynamic template.
	ReportKindTemplate ReportKind = "template"
	// ReportKindTest reports hold wizard data for a built-in test definition.
	ReportKindTest ReportKind = "test"
)

// Report is a saved report-editing session. Data is opaque to storage.
type Report struct {
	ID         string          `json:"id"`
	CompanyID  string          `json:"company_id"`
	CreatedBy  string          `json:"created_by"`
	Kind       ReportKind      `json:"kind"`
	SourceCode string          `json:"source_code"`
	Data       json.RawMessage `json:"data"`
	Summary    json.RawMessage `json:"summary,omitempty"`
	Status     string          `json:"status"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// User is the identity of the caller as issued by the auth backend.
type User struct {
	ID        string `json:"id"`
	CompanyID string `json:"company_id"`
	Role      string `json:"role"`
}
