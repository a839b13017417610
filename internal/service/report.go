package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"cmt-backend/internal/calc"
	"cmt-backend/internal/compliance"
	"cmt-backend/internal/storage"
	"cmt-backend/internal/testdef"
)

var (
	ErrUnknownDefinition = errors.New("unknown test definition")
	ErrInvalidKind       = errors.New("invalid report kind")
	ErrInvalidData       = errors.New("invalid report data")
)

type ReportStorage interface {
	SaveReport(ctx context.Context, r storage.Report) (string, error)
	GetReport(ctx context.Context, id string) (*storage.Report, error)
	GetTemplateByCode(ctx context.Context, code string) (*storage.Template, error)
	UpdateReportSummary(ctx context.Context, id string, summary json.RawMessage, status string) error
}

type DefinitionCatalog interface {
	Get(code string) (testdef.Definition, bool)
	List() []testdef.Definition
}

type ReportService struct {
	log     *slog.Logger
	storage ReportStorage
	catalog DefinitionCatalog
	engine  *calc.Engine
}

func NewReportService(log *slog.Logger, storage ReportStorage, catalog DefinitionCatalog) *ReportService {
	return &ReportService{log: log, storage: storage, catalog: catalog, engine: calc.New(log)}
}

// ComputeResult is what a recomputation persisted.
type ComputeResult struct {
	ID      string            `json:"id"`
	Status  compliance.Status `json:"status"`
	Summary json.RawMessage   `json:"summary"`
}

// Save stores a draft for user. The source template or definition must exist.
func (s *ReportService) Save(ctx context.Context, user storage.User, r storage.Report) (string, error) {
	const op = "service.ReportService.Save"

	switch r.Kind {
	case storage.ReportKindTemplate:
		if _, err := s.storage.GetTemplateByCode(ctx, r.SourceCode); err != nil {
			return "", fmt.Errorf("%s: %w", op, err)
		}
	case storage.ReportKindTest:
		if _, ok := s.catalog.Get(r.SourceCode); !ok {
			return "", fmt.Errorf("%s: %q: %w", op, r.SourceCode, ErrUnknownDefinition)
		}
	default:
		return "", fmt.Errorf("%s: %q: %w", op, r.Kind, ErrInvalidKind)
	}
	if !json.Valid(r.Data) {
		return "", fmt.Errorf("%s: %w", op, ErrInvalidData)
	}

	r.CompanyID = user.CompanyID
	r.CreatedBy = user.ID
	r.Status = string(compliance.StatusPending)

	id, err := s.storage.SaveReport(ctx, r)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return id, nil
}

func (s *ReportService) Get(ctx context.Context, id string) (*storage.Report, error) {
	const op = "service.ReportService.Get"

	r, err := s.storage.GetReport(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return r, nil
}

// Compute validates the report data, runs the calculations and compliance
// check of its source, and persists the summary with the advanced status.
func (s *ReportService) Compute(ctx context.Context, id string) (*ComputeResult, error) {
	const op = "service.ReportService.Compute"

	log := s.log.With(slog.String("op", op), slog.String("report_id", id))

	r, err := s.storage.GetReport(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	from, err := compliance.ParseStatus(r.Status)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var (
		summary  any
		complete bool
		outcome  compliance.Status
	)

	switch r.Kind {
	case storage.ReportKindTemplate:
		t, err := s.storage.GetTemplateByCode(ctx, r.SourceCode)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		var data TemplateData
		if err := json.Unmarshal(r.Data, &data); err != nil {
			return nil, fmt.Errorf("%s: %w: %v", op, ErrInvalidData, err)
		}
		ts, err := EvaluateTemplate(ctx, s.engine, *t, data.Rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		summary, complete, outcome = ts, ts.Complete, ts.Status

	case storage.ReportKindTest:
		def, ok := s.catalog.Get(r.SourceCode)
		if !ok {
			return nil, fmt.Errorf("%s: %q: %w", op, r.SourceCode, ErrUnknownDefinition)
		}
		var data testdef.Data
		if err := json.Unmarshal(r.Data, &data); err != nil {
			return nil, fmt.Errorf("%s: %w: %v", op, ErrInvalidData, err)
		}
		sum := testdef.Run(s.engine, def, data)
		summary, complete, outcome = sum, sum.Complete, sum.Compliance.Status

	default:
		return nil, fmt.Errorf("%s: %q: %w", op, r.Kind, ErrInvalidKind)
	}

	to, err := compliance.Advance(from, complete, outcome)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	raw, err := json.Marshal(summary)
	if err != nil {
		return nil, fmt.Errorf("%s: marshal summary: %w", op, err)
	}

	if err := s.storage.UpdateReportSummary(ctx, id, raw, string(to)); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	log.Debug("report computed", slog.String("from", string(from)), slog.String("to", string(to)))

	return &ComputeResult{ID: id, Status: to, Summary: raw}, nil
}
