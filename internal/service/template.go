package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"cmt-backend/internal/calc"
	"cmt-backend/internal/compliance"
	"cmt-backend/internal/schema"
	"cmt-backend/internal/storage"
)

// rowWorkers bounds the goroutines evaluating rows of one template.
const rowWorkers = 8

type RowResult struct {
	Index      int                      `json:"index"`
	KPIs       calc.Values              `json:"kpis"`
	Errors     []schema.ValidationError `json:"errors,omitempty"`
	Skipped    []calc.Skip              `json:"skipped,omitempty"`
	Compliance compliance.Result        `json:"compliance"`
}

// TemplateSummary is the summary_json of a template report.
type TemplateSummary struct {
	Code     string            `json:"code"`
	Rows     []RowResult       `json:"rows"`
	Status   compliance.Status `json:"status"`
	Complete bool              `json:"complete"`
}

// TemplateData is the data blob of a template report.
type TemplateData struct {
	Rows []storage.Row `json:"rows"`
}

// EvaluateTemplate validates every row, computes its KPIs and evaluates the
// pass condition. Rows are processed concurrently; results keep row order.
func EvaluateTemplate(ctx context.Context, engine *calc.Engine, t storage.Template, rows []storage.Row) (TemplateSummary, error) {
	const op = "service.EvaluateTemplate"

	results := make([]RowResult, len(rows))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(rowWorkers)
	for i, row := range rows {
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}
			results[i] = evaluateRow(engine, t, i, row)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return TemplateSummary{}, fmt.Errorf("%s: %w", op, err)
	}

	sum := TemplateSummary{Code: t.Code, Rows: results, Complete: len(rows) > 0}
	for _, r := range results {
		if len(r.Errors) > 0 {
			sum.Complete = false
		}
	}
	sum.Status = overallStatus(results)
	return sum, nil
}

func evaluateRow(engine *calc.Engine, t storage.Template, i int, row storage.Row) RowResult {
	res := RowResult{Index: i, Errors: schema.ValidateRow(t.Schema, row)}

	kpis := schema.EvaluateKPIs(engine, t, row)
	res.KPIs = kpis.Outputs
	res.Skipped = kpis.Skipped

	if len(res.Errors) > 0 {
		res.Compliance = compliance.Result{Status: compliance.StatusPending, Reason: "validation errors"}
		return res
	}

	// the pass condition may reference columns as well as KPIs
	env := schema.NumericValues(t.Schema, row)
	for k, v := range kpis.Outputs {
		env[k] = v
	}
	res.Compliance = compliance.Evaluate(env, t.Rules.Thresholds, t.Rules.PassCondition)
	return res
}

// overallStatus is fail if any row failed, pending if any row is undecided and
// pass otherwise. A report without rows stays pending.
func overallStatus(rows []RowResult) compliance.Status {
	if len(rows) == 0 {
		return compliance.StatusPending
	}
	status := compliance.StatusPass
	for _, r := range rows {
		switch r.Compliance.Status {
		case compliance.StatusFail:
			return compliance.StatusFail
		case compliance.StatusPass:
		default:
			status = compliance.StatusPending
		}
	}
	return status
}

type TemplateProvider interface {
	GetTemplateByCode(ctx context.Context, code string) (*storage.Template, error)
}

// TemplateService evaluates rows against stored templates.
type TemplateService struct {
	storage TemplateProvider
	engine  *calc.Engine
}

func NewTemplateService(log *slog.Logger, storage TemplateProvider) *TemplateService {
	return &TemplateService{storage: storage, engine: calc.New(log)}
}

// Validate evaluates rows against the active template code.
func (s *TemplateService) Validate(ctx context.Context, code string, rows []storage.Row) (TemplateSummary, error) {
	const op = "service.TemplateService.Validate"

	t, err := s.storage.GetTemplateByCode(ctx, code)
	if err != nil {
		return TemplateSummary{}, fmt.Errorf("%s: %w", op, err)
	}
	sum, err := EvaluateTemplate(ctx, s.engine, *t, rows)
	if err != nil {
		return TemplateSummary{}, fmt.Errorf("%s: %w", op, err)
	}
	return sum, nil
}

// Import parses an uploaded workbook against the active template code.
func (s *TemplateService) Import(ctx context.Context, code string, r io.Reader) (*ImportResult, error) {
	const op = "service.TemplateService.Import"

	t, err := s.storage.GetTemplateByCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	res, err := ImportRows(r, t.Schema)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return res, nil
}
