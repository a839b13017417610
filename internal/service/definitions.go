package service

import (
	"fmt"
	"log/slog"

	"cmt-backend/internal/calc"
	"cmt-backend/internal/testdef"
)

// DefinitionService runs built-in tests without persisting anything.
type DefinitionService struct {
	catalog DefinitionCatalog
	engine  *calc.Engine
}

func NewDefinitionService(log *slog.Logger, catalog DefinitionCatalog) *DefinitionService {
	return &DefinitionService{catalog: catalog, engine: calc.New(log)}
}

func (s *DefinitionService) List() []testdef.Definition {
	return s.catalog.List()
}

func (s *DefinitionService) Get(code string) (testdef.Definition, bool) {
	return s.catalog.Get(code)
}

// RunResult is a summary together with the wizard position the data reaches.
type RunResult struct {
	testdef.Summary
	Progress testdef.Progress `json:"progress"`
}

// Run resumes a wizard session over data and computes its summary.
func (s *DefinitionService) Run(code string, data testdef.Data) (RunResult, error) {
	def, ok := s.catalog.Get(code)
	if !ok {
		return RunResult{}, fmt.Errorf("service.DefinitionService.Run: %q: %w", code, ErrUnknownDefinition)
	}
	sess := testdef.Resume(s.engine, def, data)
	return RunResult{Summary: sess.Summary(), Progress: sess.Progress()}, nil
}
