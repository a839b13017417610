package compute

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"cmt-backend/internal/compliance"
	"cmt-backend/internal/service"
	"cmt-backend/internal/storage"
)

type ReportComputer interface {
	Compute(ctx context.Context, id string) (*service.ComputeResult, error)
}

func ComputeReport(log *slog.Logger, reports ReportComputer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.report.ComputeReport"

		id := chi.URLParam(r, "id")

		ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
		defer cancel()

		res, err := reports.Compute(ctx, id)
		if err != nil {
			switch {
			case errors.Is(err, storage.ErrReportNotFound), errors.Is(err, storage.ErrTemplateNotFound),
				errors.Is(err, service.ErrUnknownDefinition):
				http.Error(w, "Report or its source not found", http.StatusNotFound)
			case errors.Is(err, service.ErrInvalidData):
				http.Error(w, "Report data is malformed", http.StatusUnprocessableEntity)
			case errors.Is(err, compliance.ErrIllegalTransition):
				http.Error(w, err.Error(), http.StatusConflict)
			default:
				log.Error("failed to compute report", slog.String("op", op), slog.String("id", id), slog.String("error", err.Error()))
				http.Error(w, "Internal server error", http.StatusInternalServerError)
			}
			return
		}

		render.JSON(w, r, res)
	}
}
