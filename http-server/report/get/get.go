package get

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"cmt-backend/internal/storage"
)

type ReportProvider interface {
	Get(ctx context.Context, id string) (*storage.Report, error)
}

func GetReport(log *slog.Logger, reports ReportProvider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.report.GetReport"

		id := chi.URLParam(r, "id")

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		report, err := reports.Get(ctx, id)
		if err != nil {
			if errors.Is(err, storage.ErrReportNotFound) {
				http.Error(w, "Report not found", http.StatusNotFound)
				return
			}
			log.Error("failed to load report", slog.String("op", op), slog.String("id", id), slog.String("error", err.Error()))
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		render.JSON(w, r, report)
	}
}
