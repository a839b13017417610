package validate

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"cmt-backend/internal/service"
	"cmt-backend/internal/storage"
)

// maxBodySize caps JSON request bodies.
const maxBodySize = 1 << 20

type RowValidator interface {
	Validate(ctx context.Context, code string, rows []storage.Row) (service.TemplateSummary, error)
}

// ValidateRows checks posted rows against a template and returns per-row
// errors, KPIs and compliance without saving anything.
func ValidateRows(log *slog.Logger, v RowValidator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.template.ValidateRows"

		code := chi.URLParam(r, "code")

		var req service.TemplateData
		r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid JSON", http.StatusBadRequest)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		sum, err := v.Validate(ctx, code, req.Rows)
		if err != nil {
			if errors.Is(err, storage.ErrTemplateNotFound) {
				http.Error(w, "Template not found", http.StatusNotFound)
				return
			}
			log.Error("failed to validate rows", slog.String("op", op), slog.String("code", code), slog.String("error", err.Error()))
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		render.JSON(w, r, sum)
	}
}
