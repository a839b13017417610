package save

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/render"

	"cmt-backend/internal/schema"
	"cmt-backend/internal/storage"
)

// maxBodySize caps JSON request bodies.
const maxBodySize = 1 << 20

type TemplateCreateProvider interface {
	CreateTemplate(ctx context.Context, t storage.Template) (int64, error)
}

type SchemaErrorsResponse struct {
	Errors []schema.SchemaError `json:"errors"`
}

// SaveTemplateAdmin creates a template. Schema or rule errors are answered with
// 422 and the full list of problems.
func SaveTemplateAdmin(log *slog.Logger, temp TemplateCreateProvider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.template.SaveTemplateAdmin"

		var req storage.Template
		r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid JSON", http.StatusBadRequest)
			return
		}

		if errs := schema.ValidateTemplate(req); len(errs) > 0 {
			log.Info("template rejected", slog.String("op", op), slog.String("code", req.Code), slog.Int("errors", len(errs)))
			render.Status(r, http.StatusUnprocessableEntity)
			render.JSON(w, r, SchemaErrorsResponse{Errors: errs})
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		id, err := temp.CreateTemplate(ctx, req)
		if err != nil {
			if errors.Is(err, storage.ErrTemplateExists) {
				http.Error(w, "Template code already exists", http.StatusConflict)
				return
			}
			log.Error("failed to create template", slog.String("op", op), slog.String("error", err.Error()))
			http.Error(w, "Failed to create template", http.StatusInternalServerError)
			return
		}

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, map[string]any{"status": "created", "id": id})
	}
}
