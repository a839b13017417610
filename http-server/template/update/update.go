package update

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"cmt-backend/internal/schema"
	"cmt-backend/internal/storage"
)

// maxBodySize caps JSON request bodies.
const maxBodySize = 1 << 20

type TemplateUpdateProvider interface {
	UpdateTemplate(ctx context.Context, code string, t storage.Template) error
}

func UpdateTemplateAdmin(log *slog.Logger, temp TemplateUpdateProvider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.template.UpdateTemplateAdmin"

		code := chi.URLParam(r, "code")

		var req storage.Template
		r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid JSON", http.StatusBadRequest)
			return
		}
		// the code in the path is authoritative
		req.Code = code

		if errs := schema.ValidateTemplate(req); len(errs) > 0 {
			render.Status(r, http.StatusUnprocessableEntity)
			render.JSON(w, r, map[string][]schema.SchemaError{"errors": errs})
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		if err := temp.UpdateTemplate(ctx, code, req); err != nil {
			if errors.Is(err, storage.ErrTemplateNotFound) {
				http.Error(w, "Template not found", http.StatusNotFound)
				return
			}
			log.Error("failed to update template", slog.String("op", op), slog.String("code", code), slog.String("error", err.Error()))
			http.Error(w, "Failed to update template", http.StatusInternalServerError)
			return
		}

		render.JSON(w, r, map[string]string{"status": "updated"})
	}
}
