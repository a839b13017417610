package save

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/render"

	"cmt-backend/internal/middleware/auth"
	"cmt-backend/internal/service"
	"cmt-backend/internal/storage"
)

// maxBodySize caps JSON request bodies.
const maxBodySize = 1 << 20

type ReportSaver interface {
	Save(ctx context.Context, user storage.User, r storage.Report) (string, error)
}

type Request struct {
	ID         string             `json:"id,omitempty"`
	Kind       storage.ReportKind `json:"kind"`
	SourceCode string             `json:"source_code"`
	Data       json.RawMessage    `json:"data"`
}

// SaveReport stores a draft for the current user. Posting an existing id
// replaces its data.
func SaveReport(log *slog.Logger, saver ReportSaver) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.report.SaveReport"

		user, ok := auth.UserFromContext(r.Context())
		if !ok {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		var req Request
		r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid JSON", http.StatusBadRequest)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		id, err := saver.Save(ctx, user, storage.Report{
			ID:         req.ID,
			Kind:       req.Kind,
			SourceCode: req.SourceCode,
			Data:       req.Data,
		})
		if err != nil {
			switch {
			case errors.Is(err, service.ErrInvalidKind), errors.Is(err, service.ErrInvalidData),
				errors.Is(err, storage.ErrInvalidReportID):
				http.Error(w, err.Error(), http.StatusBadRequest)
			case errors.Is(err, service.ErrUnknownDefinition), errors.Is(err, storage.ErrTemplateNotFound):
				http.Error(w, "Unknown template or test definition", http.StatusNotFound)
			default:
				log.Error("failed to save report", slog.String("op", op), slog.String("error", err.Error()))
				http.Error(w, "Failed to save report", http.StatusInternalServerError)
			}
			return
		}

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, map[string]string{"id": id})
	}
}
