package upload

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"cmt-backend/internal/service"
	"cmt-backend/internal/storage"
)

const maxUploadSize = 10 << 20

type RowImporter interface {
	Import(ctx context.Context, code string, r io.Reader) (*service.ImportResult, error)
}

// ImportRows reads an xlsx workbook from the multipart field "file" and maps
// its first sheet onto the template columns.
func ImportRows(log *slog.Logger, imp RowImporter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.template.ImportRows"

		code := chi.URLParam(r, "code")

		r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
		file, _, err := r.FormFile("file")
		if err != nil {
			http.Error(w, "Missing xlsx file in field 'file'", http.StatusBadRequest)
			return
		}
		defer file.Close()

		ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
		defer cancel()

		res, err := imp.Import(ctx, code, file)
		if err != nil {
			switch {
			case errors.Is(err, storage.ErrTemplateNotFound):
				http.Error(w, "Template not found", http.StatusNotFound)
			case errors.Is(err, service.ErrEmptyWorkbook):
				http.Error(w, "Workbook has no header row", http.StatusUnprocessableEntity)
			default:
				log.Warn("failed to import workbook", slog.String("op", op), slog.String("code", code), slog.String("error", err.Error()))
				http.Error(w, "Cannot read workbook", http.StatusUnprocessableEntity)
			}
			return
		}

		render.JSON(w, r, res)
	}
}
