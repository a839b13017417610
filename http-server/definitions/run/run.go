package run

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"cmt-backend/internal/service"
	"cmt-backend/internal/testdef"
)

// maxBodySize caps JSON request bodies.
const maxBodySize = 1 << 20

type DefinitionRunner interface {
	Run(code string, data testdef.Data) (service.RunResult, error)
}

// RunDefinition executes a built-in test on posted data. Nothing is persisted;
// the wizard calls it after every step to preview results.
func RunDefinition(log *slog.Logger, runner DefinitionRunner) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.definitions.RunDefinition"

		code := chi.URLParam(r, "code")

		var data testdef.Data
		r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
		if err := json.NewDecoder(r.Body).Decode(&data); err != nil {
			http.Error(w, "Invalid JSON", http.StatusBadRequest)
			return
		}

		res, err := runner.Run(code, data)
		if err != nil {
			if errors.Is(err, service.ErrUnknownDefinition) {
				http.Error(w, "Definition not found", http.StatusNotFound)
				return
			}
			log.Error("failed to run definition", slog.String("op", op), slog.String("error", err.Error()))
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		render.JSON(w, r, res)
	}
}
