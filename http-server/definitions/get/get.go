package get

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"cmt-backend/internal/testdef"
)

type DefinitionProvider interface {
	List() []testdef.Definition
	Get(code string) (testdef.Definition, bool)
}

type DefinitionItem struct {
	Code     string `json:"code"`
	Name     string `json:"name"`
	Standard string `json:"standard,omitempty"`
	Category string `json:"category"`
	Steps    int    `json:"steps"`
	HasRows  bool   `json:"has_rows"`
}

func GetDefinitions(log *slog.Logger, defs DefinitionProvider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list := defs.List()
		items := make([]DefinitionItem, 0, len(list))
		for _, d := range list {
			items = append(items, DefinitionItem{
				Code:     d.Code,
				Name:     d.Name,
				Standard: d.Standard,
				Category: d.Category,
				Steps:    len(d.Steps),
				HasRows:  d.Rows != nil,
			})
		}
		render.JSON(w, r, items)
	}
}

func GetDefinition(log *slog.Logger, defs DefinitionProvider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code := chi.URLParam(r, "code")
		def, ok := defs.Get(code)
		if !ok {
			log.Warn("definition not found", slog.String("op", "handlers.definitions.GetDefinition"), slog.String("code", code))
			http.Error(w, "Definition not found", http.StatusNotFound)
			return
		}
		render.JSON(w, r, def)
	}
}
