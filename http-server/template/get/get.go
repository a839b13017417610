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

type TemplateJSON interface {
	GetTemplateByCode(ctx context.Context, code string) (*storage.Template, error)
	ListTemplates(ctx context.Context) ([]*storage.Template, error)

	GetTemplateByCodeAdmin(ctx context.Context, code string) (*storage.Template, error)
	ListTemplatesAdmin(ctx context.Context) ([]*storage.Template, error)
}

// TemplateItem is a template without schema and rules, for listings.
type TemplateItem struct {
	ID        int64     `json:"id"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	TestType  string    `json:"test_type"`
	IsActive  bool      `json:"is_active"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toItems(templates []*storage.Template) []TemplateItem {
	items := make([]TemplateItem, 0, len(templates))
	for _, t := range templates {
		items = append(items, TemplateItem{
			ID:        t.ID,
			Code:      t.Code,
			Name:      t.Name,
			TestType:  t.TestType,
			IsActive:  t.IsActive,
			UpdatedAt: t.UpdatedAt,
		})
	}
	return items
}

func GetTemplateByCode(log *slog.Logger, template TemplateJSON) http.HandlerFunc {
	return getByCode(log, "handlers.template.GetTemplateByCode", template.GetTemplateByCode)
}

func GetTemplateByCodeAdmin(log *slog.Logger, template TemplateJSON) http.HandlerFunc {
	return getByCode(log, "handlers.template.GetTemplateByCodeAdmin", template.GetTemplateByCodeAdmin)
}

func getByCode(log *slog.Logger, op string, get func(context.Context, string) (*storage.Template, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code := chi.URLParam(r, "code")
		if code == "" {
			http.Error(w, "Missing template code", http.StatusBadRequest)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		template, err := get(ctx, code)
		if err != nil {
			if errors.Is(err, storage.ErrTemplateNotFound) {
				log.With(slog.String("op", op), slog.String("code", code)).Warn("template not found")
				http.Error(w, "Template not found", http.StatusNotFound)
				return
			}

			log.With(
				slog.String("op", op),
				slog.String("code", code),
				slog.String("error", err.Error()),
			).Error("failed to fetch template")
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		render.JSON(w, r, template)
	}
}

func GetTemplates(log *slog.Logger, template TemplateJSON) http.HandlerFunc {
	return list(log, "handlers.template.GetTemplates", template.ListTemplates)
}

func GetAllTemplatesAdmin(log *slog.Logger, template TemplateJSON) http.HandlerFunc {
	return list(log, "handlers.template.GetAllTemplatesAdmin", template.ListTemplatesAdmin)
}

func list(log *slog.Logger, op string, fetch func(context.Context) ([]*storage.Template, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		templates, err := fetch(ctx)
		if err != nil {
			log.Error("failed to list templates", slog.String("op", op), slog.String("error", err.Error()))
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		render.JSON(w, r, toItems(templates))
	}
}
