package update

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"cmt-backend/internal/storage"
)

type MockTemplateUpdateProvider struct {
	mock.Mock
}

func (m *MockTemplateUpdateProvider) UpdateTemplate(ctx context.Context, code string, t storage.Template) error {
	return m.Called(ctx, code, t).Error(0)
}

func TestUpdateTemplateAdmin(t *testing.T) {
	valid := `{"code":"ignored","name":"Moisture","schema":{"columns":[{"id":"w","label":"W","type":"number"}]},"rules":{}}`

	tests := []struct {
		name     string
		body     string
		retErr   error
		wantCode int
	}{
		{name: "updated", body: valid, wantCode: http.StatusOK},
		{name: "unknown code", body: valid, retErr: storage.ErrTemplateNotFound, wantCode: http.StatusNotFound},
		{name: "schema error", body: `{"name":"Moisture","schema":{"columns":[{"id":"w","label":"W","type":"colour"}]}}`, wantCode: http.StatusUnprocessableEntity},
		{name: "invalid json", body: `[`, wantCode: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := new(MockTemplateUpdateProvider)
			m.On("UpdateTemplate", mock.Anything, "mc", mock.MatchedBy(func(tpl storage.Template) bool {
				return tpl.Code == "mc"
			})).Return(tt.retErr)

			r := chi.NewRouter()
			r.Put("/api/admin/templates/{code}", UpdateTemplateAdmin(slog.New(slog.DiscardHandler), m))

			rr := httptest.NewRecorder()
			r.ServeHTTP(rr, httptest.NewRequest(http.MethodPut, "/api/admin/templates/mc", strings.NewReader(tt.body)))

			assert.Equal(t, tt.wantCode, rr.Code)
		})
	}
}
