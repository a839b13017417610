package mysql

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cmt-backend/internal/storage"
)

func newMock(t *testing.T) (*Storage, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewWithDB(db), mock
}

var templateCols = []string{"id", "code", "name", "test_type", "schema_json", "rules_json", "is_active", "updated_at"}

func TestGetTemplateByCode(t *testing.T) {
	updated := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		setupMock func(mock sqlmock.Sqlmock)
		wantErr   error
		check     func(t *testing.T, tpl *storage.Template)
	}{
		{
			name: "found",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(regexp.QuoteMeta("FROM lab_templates WHERE code = ? AND is_active = TRUE")).
					WithArgs("fdt").
					WillReturnRows(sqlmock.NewRows(templateCols).AddRow(
						7, "fdt", "Field density", "field_density",
						`{"columns":[{"id":"mass","label":"Mass","type":"number"}],"locked":[],"required":["mass"]}`,
						`{"kpis":{"density":"mass / 2"},"thresholds":{"min_density":1}}`,
						true, updated,
					))
			},
			check: func(t *testing.T, tpl *storage.Template) {
				assert.Equal(t, int64(7), tpl.ID)
				assert.Equal(t, "field_density", tpl.TestType)
				require.Len(t, tpl.Schema.Columns, 1)
				assert.Equal(t, storage.ColumnNumber, tpl.Schema.Columns[0].Type)
				assert.Equal(t, "mass / 2", tpl.Rules.KPIs["density"])
				assert.Equal(t, 1.0, tpl.Rules.Thresholds["min_density"])
				assert.Equal(t, updated, tpl.UpdatedAt)
			},
		},
		{
			name: "not found",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery("FROM lab_templates").WithArgs("fdt").WillReturnError(sql.ErrNoRows)
			},
			wantErr: storage.ErrTemplateNotFound,
		},
		{
			name: "broken schema json",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery("FROM lab_templates").WithArgs("fdt").
					WillReturnRows(sqlmock.NewRows(templateCols).AddRow(7, "fdt", "x", "", "{", "{}", true, updated))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, mock := newMock(t)
			tt.setupMock(mock)

			tpl, err := s.GetTemplateByCode(context.Background(), "fdt")
			switch {
			case tt.wantErr != nil:
				assert.ErrorIs(t, err, tt.wantErr)
			case tt.check == nil:
				assert.Error(t, err)
			default:
				require.NoError(t, err)
				tt.check(t, tpl)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestListTemplatesAdmin(t *testing.T) {
	s, mock := newMock(t)
	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT " + templateColumns + " FROM lab_templates ORDER BY code")).
		WillReturnRows(sqlmock.NewRows(templateCols).
			AddRow(1, "a", "A", "", `{"columns":[]}`, `{}`, true, now).
			AddRow(2, "b", "B", "", `{"columns":[]}`, `{}`, false, now))

	list, err := s.ListTemplatesAdmin(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.False(t, list[1].IsActive)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateTemplate(t *testing.T) {
	tpl := storage.Template{Code: "acv", Name: "ACV", IsActive: true}

	t.Run("inserted", func(t *testing.T) {
		s, mock := newMock(t)
		mock.ExpectExec("INSERT INTO lab_templates").
			WithArgs("acv", "ACV", "", sqlmock.AnyArg(), sqlmock.AnyArg(), true).
			WillReturnResult(sqlmock.NewResult(42, 1))

		id, err := s.CreateTemplate(context.Background(), tpl)
		require.NoError(t, err)
		assert.Equal(t, int64(42), id)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("duplicate code", func(t *testing.T) {
		s, mock := newMock(t)
		mock.ExpectExec("INSERT INTO lab_templates").
			WillReturnError(&mysql.MySQLError{Number: errDuplicateEntry, Message: "Duplicate entry"})

		_, err := s.CreateTemplate(context.Background(), tpl)
		assert.ErrorIs(t, err, storage.ErrTemplateExists)
	})
}

func TestUpdateTemplate(t *testing.T) {
	tests := []struct {
		name     string
		affected int64
		wantErr  error
	}{
		{name: "updated", affected: 1},
		{name: "unknown code", affected: 0, wantErr: storage.ErrTemplateNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, mock := newMock(t)
			mock.ExpectExec("UPDATE lab_templates SET").
				WithArgs("ACV", "", sqlmock.AnyArg(), sqlmock.AnyArg(), false, "acv").
				WillReturnResult(sqlmock.NewResult(0, tt.affected))

			err := s.UpdateTemplate(context.Background(), "acv", storage.Template{Name: "ACV"})
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}
