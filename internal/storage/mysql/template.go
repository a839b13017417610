package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"

	"cmt-backend/internal/storage"
)

const errDuplicateEntry = 1062

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTemplate(row rowScanner) (*storage.Template, error) {
	template := &storage.Template{}

	// JSON columns come back as text
	var schemaJSON, rulesJSON string
	err := row.Scan(
		&template.ID,
		&template.Code,
		&template.Name,
		&template.TestType,
		&schemaJSON,
		&rulesJSON,
		&template.IsActive,
		&template.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(schemaJSON), &template.Schema); err != nil {
		return nil, fmt.Errorf("parse schema json: %w", err)
	}
	if err := json.Unmarshal([]byte(rulesJSON), &template.Rules); err != nil {
		return nil, fmt.Errorf("parse rules json: %w", err)
	}

	return template, nil
}

const templateColumns = "id, code, name, test_type, schema_json, rules_json, is_active, updated_at"

// GetTemplateByCode returns an active template.
func (s *Storage) GetTemplateByCode(ctx context.Context, code string) (*storage.Template, error) {
	const op = "storage.mysql.GetTemplateByCode"

	query := "SELECT " + templateColumns + " FROM lab_templates WHERE code = ? AND is_active = TRUE"

	template, err := scanTemplate(s.db.QueryRowContext(ctx, query, code))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: code=%q: %w", op, code, storage.ErrTemplateNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return template, nil
}

// GetTemplateByCodeAdmin returns a template regardless of is_active.
func (s *Storage) GetTemplateByCodeAdmin(ctx context.Context, code string) (*storage.Template, error) {
	const op = "storage.mysql.GetTemplateByCodeAdmin"

	query := "SELECT " + templateColumns + " FROM lab_templates WHERE code = ?"

	template, err := scanTemplate(s.db.QueryRowContext(ctx, query, code))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: code=%q: %w", op, code, storage.ErrTemplateNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return template, nil
}

func (s *Storage) ListTemplates(ctx context.Context) ([]*storage.Template, error) {
	const op = "storage.mysql.ListTemplates"
	return s.listTemplates(ctx, op, "SELECT "+templateColumns+" FROM lab_templates WHERE is_active = TRUE ORDER BY code")
}

func (s *Storage) ListTemplatesAdmin(ctx context.Context) ([]*storage.Template, error) {
	const op = "storage.mysql.ListTemplatesAdmin"
	return s.listTemplates(ctx, op, "SELECT "+templateColumns+" FROM lab_templates ORDER BY code")
}

func (s *Storage) listTemplates(ctx context.Context, op, stmt string) ([]*storage.Template, error) {
	rows, err := s.db.QueryContext(ctx, stmt)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var templates []*storage.Template

	for rows.Next() {
		template, err := scanTemplate(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: scan row: %w", op, err)
		}
		templates = append(templates, template)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: iterate rows: %w", op, err)
	}

	return templates, nil
}

func marshalTemplate(t storage.Template) (schemaJSON, rulesJSON []byte, err error) {
	if schemaJSON, err = json.Marshal(t.Schema); err != nil {
		return nil, nil, err
	}
	if rulesJSON, err = json.Marshal(t.Rules); err != nil {
		return nil, nil, err
	}
	return schemaJSON, rulesJSON, nil
}

// CreateTemplate inserts t and returns its id.
func (s *Storage) CreateTemplate(ctx context.Context, t storage.Template) (int64, error) {
	const op = "storage.mysql.CreateTemplate"

	schemaJSON, rulesJSON, err := marshalTemplate(t)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	stmt := `INSERT INTO lab_templates (code, name, test_type, schema_json, rules_json, is_active)
		VALUES (?, ?, ?, ?, ?, ?)`

	res, err := s.db.ExecContext(ctx, stmt, t.Code, t.Name, t.TestType, schemaJSON, rulesJSON, t.IsActive)
	if err != nil {
		var mysqlErr *mysql.MySQLError
		if errors.As(err, &mysqlErr) && mysqlErr.Number == errDuplicateEntry {
			return 0, fmt.Errorf("%s: code=%q: %w", op, t.Code, storage.ErrTemplateExists)
		}
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("%s: last insert id: %w", op, err)
	}

	return id, nil
}

// UpdateTemplate replaces everything but the code of an existing template.
func (s *Storage) UpdateTemplate(ctx context.Context, code string, t storage.Template) error {
	const op = "storage.mysql.UpdateTemplate"

	schemaJSON, rulesJSON, err := marshalTemplate(t)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	stmt := `UPDATE lab_templates SET name=?, test_type=?, schema_json=?, rules_json=?, is_active=? WHERE code=?`

	res, err := s.db.ExecContext(ctx, stmt, t.Name, t.TestType, schemaJSON, rulesJSON, t.IsActive, code)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: rows affected: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: code=%q: %w", op, code, storage.ErrTemplateNotFound)
	}

	return nil
}
