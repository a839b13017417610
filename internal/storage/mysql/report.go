package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"cmt-backend/internal/storage"
)

// SaveReport stores a draft. A report without id gets a new UUID; an existing id
// has its data replaced.
func (s *Storage) SaveReport(ctx context.Context, r storage.Report) (string, error) {
	const op = "storage.mysql.SaveReport"

	if r.ID == "" {
		r.ID = uuid.NewString()
	} else if _, err := uuid.Parse(r.ID); err != nil {
		return "", fmt.Errorf("%s: %q: %w: %v", op, r.ID, storage.ErrInvalidReportID, err)
	}
	if r.Status == "" {
		r.Status = "pending"
	}

	stmt := `INSERT INTO lab_reports (id, company_id, created_by, kind, source_code, data_json, status)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE data_json = VALUES(data_json)`

	_, err := s.db.ExecContext(ctx, stmt, r.ID, r.CompanyID, r.CreatedBy, r.Kind, r.SourceCode, []byte(r.Data), r.Status)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return r.ID, nil
}

func (s *Storage) GetReport(ctx context.Context, id string) (*storage.Report, error) {
	const op = "storage.mysql.GetReport"

	query := `SELECT id, company_id, created_by, kind, source_code, data_json, summary_json, status, created_at, updated_at
		FROM lab_reports WHERE id = ?`

	r := &storage.Report{}
	var data []byte
	var summary sql.NullString

	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&r.ID,
		&r.CompanyID,
		&r.CreatedBy,
		&r.Kind,
		&r.SourceCode,
		&data,
		&summary,
		&r.Status,
		&r.CreatedAt,
		&r.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: id=%q: %w", op, id, storage.ErrReportNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	r.Data = json.RawMessage(data)
	if summary.Valid {
		r.Summary = json.RawMessage(summary.String)
	}

	return r, nil
}

// UpdateReportSummary persists a computed summary with the new status.
func (s *Storage) UpdateReportSummary(ctx context.Context, id string, summary json.RawMessage, status string) error {
	const op = "storage.mysql.UpdateReportSummary"

	res, err := s.db.ExecContext(ctx, `UPDATE lab_reports SET summary_json = ?, status = ? WHERE id = ?`, []byte(summary), status, id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: rows affected: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: id=%q: %w", op, id, storage.ErrReportNotFound)
	}

	return nil
}
