package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/Nate-Smithline/LedgerTerminal/internal/model"
)

// CreateDeduction stores a standalone deduction.
func (s *SQLiteStorage) CreateDeduction(ctx context.Context, d *model.Deduction) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if d == nil {
		return fmt.Errorf("%w: deduction", ErrNilParameter)
	}
	if err := validateString(d.ID, "id"); err != nil {
		return err
	}
	if err := validateString(d.Type, "type"); err != nil {
		return err
	}

	var metadata sql.NullString
	if len(d.Metadata) > 0 {
		b, err := json.Marshal(d.Metadata)
		if err != nil {
			return fmt.Errorf("failed to encode deduction metadata: %w", err)
		}
		metadata = sql.NullString{String: string(b), Valid: true}
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = s.now()
	}

	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO deductions (id, user_id, type, tax_year, amount, tax_savings, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, d.ID, d.UserID, d.Type, d.TaxYear, d.Amount, d.TaxSavings, metadata, d.CreatedAt); err != nil {
		return fmt.Errorf("failed to save deduction: %w", err)
	}
	return nil
}

// ListDeductions returns one page of a user's deductions, newest first, plus
// the total count. A zero taxYear lists every year.
func (s *SQLiteStorage) ListDeductions(ctx context.Context, userID string, taxYear, limit, offset int) ([]model.Deduction, int, error) {
	if err := validateContext(ctx); err != nil {
		return nil, 0, err
	}

	where := "user_id = ?"
	args := []any{userID}
	if taxYear != 0 {
		where += " AND tax_year = ?"
		args = append(args, taxYear)
	}

	var total int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM deductions WHERE "+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count deductions: %w", err)
	}

	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, type, tax_year, amount, tax_savings, metadata, created_at
		FROM deductions WHERE `+where+`
		ORDER BY created_at DESC, id
		LIMIT ? OFFSET ?`, append(args, limit, max(0, offset))...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query deductions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var deductions []model.Deduction
	for rows.Next() {
		var (
			d        model.Deduction
			metadata sql.NullString
		)
		if err := rows.Scan(&d.ID, &d.UserID, &d.Type, &d.TaxYear, &d.Amount, &d.TaxSavings, &metadata, &d.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("failed to scan deduction: %w", err)
		}
		if metadata.Valid {
			if err := json.Unmarshal([]byte(metadata.String), &d.Metadata); err != nil {
				return nil, 0, fmt.Errorf("failed to decode deduction metadata: %w", err)
			}
		}
		deductions = append(deductions, d)
	}
	return deductions, total, rows.Err()
}
