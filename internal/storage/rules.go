package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Nate-Smithline/LedgerTerminal/internal/model"
)

// ApplyAutoSortRule records rule and marks every pending transaction of the
// rule's user with a matching normalized vendor (and tax year, when given) as
// auto-sorted. Both writes commit together. It returns the number of
// transactions updated.
func (s *SQLiteStorage) ApplyAutoSortRule(ctx context.Context, rule *model.AutoSortRule, taxYear *int) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	if rule == nil {
		return 0, fmt.Errorf("%w: rule", ErrNilParameter)
	}
	for name, v := range map[string]string{
		"id":            rule.ID,
		"userID":        rule.UserID,
		"vendorPattern": rule.VendorPattern,
		"quickLabel":    rule.QuickLabel,
	} {
		if err := validateString(v, name); err != nil {
			return 0, err
		}
	}

	if rule.CreatedAt.IsZero() {
		rule.CreatedAt = s.now()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO auto_sort_rules (id, user_id, vendor_pattern, quick_label, business_purpose, category, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, rule.ID, rule.UserID, rule.VendorPattern, rule.QuickLabel,
		nullString(rule.BusinessPurpose), nullString(rule.Category), rule.CreatedAt); err != nil {
		return 0, fmt.Errorf("failed to create auto-sort rule: %w", err)
	}

	query := `
		UPDATE transactions SET
			status = ?,
			quick_label = ?,
			business_purpose = ?,
			auto_sort_rule_id = ?,
			updated_at = ?
		WHERE user_id = ? AND vendor_normalized = ? AND status = ?`
	args := []any{
		string(model.StatusAutoSorted), rule.QuickLabel, nullString(rule.BusinessPurpose), rule.ID, s.now(),
		rule.UserID, rule.VendorPattern, string(model.StatusPending),
	}
	if taxYear != nil {
		query += ` AND tax_year = ?`
		args = append(args, *taxYear)
	}

	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to apply auto-sort rule: %w", err)
	}
	updated, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read affected rows: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit auto-sort rule: %w", err)
	}
	return int(updated), nil
}

// GetAutoSortRules lists a user's rules, newest first.
func (s *SQLiteStorage) GetAutoSortRules(ctx context.Context, userID string) ([]model.AutoSortRule, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, vendor_pattern, quick_label, business_purpose, category, created_at
		FROM auto_sort_rules
		WHERE user_id = ?
		ORDER BY created_at DESC, id
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query auto-sort rules: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var rules []model.AutoSortRule
	for rows.Next() {
		var (
			r                 model.AutoSortRule
			purpose, category sql.NullString
		)
		if err := rows.Scan(&r.ID, &r.UserID, &r.VendorPattern, &r.QuickLabel, &purpose, &category, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan auto-sort rule: %w", err)
		}
		r.BusinessPurpose = purpose.String
		r.Category = category.String
		rules = append(rules, r)
	}
	return rules, rows.Err()
}
