package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Nate-Smithline/LedgerTerminal/internal/common"
	"github.com/Nate-Smithline/LedgerTerminal/internal/model"
	"github.com/Nate-Smithline/LedgerTerminal/internal/service"
)

const transactionColumns = `id, user_id, date, vendor, vendor_normalized, description, notes, amount,
	transaction_type, tax_year, source, category, schedule_c_line, ai_confidence, ai_suggestions,
	is_meal, is_travel, deduction_percent, status, quick_label, business_purpose, auto_sort_rule_id,
	created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (model.Transaction, error) {
	var (
		t                                          model.Transaction
		description, notes, source, category, line sql.NullString
		quickLabel, purpose, ruleID                sql.NullString
		confidence                                 sql.NullFloat64
		deduction                                  sql.NullInt64
		suggestions, txType, status                string
	)

	err := row.Scan(
		&t.ID, &t.UserID, &t.Date, &t.Vendor, &t.VendorNormalized, &description, &notes, &t.Amount,
		&txType, &t.TaxYear, &source, &category, &line, &confidence, &suggestions,
		&t.IsMeal, &t.IsTravel, &deduction, &status, &quickLabel, &purpose, &ruleID,
		&t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return t, err
	}

	t.Description = description.String
	t.Notes = notes.String
	t.Source = source.String
	t.Category = category.String
	t.ScheduleCLine = line.String
	t.QuickLabel = quickLabel.String
	t.BusinessPurpose = purpose.String
	t.AutoSortRuleID = ruleID.String
	t.Type = model.TransactionType(txType)
	t.Status = model.Status(status)
	if confidence.Valid {
		c := confidence.Float64
		t.AIConfidence = &c
	}
	if deduction.Valid {
		d := int(deduction.Int64)
		t.DeductionPercent = &d
	}
	if err := json.Unmarshal([]byte(suggestions), &t.AISuggestions); err != nil {
		return t, fmt.Errorf("failed to decode ai_suggestions for %s: %w", t.ID, err)
	}

	return t, nil
}

func encodeLabels(labels []string) (string, error) {
	if labels == nil {
		labels = []string{}
	}
	b, err := json.Marshal(labels)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// SaveTransactions inserts transactions in a single database transaction.
// Rows whose hash already exists are skipped; the number inserted is returned.
func (s *SQLiteStorage) SaveTransactions(ctx context.Context, transactions []model.Transaction) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	for i := range transactions {
		if err := validateTransaction(&transactions[i]); err != nil {
			return 0, fmt.Errorf("transaction at index %d: %w", i, err)
		}
	}
	if len(transactions) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO transactions (
			id, user_id, date, vendor, vendor_normalized, description, notes, amount,
			transaction_type, tax_year, source, category, schedule_c_line, ai_suggestions,
			is_meal, is_travel, deduction_percent, status, hash, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	now := s.now()
	inserted := 0
	for _, t := range transactions {
		suggestions, err := encodeLabels(t.AISuggestions)
		if err != nil {
			return 0, fmt.Errorf("failed to encode suggestions: %w", err)
		}

		res, err := stmt.ExecContext(ctx,
			t.ID, t.UserID, t.Date, t.Vendor, t.VendorNormalized, nullString(t.Description), nullString(t.Notes), t.Amount,
			string(t.Type), t.TaxYear, nullString(t.Source), nullString(t.Category), nullString(t.ScheduleCLine), suggestions,
			t.IsMeal, t.IsTravel, t.DeductionPercent, string(t.Status), nullString(t.Hash), now, now,
		)
		if err != nil {
			return 0, fmt.Errorf("failed to insert transaction %s: %w", t.ID, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			inserted++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transactions: %w", err)
	}
	return inserted, nil
}

// GetTransactionsByIDs fetches the caller's transactions for ids, querying in
// bounded chunks. Ids that do not exist or belong to another user are omitted.
// Results follow the order of ids.
func (s *SQLiteStorage) GetTransactionsByIDs(ctx context.Context, userID string, ids []string) ([]model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(userID, "userID"); err != nil {
		return nil, err
	}

	byID := make(map[string]model.Transaction, len(ids))
	for _, chunk := range common.Chunk(ids, fetchChunk) {
		args := make([]any, 0, len(chunk)+1)
		args = append(args, userID)
		for _, id := range chunk {
			args = append(args, id)
		}

		query := fmt.Sprintf(`SELECT %s FROM transactions WHERE user_id = ? AND id IN (%s)`,
			transactionColumns, placeholders(len(chunk)))
		found, err := s.queryTransactions(ctx, s.db, query, args...)
		if err != nil {
			return nil, fmt.Errorf("failed to load transactions: %w", err)
		}
		for _, t := range found {
			byID[t.ID] = t
		}
	}

	ordered := make([]model.Transaction, 0, len(byID))
	for _, id := range ids {
		if t, ok := byID[id]; ok {
			ordered = append(ordered, t)
			delete(byID, id)
		}
	}
	return ordered, nil
}

// ApplyClassification writes categorization fields onto one transaction owned
// by userID. Writing the same update twice leaves identical state.
func (s *SQLiteStorage) ApplyClassification(ctx context.Context, userID, transactionID string, update model.ClassificationUpdate) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(transactionID, "transactionID"); err != nil {
		return err
	}
	pct := update.DeductionPercent
	if err := validatePercent(&pct); err != nil {
		return err
	}

	suggestions, err := encodeLabels(update.Suggestions)
	if err != nil {
		return fmt.Errorf("failed to encode suggestions: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE transactions SET
			category = ?,
			schedule_c_line = ?,
			ai_confidence = ?,
			ai_suggestions = ?,
			deduction_percent = ?,
			is_meal = COALESCE(?, is_meal),
			is_travel = COALESCE(?, is_travel),
			updated_at = ?
		WHERE id = ? AND user_id = ?
	`, nullString(update.Category), nullString(update.ScheduleCLine), update.Confidence, suggestions,
		update.DeductionPercent, update.IsMeal, update.IsTravel, s.now(), transactionID, userID)
	if err != nil {
		return fmt.Errorf("failed to update transaction %s: %w", transactionID, err)
	}

	return requireAffected(res, transactionID)
}

// ListTransactions returns transactions matching filter, newest first.
func (s *SQLiteStorage) ListTransactions(ctx context.Context, filter service.TransactionFilter) ([]model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(filter.UserID, "userID"); err != nil {
		return nil, err
	}

	where := []string{"user_id = ?"}
	args := []any{filter.UserID}

	if filter.TaxYear != 0 {
		where = append(where, "tax_year = ?")
		args = append(args, filter.TaxYear)
	}
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(filter.Status))
	}
	if filter.Type != "" {
		where = append(where, "transaction_type = ?")
		args = append(args, string(filter.Type))
	}
	if filter.VendorNormalized != "" {
		where = append(where, "vendor_normalized = ?")
		args = append(args, filter.VendorNormalized)
	}
	if filter.ExcludeID != "" {
		where = append(where, "id != ?")
		args = append(args, filter.ExcludeID)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit, max(0, filter.Offset))

	query := fmt.Sprintf(`SELECT %s FROM transactions WHERE %s ORDER BY date DESC, id LIMIT ? OFFSET ?`,
		transactionColumns, strings.Join(where, " AND "))

	return s.queryTransactions(ctx, s.db, query, args...)
}

// UpdateReview applies the user's review fields to one transaction.
func (s *SQLiteStorage) UpdateReview(ctx context.Context, userID string, update service.ReviewUpdate) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(update.ID, "id"); err != nil {
		return err
	}
	if err := validatePercent(update.DeductionPercent); err != nil {
		return err
	}

	sets := []string{"updated_at = ?"}
	args := []any{s.now()}

	if update.QuickLabel != nil {
		sets = append(sets, "quick_label = ?")
		args = append(args, *update.QuickLabel)
	}
	if update.BusinessPurpose != nil {
		sets = append(sets, "business_purpose = ?")
		args = append(args, *update.BusinessPurpose)
	}
	if update.Notes != nil {
		sets = append(sets, "notes = ?")
		args = append(args, *update.Notes)
	}
	if update.Status != nil {
		sets = append(sets, "status = ?")
		args = append(args, string(*update.Status))
	}
	if update.DeductionPercent != nil {
		sets = append(sets, "deduction_percent = ?")
		args = append(args, *update.DeductionPercent)
	}
	args = append(args, update.ID, userID)

	res, err := s.db.ExecContext(ctx,
		fmt.Sprintf(`UPDATE transactions SET %s WHERE id = ? AND user_id = ?`, strings.Join(sets, ", ")),
		args...)
	if err != nil {
		return fmt.Errorf("failed to update transaction %s: %w", update.ID, err)
	}
	return requireAffected(res, update.ID)
}

// SummaryTransactions returns the reviewed (completed or auto-sorted)
// transactions for a tax year.
func (s *SQLiteStorage) SummaryTransactions(ctx context.Context, userID string, taxYear int) ([]model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`SELECT %s FROM transactions
		WHERE user_id = ? AND tax_year = ? AND status IN (?, ?)
		ORDER BY date DESC, id`, transactionColumns)
	return s.queryTransactions(ctx, s.db, query,
		userID, taxYear, string(model.StatusCompleted), string(model.StatusAutoSorted))
}

func (s *SQLiteStorage) queryTransactions(ctx context.Context, q queryable, query string, args ...any) ([]model.Transaction, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var transactions []model.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		transactions = append(transactions, t)
	}
	return transactions, rows.Err()
}

func requireAffected(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("transaction %s: %w", id, common.ErrNotFound)
	}
	return nil
}
