package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/Nate-Smithline/LedgerTerminal/internal/common"
	"github.com/Nate-Smithline/LedgerTerminal/internal/model"
)

// LookupPatterns returns the cached patterns for vendorKeys, keyed by
// normalized vendor. Keys are de-duplicated and queried in chunks; missing
// keys are simply absent from the result.
func (s *SQLiteStorage) LookupPatterns(ctx context.Context, userID string, vendorKeys []string) (map[string]model.VendorPattern, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(userID, "userID"); err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(vendorKeys))
	unique := make([]string, 0, len(vendorKeys))
	for _, k := range vendorKeys {
		if !seen[k] {
			seen[k] = true
			unique = append(unique, k)
		}
	}

	patterns := make(map[string]model.VendorPattern, len(unique))
	for _, chunk := range common.Chunk(unique, fetchChunk) {
		args := make([]any, 0, len(chunk)+1)
		args = append(args, userID)
		for _, k := range chunk {
			args = append(args, k)
		}

		if err := s.scanPatterns(ctx, patterns, fmt.Sprintf(`
			SELECT user_id, vendor_normalized, category, schedule_c_line, deduction_percent,
				quick_labels, confidence, times_used, updated_at
			FROM vendor_patterns
			WHERE user_id = ? AND vendor_normalized IN (%s)
		`, placeholders(len(chunk))), args...); err != nil {
			return nil, err
		}
	}

	return patterns, nil
}

func (s *SQLiteStorage) scanPatterns(ctx context.Context, into map[string]model.VendorPattern, query string, args ...any) error {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to query vendor patterns: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var (
			p              model.VendorPattern
			category, line sql.NullString
			deduction      sql.NullInt64
			confidence     sql.NullFloat64
			labels         string
		)
		if err := rows.Scan(&p.UserID, &p.VendorNormalized, &category, &line, &deduction,
			&labels, &confidence, &p.TimesUsed, &p.UpdatedAt); err != nil {
			return fmt.Errorf("failed to scan vendor pattern: %w", err)
		}

		p.Category = category.String
		p.ScheduleCLine = line.String
		if deduction.Valid {
			d := int(deduction.Int64)
			p.DeductionPercent = &d
		}
		if confidence.Valid {
			c := confidence.Float64
			p.Confidence = &c
		}
		if err := json.Unmarshal([]byte(labels), &p.QuickLabels); err != nil {
			return fmt.Errorf("failed to decode quick_labels for %q: %w", p.VendorNormalized, err)
		}

		into[p.VendorNormalized] = p
	}
	return rows.Err()
}

// UpsertPattern writes or replaces the pattern for (UserID, VendorNormalized).
// Replacing an existing row bumps times_used.
func (s *SQLiteStorage) UpsertPattern(ctx context.Context, pattern model.VendorPattern) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(pattern.UserID, "userID"); err != nil {
		return err
	}
	if err := validateString(pattern.VendorNormalized, "vendorNormalized"); err != nil {
		return err
	}
	if err := validatePercent(pattern.DeductionPercent); err != nil {
		return err
	}

	labels, err := encodeLabels(pattern.QuickLabels)
	if err != nil {
		return fmt.Errorf("failed to encode quick labels: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO vendor_patterns (
			user_id, vendor_normalized, category, schedule_c_line, deduction_percent,
			quick_labels, confidence, times_used, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, 1, ?)
		ON CONFLICT(user_id, vendor_normalized) DO UPDATE SET
			category = excluded.category,
			schedule_c_line = excluded.schedule_c_line,
			deduction_percent = excluded.deduction_percent,
			quick_labels = excluded.quick_labels,
			confidence = excluded.confidence,
			times_used = vendor_patterns.times_used + 1,
			updated_at = excluded.updated_at
	`, pattern.UserID, pattern.VendorNormalized, nullString(pattern.Category), nullString(pattern.ScheduleCLine),
		pattern.DeductionPercent, labels, pattern.Confidence, s.now())
	if err != nil {
		return fmt.Errorf("failed to upsert vendor pattern %q: %w", pattern.VendorNormalized, err)
	}

	return nil
}
