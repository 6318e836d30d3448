package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Nate-Smithline/LedgerTerminal/internal/common"
	"github.com/Nate-Smithline/LedgerTerminal/internal/model"
)

// UpsertTaxYearSettings stores the income tax rate for a user and year.
func (s *SQLiteStorage) UpsertTaxYearSettings(ctx context.Context, settings model.TaxYearSettings) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(settings.UserID, "userID"); err != nil {
		return err
	}

	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO tax_year_settings (user_id, tax_year, tax_rate, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id, tax_year) DO UPDATE SET tax_rate = excluded.tax_rate
	`, settings.UserID, settings.TaxYear, settings.TaxRate, s.now()); err != nil {
		return fmt.Errorf("failed to save tax year settings: %w", err)
	}
	return nil
}

// GetTaxYearSettings returns the settings for a user and year, or
// common.ErrNotFound.
func (s *SQLiteStorage) GetTaxYearSettings(ctx context.Context, userID string, taxYear int) (*model.TaxYearSettings, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	var settings model.TaxYearSettings
	err := s.db.QueryRowContext(ctx, `
		SELECT user_id, tax_year, tax_rate, created_at
		FROM tax_year_settings
		WHERE user_id = ? AND tax_year = ?
	`, userID, taxYear).Scan(&settings.UserID, &settings.TaxYear, &settings.TaxRate, &settings.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("tax year settings for %d: %w", taxYear, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get tax year settings: %w", err)
	}
	return &settings, nil
}

// UpsertOrgSettings stores business-level settings for a user.
func (s *SQLiteStorage) UpsertOrgSettings(ctx context.Context, settings model.OrgSettings) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(settings.UserID, "userID"); err != nil {
		return err
	}

	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO org_settings (user_id, business_name, ein, business_address, filing_type, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			business_name = excluded.business_name,
			ein = excluded.ein,
			business_address = excluded.business_address,
			filing_type = excluded.filing_type,
			updated_at = excluded.updated_at
	`, settings.UserID, nullString(settings.BusinessName), nullString(settings.EIN),
		nullString(settings.BusinessAddress), nullString(settings.FilingType), s.now()); err != nil {
		return fmt.Errorf("failed to save org settings: %w", err)
	}
	return nil
}

// GetOrgSettings returns a user's business settings, or common.ErrNotFound.
func (s *SQLiteStorage) GetOrgSettings(ctx context.Context, userID string) (*model.OrgSettings, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	var (
		settings                       model.OrgSettings
		name, ein, address, filingType sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT user_id, business_name, ein, business_address, filing_type, updated_at
		FROM org_settings WHERE user_id = ?
	`, userID).Scan(&settings.UserID, &name, &ein, &address, &filingType, &settings.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("org settings: %w", common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get org settings: %w", err)
	}

	settings.BusinessName = name.String
	settings.EIN = ein.String
	settings.BusinessAddress = address.String
	settings.FilingType = filingType.String
	return &settings, nil
}
