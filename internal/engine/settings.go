package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Nate-Smithline/LedgerTerminal/internal/common"
	"github.com/Nate-Smithline/LedgerTerminal/internal/model"
	"github.com/Nate-Smithline/LedgerTerminal/internal/service"
	"github.com/Nate-Smithline/LedgerTerminal/internal/tax"
)

// SettingsStore persists deductions and per-user tax settings.
type SettingsStore interface {
	service.DeductionStore
	service.SettingsStore
}

// Settings validates and stores standalone deductions and tax settings.
type Settings struct {
	store SettingsStore
	newID func() string
}

// NewSettings creates a Settings service.
func NewSettings(store SettingsStore) *Settings {
	return &Settings{store: store, newID: uuid.NewString}
}

// DeductionRequest creates a standalone deduction such as home office or
// mileage.
type DeductionRequest struct {
	Metadata   map[string]any  `json:"metadata,omitempty"`
	Amount     decimal.Decimal `json:"amount"`
	TaxSavings decimal.Decimal `json:"tax_savings"`
	Type       string          `json:"type"`
	TaxYear    int             `json:"tax_year"`
}

// CreateDeduction stores a standalone deduction.
func (s *Settings) CreateDeduction(ctx context.Context, userID string, req DeductionRequest) (model.Deduction, error) {
	if userID == "" {
		return model.Deduction{}, common.NewAuthorizationError("missing user")
	}
	typ := strings.TrimSpace(req.Type)
	if typ == "" {
		return model.Deduction{}, common.NewValidationError("type", "type is required")
	}
	if !validTaxYear(req.TaxYear) {
		return model.Deduction{}, common.NewValidationError("tax_year", "tax_year must be between 2000 and 2100")
	}
	if req.Amount.IsNegative() {
		return model.Deduction{}, common.NewValidationError("amount", "amount must not be negative")
	}

	d := model.Deduction{
		ID:         s.newID(),
		UserID:     userID,
		Type:       typ,
		TaxYear:    req.TaxYear,
		Amount:     req.Amount,
		TaxSavings: req.TaxSavings,
		Metadata:   req.Metadata,
	}
	if err := s.store.CreateDeduction(ctx, &d); err != nil {
		return model.Deduction{}, fmt.Errorf("failed to create deduction: %w", err)
	}
	return d, nil
}

// ListDeductions returns one page of deductions and the total count.
func (s *Settings) ListDeductions(ctx context.Context, userID string, taxYear, limit, offset int) ([]model.Deduction, int, error) {
	if userID == "" {
		return nil, 0, common.NewAuthorizationError("missing user")
	}
	if taxYear != 0 && !validTaxYear(taxYear) {
		return nil, 0, common.NewValidationError("tax_year", "tax_year must be between 2000 and 2100")
	}
	f := service.TransactionFilter{Limit: limit, Offset: offset}
	if err := normalizePaging(&f); err != nil {
		return nil, 0, err
	}
	list, total, err := s.store.ListDeductions(ctx, userID, taxYear, f.Limit, f.Offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list deductions: %w", err)
	}
	if list == nil {
		list = []model.Deduction{}
	}
	return list, total, nil
}

// SetTaxRate stores the marginal income tax rate used for taxYear.
func (s *Settings) SetTaxRate(ctx context.Context, userID string, taxYear int, rate decimal.Decimal) (model.TaxYearSettings, error) {
	if userID == "" {
		return model.TaxYearSettings{}, common.NewAuthorizationError("missing user")
	}
	if !validTaxYear(taxYear) {
		return model.TaxYearSettings{}, common.NewValidationError("tax_year", "tax_year must be between 2000 and 2100")
	}
	if rate.IsNegative() || rate.GreaterThan(decimal.NewFromInt(1)) {
		return model.TaxYearSettings{}, common.NewValidationError("tax_rate", "tax_rate must be between 0 and 1")
	}

	settings := model.TaxYearSettings{UserID: userID, TaxYear: taxYear, TaxRate: rate}
	if err := s.store.UpsertTaxYearSettings(ctx, settings); err != nil {
		return model.TaxYearSettings{}, fmt.Errorf("failed to save tax settings: %w", err)
	}
	return settings, nil
}

// TaxYearSettings returns the stored settings for taxYear, or the default
// rate when none have been saved.
func (s *Settings) TaxYearSettings(ctx context.Context, userID string, taxYear int) (model.TaxYearSettings, error) {
	if userID == "" {
		return model.TaxYearSettings{}, common.NewAuthorizationError("missing user")
	}
	if !validTaxYear(taxYear) {
		return model.TaxYearSettings{}, common.NewValidationError("tax_year", "tax_year must be between 2000 and 2100")
	}
	settings, err := s.store.GetTaxYearSettings(ctx, userID, taxYear)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return model.TaxYearSettings{UserID: userID, TaxYear: taxYear, TaxRate: tax.DefaultTaxRate}, nil
		}
		return model.TaxYearSettings{}, fmt.Errorf("failed to load tax settings: %w", err)
	}
	return *settings, nil
}

// OrgSettings returns the user's business profile, or an empty profile when
// none has been saved.
func (s *Settings) OrgSettings(ctx context.Context, userID string) (model.OrgSettings, error) {
	if userID == "" {
		return model.OrgSettings{}, common.NewAuthorizationError("missing user")
	}
	org, err := s.store.GetOrgSettings(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return model.OrgSettings{UserID: userID}, nil
		}
		return model.OrgSettings{}, fmt.Errorf("failed to load org settings: %w", err)
	}
	return *org, nil
}

// SaveOrgSettings stores the user's business profile.
func (s *Settings) SaveOrgSettings(ctx context.Context, userID string, org model.OrgSettings) (model.OrgSettings, error) {
	if userID == "" {
		return model.OrgSettings{}, common.NewAuthorizationError("missing user")
	}
	if org.FilingType != "" && !tax.IsFilingType(org.FilingType) {
		return model.OrgSettings{}, common.NewValidationError("filing_type", fmt.Sprintf("unknown filing type %q", org.FilingType))
	}
	org.UserID = userID
	if err := s.store.UpsertOrgSettings(ctx, org); err != nil {
		return model.OrgSettings{}, fmt.Errorf("failed to save org settings: %w", err)
	}
	return org, nil
}
