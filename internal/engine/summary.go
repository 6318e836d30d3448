package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/Nate-Smithline/LedgerTerminal/internal/common"
	"github.com/Nate-Smithline/LedgerTerminal/internal/model"
	"github.com/Nate-Smithline/LedgerTerminal/internal/service"
	"github.com/Nate-Smithline/LedgerTerminal/internal/tax"
)

const summaryDeductionLimit = 10000

// SummaryStore is what the tax summary reads.
type SummaryStore interface {
	SummaryTransactions(ctx context.Context, userID string, taxYear int) ([]model.Transaction, error)
	ListDeductions(ctx context.Context, userID string, taxYear, limit, offset int) ([]model.Deduction, int, error)
	GetTaxYearSettings(ctx context.Context, userID string, taxYear int) (*model.TaxYearSettings, error)
	GetOrgSettings(ctx context.Context, userID string) (*model.OrgSettings, error)
}

var _ SummaryStore = service.Storage(nil)

// TaxSummary is the Schedule C estimate for one year or quarter.
type TaxSummary struct {
	tax.Summary
	Quarter          *int                `json:"quarter"`
	FilingType       *string             `json:"filingType"`
	Filing           tax.FilingType      `json:"filing"`
	Transactions     []model.Transaction `json:"transactions"`
	TaxYear          int                 `json:"taxYear"`
	TaxRate          float64             `json:"taxRate"`
	TransactionCount int                 `json:"transactionCount"`
}

// SummaryService builds tax summaries.
type SummaryService struct {
	store SummaryStore
}

// NewSummaryService creates a SummaryService.
func NewSummaryService(store SummaryStore) *SummaryService {
	return &SummaryService{store: store}
}

// Summary computes the estimate for taxYear, restricted to quarter when it is
// 1 through 4. A zero quarter means the full year.
func (s *SummaryService) Summary(ctx context.Context, userID string, taxYear, quarter int) (TaxSummary, error) {
	if userID == "" {
		return TaxSummary{}, common.NewAuthorizationError("missing user")
	}
	if !validTaxYear(taxYear) {
		return TaxSummary{}, common.NewValidationError("tax_year", "tax_year must be between 2000 and 2100")
	}
	if quarter < 0 || quarter > 4 {
		return TaxSummary{}, common.NewValidationError("quarter", "quarter must be 1, 2, 3 or 4")
	}

	txns, err := s.store.SummaryTransactions(ctx, userID, taxYear)
	if err != nil {
		return TaxSummary{}, fmt.Errorf("failed to load transactions: %w", err)
	}
	deductions, _, err := s.store.ListDeductions(ctx, userID, taxYear, summaryDeductionLimit, 0)
	if err != nil {
		return TaxSummary{}, fmt.Errorf("failed to load deductions: %w", err)
	}

	rate := tax.DefaultTaxRate
	settings, err := s.store.GetTaxYearSettings(ctx, userID, taxYear)
	switch {
	case err == nil && settings.TaxRate.IsPositive():
		rate = settings.TaxRate
	case err != nil && !errors.Is(err, common.ErrNotFound):
		return TaxSummary{}, fmt.Errorf("failed to load tax settings: %w", err)
	}

	out := TaxSummary{TaxYear: taxYear, TaxRate: rate.InexactFloat64()}
	org, err := s.store.GetOrgSettings(ctx, userID)
	switch {
	case err == nil && org.FilingType != "":
		ft := org.FilingType
		out.FilingType = &ft
		out.Filing = tax.LookupFilingType(ft)
	case err != nil && !errors.Is(err, common.ErrNotFound):
		return TaxSummary{}, fmt.Errorf("failed to load org settings: %w", err)
	default:
		out.Filing = tax.LookupFilingType("")
	}

	if quarter != 0 {
		q := quarter
		out.Quarter = &q
		txns = tax.FilterByQuarter(txns, quarter)
	}
	if txns == nil {
		txns = []model.Transaction{}
	}

	out.Summary = tax.Calculate(txns, deductions, rate)
	out.Transactions = txns
	out.TransactionCount = len(txns)
	return out, nil
}
