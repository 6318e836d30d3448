package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Nate-Smithline/LedgerTerminal/internal/common"
	"github.com/Nate-Smithline/LedgerTerminal/internal/model"
	"github.com/Nate-Smithline/LedgerTerminal/internal/notify"
	"github.com/Nate-Smithline/LedgerTerminal/internal/service"
	"github.com/Nate-Smithline/LedgerTerminal/internal/vendor"
)

// MaxImportRows bounds a single upload.
const MaxImportRows = 5000

var dateLayouts = []string{"2006-01-02", time.RFC3339, "01/02/2006"}

// IngestRow is one uploaded or manually entered transaction.
type IngestRow struct {
	Amount          decimal.Decimal `json:"amount"`
	Date            string          `json:"date"`
	Vendor          string          `json:"vendor"`
	Description     string          `json:"description,omitempty"`
	Category        string          `json:"category,omitempty"`
	Notes           string          `json:"notes,omitempty"`
	TransactionType string          `json:"transaction_type,omitempty"`
}

// ImportOptions controls how rows are stored.
type ImportOptions struct {
	Source string
	// TaxYear overrides the year taken from each row's date.
	TaxYear int
	// Dedupe skips rows whose content hash is already stored.
	Dedupe bool
}

// ImportResult counts stored and skipped rows.
type ImportResult struct {
	Inserted int `json:"inserted"`
	Skipped  int `json:"skipped"`
}

// Ingester turns raw rows into stored transactions.
type Ingester struct {
	store    service.TransactionStore
	notifier notify.Publisher
	newID    func() string
}

// NewIngester creates an Ingester. A nil notifier disables notifications.
func NewIngester(store service.TransactionStore, notifier notify.Publisher) *Ingester {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	return &Ingester{store: store, notifier: notifier, newID: uuid.NewString}
}

// Import stores rows for userID. Expenses start pending; income is recorded
// as completed since it needs no categorization.
func (i *Ingester) Import(ctx context.Context, userID string, rows []IngestRow, opts ImportOptions) (ImportResult, error) {
	if userID == "" {
		return ImportResult{}, common.NewAuthorizationError("missing user")
	}
	if len(rows) == 0 || len(rows) > MaxImportRows {
		return ImportResult{}, common.NewValidationError("transactions", fmt.Sprintf("between 1 and %d transactions required", MaxImportRows))
	}
	if opts.TaxYear != 0 && !validTaxYear(opts.TaxYear) {
		return ImportResult{}, common.NewValidationError("tax_year", "tax_year must be between 2000 and 2100")
	}

	txns := make([]model.Transaction, 0, len(rows))
	for idx, row := range rows {
		t, err := i.build(userID, row, model.TypeExpense, opts)
		if err != nil {
			var verr *common.ValidationError
			if errors.As(err, &verr) {
				verr.Field = fmt.Sprintf("rows[%d].%s", idx, verr.Field)
			}
			return ImportResult{}, err
		}
		txns = append(txns, t)
	}

	inserted, err := i.store.SaveTransactions(ctx, txns)
	if err != nil {
		return ImportResult{}, fmt.Errorf("failed to save transactions: %w", err)
	}

	result := ImportResult{Inserted: inserted, Skipped: len(txns) - inserted}
	common.Logger(ctx).Info("Imported transactions",
		"source", opts.Source,
		"inserted", result.Inserted,
		"skipped", result.Skipped)
	notify.Send(ctx, i.notifier, notify.TypeTransactionsImported, userID, result)
	return result, nil
}

// AddManual stores one hand-entered transaction. Without an explicit type it
// is recorded as income.
func (i *Ingester) AddManual(ctx context.Context, userID string, row IngestRow) (model.Transaction, error) {
	if userID == "" {
		return model.Transaction{}, common.NewAuthorizationError("missing user")
	}
	t, err := i.build(userID, row, model.TypeIncome, ImportOptions{Source: "manual"})
	if err != nil {
		return model.Transaction{}, err
	}
	if _, err := i.store.SaveTransactions(ctx, []model.Transaction{t}); err != nil {
		return model.Transaction{}, fmt.Errorf("failed to save transaction: %w", err)
	}
	return t, nil
}

func (i *Ingester) build(userID string, row IngestRow, defaultType model.TransactionType, opts ImportOptions) (model.Transaction, error) {
	rawVendor := strings.TrimSpace(row.Vendor)
	if rawVendor == "" {
		return model.Transaction{}, common.NewValidationError("vendor", "vendor is required")
	}
	date, err := parseDate(row.Date)
	if err != nil {
		return model.Transaction{}, common.NewValidationError("date", fmt.Sprintf("invalid date %q", row.Date))
	}

	txType := defaultType
	switch model.TransactionType(strings.ToLower(strings.TrimSpace(row.TransactionType))) {
	case "":
	case model.TypeExpense:
		txType = model.TypeExpense
	case model.TypeIncome:
		txType = model.TypeIncome
	default:
		return model.Transaction{}, common.NewValidationError("transaction_type", fmt.Sprintf("unknown transaction type %q", row.TransactionType))
	}

	status := model.StatusPending
	if txType == model.TypeIncome {
		status = model.StatusCompleted
	}

	taxYear := opts.TaxYear
	if taxYear == 0 {
		taxYear = date.Year()
	}

	t := model.Transaction{
		ID:               i.newID(),
		UserID:           userID,
		Date:             date,
		Vendor:           rawVendor,
		VendorNormalized: vendor.Normalize(rawVendor),
		Description:      strings.TrimSpace(row.Description),
		Category:         strings.TrimSpace(row.Category),
		Notes:            strings.TrimSpace(row.Notes),
		Amount:           row.Amount,
		Type:             txType,
		Status:           status,
		TaxYear:          taxYear,
		Source:           opts.Source,
	}
	if opts.Dedupe {
		t.Hash = t.GenerateHash()
	}
	return t, nil
}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	var lastErr error
	for _, layout := range dateLayouts {
		d, err := time.Parse(layout, s)
		if err == nil {
			return d.UTC(), nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}
