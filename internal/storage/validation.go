// Package storage provides the SQLite persistence layer: transactions, the
// vendor-pattern cache, auto-sort rules, deductions and settings.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Nate-Smithline/LedgerTerminal/internal/model"
)

// Validation errors.
var (
	ErrNilContext         = errors.New("context cannot be nil")
	ErrEmptyString        = errors.New("string parameter cannot be empty")
	ErrNilParameter       = errors.New("parameter cannot be nil")
	ErrInvalidTransaction = errors.New("invalid transaction")
	ErrInvalidPercent     = errors.New("deduction percent must be between 0 and 100")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

func validatePercent(pct *int) error {
	if pct != nil && (*pct < 0 || *pct > 100) {
		return fmt.Errorf("%w: got %d", ErrInvalidPercent, *pct)
	}
	return nil
}

// validateTransaction validates a single transaction before insert.
func validateTransaction(txn *model.Transaction) error {
	if txn.ID == "" {
		return fmt.Errorf("%w: missing ID", ErrInvalidTransaction)
	}
	if txn.UserID == "" {
		return fmt.Errorf("%w: missing user ID", ErrInvalidTransaction)
	}
	if txn.Date.IsZero() {
		return fmt.Errorf("%w: missing date", ErrInvalidTransaction)
	}
	if txn.TaxYear == 0 {
		return fmt.Errorf("%w: missing tax year", ErrInvalidTransaction)
	}
	if txn.Type != model.TypeExpense && txn.Type != model.TypeIncome {
		return fmt.Errorf("%w: invalid type %q", ErrInvalidTransaction, txn.Type)
	}
	if !txn.Status.Valid() {
		return fmt.Errorf("%w: invalid status %q", ErrInvalidTransaction, txn.Status)
	}
	if err := validatePercent(txn.DeductionPercent); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidTransaction, err)
	}
	return nil
}
