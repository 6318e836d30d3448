package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/Nate-Smithline/LedgerTerminal/internal/common"
	"github.com/Nate-Smithline/LedgerTerminal/internal/model"
	"github.com/Nate-Smithline/LedgerTerminal/internal/service"
)

// Paging limits for transaction listings.
const (
	DefaultListLimit = 100
	MaxListLimit     = 1000
	MaxListOffset    = 10000
)

// Reviewer lists transactions and records a user's review decisions.
type Reviewer struct {
	store service.TransactionStore
}

// NewReviewer creates a Reviewer.
func NewReviewer(store service.TransactionStore) *Reviewer {
	return &Reviewer{store: store}
}

// List returns the user's transactions matching filter. The user id always
// comes from the caller, never from the filter.
func (r *Reviewer) List(ctx context.Context, userID string, filter service.TransactionFilter) ([]model.Transaction, error) {
	if userID == "" {
		return nil, common.NewAuthorizationError("missing user")
	}
	if err := normalizePaging(&filter); err != nil {
		return nil, err
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, common.NewValidationError("status", fmt.Sprintf("unknown status %q", filter.Status))
	}
	if filter.TaxYear != 0 && !validTaxYear(filter.TaxYear) {
		return nil, common.NewValidationError("tax_year", "tax_year must be between 2000 and 2100")
	}
	filter.UserID = userID

	txns, err := r.store.ListTransactions(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	return txns, nil
}

// Similar lists the user's other pending transactions from the same vendor
// as transactionID.
func (r *Reviewer) Similar(ctx context.Context, userID, transactionID string, limit, offset int) ([]model.Transaction, error) {
	if _, err := uuid.Parse(transactionID); err != nil {
		return nil, common.NewValidationError("id", "invalid transaction id")
	}
	found, err := r.store.GetTransactionsByIDs(ctx, userID, []string{transactionID})
	if err != nil {
		return nil, fmt.Errorf("failed to load transaction: %w", err)
	}
	if len(found) == 0 {
		return nil, common.ErrNotFound
	}

	return r.List(ctx, userID, service.TransactionFilter{
		VendorNormalized: found[0].VendorNormalized,
		ExcludeID:        transactionID,
		Status:           model.StatusPending,
		Limit:            limit,
		Offset:           offset,
	})
}

// Update applies a review decision. Marking a transaction personal zeroes its
// deduction percent.
func (r *Reviewer) Update(ctx context.Context, userID string, update service.ReviewUpdate) error {
	if userID == "" {
		return common.NewAuthorizationError("missing user")
	}
	if _, err := uuid.Parse(update.ID); err != nil {
		return common.NewValidationError("id", "invalid transaction id")
	}
	if update.Status != nil {
		if !update.Status.Valid() {
			return common.NewValidationError("status", fmt.Sprintf("unknown status %q", *update.Status))
		}
		if *update.Status == model.StatusPersonal {
			zero := 0
			update.DeductionPercent = &zero
		}
	}
	if update.DeductionPercent != nil && (*update.DeductionPercent < 0 || *update.DeductionPercent > 100) {
		return common.NewValidationError("deduction_percent", "deduction_percent must be between 0 and 100")
	}

	if err := r.store.UpdateReview(ctx, userID, update); err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return err
		}
		return fmt.Errorf("failed to update transaction: %w", err)
	}
	return nil
}

func normalizePaging(f *service.TransactionFilter) error {
	if f.Limit == 0 {
		f.Limit = DefaultListLimit
	}
	if f.Limit < 1 || f.Limit > MaxListLimit {
		return common.NewValidationError("limit", fmt.Sprintf("limit must be between 1 and %d", MaxListLimit))
	}
	if f.Offset < 0 || f.Offset > MaxListOffset {
		return common.NewValidationError("offset", fmt.Sprintf("offset must be between 0 and %d", MaxListOffset))
	}
	return nil
}
