// Package testutil provides shared helpers for tests that need a database and
// transaction fixtures.
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Nate-Smithline/LedgerTerminal/internal/model"
	"github.com/Nate-Smithline/LedgerTerminal/internal/storage"
	"github.com/Nate-Smithline/LedgerTerminal/internal/vendor"
)

// SetupTestDB creates a migrated in-memory database that is closed when the
// test finishes.
func SetupTestDB(t *testing.T) *storage.SQLiteStorage {
	t.Helper()

	store, err := storage.NewSQLiteStorage(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})

	if err := store.Migrate(context.Background()); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	return store
}

// TxnOption customizes a fixture transaction.
type TxnOption func(*model.Transaction)

// WithAmount sets the amount from a decimal string.
func WithAmount(amount string) TxnOption {
	return func(t *model.Transaction) {
		t.Amount = decimal.RequireFromString(amount)
	}
}

// WithStatus sets the review status.
func WithStatus(s model.Status) TxnOption {
	return func(t *model.Transaction) {
		t.Status = s
	}
}

// WithoutNormalizedVendor clears the precomputed vendor key, as for rows
// imported before normalization existed.
func WithoutNormalizedVendor() TxnOption {
	return func(t *model.Transaction) {
		t.VendorNormalized = ""
	}
}

// NewTransaction builds a pending 2025 expense for user at vendor.
func NewTransaction(user, rawVendor string, opts ...TxnOption) model.Transaction {
	txn := model.Transaction{
		ID:               uuid.NewString(),
		UserID:           user,
		Date:             time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC),
		Vendor:           rawVendor,
		VendorNormalized: vendor.Normalize(rawVendor),
		Amount:           decimal.RequireFromString("-25.00"),
		Type:             model.TypeExpense,
		Status:           model.StatusPending,
		TaxYear:          2025,
	}
	for _, opt := range opts {
		opt(&txn)
	}
	return txn
}

// SeedTransactions saves txns and fails the test on error.
func SeedTransactions(t *testing.T, store *storage.SQLiteStorage, txns ...model.Transaction) {
	t.Helper()
	if _, err := store.SaveTransactions(context.Background(), txns); err != nil {
		t.Fatalf("failed to seed transactions: %v", err)
	}
}

// IDs returns the ids of txns in order.
func IDs(txns []model.Transaction) []string {
	ids := make([]string, 0, len(txns))
	for _, t := range txns {
		ids = append(ids, t.ID)
	}
	return ids
}
