// Package service defines the interfaces for all application services.
package service

import (
	"context"
	"time"

	"github.com/Nate-Smithline/LedgerTerminal/internal/model"
)

// TransactionFilter defines filtering options for transaction queries.
// Zero values mean "no constraint".
type TransactionFilter struct {
	UserID           string
	VendorNormalized string
	ExcludeID        string
	Status           model.Status
	Type             model.TransactionType
	TaxYear          int
	Limit            int
	Offset           int
}

// ReviewUpdate carries the user-editable fields of a transaction. Nil fields
// are left unchanged.
type ReviewUpdate struct {
	QuickLabel       *string
	BusinessPurpose  *string
	Notes            *string
	Status           *model.Status
	DeductionPercent *int
	ID               string
}

// TransactionStore reads and mutates transaction records.
type TransactionStore interface {
	SaveTransactions(ctx context.Context, transactions []model.Transaction) (int, error)
	GetTransactionsByIDs(ctx context.Context, userID string, ids []string) ([]model.Transaction, error)
	ApplyClassification(ctx context.Context, userID, transactionID string, update model.ClassificationUpdate) error
	ListTransactions(ctx context.Context, filter TransactionFilter) ([]model.Transaction, error)
	UpdateReview(ctx context.Context, userID string, update ReviewUpdate) error
	SummaryTransactions(ctx context.Context, userID string, taxYear int) ([]model.Transaction, error)
}

// PatternStore is the durable vendor-pattern cache.
type PatternStore interface {
	LookupPatterns(ctx context.Context, userID string, vendorKeys []string) (map[string]model.VendorPattern, error)
	UpsertPattern(ctx context.Context, pattern model.VendorPattern) error
}

// RuleStore persists auto-sort rules and applies them.
type RuleStore interface {
	ApplyAutoSortRule(ctx context.Context, rule *model.AutoSortRule, taxYear *int) (int, error)
	GetAutoSortRules(ctx context.Context, userID string) ([]model.AutoSortRule, error)
}

// DeductionStore persists standalone deductions.
type DeductionStore interface {
	CreateDeduction(ctx context.Context, deduction *model.Deduction) error
	ListDeductions(ctx context.Context, userID string, taxYear, limit, offset int) ([]model.Deduction, int, error)
}

// SettingsStore persists tax-year and organisation settings.
type SettingsStore interface {
	UpsertTaxYearSettings(ctx context.Context, settings model.TaxYearSettings) error
	GetTaxYearSettings(ctx context.Context, userID string, taxYear int) (*model.TaxYearSettings, error)
	UpsertOrgSettings(ctx context.Context, settings model.OrgSettings) error
	GetOrgSettings(ctx context.Context, userID string) (*model.OrgSettings, error)
}

// Storage defines the contract for our persistence layer.
type Storage interface {
	TransactionStore
	PatternStore
	RuleStore
	DeductionStore
	SettingsStore

	Migrate(ctx context.Context) error
	Close() error
}

// RetryOptions configures retry behavior for operations.
type RetryOptions struct {
	// ShouldRetry classifies an error as transient. Nil means common.IsRetryable.
	ShouldRetry  func(error) bool
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}
