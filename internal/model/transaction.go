package model

import (
	"crypto/sha256"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType distinguishes money spent from money earned.
type TransactionType string

// Transaction type constants.
const (
	TypeExpense TransactionType = "expense"
	TypeIncome  TransactionType = "income"
)

// Status is the review state of a transaction.
type Status string

// Status constants.
const (
	StatusPending    Status = "pending"
	StatusCompleted  Status = "completed"
	StatusPersonal   Status = "personal"
	StatusAutoSorted Status = "auto_sorted"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusCompleted, StatusPersonal, StatusAutoSorted:
		return true
	}
	return false
}

// Transaction represents a single financial record owned by one user.
type Transaction struct {
	Date             time.Time       `json:"date"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
	AIConfidence     *float64        `json:"ai_confidence"`
	DeductionPercent *int            `json:"deduction_percent"`
	Amount           decimal.Decimal `json:"amount"`
	ID               string          `json:"id"`
	UserID           string          `json:"user_id"`
	Vendor           string          `json:"vendor"`
	VendorNormalized string          `json:"vendor_normalized"`
	Description      string          `json:"description,omitempty"`
	Notes            string          `json:"notes,omitempty"`
	Source           string          `json:"source,omitempty"`
	Type             TransactionType `json:"transaction_type"`
	Status           Status          `json:"status"`
	Category         string          `json:"category,omitempty"`
	ScheduleCLine    string          `json:"schedule_c_line,omitempty"`
	QuickLabel       string          `json:"quick_label,omitempty"`
	BusinessPurpose  string          `json:"business_purpose,omitempty"`
	AutoSortRuleID   string          `json:"auto_sort_rule_id,omitempty"`
	Hash             string          `json:"-"`
	AISuggestions    []string        `json:"ai_suggestions"`
	TaxYear          int             `json:"tax_year"`
	IsMeal           bool            `json:"is_meal"`
	IsTravel         bool            `json:"is_travel"`
}

// IsExpense reports whether t counts toward expenses. Rows without an
// explicit type are treated as expenses.
func (t *Transaction) IsExpense() bool {
	return t.Type == TypeExpense || t.Type == ""
}

// IsIncome reports whether t is an income transaction.
func (t *Transaction) IsIncome() bool {
	return t.Type == TypeIncome
}

// GenerateHash creates a hash for duplicate detection on import.
func (t *Transaction) GenerateHash() string {
	data := fmt.Sprintf("%s:%s:%s:%s",
		t.UserID,
		t.Date.Format("2006-01-02"),
		t.Amount.StringFixed(2),
		t.VendorNormalized)
	hash := sha256.Sum256([]byte(data))
	return fmt.Sprintf("%x", hash)
}
