package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Deduction is a standalone deduction not tied to a bank transaction, such as
// a home office or mileage deduction.
type Deduction struct {
	CreatedAt  time.Time       `json:"created_at"`
	Metadata   map[string]any  `json:"metadata,omitempty"`
	Amount     decimal.Decimal `json:"amount"`
	TaxSavings decimal.Decimal `json:"tax_savings"`
	ID         string          `json:"id"`
	UserID     string          `json:"user_id"`
	Type       string          `json:"type"`
	TaxYear    int             `json:"tax_year"`
}

// TaxYearSettings holds per-year tax parameters for a user.
type TaxYearSettings struct {
	CreatedAt time.Time       `json:"created_at"`
	TaxRate   decimal.Decimal `json:"tax_rate"`
	UserID    string          `json:"user_id"`
	TaxYear   int             `json:"tax_year"`
}

// OrgSettings holds business-level settings for a user.
type OrgSettings struct {
	UpdatedAt       time.Time `json:"updated_at"`
	UserID          string    `json:"user_id"`
	BusinessName    string    `json:"business_name,omitempty"`
	EIN             string    `json:"ein,omitempty"`
	BusinessAddress string    `json:"business_address,omitempty"`
	FilingType      string    `json:"filing_type,omitempty"`
}
