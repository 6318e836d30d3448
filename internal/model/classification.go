// Package model defines the core domain models used throughout the application.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Deductibility is the model's judgement of whether an expense is a business cost.
type Deductibility string

// Deductibility constants.
const (
	LikelyDeductible Deductibility = "likely_deductible"
	NeedsReview      Deductibility = "needs_review"
	LikelyPersonal   Deductibility = "likely_personal"
)

// ClassificationResult is one per-transaction assignment returned by the
// classifier. Optional fields are pointers so that "absent" can be told apart
// from a zero value.
type ClassificationResult struct {
	Confidence            *float64      `json:"confidence,omitempty"`
	SuggestedDeductionPct *float64      `json:"suggestedDeductionPct,omitempty"`
	IsMeal                *bool         `json:"isMeal,omitempty"`
	IsTravel              *bool         `json:"isTravel,omitempty"`
	ID                    string        `json:"id"`
	Category              string        `json:"category"`
	ScheduleCLine         string        `json:"scheduleCLine"`
	Deductibility         Deductibility `json:"deductibility,omitempty"`
	QuickLabels           []string      `json:"quickLabels,omitempty"`
}

// Representative is the single transaction sent to the classifier on behalf
// of every transaction in a batch that shares its normalized vendor.
type Representative struct {
	Date   time.Time
	Amount decimal.Decimal
	ID     string
	Vendor string
	// Hint is an existing category, if any.
	Hint string
}

// ClassificationBatch is the outcome of one classifier call.
type ClassificationBatch struct {
	Results      map[string]ClassificationResult
	InputTokens  int
	OutputTokens int
}

// ClassificationUpdate is the set of categorization fields written onto a
// transaction. IsMeal and IsTravel are left untouched when nil.
type ClassificationUpdate struct {
	IsMeal           *bool
	IsTravel         *bool
	Category         string
	ScheduleCLine    string
	Suggestions      []string
	Confidence       float64
	DeductionPercent int
}

// VendorPattern is the cached categorization for a (user, normalized vendor) pair.
type VendorPattern struct {
	UpdatedAt        time.Time `json:"updated_at"`
	DeductionPercent *int      `json:"deduction_percent"`
	Confidence       *float64  `json:"confidence"`
	UserID           string    `json:"user_id"`
	VendorNormalized string    `json:"vendor_normalized"`
	Category         string    `json:"category"`
	ScheduleCLine    string    `json:"schedule_c_line"`
	QuickLabels      []string  `json:"quick_labels"`
	TimesUsed        int       `json:"times_used"`
}

// AutoSortRule records a user's decision to apply one categorization to every
// pending transaction from a vendor. Rules are never mutated after creation.
type AutoSortRule struct {
	CreatedAt       time.Time `json:"created_at"`
	ID              string    `json:"id"`
	UserID          string    `json:"user_id"`
	VendorPattern   string    `json:"vendor_pattern"`
	QuickLabel      string    `json:"quick_label"`
	BusinessPurpose string    `json:"business_purpose,omitempty"`
	Category        string    `json:"category,omitempty"`
}
