package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/Nate-Smithline/LedgerTerminal/internal/common"
	"github.com/Nate-Smithline/LedgerTerminal/internal/model"
	"github.com/Nate-Smithline/LedgerTerminal/internal/notify"
	"github.com/Nate-Smithline/LedgerTerminal/internal/service"
	"github.com/Nate-Smithline/LedgerTerminal/internal/vendor"
)

// AutoSortRequest applies one review decision to every pending transaction
// from a vendor.
type AutoSortRequest struct {
	TaxYear          *int   `json:"taxYear,omitempty"`
	VendorNormalized string `json:"vendorNormalized"`
	QuickLabel       string `json:"quickLabel"`
	BusinessPurpose  string `json:"businessPurpose,omitempty"`
	Category         string `json:"category,omitempty"`
}

// AutoSortResult reports the rule created and how many rows it touched.
type AutoSortResult struct {
	RuleID       string `json:"ruleId"`
	UpdatedCount int    `json:"updatedCount"`
}

// AutoSorter creates auto-sort rules.
type AutoSorter struct {
	rules    service.RuleStore
	notifier notify.Publisher
	newID    func() string
}

// NewAutoSorter creates an AutoSorter. A nil notifier disables notifications.
func NewAutoSorter(rules service.RuleStore, notifier notify.Publisher) *AutoSorter {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	return &AutoSorter{rules: rules, notifier: notifier, newID: uuid.NewString}
}

// ApplyRule records a new rule and marks the user's matching pending
// transactions as auto-sorted. A rule is created even when nothing matches;
// repeating a call creates another rule that updates nothing.
func (a *AutoSorter) ApplyRule(ctx context.Context, userID string, req AutoSortRequest) (AutoSortResult, error) {
	if userID == "" {
		return AutoSortResult{}, common.NewAuthorizationError("missing user")
	}

	key := vendor.Normalize(req.VendorNormalized)
	if key == "" {
		return AutoSortResult{}, common.NewValidationError("vendorNormalized", "vendorNormalized is required")
	}
	label := strings.TrimSpace(req.QuickLabel)
	if label == "" {
		return AutoSortResult{}, common.NewValidationError("quickLabel", "quickLabel is required")
	}
	if req.TaxYear != nil && !validTaxYear(*req.TaxYear) {
		return AutoSortResult{}, common.NewValidationError("taxYear", "taxYear must be between 2000 and 2100")
	}

	rule := &model.AutoSortRule{
		ID:              a.newID(),
		UserID:          userID,
		VendorPattern:   key,
		QuickLabel:      label,
		BusinessPurpose: strings.TrimSpace(req.BusinessPurpose),
		Category:        strings.TrimSpace(req.Category),
	}

	updated, err := a.rules.ApplyAutoSortRule(ctx, rule, req.TaxYear)
	if err != nil {
		return AutoSortResult{}, fmt.Errorf("failed to apply auto-sort rule: %w", err)
	}

	result := AutoSortResult{RuleID: rule.ID, UpdatedCount: updated}
	common.Logger(ctx).Info("Applied auto-sort rule",
		"rule_id", rule.ID,
		"vendor", key,
		"updated", updated)
	notify.Send(ctx, a.notifier, notify.TypeAutoSortApplied, userID, map[string]any{
		"ruleId":           rule.ID,
		"vendorNormalized": key,
		"updatedCount":     updated,
	})
	return result, nil
}

// Rules lists the user's auto-sort rules, newest first.
func (a *AutoSorter) Rules(ctx context.Context, userID string) ([]model.AutoSortRule, error) {
	if userID == "" {
		return nil, common.NewAuthorizationError("missing user")
	}
	rules, err := a.rules.GetAutoSortRules(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list auto-sort rules: %w", err)
	}
	if rules == nil {
		rules = []model.AutoSortRule{}
	}
	return rules, nil
}

func validTaxYear(year int) bool {
	return year >= 2000 && year <= 2100
}
