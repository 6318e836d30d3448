package engine

import (
	"math"
	"strings"

	"github.com/Nate-Smithline/LedgerTerminal/internal/model"
	"github.com/Nate-Smithline/LedgerTerminal/internal/tax"
)

const (
	defaultFreshConfidence  = 0.5
	defaultCachedConfidence = 0.8
)

// updateFromResult turns a model answer into the fields written to a
// transaction. A likely-personal verdict always zeroes the deduction.
func updateFromResult(res model.ClassificationResult) model.ClassificationUpdate {
	isMeal := strings.Contains(strings.ToLower(res.Category), "meal")
	if res.IsMeal != nil {
		isMeal = *res.IsMeal
	}
	isTravel := res.IsTravel != nil && *res.IsTravel

	pct := tax.DefaultDeduction(res.ScheduleCLine, isMeal, isTravel)
	if res.SuggestedDeductionPct != nil {
		pct = tax.PercentFromFloat(*res.SuggestedDeductionPct)
	}
	if res.Deductibility == model.LikelyPersonal {
		pct = 0
	}

	confidence := defaultFreshConfidence
	if res.Confidence != nil {
		confidence = clampConfidence(*res.Confidence)
	}

	return model.ClassificationUpdate{
		Category:         res.Category,
		ScheduleCLine:    res.ScheduleCLine,
		Confidence:       confidence,
		Suggestions:      labelsOrEmpty(res.QuickLabels),
		DeductionPercent: pct,
		IsMeal:           &isMeal,
		IsTravel:         &isTravel,
	}
}

// updateFromPattern applies a cached vendor pattern. Meal and travel flags
// come from the transaction itself and are left untouched.
func updateFromPattern(t model.Transaction, p model.VendorPattern) model.ClassificationUpdate {
	pct := tax.DefaultDeduction(p.ScheduleCLine, t.IsMeal, t.IsTravel)
	if p.DeductionPercent != nil {
		pct = tax.ClampPercent(*p.DeductionPercent)
	}

	confidence := defaultCachedConfidence
	if p.Confidence != nil {
		confidence = clampConfidence(*p.Confidence)
	}

	return model.ClassificationUpdate{
		Category:         p.Category,
		ScheduleCLine:    p.ScheduleCLine,
		Confidence:       confidence,
		Suggestions:      labelsOrEmpty(p.QuickLabels),
		DeductionPercent: pct,
	}
}

func patternFromUpdate(userID, vendorKey string, u model.ClassificationUpdate) model.VendorPattern {
	pct := u.DeductionPercent
	confidence := u.Confidence
	return model.VendorPattern{
		UserID:           userID,
		VendorNormalized: vendorKey,
		Category:         u.Category,
		ScheduleCLine:    u.ScheduleCLine,
		QuickLabels:      u.Suggestions,
		DeductionPercent: &pct,
		Confidence:       &confidence,
	}
}

func clampConfidence(c float64) float64 {
	switch {
	case math.IsNaN(c), c < 0:
		return 0
	case c > 1:
		return 1
	}
	return c
}

func labelsOrEmpty(labels []string) []string {
	if labels == nil {
		return []string{}
	}
	return labels
}
