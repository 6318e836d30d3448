package tax

import "math"

// DefaultDeduction returns the default deductible percentage for an expense.
// Meal and travel flags take priority over the line; unknown or missing lines
// are fully deductible.
func DefaultDeduction(line string, isMeal, isTravel bool) int {
	switch {
	case isMeal && !isTravel:
		return 50
	case isMeal && isTravel:
		return 100
	}

	if NormalizeLine(line) == "" {
		return 100
	}
	if l, ok := LookupLine(line); ok {
		return l.DefaultDeduction
	}
	return 100
}

// ClampPercent bounds a percentage to [0,100].
func ClampPercent(pct int) int {
	return max(0, min(100, pct))
}

// PercentFromFloat rounds a model-supplied percentage and clamps it.
func PercentFromFloat(pct float64) int {
	if math.IsNaN(pct) {
		return 0
	}
	return ClampPercent(int(math.Round(math.Max(-1, math.Min(101, pct)))))
}
