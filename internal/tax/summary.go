package tax

import (
	"github.com/shopspring/decimal"

	"github.com/Nate-Smithline/LedgerTerminal/internal/model"
)

// Self-employment tax constants.
var (
	SENetEarningsRate      = decimal.RequireFromString("0.9235")
	SocialSecurityRate     = decimal.RequireFromString("0.124")
	MedicareRate           = decimal.RequireFromString("0.029")
	SocialSecurityWageBase = decimal.NewFromInt(176100)
	DefaultTaxRate         = decimal.RequireFromString("0.24")
)

const uncategorized = "Uncategorized"

var (
	hundred = decimal.NewFromInt(100)
	half    = decimal.RequireFromString("0.5")
	four    = decimal.NewFromInt(4)
	two     = decimal.NewFromInt(2)
)

// Summary is the Schedule C and SE tax picture for a set of transactions.
// Money values are rounded to cents.
type Summary struct {
	LineBreakdown             map[string]float64 `json:"lineBreakdown"`
	CategoryBreakdown         map[string]float64 `json:"categoryBreakdown"`
	GrossIncome               float64            `json:"grossIncome"`
	TotalExpenses             float64            `json:"totalExpenses"`
	NetProfit                 float64            `json:"netProfit"`
	SEEarnings                float64            `json:"seEarnings"`
	SocialSecurityTax         float64            `json:"socialSecurityTax"`
	MedicareTax               float64            `json:"medicareTax"`
	SelfEmploymentTax         float64            `json:"selfEmploymentTax"`
	DeductibleSETax           float64            `json:"deductibleSETax"`
	TaxableIncome             float64            `json:"taxableIncome"`
	IncomeTax                 float64            `json:"incomeTax"`
	TotalTaxLiability         float64            `json:"totalTaxLiability"`
	EstimatedQuarterlyPayment float64            `json:"estimatedQuarterlyPayment"`
	EffectiveTaxRate          float64            `json:"effectiveTaxRate"`
}

// DeductibleAmount is the portion of t eligible for deduction. The meal rule
// and the deduction percentage compose multiplicatively.
func DeductibleAmount(t model.Transaction) decimal.Decimal {
	pct := hundred
	if t.DeductionPercent != nil {
		pct = decimal.NewFromInt(int64(*t.DeductionPercent))
	}

	amt := t.Amount.Abs().Mul(pct).Div(hundred)
	if t.IsMeal {
		amt = amt.Mul(half)
	}
	return amt
}

// FilterByQuarter keeps transactions dated in the given quarter (1-4).
// Any other quarter value returns the input unchanged.
func FilterByQuarter(txns []model.Transaction, quarter int) []model.Transaction {
	if quarter < 1 || quarter > 4 {
		return txns
	}

	start := (quarter - 1) * 3
	end := start + 3
	filtered := make([]model.Transaction, 0, len(txns))
	for _, t := range txns {
		month := int(t.Date.Month()) - 1
		if month >= start && month < end {
			filtered = append(filtered, t)
		}
	}
	return filtered
}

// Calculate aggregates transactions and standalone deductions into a tax
// summary at the given marginal income tax rate.
func Calculate(txns []model.Transaction, deductions []model.Deduction, taxRate decimal.Decimal) Summary {
	grossIncome := decimal.Zero
	lines := make(map[string]decimal.Decimal)
	categories := make(map[string]decimal.Decimal)

	for _, t := range txns {
		if t.IsIncome() {
			grossIncome = grossIncome.Add(t.Amount.Abs())
			continue
		}
		if !t.IsExpense() {
			continue
		}

		amt := DeductibleAmount(t)

		line := NormalizeLine(t.ScheduleCLine)
		if line == "" {
			line = OtherExpensesLine
		}
		lines[line] = lines[line].Add(amt)

		category := t.Category
		if category == "" {
			category = uncategorized
		}
		categories[category] = categories[category].Add(amt)
	}

	totalExpenses := decimal.Zero
	for _, amt := range lines {
		totalExpenses = totalExpenses.Add(amt)
	}
	for _, d := range deductions {
		amt := d.Amount.Abs()
		categories[d.Type] = categories[d.Type].Add(amt)
		totalExpenses = totalExpenses.Add(amt)
	}

	netProfit := grossIncome.Sub(totalExpenses)

	seEarnings := decimal.Max(decimal.Zero, netProfit.Mul(SENetEarningsRate))
	ssTax := decimal.Min(seEarnings, SocialSecurityWageBase).Mul(SocialSecurityRate)
	medicareTax := seEarnings.Mul(MedicareRate)
	seTax := ssTax.Add(medicareTax)
	deductibleSETax := seTax.Div(two)

	taxableIncome := decimal.Max(decimal.Zero, netProfit.Sub(deductibleSETax))
	incomeTax := taxableIncome.Mul(taxRate)
	totalLiability := incomeTax.Add(seTax)

	effectiveRate := decimal.Zero
	if grossIncome.IsPositive() {
		effectiveRate = totalLiability.Div(grossIncome)
	}

	return Summary{
		LineBreakdown:             roundMap(lines),
		CategoryBreakdown:         roundMap(categories),
		GrossIncome:               money(grossIncome),
		TotalExpenses:             money(totalExpenses),
		NetProfit:                 money(netProfit),
		SEEarnings:                money(seEarnings),
		SocialSecurityTax:         money(ssTax),
		MedicareTax:               money(medicareTax),
		SelfEmploymentTax:         money(seTax),
		DeductibleSETax:           money(deductibleSETax),
		TaxableIncome:             money(taxableIncome),
		IncomeTax:                 money(incomeTax),
		TotalTaxLiability:         money(totalLiability),
		EstimatedQuarterlyPayment: money(totalLiability.Div(four)),
		EffectiveTaxRate:          effectiveRate.Round(4).InexactFloat64(),
	}
}

func money(d decimal.Decimal) float64 {
	return d.Round(2).InexactFloat64()
}

func roundMap(in map[string]decimal.Decimal) map[string]float64 {
	out := make(map[string]float64, len(in))
	for k, v := range in {
		out[k] = money(v)
	}
	return out
}
