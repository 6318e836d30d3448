// Package tax holds the IRS Schedule C line table, the default deduction
// policy, and the tax summary calculation.
package tax

import (
	"regexp"
	"strings"
)

// Line is one Schedule C expense line.
type Line struct {
	Code             string
	Label            string
	Description      string
	DefaultDeduction int
	MealRule         bool
}

// OtherExpensesLine is where expenses without a line are reported.
const OtherExpensesLine = "27"

// Lines lists the Schedule C expense lines in form order.
var Lines = []Line{
	{Code: "8", Label: "Advertising", Description: "Marketing, ads, business cards, website costs", DefaultDeduction: 100},
	{Code: "9", Label: "Car & truck expenses", Description: "Business miles, gas, repairs, lease payments", DefaultDeduction: 100},
	{Code: "10", Label: "Commissions & fees", Description: "Sales commissions, platform fees, payment processing", DefaultDeduction: 100},
	{Code: "11", Label: "Contract labor", Description: "Freelancers, subcontractors (1099 workers)", DefaultDeduction: 100},
	{Code: "13", Label: "Depreciation", Description: "Section 179 deductions, asset depreciation", DefaultDeduction: 100},
	{Code: "14", Label: "Employee benefits", Description: "Health insurance, retirement contributions for employees", DefaultDeduction: 100},
	{Code: "15", Label: "Insurance", Description: "Business liability, E&O, professional insurance", DefaultDeduction: 100},
	{Code: "16a", Label: "Interest (mortgage)", Description: "Mortgage interest on business property", DefaultDeduction: 100},
	{Code: "16b", Label: "Interest (other)", Description: "Business loan interest, credit card interest", DefaultDeduction: 100},
	{Code: "17", Label: "Legal & professional", Description: "Accounting, legal fees, tax preparation", DefaultDeduction: 100},
	{Code: "18", Label: "Office expense", Description: "Office supplies, postage, software subscriptions", DefaultDeduction: 100},
	{Code: "20a", Label: "Rent (vehicles/equipment)", Description: "Equipment leases, vehicle rentals", DefaultDeduction: 100},
	{Code: "20b", Label: "Rent (other)", Description: "Office space, coworking, storage", DefaultDeduction: 100},
	{Code: "21", Label: "Repairs & maintenance", Description: "Equipment repairs, maintenance costs", DefaultDeduction: 100},
	{Code: "22", Label: "Supplies", Description: "Materials and supplies consumed in business", DefaultDeduction: 100},
	{Code: "23", Label: "Taxes & licenses", Description: "Business licenses, state taxes, permits", DefaultDeduction: 100},
	{Code: "24a", Label: "Travel", Description: "Flights, hotels, transportation for business", DefaultDeduction: 100},
	{Code: "24b", Label: "Meals", Description: "Business meals (50% deductible)", DefaultDeduction: 50, MealRule: true},
	{Code: "25", Label: "Utilities", Description: "Phone, internet, electricity for business", DefaultDeduction: 100},
	{Code: "26", Label: "Wages", Description: "Employee wages, less employment credits", DefaultDeduction: 100},
	{Code: "27", Label: "Other expenses", Description: "Education, memberships, bank fees, etc.", DefaultDeduction: 100},
	{Code: "27a", Label: "Other expenses (software)", Description: "Software, SaaS subscriptions, dues", DefaultDeduction: 100},
}

var lineIndex = func() map[string]Line {
	m := make(map[string]Line, len(Lines))
	for _, l := range Lines {
		m[l.Code] = l
	}
	return m
}()

var linePrefix = regexp.MustCompile(`(?i)^line\s*`)

// NormalizeLine strips a leading "Line" label and surrounding whitespace, so
// "Line 24b" and "24B" both become "24b".
func NormalizeLine(code string) string {
	code = strings.TrimSpace(code)
	code = linePrefix.ReplaceAllString(code, "")
	return strings.ToLower(strings.TrimSpace(code))
}

// LookupLine returns the line for a code in any accepted spelling.
func LookupLine(code string) (Line, bool) {
	l, ok := lineIndex[NormalizeLine(code)]
	return l, ok
}
