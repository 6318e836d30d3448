package llm

import (
	"fmt"
	"strings"

	"github.com/Nate-Smithline/LedgerTerminal/internal/model"
)

const systemPrompt = `You categorize business transactions for IRS Schedule C.

Categories (Line: Name):
8:Advertising, 9:Car/truck, 10:Commissions/fees, 11:Contract labor,
13:Depreciation, 15:Insurance, 16b:Other interest, 17:Legal/professional,
18:Office expense, 20b:Rent/lease other, 21:Repairs, 22:Supplies, 23:Taxes/licenses,
24a:Travel, 24b:Meals, 25:Utilities, 26:Wages, 27a:Other expenses

Rules:
- SaaS/software/subscriptions: 27a
- Meals: 24b (50% deductible; 100% if overnight travel)
- Phone/internet: 25
- Coworking: 20b
- Equipment over $2500: 13
- Personal expenses: mark "likely_personal"
- If ambiguous: "needs_review"

Quick labels: return 2-4 specific, IRS-defensible business reasons per transaction.
They are selectable labels the user picks to justify the deduction, so base them
on the category (e.g. meals: "Client Dinner", "Working Lunch"; travel: "Client Visit",
"Conference"; software: "SaaS Tool", "Dev Tools").

Also estimate a suggested deduction percentage:
- 50 for meals (100 if clearly travel-related)
- 0 for likely_personal
- 100 for most clear business expenses
- 25-75 for mixed-use items

Return ONLY a JSON array. No markdown fences.`

const responseShape = `[{"id":"...","category":"Category Name","scheduleCLine":"24b","confidence":0.85,"quickLabels":["Reason 1","Reason 2","Reason 3"],"suggestedDeductionPct":100,"deductibility":"likely_deductible|needs_review|likely_personal","isMeal":false,"isTravel":false}]`

// buildBatchPrompt renders one line per representative as
// id|vendor|$amount|date[|hint].
func buildBatchPrompt(reps []model.Representative) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Categorize these %d transactions. Return JSON array:\n%s\n\nid|vendor|amount|date[|hint]\n", len(reps), responseShape)
	for _, r := range reps {
		fmt.Fprintf(&sb, "%s|%s|$%s|%s", r.ID, r.Vendor, r.Amount.Abs().StringFixed(2), r.Date.Format("2006-01-02"))
		if r.Hint != "" {
			sb.WriteString("|" + r.Hint)
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}
