package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/Nate-Smithline/LedgerTerminal/internal/engine"
	"github.com/Nate-Smithline/LedgerTerminal/internal/tax"
)

func summaryCmd(app *cliApp) *cobra.Command {
	var (
		user    string
		year    int
		quarter int
		asJSON  bool
	)
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Estimate Schedule C and self-employment tax",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if year == 0 {
				year = time.Now().Year()
			}

			store, err := app.openStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			summary, err := engine.NewSummaryService(store).Summary(ctx, user, year, quarter)
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(summary)
			}
			return printSummary(cmd.OutOrStdout(), summary)
		},
	}

	cmd.Flags().StringVar(&user, "user", "", "user id (required)")
	cmd.Flags().IntVar(&year, "year", 0, "tax year (default: current year)")
	cmd.Flags().IntVar(&quarter, "quarter", 0, "restrict to quarter 1-4")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	_ = cmd.MarkFlagRequired("user")

	return cmd
}

func printSummary(w io.Writer, s engine.TaxSummary) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)

	period := fmt.Sprintf("%d", s.TaxYear)
	if s.Quarter != nil {
		period = fmt.Sprintf("%d Q%d", s.TaxYear, *s.Quarter)
	}
	fmt.Fprintf(tw, "Tax summary %s (%s, rate %.2f%%)\t\n", period, s.Filing.Label, s.TaxRate*100)
	fmt.Fprintf(tw, "Gross income\t%.2f\t\n", s.GrossIncome)
	fmt.Fprintf(tw, "Total expenses\t%.2f\t\n", s.TotalExpenses)
	fmt.Fprintf(tw, "Net profit\t%.2f\t\n", s.NetProfit)
	fmt.Fprintf(tw, "Self-employment tax\t%.2f\t\n", s.SelfEmploymentTax)
	fmt.Fprintf(tw, "Income tax\t%.2f\t\n", s.IncomeTax)
	fmt.Fprintf(tw, "Total liability\t%.2f\t\n", s.TotalTaxLiability)
	fmt.Fprintf(tw, "Quarterly payment\t%.2f\t\n", s.EstimatedQuarterlyPayment)

	if len(s.LineBreakdown) > 0 {
		fmt.Fprintf(tw, "\t\t\n")
		lines := make([]string, 0, len(s.LineBreakdown))
		for line := range s.LineBreakdown {
			lines = append(lines, line)
		}
		sort.Strings(lines)
		for _, line := range lines {
			label := ""
			if l, ok := tax.LookupLine(line); ok {
				label = l.Label
			}
			fmt.Fprintf(tw, "Line %s %s\t%.2f\t\n", line, label, s.LineBreakdown[line])
		}
	}
	return tw.Flush()
}
