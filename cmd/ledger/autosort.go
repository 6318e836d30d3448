package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Nate-Smithline/LedgerTerminal/internal/engine"
)

func autosortCmd(app *cliApp) *cobra.Command {
	var (
		user string
		year int
		req  engine.AutoSortRequest
	)
	cmd := &cobra.Command{
		Use:     "autosort",
		Short:   "Apply one decision to every pending transaction from a vendor",
		Example: `  ledger autosort --user alice --vendor "Uber" --label "Client Travel" --year 2025`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if cmd.Flags().Changed("year") {
				req.TaxYear = &year
			}

			store, err := app.openStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			notifier := app.newNotifier()
			defer func() { _ = notifier.Close() }()

			res, err := engine.NewAutoSorter(store, notifier).ApplyRule(ctx, user, req)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Rule %s applied to %d transactions\n", res.RuleID, res.UpdatedCount)
			return err
		},
	}

	cmd.Flags().StringVar(&user, "user", "", "user id (required)")
	cmd.Flags().StringVar(&req.VendorNormalized, "vendor", "", "vendor name or normalized key (required)")
	cmd.Flags().StringVar(&req.QuickLabel, "label", "", "quick label to apply (required)")
	cmd.Flags().StringVar(&req.BusinessPurpose, "purpose", "", "business purpose")
	cmd.Flags().StringVar(&req.Category, "category", "", "category recorded on the rule")
	cmd.Flags().IntVar(&year, "year", 0, "only transactions in this tax year")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("vendor")
	_ = cmd.MarkFlagRequired("label")

	return cmd
}
