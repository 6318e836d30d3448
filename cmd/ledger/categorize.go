package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/Nate-Smithline/LedgerTerminal/internal/cli"
	"github.com/Nate-Smithline/LedgerTerminal/internal/engine"
	"github.com/Nate-Smithline/LedgerTerminal/internal/model"
	"github.com/Nate-Smithline/LedgerTerminal/internal/service"
)

type categorizeOptions struct {
	user    string
	ids     []string
	year    int
	pending bool
	json    bool
}

func categorizeCmd(app *cliApp) *cobra.Command {
	var opts categorizeOptions
	cmd := &cobra.Command{
		Use:   "categorize",
		Short: "Categorize transactions onto Schedule C lines",
		Long: `Categorize a user's transactions. Vendors categorized before are answered
from the pattern cache; the rest are sent to the model in batches.

Examples:
  # Everything still pending
  ledger categorize --user alice --pending

  # Specific transactions, raw NDJSON events on stdout
  ledger categorize --user alice --ids 7b1e...,9c40... --json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCategorize(cmd, app, opts)
		},
	}

	cmd.Flags().StringVar(&opts.user, "user", "", "user id (required)")
	cmd.Flags().StringSliceVar(&opts.ids, "ids", nil, "transaction ids to categorize")
	cmd.Flags().BoolVar(&opts.pending, "pending", false, "categorize every pending transaction")
	cmd.Flags().IntVar(&opts.year, "year", 0, "with --pending, only this tax year")
	cmd.Flags().BoolVar(&opts.json, "json", false, "write NDJSON events to stdout instead of a progress bar")
	_ = cmd.MarkFlagRequired("user")
	cmd.MarkFlagsMutuallyExclusive("ids", "pending")
	cmd.MarkFlagsOneRequired("ids", "pending")

	return cmd
}

func runCategorize(cmd *cobra.Command, app *cliApp, opts categorizeOptions) error {
	ctx := cmd.Context()

	store, err := app.openStorage(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	classifier, err := app.newClassifier()
	if err != nil {
		return err
	}
	notifier := app.newNotifier()
	defer func() { _ = notifier.Close() }()

	ids := opts.ids
	if opts.pending {
		pending, err := engine.NewReviewer(store).List(ctx, opts.user, service.TransactionFilter{
			Status:  model.StatusPending,
			Type:    model.TypeExpense,
			TaxYear: opts.year,
			Limit:   engine.MaxTransactionsPerRun,
		})
		if err != nil {
			return err
		}
		if len(pending) == 0 {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), "Nothing to categorize.")
			return err
		}
		for _, t := range pending {
			ids = append(ids, t.ID)
		}
	}

	orch := engine.NewOrchestrator(store, classifier, notifier, app.orchestratorOptions())
	run, err := orch.Prepare(ctx, opts.user, ids)
	if err != nil {
		return err
	}

	interrupts := cli.NewInterruptHandler(cmd.ErrOrStderr())
	runCtx, cancel := interrupts.HandleInterrupts(ctx, "ledger categorize --user "+opts.user+" --pending")
	defer cancel()

	summary := run.Stream(runCtx, newSink(opts.json, cmd.OutOrStdout(), cmd.ErrOrStderr()))
	if summary.Failed > 0 && summary.Successful == 0 {
		return errors.New("no transactions were categorized")
	}
	return nil
}

func newSink(raw bool, stdout, stderr io.Writer) engine.Sink {
	if raw {
		return engine.NewNDJSONSink(stdout)
	}
	return cli.NewProgressSink(stderr)
}
