package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Nate-Smithline/LedgerTerminal/internal/engine"
	"github.com/Nate-Smithline/LedgerTerminal/internal/ofx"
)

func importCmd(app *cliApp) *cobra.Command {
	var (
		user   string
		year   int
		dryRun bool
	)
	cmd := &cobra.Command{
		Use:   "import [files...]",
		Short: "Import transactions from OFX/QFX files",
		Long: `Import transactions from OFX or QFX files exported from your bank.
Transactions already imported are skipped.

Examples:
  ledger import --user alice ~/Downloads/chase_jan_2025.qfx
  ledger import --user alice ~/Downloads/*.qfx --dry-run`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			files, err := expandFiles(args)
			if err != nil {
				return err
			}

			store, err := app.openStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			notifier := app.newNotifier()
			defer func() { _ = notifier.Close() }()

			parser := ofx.NewParser()
			ingester := engine.NewIngester(store, notifier)
			out := cmd.OutOrStdout()

			var total engine.ImportResult
			for _, path := range files {
				stmt, err := parseFile(cmd, parser, path)
				if err != nil {
					slog.Error("Failed to parse OFX file", "file", path, "error", err)
					continue
				}
				if len(stmt.Rows) == 0 {
					slog.Warn("No transactions found in file", "file", filepath.Base(path))
					continue
				}
				if dryRun {
					fmt.Fprintf(out, "%s: %d transactions from %d accounts\n", filepath.Base(path), len(stmt.Rows), len(stmt.Accounts))
					continue
				}

				res, err := ingester.Import(ctx, user, stmt.Rows, engine.ImportOptions{Source: "ofx", TaxYear: year, Dedupe: true})
				if err != nil {
					return fmt.Errorf("failed to import %s: %w", path, err)
				}
				total.Inserted += res.Inserted
				total.Skipped += res.Skipped
				fmt.Fprintf(out, "%s: %d imported, %d already present\n", filepath.Base(path), res.Inserted, res.Skipped)
			}

			if !dryRun {
				fmt.Fprintf(out, "Imported %d transactions (%d skipped)\n", total.Inserted, total.Skipped)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&user, "user", "", "user id (required)")
	cmd.Flags().IntVar(&year, "year", 0, "tax year for every row (default: from each date)")
	cmd.Flags().BoolVarP(&dryRun, "dry-run", "d", false, "parse without saving")
	_ = cmd.MarkFlagRequired("user")

	return cmd
}

func parseFile(cmd *cobra.Command, parser *ofx.Parser, path string) (ofx.Statement, error) {
	f, err := os.Open(path)
	if err != nil {
		return ofx.Statement{}, err
	}
	defer func() { _ = f.Close() }()
	return parser.Parse(cmd.Context(), f)
}

// expandFiles resolves glob patterns, keeping literal paths that exist.
func expandFiles(patterns []string) ([]string, error) {
	var files []string
	for _, pattern := range patterns {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %s: %w", pattern, err)
		}
		if len(matches) == 0 {
			if _, err := os.Stat(pattern); err == nil {
				files = append(files, pattern)
			} else {
				slog.Warn("No files found matching pattern", "pattern", pattern)
			}
			continue
		}
		files = append(files, matches...)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no files found to import")
	}
	return files, nil
}
