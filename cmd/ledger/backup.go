package main

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
)

func backupCmd(app *cliApp) *cobra.Command {
	var dest string
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Write a verified copy of the database",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if dest == "" {
				name := "ledger-" + time.Now().Format("20060102-150405") + ".db"
				dest = filepath.Join(filepath.Dir(app.cfg.Database.Path), "backups", name)
			}

			store, err := app.openStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			info, err := store.Backup(ctx, dest)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Backed up %d transactions and %d vendor patterns to %s (%d bytes)\n",
				info.Transactions, info.Patterns, info.Path, info.FileSize)
			return err
		},
	}
	cmd.Flags().StringVarP(&dest, "output", "o", "", "backup file (default: backups/ next to the database)")
	return cmd
}
