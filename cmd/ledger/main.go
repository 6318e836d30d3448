package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Nate-Smithline/LedgerTerminal/internal/common"
	"github.com/Nate-Smithline/LedgerTerminal/internal/config"
)

var version = "dev"

// cliApp carries state shared by every subcommand.
type cliApp struct {
	cfg     *config.Config
	viper   *viper.Viper
	cfgFile string
}

func newRootCmd() *cobra.Command {
	app := &cliApp{viper: viper.New()}

	root := &cobra.Command{
		Use:   "ledger",
		Short: "Small-business expense categorization and Schedule C estimates",
		Long: `ledger imports business transactions, categorizes them onto IRS Schedule C
lines with an AI model (reusing earlier decisions per vendor), and estimates
self-employment and income tax.`,
		SilenceUsage:      true,
		PersistentPreRunE: app.initConfig,
	}

	root.PersistentFlags().StringVar(&app.cfgFile, "config", "", "config file (default: $HOME/.config/ledger/config.yaml)")
	root.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	root.PersistentFlags().String("log-format", "", "log format (text, json)")
	root.PersistentFlags().String("db", "", "database path")

	_ = app.viper.BindPFlag("log.level", root.PersistentFlags().Lookup("log-level"))
	_ = app.viper.BindPFlag("log.format", root.PersistentFlags().Lookup("log-format"))
	_ = app.viper.BindPFlag("database.path", root.PersistentFlags().Lookup("db"))

	root.AddCommand(
		serveCmd(app),
		categorizeCmd(app),
		autosortCmd(app),
		summaryCmd(app),
		importCmd(app),
		migrateCmd(app),
		backupCmd(app),
		versionCmd(),
	)
	return root
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	cancel()

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func (a *cliApp) initConfig(_ *cobra.Command, _ []string) error {
	cfg, err := config.Load(a.viper, a.cfgFile)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	common.SetupLogger(common.ParseLevel(cfg.Log.Level), cfg.Log.Format)
	a.cfg = cfg
	return nil
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			slog.Debug("ledger version", "version", version)
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "ledger", version)
		},
	}
}
