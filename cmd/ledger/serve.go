package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/Nate-Smithline/LedgerTerminal/internal/api"
	"github.com/Nate-Smithline/LedgerTerminal/internal/engine"
)

const shutdownTimeout = 30 * time.Second

func serveCmd(app *cliApp) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Long: `Serve the HTTP API on server.addr.

Each /api request must carry "Authorization: Bearer <token>" for a token
listed under server.tokens.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), app)
		},
	}
	cmd.Flags().String("addr", "", "listen address (overrides server.addr)")
	_ = app.viper.BindPFlag("server.addr", cmd.Flags().Lookup("addr"))
	return cmd
}

func runServe(ctx context.Context, app *cliApp) error {
	if len(app.cfg.Server.Tokens) == 0 {
		return errors.New("server.tokens is empty; no client could authenticate")
	}

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

	server := api.New(api.Config{
		Tokens:       app.cfg.UserTokens(),
		Orchestrator: engine.NewOrchestrator(store, classifier, notifier, app.orchestratorOptions()),
		AutoSorter:   engine.NewAutoSorter(store, notifier),
		Reviewer:     engine.NewReviewer(store),
		Ingester:     engine.NewIngester(store, notifier),
		Summaries:    engine.NewSummaryService(store),
		Settings:     engine.NewSettings(store),
	})

	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP API listening", "addr", app.cfg.Server.Addr, "provider", app.cfg.LLM.Provider)
		errCh <- server.Listen(app.cfg.Server.Addr)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server stopped: %w", err)
	case <-ctx.Done():
	}

	slog.Info("Shutting down HTTP API")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down: %w", err)
	}
	return nil
}
