package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Nate-Smithline/LedgerTerminal/internal/config"
	"github.com/Nate-Smithline/LedgerTerminal/internal/engine"
	"github.com/Nate-Smithline/LedgerTerminal/internal/llm"
	"github.com/Nate-Smithline/LedgerTerminal/internal/notify"
	"github.com/Nate-Smithline/LedgerTerminal/internal/storage"
)

// openStorage opens the configured database and brings its schema current.
func (a *cliApp) openStorage(ctx context.Context) (*storage.SQLiteStorage, error) {
	store, err := storage.NewSQLiteStorage(a.cfg.Database.Path)
	if err != nil {
		return nil, err
	}
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return store, nil
}

// newClassifier builds the configured classifier. The mock provider needs no
// network access.
func (a *cliApp) newClassifier() (engine.Classifier, error) {
	if a.cfg.LLM.Provider == config.ProviderMock {
		return engine.NewMockClassifier(), nil
	}
	if err := a.cfg.ValidateLLM(); err != nil {
		return nil, err
	}
	return llm.NewClassifier(a.cfg.LLM.ClassifierConfig(), slog.Default())
}

// newNotifier connects to the broker when amqp.url is set. Without it, or
// when the broker is unreachable, notifications are disabled.
func (a *cliApp) newNotifier() notify.Publisher {
	if a.cfg.AMQP.URL == "" {
		return notify.Nop{}
	}
	pub, err := notify.NewAMQPPublisher(a.cfg.AMQP.URL, a.cfg.AMQP.Exchange)
	if err != nil {
		slog.Warn("Notifications disabled", "error", err)
		return notify.Nop{}
	}
	return pub
}

func (a *cliApp) orchestratorOptions() engine.Options {
	return engine.Options{
		BatchSize:   a.cfg.Categorize.BatchSize,
		Concurrency: a.cfg.Categorize.Concurrency,
	}
}
