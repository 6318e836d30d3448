// Package engine implements transaction categorization: cache resolution,
// batched model classification, auto-sort rules, review and tax summaries.
package engine

import (
	"context"

	"github.com/Nate-Smithline/LedgerTerminal/internal/model"
	"github.com/Nate-Smithline/LedgerTerminal/internal/service"
)

// Classifier defines the contract for batch categorization. Results are keyed
// by representative id; ids absent from the map were not classified.
type Classifier interface {
	Classify(ctx context.Context, reps []model.Representative) (model.ClassificationBatch, error)
}

// Store is the persistence the orchestrator needs.
type Store interface {
	GetTransactionsByIDs(ctx context.Context, userID string, ids []string) ([]model.Transaction, error)
	ApplyClassification(ctx context.Context, userID, transactionID string, update model.ClassificationUpdate) error
	service.PatternStore
}
