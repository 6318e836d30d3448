package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/Nate-Smithline/LedgerTerminal/internal/common"
	"github.com/Nate-Smithline/LedgerTerminal/internal/model"
	"github.com/Nate-Smithline/LedgerTerminal/internal/notify"
	"github.com/Nate-Smithline/LedgerTerminal/internal/vendor"
)

// MaxTransactionsPerRun bounds the ids accepted by a single run.
const MaxTransactionsPerRun = 1000

const (
	reasonCached       = "Matched from previous categorization"
	msgMissingCategory = "Missing category in AI response"
	msgCancelled       = "Cancelled before classification"
)

// Options configures batch categorization.
type Options struct {
	BatchSize   int // transactions per classifier call
	Concurrency int // classifier calls in flight
}

// DefaultOptions returns the production batch settings.
func DefaultOptions() Options {
	return Options{
		BatchSize:   25,
		Concurrency: 4,
	}
}

// Orchestrator runs categorization over a caller's transactions.
type Orchestrator struct {
	store      Store
	classifier Classifier
	notifier   notify.Publisher
	opts       Options
}

// NewOrchestrator creates an orchestrator. A nil notifier disables
// notifications.
func NewOrchestrator(store Store, classifier Classifier, notifier notify.Publisher, opts Options) *Orchestrator {
	defaults := DefaultOptions()
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaults.BatchSize
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = defaults.Concurrency
	}
	if notifier == nil {
		notifier = notify.Nop{}
	}
	return &Orchestrator{
		store:      store,
		classifier: classifier,
		notifier:   notifier,
		opts:       opts,
	}
}

// Summary holds the totals of a finished run.
type Summary struct {
	RunID              string `json:"runId"`
	Successful         int    `json:"successful"`
	Failed             int    `json:"failed"`
	Total              int    `json:"total"`
	InputTokens        int    `json:"totalInputTokens"`
	OutputTokens       int    `json:"totalOutputTokens"`
	Cached             int    `json:"cachedCount"`
	CacheWriteFailures int    `json:"cacheWriteFailures"`
}

// Run is a validated, loaded categorization request ready to stream.
type Run struct {
	orch   *Orchestrator
	logger *slog.Logger
	id     string
	userID string
	txns   []model.Transaction
}

// Prepare validates ids and loads the caller's transactions. Ids that do not
// exist or belong to someone else are dropped silently. It fails with
// ErrNoTransactions when nothing is left.
func (o *Orchestrator) Prepare(ctx context.Context, userID string, ids []string) (*Run, error) {
	if userID == "" {
		return nil, common.NewAuthorizationError("missing user")
	}
	if len(ids) == 0 || len(ids) > MaxTransactionsPerRun {
		return nil, common.NewValidationError("transactionIds", fmt.Sprintf("transactionIds array (1-%d UUIDs) required", MaxTransactionsPerRun))
	}

	seen := make(map[string]struct{}, len(ids))
	unique := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, err := uuid.Parse(id); err != nil {
			return nil, common.NewValidationError("transactionIds", fmt.Sprintf("invalid transaction id %q", id))
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}

	txns, err := o.store.GetTransactionsByIDs(ctx, userID, unique)
	if err != nil {
		return nil, fmt.Errorf("failed to load transactions: %w", err)
	}
	if len(txns) == 0 {
		return nil, common.ErrNoTransactions
	}

	runID := uuid.NewString()
	return &Run{
		orch:   o,
		id:     runID,
		userID: userID,
		txns:   txns,
		logger: common.Logger(ctx).With("run_id", runID, "user_id", userID),
	}, nil
}

// Total is the number of transactions the run covers.
func (r *Run) Total() int { return len(r.txns) }

// ID identifies the run in logs and notifications.
func (r *Run) ID() string { return r.id }

// Stream categorizes every transaction in the run, writing events to sink as
// they happen, and returns the totals also sent in the final done event.
//
// Work is not cancelled with ctx. Once ctx is done, or the sink fails,
// batches that have not started are skipped and reported as failed, while
// in-flight batches finish and persist their results.
func (r *Run) Stream(ctx context.Context, sink Sink) Summary {
	work := context.WithoutCancel(ctx)
	em := &emitter{sink: sink, logger: r.logger}
	stopped := func() bool { return ctx.Err() != nil || em.detached() }

	sum := Summary{RunID: r.id, Total: len(r.txns)}
	r.logger.Info("Starting categorization run", "transactions", sum.Total)

	keys := make([]string, 0, len(r.txns))
	for i := range r.txns {
		if r.txns[i].VendorNormalized == "" {
			r.txns[i].VendorNormalized = vendor.Normalize(r.txns[i].Vendor)
		}
		keys = append(keys, r.txns[i].VendorNormalized)
	}

	patterns, err := r.orch.store.LookupPatterns(work, r.userID, keys)
	if err != nil {
		r.logger.Warn("Vendor pattern lookup failed, skipping cache", "error", err)
		patterns = nil
	}

	var queue []model.Transaction
	for _, t := range r.txns {
		p, ok := patterns[t.VendorNormalized]
		if !ok || p.Category == "" || !r.applyCached(work, em, t, p) {
			queue = append(queue, t)
			continue
		}
		sum.Cached++
	}
	sum.Successful = sum.Cached
	r.logger.Debug("Resolved vendor cache", "cached", sum.Cached, "need_ai", len(queue))

	if sum.Cached > 0 {
		em.emit(StatusEvent{Type: EventStatus, Message: fmt.Sprintf("%d matched from cache, %d need AI", sum.Cached, len(queue))})
	}
	current := "Done"
	if len(queue) > 0 {
		current = "Starting AI categorization..."
	}
	em.emit(ProgressEvent{Type: EventProgress, Completed: sum.Cached, Total: sum.Total, Current: current})

	var (
		mu        sync.Mutex
		completed = sum.Cached
	)
	batches := common.Chunk(queue, r.orch.opts.BatchSize)

	g := new(errgroup.Group)
	g.SetLimit(r.orch.opts.Concurrency)
	for i, batch := range batches {
		label := fmt.Sprintf("AI batch %d/%d (%d txns)", i+1, len(batches), len(batch))
		g.Go(func() error {
			var out batchOutcome
			if stopped() {
				out = r.skipBatch(em, batch)
			} else {
				mu.Lock()
				done := completed
				mu.Unlock()
				em.emit(ProgressEvent{Type: EventProgress, Completed: done, Total: sum.Total, Current: label})
				out = r.processBatch(work, em, batch)
			}

			mu.Lock()
			completed += len(batch)
			done := completed
			sum.Successful += out.successful
			sum.Failed += out.failed
			sum.InputTokens += out.inputTokens
			sum.OutputTokens += out.outputTokens
			sum.CacheWriteFailures += out.cacheWriteFailures
			mu.Unlock()

			em.emit(ProgressEvent{Type: EventProgress, Completed: done, Total: sum.Total})
			return nil
		})
	}
	_ = g.Wait()

	if sum.CacheWriteFailures > 0 {
		r.logger.Warn("Vendor patterns could not be cached", "failures", sum.CacheWriteFailures)
		em.emit(StatusEvent{Type: EventStatus, Message: fmt.Sprintf("%d vendor patterns could not be saved; future runs may classify them again", sum.CacheWriteFailures)})
	}

	em.emit(DoneEvent{
		Type:              EventDone,
		Successful:        sum.Successful,
		Failed:            sum.Failed,
		Total:             sum.Total,
		TotalInputTokens:  sum.InputTokens,
		TotalOutputTokens: sum.OutputTokens,
		CachedCount:       sum.Cached,
	})

	r.logger.Info("Categorization run complete",
		"successful", sum.Successful,
		"failed", sum.Failed,
		"cached", sum.Cached,
		"input_tokens", sum.InputTokens,
		"output_tokens", sum.OutputTokens)
	notify.Send(work, r.orch.notifier, notify.TypeCategorizationCompleted, r.userID, sum)

	return sum
}

// applyCached writes a cached pattern onto t. It reports false when the write
// fails so the transaction can fall through to the classifier.
func (r *Run) applyCached(ctx context.Context, em *emitter, t model.Transaction, p model.VendorPattern) bool {
	update := updateFromPattern(t, p)
	if err := r.orch.store.ApplyClassification(ctx, r.userID, t.ID, update); err != nil {
		r.logger.Warn("Failed to apply cached pattern", "transaction_id", t.ID, "vendor", t.VendorNormalized, "error", err)
		return false
	}
	em.emit(SuccessEvent{
		Type:         EventSuccess,
		ID:           t.ID,
		Vendor:       t.Vendor,
		Category:     update.Category,
		Line:         update.ScheduleCLine,
		Confidence:   update.Confidence,
		QuickLabels:  update.Suggestions,
		DeductionPct: update.DeductionPercent,
		IsMeal:       t.IsMeal,
		IsTravel:     t.IsTravel,
		Reasoning:    reasonCached,
	})
	return true
}

type batchOutcome struct {
	successful         int
	failed             int
	inputTokens        int
	outputTokens       int
	cacheWriteFailures int
}

// processBatch classifies one representative per vendor and fans each
// result out to every transaction in the batch sharing that vendor.
func (r *Run) processBatch(ctx context.Context, em *emitter, batch []model.Transaction) batchOutcome {
	var out batchOutcome

	representative := make(map[string]model.Transaction, len(batch))
	reps := make([]model.Representative, 0, len(batch))
	for _, t := range batch {
		if _, ok := representative[t.VendorNormalized]; ok {
			continue
		}
		representative[t.VendorNormalized] = t
		reps = append(reps, model.Representative{
			ID:     t.ID,
			Vendor: t.Vendor,
			Amount: t.Amount,
			Date:   t.Date,
			Hint:   t.Category,
		})
	}

	result, err := r.orch.classifier.Classify(ctx, reps)
	out.inputTokens = result.InputTokens
	out.outputTokens = result.OutputTokens
	if err != nil {
		r.logger.Warn("Classification batch failed", "batch_size", len(batch), "error", err)
		for _, t := range batch {
			out.failed++
			em.emit(ErrorEvent{Type: EventError, ID: t.ID, Vendor: t.Vendor, Message: err.Error()})
		}
		return out
	}

	patternSaved := make(map[string]bool, len(reps))
	for _, t := range batch {
		rep := representative[t.VendorNormalized]
		res, ok := result.Results[rep.ID]
		if !ok || res.Category == "" || res.ScheduleCLine == "" {
			out.failed++
			em.emit(ErrorEvent{Type: EventError, ID: t.ID, Vendor: t.Vendor, Message: msgMissingCategory})
			continue
		}

		update := updateFromResult(res)
		if err := r.orch.store.ApplyClassification(ctx, r.userID, t.ID, update); err != nil {
			r.logger.Warn("Failed to save categorization", "transaction_id", t.ID, "vendor", t.VendorNormalized, "error", err)
			out.failed++
			em.emit(ErrorEvent{Type: EventError, ID: t.ID, Vendor: t.Vendor, Message: "Failed to save categorization: " + err.Error()})
			continue
		}

		out.successful++
		em.emit(SuccessEvent{
			Type:         EventSuccess,
			ID:           t.ID,
			Vendor:       t.Vendor,
			Category:     update.Category,
			Line:         update.ScheduleCLine,
			Confidence:   update.Confidence,
			QuickLabels:  update.Suggestions,
			DeductionPct: update.DeductionPercent,
			IsMeal:       *update.IsMeal,
			IsTravel:     *update.IsTravel,
		})

		if patternSaved[t.VendorNormalized] {
			continue
		}
		patternSaved[t.VendorNormalized] = true
		if err := r.orch.store.UpsertPattern(ctx, patternFromUpdate(r.userID, t.VendorNormalized, update)); err != nil {
			r.logger.Warn("Failed to cache vendor pattern", "vendor", t.VendorNormalized, "error", err)
			out.cacheWriteFailures++
		}
	}
	return out
}

func (r *Run) skipBatch(em *emitter, batch []model.Transaction) batchOutcome {
	for _, t := range batch {
		em.emit(ErrorEvent{Type: EventError, ID: t.ID, Vendor: t.Vendor, Message: msgCancelled})
	}
	return batchOutcome{failed: len(batch)}
}

// emitter serializes writes to a sink and stops writing after the first
// failure.
type emitter struct {
	sink   Sink
	logger *slog.Logger
	mu     sync.Mutex
	broken bool
}

func (e *emitter) emit(event Event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.broken {
		return
	}
	if err := e.sink.Emit(event); err != nil {
		e.broken = true
		e.logger.Info("Event stream closed by consumer", "error", err)
	}
}

func (e *emitter) detached() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.broken
}
