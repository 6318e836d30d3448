package engine

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Nate-Smithline/LedgerTerminal/internal/common"
	"github.com/Nate-Smithline/LedgerTerminal/internal/model"
	"github.com/Nate-Smithline/LedgerTerminal/internal/notify"
	"github.com/Nate-Smithline/LedgerTerminal/internal/testutil"
)

func TestPrepare_Validation(t *testing.T) {
	store := testutil.SetupTestDB(t)
	orch := NewOrchestrator(store, NewMockClassifier(), nil, DefaultOptions())
	ctx := context.Background()

	mine := testutil.NewTransaction(userA, "Starbucks")
	theirs := testutil.NewTransaction(userB, "Starbucks")
	testutil.SeedTransactions(t, store, mine, theirs)

	tooMany := make([]string, MaxTransactionsPerRun+1)
	for i := range tooMany {
		tooMany[i] = uuid.NewString()
	}

	tests := []struct {
		check func(error) bool
		name  string
		user  string
		ids   []string
	}{
		{name: "no user", user: "", ids: []string{mine.ID}, check: common.IsAuthorization},
		{name: "empty ids", user: userA, ids: nil, check: common.IsValidation},
		{name: "too many ids", user: userA, ids: tooMany, check: common.IsValidation},
		{name: "malformed id", user: userA, ids: []string{mine.ID, "not-a-uuid"}, check: common.IsValidation},
		{name: "only other users rows", user: userA, ids: []string{theirs.ID}, check: func(err error) bool { return errors.Is(err, common.ErrNoTransactions) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := orch.Prepare(ctx, tt.user, tt.ids)
			require.Error(t, err)
			assert.True(t, tt.check(err), "unexpected error: %v", err)
		})
	}

	t.Run("duplicates and foreign ids are dropped", func(t *testing.T) {
		run, err := orch.Prepare(ctx, userA, []string{mine.ID, mine.ID, theirs.ID, uuid.NewString()})
		require.NoError(t, err)
		assert.Equal(t, 1, run.Total())
		assert.NotEmpty(t, run.ID())
	})
}

func TestStream_CachePrecedence(t *testing.T) {
	store := testutil.SetupTestDB(t)
	ctx := context.Background()
	mock := NewMockClassifier()
	orch := NewOrchestrator(store, mock, nil, DefaultOptions())

	pct := 50
	conf := 0.97
	require.NoError(t, store.UpsertPattern(ctx, model.VendorPattern{
		UserID:           userA,
		VendorNormalized: "starbucks",
		Category:         "Meals",
		ScheduleCLine:    "24b",
		QuickLabels:      []string{"Client Coffee"},
		DeductionPercent: &pct,
		Confidence:       &conf,
	}))
	// A pattern without a category is not a hit.
	require.NoError(t, store.UpsertPattern(ctx, model.VendorPattern{UserID: userA, VendorNormalized: "figma"}))

	txns := []model.Transaction{
		testutil.NewTransaction(userA, "STARBUCKS #4821"),
		testutil.NewTransaction(userA, "Starbucks Coffee"),
		testutil.NewTransaction(userA, "SQ *STARBUCKS", testutil.WithoutNormalizedVendor()),
		testutil.NewTransaction(userA, "Delta Air Lines"),
		testutil.NewTransaction(userA, "Figma"),
	}
	testutil.SeedTransactions(t, store, txns...)

	sum, rec := stream(t, orch, userA, testutil.IDs(txns))

	assert.Equal(t, 3, sum.Cached)
	assert.Equal(t, 5, sum.Successful)
	assert.Equal(t, 0, sum.Failed)

	sentToAI := map[string]int{}
	for _, batch := range mock.Batches() {
		for _, rep := range batch {
			sentToAI[rep.ID]++
		}
	}
	assert.Equal(t, map[string]int{txns[3].ID: 1, txns[4].ID: 1}, sentToAI)

	cached := loadOne(t, store, userA, txns[2].ID)
	assert.Equal(t, "Meals", cached.Category)
	require.NotNil(t, cached.AIConfidence)
	assert.InDelta(t, 0.97, *cached.AIConfidence, 1e-9)
	require.NotNil(t, cached.DeductionPercent)
	assert.Equal(t, 50, *cached.DeductionPercent)

	status := rec.ofKind(EventStatus)
	require.NotEmpty(t, status)
	assert.Equal(t, "3 matched from cache, 2 need AI", status[0].(StatusEvent).Message)

	for _, e := range rec.ofKind(EventSuccess) {
		s := e.(SuccessEvent)
		if s.Category == "Meals" {
			assert.Equal(t, reasonCached, s.Reasoning)
		}
	}
}

func TestStream_CachedPatternWithoutPercentUsesPolicy(t *testing.T) {
	store := testutil.SetupTestDB(t)
	ctx := context.Background()
	orch := NewOrchestrator(store, NewMockClassifier(), nil, DefaultOptions())

	require.NoError(t, store.UpsertPattern(ctx, model.VendorPattern{
		UserID:           userA,
		VendorNormalized: "joes diner",
		Category:         "Meals",
		ScheduleCLine:    "Line 24b",
	}))
	txn := testutil.NewTransaction(userA, "Joes Diner")
	testutil.SeedTransactions(t, store, txn)

	_, rec := stream(t, orch, userA, []string{txn.ID})

	success := rec.ofKind(EventSuccess)
	require.Len(t, success, 1)
	ev := success[0].(SuccessEvent)
	assert.Equal(t, 50, ev.DeductionPct)
	assert.InDelta(t, defaultCachedConfidence, ev.Confidence, 1e-9)
}

func TestStream_VendorDedupWithinBatch(t *testing.T) {
	store := testutil.SetupTestDB(t)
	mock := NewMockClassifier()
	orch := NewOrchestrator(store, mock, nil, DefaultOptions())

	txns := []model.Transaction{
		testutil.NewTransaction(userA, "DELTA AIR LINES 0062"),
		testutil.NewTransaction(userA, "Delta Air Lines"),
		testutil.NewTransaction(userA, "GitHub"),
		testutil.NewTransaction(userA, "delta air lines #8841"),
	}
	testutil.SeedTransactions(t, store, txns...)

	sum, _ := stream(t, orch, userA, testutil.IDs(txns))
	assert.Equal(t, 4, sum.Successful)

	batches := mock.Batches()
	require.Len(t, batches, 1)
	require.Len(t, batches[0], 2, "one representative per vendor")
	assert.Equal(t, txns[0].ID, batches[0][0].ID, "first transaction represents its vendor")

	var categories []string
	for _, id := range []string{txns[0].ID, txns[1].ID, txns[3].ID} {
		got := loadOne(t, store, userA, id)
		categories = append(categories, got.Category+"|"+got.ScheduleCLine)
		assert.True(t, got.IsTravel)
	}
	assert.Equal(t, []string{"Travel|24a", "Travel|24a", "Travel|24a"}, categories)
}

func TestStream_BatchesEverythingOnce(t *testing.T) {
	store := testutil.SetupTestDB(t)
	mock := NewMockClassifier()
	orch := NewOrchestrator(store, mock, nil, DefaultOptions())

	txns := make([]model.Transaction, 60)
	for i := range txns {
		txns[i] = testutil.NewTransaction(userA, "Vendor "+alpha(i))
	}
	testutil.SeedTransactions(t, store, txns...)

	sum, rec := stream(t, orch, userA, testutil.IDs(txns))
	assert.Equal(t, 60, sum.Successful)
	assert.Equal(t, 600, sum.InputTokens)
	assert.Equal(t, 300, sum.OutputTokens)

	seen := map[string]int{}
	var sizes []int
	for _, batch := range mock.Batches() {
		sizes = append(sizes, len(batch))
		for _, rep := range batch {
			seen[rep.ID]++
		}
	}
	assert.ElementsMatch(t, []int{25, 25, 10}, sizes)
	assert.Len(t, seen, 60)
	for id, n := range seen {
		assert.Equal(t, 1, n, "transaction %s classified more than once", id)
	}

	var labels []string
	for _, e := range rec.ofKind(EventProgress) {
		if p := e.(ProgressEvent); p.Current != "" {
			labels = append(labels, p.Current)
		}
	}
	assert.Contains(t, labels, "Starting AI categorization...")
	assert.Contains(t, labels, "AI batch 3/3 (10 txns)")

	done := rec.last().(DoneEvent)
	assert.Equal(t, DoneEvent{Type: EventDone, Successful: 60, Total: 60, TotalInputTokens: 600, TotalOutputTokens: 300}, done)
}

// slowClassifier holds each call open long enough for calls to overlap and
// records the highest number in flight.
type slowClassifier struct {
	*MockClassifier
	delay    time.Duration
	inFlight atomic.Int32
	peak     atomic.Int32
}

func (s *slowClassifier) Classify(ctx context.Context, reps []model.Representative) (model.ClassificationBatch, error) {
	n := s.inFlight.Add(1)
	defer s.inFlight.Add(-1)
	for {
		peak := s.peak.Load()
		if n <= peak || s.peak.CompareAndSwap(peak, n) {
			break
		}
	}
	time.Sleep(s.delay)
	return s.MockClassifier.Classify(ctx, reps)
}

func TestStream_BoundedConcurrency(t *testing.T) {
	store := testutil.SetupTestDB(t)
	classifier := &slowClassifier{MockClassifier: NewMockClassifier(), delay: 30 * time.Millisecond}
	orch := NewOrchestrator(store, classifier, nil, DefaultOptions())

	txns := make([]model.Transaction, 300)
	for i := range txns {
		txns[i] = testutil.NewTransaction(userA, "Vendor "+alpha(i%150))
	}
	testutil.SeedTransactions(t, store, txns...)

	sum, rec := stream(t, orch, userA, testutil.IDs(txns))
	assert.Equal(t, 300, sum.Successful)
	assert.Zero(t, sum.Failed)
	assert.Len(t, rec.ofKind(EventSuccess), 300)
	assert.IsType(t, DoneEvent{}, rec.last())

	assert.Len(t, classifier.Batches(), 12)
	assert.LessOrEqual(t, classifier.peak.Load(), int32(4), "more classifier calls in flight than the concurrency limit")
	assert.Equal(t, int32(4), classifier.peak.Load(), "batches did not overlap")
	assert.Zero(t, classifier.inFlight.Load())
}

func TestStream_PartialFailureIsolation(t *testing.T) {
	db := testutil.SetupTestDB(t)
	txns := make([]model.Transaction, 25)
	for i := range txns {
		txns[i] = testutil.NewTransaction(userA, "Store "+alpha(i))
	}
	testutil.SeedTransactions(t, db, txns...)

	store := &faultyStore{SQLiteStorage: db, failApply: map[string]bool{txns[7].ID: true}}
	orch := NewOrchestrator(store, NewMockClassifier(), nil, DefaultOptions())

	sum, rec := stream(t, orch, userA, testutil.IDs(txns))

	assert.Equal(t, 24, sum.Successful)
	assert.Equal(t, 1, sum.Failed)
	assert.Equal(t, sum.Total, sum.Successful+sum.Failed)

	errs := rec.ofKind(EventError)
	require.Len(t, errs, 1)
	ev := errs[0].(ErrorEvent)
	assert.Equal(t, txns[7].ID, ev.ID)
	assert.Equal(t, txns[7].Vendor, ev.Vendor)
	assert.Contains(t, ev.Message, "disk full")
	assert.Len(t, rec.ofKind(EventSuccess), 24)
	assert.Equal(t, EventDone, rec.last().Kind())
}

func TestStream_ClassifierFailureFailsOnlyThatBatch(t *testing.T) {
	store := testutil.SetupTestDB(t)
	mock := NewMockClassifier()
	mock.SetError(fmt.Errorf("%w after 3 attempts: upstream unavailable", common.ErrMaxRetries))
	orch := NewOrchestrator(store, mock, nil, Options{BatchSize: 2, Concurrency: 2})

	txns := []model.Transaction{
		testutil.NewTransaction(userA, "Delta"),
		testutil.NewTransaction(userA, "Figma"),
		testutil.NewTransaction(userA, "Staples"),
	}
	testutil.SeedTransactions(t, store, txns...)

	sum, rec := stream(t, orch, userA, testutil.IDs(txns))
	assert.Equal(t, 0, sum.Successful)
	assert.Equal(t, 3, sum.Failed)
	assert.Equal(t, 30, sum.InputTokens, "usage from failed calls still counts")

	for _, e := range rec.ofKind(EventError) {
		assert.Contains(t, e.(ErrorEvent).Message, "upstream unavailable")
	}
	assert.Equal(t, DoneEvent{Type: EventDone, Failed: 3, Total: 3, TotalInputTokens: 30}, rec.last())

	unchanged := loadOne(t, store, userA, txns[0].ID)
	assert.Empty(t, unchanged.Category)
	assert.Equal(t, model.StatusPending, unchanged.Status)
}

func TestStream_MissingResult(t *testing.T) {
	store := testutil.SetupTestDB(t)
	mock := NewMockClassifier()
	orch := NewOrchestrator(store, mock, nil, DefaultOptions())

	txns := []model.Transaction{
		testutil.NewTransaction(userA, "Delta"),
		testutil.NewTransaction(userA, "Figma"),
		testutil.NewTransaction(userA, "Figma Inc"),
	}
	testutil.SeedTransactions(t, store, txns...)
	mock.Omit(txns[1].ID)

	sum, rec := stream(t, orch, userA, testutil.IDs(txns))
	assert.Equal(t, 1, sum.Successful)
	assert.Equal(t, 2, sum.Failed, "every transaction sharing the omitted representative fails")

	for _, e := range rec.ofKind(EventError) {
		assert.Equal(t, msgMissingCategory, e.(ErrorEvent).Message)
	}
}

func TestStream_CacheWriteFailureIsReported(t *testing.T) {
	db := testutil.SetupTestDB(t)
	txns := []model.Transaction{
		testutil.NewTransaction(userA, "Delta"),
		testutil.NewTransaction(userA, "Figma"),
	}
	testutil.SeedTransactions(t, db, txns...)

	store := &faultyStore{SQLiteStorage: db, failUpserts: true}
	orch := NewOrchestrator(store, NewMockClassifier(), nil, DefaultOptions())

	sum, rec := stream(t, orch, userA, testutil.IDs(txns))
	assert.Equal(t, 2, sum.Successful)
	assert.Equal(t, 2, sum.CacheWriteFailures)

	statuses := rec.ofKind(EventStatus)
	require.NotEmpty(t, statuses)
	assert.Contains(t, statuses[len(statuses)-1].(StatusEvent).Message, "2 vendor patterns could not be saved")
	assert.Equal(t, EventDone, rec.last().Kind())
}

func TestStream_ReapplyingIsIdempotent(t *testing.T) {
	store := testutil.SetupTestDB(t)
	mock := NewMockClassifier()
	orch := NewOrchestrator(store, mock, nil, DefaultOptions())

	txns := []model.Transaction{
		testutil.NewTransaction(userA, "Starbucks"),
		testutil.NewTransaction(userA, "GitHub"),
	}
	testutil.SeedTransactions(t, store, txns...)

	stream(t, orch, userA, testutil.IDs(txns))
	first := []model.Transaction{loadOne(t, store, userA, txns[0].ID), loadOne(t, store, userA, txns[1].ID)}

	sum, _ := stream(t, orch, userA, testutil.IDs(txns))
	assert.Equal(t, 2, sum.Cached, "second run is served from the vendor cache")
	assert.Equal(t, 1, mock.CallCount())

	for i, before := range first {
		after := loadOne(t, store, userA, txns[i].ID)
		assert.Equal(t, before.Category, after.Category)
		assert.Equal(t, before.ScheduleCLine, after.ScheduleCLine)
		assert.Equal(t, *before.AIConfidence, *after.AIConfidence)
		assert.Equal(t, *before.DeductionPercent, *after.DeductionPercent)
		assert.Equal(t, before.IsMeal, after.IsMeal)
	}
}

func TestStream_CancelledCallerSkipsUnstartedBatches(t *testing.T) {
	store := testutil.SetupTestDB(t)
	mock := NewMockClassifier()
	orch := NewOrchestrator(store, mock, nil, DefaultOptions())

	txns := []model.Transaction{
		testutil.NewTransaction(userA, "Delta"),
		testutil.NewTransaction(userA, "Figma"),
	}
	testutil.SeedTransactions(t, store, txns...)

	run, err := orch.Prepare(context.Background(), userA, testutil.IDs(txns))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rec := &recorder{}
	sum := run.Stream(ctx, rec)

	assert.Equal(t, 0, mock.CallCount())
	assert.Equal(t, 2, sum.Failed)
	assert.Equal(t, sum.Total, sum.Successful+sum.Failed)
	assert.Equal(t, EventDone, rec.last().Kind())
}

func TestStream_StopsEmittingAfterSinkFailure(t *testing.T) {
	store := testutil.SetupTestDB(t)
	mock := NewMockClassifier()
	orch := NewOrchestrator(store, mock, nil, DefaultOptions())

	txn := testutil.NewTransaction(userA, "Delta")
	testutil.SeedTransactions(t, store, txn)

	run, err := orch.Prepare(context.Background(), userA, []string{txn.ID})
	require.NoError(t, err)

	calls := 0
	sum := run.Stream(context.Background(), SinkFunc(func(Event) error {
		calls++
		return errors.New("broken pipe")
	}))

	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, sum.Total)
	assert.Equal(t, sum.Total, sum.Successful+sum.Failed)
}

func TestStream_PublishesCompletion(t *testing.T) {
	store := testutil.SetupTestDB(t)
	pub := &recordingPublisher{}
	orch := NewOrchestrator(store, NewMockClassifier(), pub, DefaultOptions())

	txn := testutil.NewTransaction(userA, "Delta")
	testutil.SeedTransactions(t, store, txn)

	stream(t, orch, userA, []string{txn.ID})
	assert.Equal(t, []string{notify.TypeCategorizationCompleted}, pub.types())
}
