package engine

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Nate-Smithline/LedgerTerminal/internal/model"
	"github.com/Nate-Smithline/LedgerTerminal/internal/notify"
	"github.com/Nate-Smithline/LedgerTerminal/internal/storage"
)

const (
	userA = "user-a"
	userB = "user-b"
)

// recorder is a Sink that keeps every event.
type recorder struct {
	events []Event
	mu     sync.Mutex
}

func (r *recorder) Emit(e Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recorder) ofKind(kind EventType) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Event
	for _, e := range r.events {
		if e.Kind() == kind {
			out = append(out, e)
		}
	}
	return out
}

func (r *recorder) last() Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.events[len(r.events)-1]
}

// faultyStore fails selected writes on top of a real store.
type faultyStore struct {
	*storage.SQLiteStorage
	failApply   map[string]bool
	failUpserts bool
}

func (f *faultyStore) ApplyClassification(ctx context.Context, userID, id string, u model.ClassificationUpdate) error {
	if f.failApply[id] {
		return errors.New("disk full")
	}
	return f.SQLiteStorage.ApplyClassification(ctx, userID, id, u)
}

func (f *faultyStore) UpsertPattern(ctx context.Context, p model.VendorPattern) error {
	if f.failUpserts {
		return errors.New("pattern table locked")
	}
	return f.SQLiteStorage.UpsertPattern(ctx, p)
}

type recordingPublisher struct {
	msgs []notify.Message
	mu   sync.Mutex
}

func (p *recordingPublisher) Publish(_ context.Context, msg notify.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, msg)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.msgs))
	for _, m := range p.msgs {
		out = append(out, m.Type)
	}
	return out
}

// stream prepares and runs a categorization, failing the test on setup errors.
func stream(t *testing.T, orch *Orchestrator, user string, ids []string) (Summary, *recorder) {
	t.Helper()
	run, err := orch.Prepare(context.Background(), user, ids)
	require.NoError(t, err)
	rec := &recorder{}
	return run.Stream(context.Background(), rec), rec
}

func loadOne(t *testing.T, store *storage.SQLiteStorage, user, id string) model.Transaction {
	t.Helper()
	got, err := store.GetTransactionsByIDs(context.Background(), user, []string{id})
	require.NoError(t, err)
	require.Len(t, got, 1)
	return got[0]
}

// alpha returns a digit-free name for i so that vendor normalization keeps it.
func alpha(i int) string {
	letters := "abcdefghijklmnopqrstuvwxyz"
	return string([]byte{letters[i/26%26], letters[i%26]})
}
