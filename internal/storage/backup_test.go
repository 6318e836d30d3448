package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Nate-Smithline/LedgerTerminal/internal/service"
)

func TestBackup(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()
	saveAll(t, store, newTxn(userA, "uber"), newTxn(userA, "lyft"))

	dest := filepath.Join(t.TempDir(), "backups", "ledger.db")
	info, err := store.Backup(ctx, dest)
	require.NoError(t, err)
	assert.Equal(t, dest, info.Path)
	assert.Equal(t, 2, info.Transactions)
	assert.Equal(t, 0, info.Patterns)
	assert.Positive(t, info.FileSize)

	restored, err := NewSQLiteStorage(dest)
	require.NoError(t, err)
	t.Cleanup(func() { _ = restored.Close() })
	got, err := restored.ListTransactions(ctx, service.TransactionFilter{UserID: userA})
	require.NoError(t, err)
	assert.Len(t, got, 2)

	_, err = store.Backup(ctx, dest)
	assert.ErrorIs(t, err, ErrBackupExists)

	_, err = store.Backup(ctx, "")
	assert.ErrorIs(t, err, ErrEmptyString)
}
