package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrate(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()

	t.Run("creates every table", func(t *testing.T) {
		for _, table := range []string{
			"transactions", "vendor_patterns", "auto_sort_rules",
			"deductions", "tax_year_settings", "org_settings",
		} {
			var name string
			err := store.DB().QueryRowContext(ctx,
				"SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?", table).Scan(&name)
			require.NoError(t, err, table)
			assert.Equal(t, table, name)
		}
	})

	t.Run("is idempotent", func(t *testing.T) {
		require.NoError(t, store.Migrate(ctx))
		saveAll(t, store, newTxn(userA, "uber"))
		require.NoError(t, store.Migrate(ctx))

		var count int
		require.NoError(t, store.DB().QueryRowContext(ctx, "SELECT COUNT(*) FROM transactions").Scan(&count))
		assert.Equal(t, 1, count)
	})

	t.Run("records the schema version", func(t *testing.T) {
		var version int
		var dirty bool
		require.NoError(t, store.DB().QueryRowContext(ctx, "SELECT version, dirty FROM schema_migrations").Scan(&version, &dirty))
		assert.Equal(t, 1, version)
		assert.False(t, dirty)
	})
}
