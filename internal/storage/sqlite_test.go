package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/Veraticus/gasto/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Helper function to create test storage.
func createTestStorage(t *testing.T) (*SQLiteStorage, func()) {
	t.Helper()
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	store, err := NewSQLiteStorage(dbPath)
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}

	ctx := context.Background()
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		t.Fatalf("Failed to migrate: %v", err)
	}

	return store, func() { _ = store.Close() }
}

// Helper function to create an imported row ready to store.
func createTestItem(id, accountID string, date time.Time, amount float64, description string) model.ImportedTransaction {
	txn := model.Transaction{
		ID:          id,
		AccountID:   accountID,
		Date:        date,
		Amount:      amount,
		Description: description,
	}
	txn.EnsureHash()
	return model.ImportedTransaction{
		Transaction: txn,
		Categorization: model.Categorization{
			Category:    model.UncategorizedCategory,
			Subcategory: model.UncategorizedSubcategory,
			AppliedRule: "Default",
			Strategy:    model.StrategyDefault,
			Confidence:  10,
		},
		Disposition: model.DispositionImport,
	}
}

func TestNewSQLiteStorage(t *testing.T) {
	t.Run("creates nested directories", func(t *testing.T) {
		dbPath := filepath.Join(t.TempDir(), "a", "b", "gasto.db")
		store, err := NewSQLiteStorage(dbPath)
		require.NoError(t, err)
		defer func() { _ = store.Close() }()

		assert.Equal(t, dbPath, store.Path())
	})

	t.Run("rejects empty path", func(t *testing.T) {
		_, err := NewSQLiteStorage("  ")
		assert.ErrorIs(t, err, ErrEmptyString)
	})
}

func TestMigrate(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	version, err := store.SchemaVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, ExpectedSchemaVersion, version)

	// Running again is a no-op.
	require.NoError(t, store.Migrate(ctx))

	var indexCount int
	err = store.db.QueryRow(`
		SELECT COUNT(*) FROM sqlite_master
		WHERE type='index' AND name='idx_transactions_account_date'
	`).Scan(&indexCount)
	require.NoError(t, err)
	assert.Equal(t, 1, indexCount)

	var columnCount int
	err = store.db.QueryRow(`
		SELECT COUNT(*) FROM pragma_table_info('transactions')
		WHERE name IN ('duplicate_confidence', 'duplicate_reason', 'disposition', 'user_modified')
	`).Scan(&columnCount)
	require.NoError(t, err)
	assert.Equal(t, 4, columnCount)
}

func TestMigrate_NilContext(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()

	//nolint:staticcheck // testing nil context handling
	assert.ErrorIs(t, store.Migrate(nil), ErrNilContext)
}
