package e2e

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vittmoney/vitt/internal/expense"
	"github.com/vittmoney/vitt/internal/importer"
	"github.com/vittmoney/vitt/internal/storage"
)

func TestStatementFixtures_Importable(t *testing.T) {
	rows := [][]string{
		{"2025-01-05", "420", "Weekly groceries", "Food", "FreshMart", "upi"},
		{"2025-01-06", "75.50", "Bus pass", "Transport", "", "cash"},
	}
	for _, ext := range []string{".csv", ".xlsx"} {
		t.Run(ext, func(t *testing.T) {
			dir := t.TempDir()
			path := filepath.Join(dir, "statement"+ext)
			if ext == ".csv" {
				require.NoError(t, WriteStatementCSV(path, rows))
			} else {
				require.NoError(t, WriteStatementXLSX(path, rows))
			}

			db, err := storage.Open(filepath.Join(dir, "vitt.db"))
			require.NoError(t, err)
			defer db.Close()
			store, err := expense.NewSQLiteStore(db)
			require.NoError(t, err)

			res, err := importer.New(store, nil).ImportFile(context.Background(), "u1", path)
			require.NoError(t, err)
			assert.Equal(t, 2, res.Imported)
			assert.Zero(t, res.Skipped)
		})
	}
}
