package importer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/vittmoney/vitt/internal/expense"
	"github.com/vittmoney/vitt/internal/models"
	"github.com/vittmoney/vitt/internal/storage"
)

type fixedClassifier struct {
	category string
	calls    int
}

func (f *fixedClassifier) Classify(_ context.Context, _ string) *models.Classification {
	f.calls++
	return &models.Classification{Category: f.category, Confidence: 0.9}
}

func setup(t *testing.T) (*expense.SQLiteStore, *Ledger) {
	t.Helper()
	db, err := storage.Open(filepath.Join(t.TempDir(), "vitt.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	store, err := expense.NewSQLiteStore(db)
	require.NoError(t, err)
	ledger, err := NewLedger(db)
	require.NoError(t, err)
	return store, ledger
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestImportFile_CSV(t *testing.T) {
	ctx := context.Background()
	store, ledger := setup(t)
	im := New(store, ledger)

	path := writeFile(t, "jan.csv", "Date,Amount,Description,Category,Merchant,Payment Method\n"+
		"2025-01-02,\"1,200.50\",Weekly groceries,Food,BigBasket,upi\n"+
		"2025-01-03,₹300,Metro card,Transport,,card\n"+
		",,,,,\n")

	res, err := im.ImportFile(ctx, "u1", path)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Imported)
	assert.Equal(t, 0, res.Skipped)
	assert.False(t, res.Unchanged)

	got, err := store.Find(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Metro card", got[0].Description)
	assert.Equal(t, "Weekly groceries", got[1].Description)
	assert.Equal(t, "1200.5", got[1].Amount.String())
	assert.Equal(t, "BigBasket", got[1].Merchant)
	assert.Equal(t, models.PaymentUPI, got[1].PaymentMethod)
	assert.Equal(t, "INR", got[1].Currency)
}

func TestImportFile_UnchangedFileIsSkipped(t *testing.T) {
	ctx := context.Background()
	store, ledger := setup(t)
	im := New(store, ledger)
	path := writeFile(t, "feb.csv", "date,amount,description\n2025-02-01,50,Tea\n")

	_, err := im.ImportFile(ctx, "u1", path)
	require.NoError(t, err)
	res, err := im.ImportFile(ctx, "u1", path)
	require.NoError(t, err)
	assert.True(t, res.Unchanged)
	assert.Zero(t, res.Imported)

	n, err := store.Count(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	// A modified file is read again, but only its new row becomes an expense.
	require.NoError(t, os.WriteFile(path, []byte("date,amount,description\n2025-02-01,50,Tea\n2025-02-02,60,Coffee\n"), 0o644))
	later := time.Now().Add(time.Minute)
	require.NoError(t, os.Chtimes(path, later, later))
	res, err = im.ImportFile(ctx, "u1", path)
	require.NoError(t, err)
	assert.False(t, res.Unchanged)
	assert.Equal(t, 1, res.Imported)
	assert.Equal(t, 1, res.Duplicates)

	n, err = store.Count(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	files, err := ledger.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), files)
}

func TestImportFile_AppendedRowsOnly(t *testing.T) {
	ctx := context.Background()
	store, _ := setup(t)
	im := New(store, nil)
	header := "date,amount,description,category\n"
	rows := "2025-04-01,120,Lunch,Food\n" +
		"2025-04-01,120,Lunch,Food\n" +
		"2025-04-02,40,Bus,Transport\n"
	path := writeFile(t, "apr.csv", header+rows)

	res, err := im.ImportFile(ctx, "u1", path)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Imported, "identical rows in one statement are separate expenses")

	require.NoError(t, os.WriteFile(path, []byte(header+rows+"2025-04-03,900,Shoes,Shopping\n"), 0o644))
	res, err = im.ImportFile(ctx, "u1", path)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Imported)
	assert.Equal(t, 3, res.Duplicates)

	got, err := store.Find(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, got, 4)
	assert.Equal(t, "Shoes", got[0].Description)

	// The same rows for another user are that user's expenses.
	res, err = im.ImportFile(ctx, "u2", path)
	require.NoError(t, err)
	assert.Equal(t, 4, res.Imported)
}

type failingStore struct {
	*expense.SQLiteStore
	fail bool
}

func (f *failingStore) CreateBatch(ctx context.Context, es []*models.Expense) (int, error) {
	if f.fail {
		return 0, errors.New("disk full")
	}
	return f.SQLiteStore.CreateBatch(ctx, es)
}

func TestImportFile_FailedImportCanBeRetried(t *testing.T) {
	ctx := context.Background()
	store, ledger := setup(t)
	failing := &failingStore{SQLiteStore: store, fail: true}
	im := New(failing, ledger)
	path := writeFile(t, "may.csv", "date,amount,description\n2025-05-01,10,Tea\n2025-05-02,20,Snacks\n")

	_, err := im.ImportFile(ctx, "u1", path)
	require.Error(t, err)
	files, err := ledger.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, files)

	failing.fail = false
	res, err := im.ImportFile(ctx, "u1", path)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Imported)
	n, err := store.Count(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestImportFile_SkipsInvalidRows(t *testing.T) {
	store, _ := setup(t)
	im := New(store, nil)
	path := writeFile(t, "bad.csv", "date,amount,description\n"+
		"2025-03-01,abc,Bad amount\n"+
		"yesterday,10,Bad date\n"+
		"2025-03-01,0,Zero\n"+
		"2025-03-01,10,\n"+
		"2025-03-02,-45,Refunded debit\n")

	res, err := im.ImportFile(context.Background(), "u1", path)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Imported)
	assert.Equal(t, 4, res.Skipped)
}

func TestImportFile_HeaderWithByteOrderMark(t *testing.T) {
	store, _ := setup(t)
	im := New(store, nil)
	path := writeFile(t, "bom.csv", "\ufeffDate,Narration,Debit\n2025-03-05,Electricity bill,1800\n")

	res, err := im.ImportFile(context.Background(), "u1", path)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Imported)

	got, err := store.Find(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Electricity bill", got[0].Description)
}

func TestImportFile_MissingColumns(t *testing.T) {
	store, ledger := setup(t)
	im := New(store, ledger)
	path := writeFile(t, "cols.csv", "date,description\n2025-01-01,Tea\n")

	_, err := im.ImportFile(context.Background(), "u1", path)
	require.ErrorIs(t, err, ErrMissingColumns)
	assert.Contains(t, err.Error(), "amount")
}

func TestImportFile_UnsupportedFormat(t *testing.T) {
	store, ledger := setup(t)
	im := New(store, ledger)
	path := writeFile(t, "notes.txt", "date,amount,description\n")

	_, err := im.ImportFile(context.Background(), "u1", path)
	require.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestImportFile_ClassifiesUncategorizedRows(t *testing.T) {
	ctx := context.Background()
	store, ledger := setup(t)
	cls := &fixedClassifier{category: "Food"}
	im := New(store, ledger, WithClassifier(cls))
	path := writeFile(t, "mar.csv", "date,amount,description,category\n"+
		"2025-03-01,100,Pizza,\n"+
		"2025-03-02,200,Taxi,Transport\n")

	_, err := im.ImportFile(ctx, "u1", path)
	require.NoError(t, err)
	assert.Equal(t, 1, cls.calls)

	got, err := store.Find(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Transport", got[0].Category)
	assert.Equal(t, "Food", got[1].Category)
}

func TestImportFile_XLSX(t *testing.T) {
	ctx := context.Background()
	store, ledger := setup(t)
	im := New(store, ledger)

	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetSheetRow(sheet, "A1", &[]interface{}{"Date", "Amount", "Narration", "Currency"}))
	require.NoError(t, f.SetSheetRow(sheet, "A2", &[]interface{}{"2025-04-01", 250.75, "Cinema tickets", "usd"}))
	require.NoError(t, f.SetSheetRow(sheet, "A3", &[]interface{}{"", 90, "Lunch", ""}))
	require.NoError(t, f.SetCellValue(sheet, "A3", time.Date(2025, 4, 5, 0, 0, 0, 0, time.UTC)))
	path := filepath.Join(t.TempDir(), "apr.xlsx")
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	res, err := im.ImportFile(ctx, "u1", path)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Imported)

	got, err := store.Find(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Lunch", got[0].Description)
	assert.Equal(t, "2025-04-05", got[0].Date.Format(models.DateLayout))
	assert.Equal(t, "Cinema tickets", got[1].Description)
	assert.Equal(t, "USD", got[1].Currency)
	assert.Equal(t, "250.75", got[1].Amount.String())
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"1,234.50", "1234.5", true},
		{"₹420", "420", true},
		{"$ 12", "12", true},
		{"-75", "75", true},
		{"", "", false},
		{"twelve", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseAmount(tt.in)
			if !tt.ok {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.String())
		})
	}
}

func TestFileID(t *testing.T) {
	assert.Equal(t, FileID("/tmp/a/../b.csv"), FileID("/tmp/b.csv"))
	assert.NotEqual(t, FileID("/tmp/a.csv"), FileID("/tmp/b.csv"))
	assert.Contains(t, FileID("/tmp/a.csv"), "file:")
}

func TestSupported(t *testing.T) {
	assert.True(t, Supported("a.CSV"))
	assert.True(t, Supported("a.xlsx"))
	assert.False(t, Supported("a.xls"))
	assert.False(t, Supported("a.pdf"))
}
