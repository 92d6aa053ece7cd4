package builder

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vittmoney/vitt/internal/apperr"
	"github.com/vittmoney/vitt/internal/embedding"
	"github.com/vittmoney/vitt/internal/knowledge"
	"github.com/vittmoney/vitt/internal/models"
)

type memExpenses struct {
	mu   sync.Mutex
	byID map[string][]*models.Expense
}

func newMemExpenses() *memExpenses {
	return &memExpenses{byID: map[string][]*models.Expense{}}
}

func (m *memExpenses) add(userID, amount, category, merchant, day string) {
	d, _ := time.Parse(models.DateLayout, day)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byID[userID] = append(m.byID[userID], &models.Expense{
		ID: userID + day, UserID: userID, Amount: decimal.RequireFromString(amount),
		Currency: "INR", Description: "groceries", Category: category, Merchant: merchant, Date: d,
	})
}

func (m *memExpenses) Find(ctx context.Context, userID string) ([]*models.Expense, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := append([]*models.Expense(nil), m.byID[userID]...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	return out, nil
}
func (m *memExpenses) Create(ctx context.Context, e *models.Expense) error { return nil }
func (m *memExpenses) SetCategory(ctx context.Context, id, c string) error { return nil }
func (m *memExpenses) CreateBatch(ctx context.Context, es []*models.Expense) (int, error) {
	return len(es), nil
}
func (m *memExpenses) Users(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var users []string
	for u := range m.byID {
		users = append(users, u)
	}
	sort.Strings(users)
	return users, nil
}
func (m *memExpenses) Count(ctx context.Context, userID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.byID[userID])), nil
}

type stubEmbedder struct {
	*embedding.MockEmbedder
	err   error
	short bool
	wait  time.Duration
}

func (s *stubEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if s.wait > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(s.wait):
		}
	}
	if s.err != nil {
		return nil, s.err
	}
	out, err := s.MockEmbedder.EmbedBatch(ctx, texts)
	if s.short && len(out) > 0 {
		out = out[:len(out)-1]
	}
	return out, err
}

func setup(t *testing.T) (*memExpenses, *stubEmbedder, *knowledge.FileStore) {
	t.Helper()
	store, err := knowledge.NewFileStore(t.TempDir())
	require.NoError(t, err)
	return newMemExpenses(), &stubEmbedder{MockEmbedder: embedding.NewMockEmbedder(8)}, store
}

func TestBuild(t *testing.T) {
	exp, emb, store := setup(t)
	exp.add("u1", "100", "Food", "", "2025-01-01")
	exp.add("u1", "420", "Food", "Zomato", "2025-12-29")
	b := New(exp, emb, store)

	kb, err := b.Build(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"₹420 spent on Food at Zomato on 2025-12-29",
		"₹100 spent on Food at groceries on 2025-01-01",
	}, kb.Facts)
	assert.Len(t, kb.Embeddings, 2)

	loaded, err := store.Load(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, kb.Facts, loaded.Facts)
	assert.Equal(t, kb.Embeddings, loaded.Embeddings)

	want, _ := emb.MockEmbedder.Embed(context.Background(), kb.Facts[1])
	assert.Equal(t, want, loaded.Embeddings[1], "embedding i must describe fact i")
}

func TestBuild_NoExpenses(t *testing.T) {
	exp, emb, store := setup(t)
	b := New(exp, emb, store)

	_, err := b.Build(context.Background(), "u1")
	assert.ErrorIs(t, err, ErrNoExpenses)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	ok, err := store.Exists(context.Background(), "u1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestBuild_FailureKeepsBaseline(t *testing.T) {
	tests := []struct {
		name string
		emb  func(*stubEmbedder)
	}{
		{"embedder error", func(s *stubEmbedder) { s.err = errors.New("ml service down") }},
		{"count mismatch", func(s *stubEmbedder) { s.short = true }},
		{"timeout", func(s *stubEmbedder) { s.wait = time.Second }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exp, emb, store := setup(t)
			exp.add("u1", "50", "Bills", "Power", "2025-01-01")
			b := New(exp, emb, store, WithEmbedTimeout(50*time.Millisecond))
			baseline, err := b.Build(context.Background(), "u1")
			require.NoError(t, err)

			exp.add("u1", "75", "Food", "Cafe", "2025-02-01")
			tt.emb(emb)
			_, err = b.Build(context.Background(), "u1")
			require.Error(t, err)
			assert.True(t, apperr.Is(err, apperr.KindServiceUnavailable), "got %v", err)

			after, err := store.Load(context.Background(), "u1")
			require.NoError(t, err)
			assert.Equal(t, baseline.Facts, after.Facts)
			assert.Equal(t, baseline.Embeddings, after.Embeddings)
		})
	}
}

func TestBuild_InvalidExpense(t *testing.T) {
	exp, emb, store := setup(t)
	exp.add("u1", "0", "Food", "Cafe", "2025-01-01")
	_, err := New(exp, emb, store).Build(context.Background(), "u1")
	assert.True(t, apperr.Is(err, apperr.KindInternal))
}

func TestBuildInBackground(t *testing.T) {
	exp, emb, store := setup(t)
	exp.add("u1", "10", "Food", "Cafe", "2025-01-01")
	b := New(exp, emb, store)

	id := b.BuildInBackground("u1")
	assert.NotEmpty(t, id)
	b.BuildInBackground("nobody")
	emb2 := &stubEmbedder{MockEmbedder: embedding.NewMockEmbedder(8), err: errors.New("down")}
	failing := New(exp, emb2, store)
	failing.BuildInBackground("u1")
	b.Wait()
	failing.Wait()

	ok, err := store.Exists(context.Background(), "u1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestBuildAll(t *testing.T) {
	exp, emb, store := setup(t)
	for _, u := range []string{"a", "b", "c", "d", "e"} {
		exp.add(u, "10", "Food", "Cafe", "2025-01-01")
	}
	n, err := New(exp, emb, store, WithConcurrency(2)).BuildAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	for _, u := range []string{"a", "b", "c", "d", "e"} {
		ok, _ := store.Exists(context.Background(), u)
		assert.True(t, ok, u)
	}
}

func TestBuildAll_FailuresAreCounted(t *testing.T) {
	exp, _, store := setup(t)
	exp.add("a", "10", "Food", "Cafe", "2025-01-01")
	emb := &stubEmbedder{MockEmbedder: embedding.NewMockEmbedder(8), err: errors.New("down")}
	n, err := New(exp, emb, store).BuildAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}
