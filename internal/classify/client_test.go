package classify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vittmoney/vitt/internal/cache"
)

func newClassifyServer(t *testing.T, calls *int32, status int, category string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(calls, 1)
		assert.Equal(t, "/classify", r.URL.Path)
		var req map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if status != http.StatusOK {
			w.WriteHeader(status)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"category": category, "confidence": 0.87})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestClient_ClassifyCachesByNormalizedText(t *testing.T) {
	var calls int32
	srv := newClassifyServer(t, &calls, http.StatusOK, "Transport")
	cc := cache.NewClassificationCache(10)
	c := NewClient(srv.URL, cc)

	got := c.Classify(context.Background(), "Uber to airport")
	require.NotNil(t, got)
	assert.Equal(t, "Transport", got.Category)
	assert.InDelta(t, 0.87, got.Confidence, 1e-9)

	again := c.Classify(context.Background(), "  uber TO airport ")
	require.NotNil(t, again)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.Equal(t, 1, c.CacheSize())
}

func TestClient_FailuresReturnNil(t *testing.T) {
	var calls int32
	srv := newClassifyServer(t, &calls, http.StatusInternalServerError, "")
	c := NewClient(srv.URL, nil)

	assert.Nil(t, c.Classify(context.Background(), "coffee"))
	assert.Nil(t, c.Classify(context.Background(), "   "))
	assert.Equal(t, 0, c.CacheSize())
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	down := NewClient("http://127.0.0.1:1", nil)
	assert.Nil(t, down.Classify(context.Background(), "coffee"))
}

func TestClient_EmptyCategoryIsFailure(t *testing.T) {
	var calls int32
	srv := newClassifyServer(t, &calls, http.StatusOK, "")
	assert.Nil(t, NewClient(srv.URL, nil).Classify(context.Background(), "coffee"))
}

func TestClient_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL, nil, WithTimeout(50*time.Millisecond))
	start := time.Now()
	assert.Nil(t, c.Classify(context.Background(), "slow"))
	assert.Less(t, time.Since(start), time.Second)
}
