package coordinator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketpulse/internal/cachestore"
	"marketpulse/internal/model"
	"marketpulse/internal/testutil"
)

func fetchPrices(prices map[string]string) FetchFunc {
	return testutil.NewMockFetcher("mock", prices, nil).Fetch
}

func TestNew_Validation(t *testing.T) {
	store := testutil.NewStore(t, nil)

	_, err := New(Options{Fetch: fetchPrices(nil)})
	assert.Error(t, err)

	_, err = New(Options{Cache: store})
	assert.Error(t, err)

	tests := []struct {
		configured int
		want       int
	}{
		{0, DefaultWorkers},
		{-1, DefaultWorkers},
		{1, 1},
		{5, 5},
		{10, MaxWorkers},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.configured), func(t *testing.T) {
			c, err := New(Options{Cache: store, Fetch: fetchPrices(nil), MaxWorkers: tt.configured})
			require.NoError(t, err)
			assert.Equal(t, tt.want, c.Workers())
		})
	}
}

func TestResolve_PartialFailure(t *testing.T) {
	store := testutil.NewStore(t, nil)
	c, err := New(Options{Cache: store, Fetch: fetchPrices(map[string]string{"X.NS": "100"})})
	require.NoError(t, err)

	got := c.Resolve(context.Background(), []string{"X.NS", "Y.NS"})

	require.Len(t, got, 1)
	assert.Equal(t, "100", got["X.NS"].Stock.Price.String())
	assert.Equal(t, "X.NS", got["X.NS"].Key)
	assert.NotContains(t, got, "Y.NS")

	assert.Equal(t, []string{"X.NS"}, store.Keys(context.Background()))
	e, ok := store.Get(context.Background(), "X.NS")
	require.True(t, ok)
	assert.True(t, e.FetchedAt.Equal(testutil.MarketOpen))
}

func TestResolve_AllCached(t *testing.T) {
	store := testutil.NewStore(t, nil)
	ctx := context.Background()
	require.NoError(t, store.PutMany(ctx, []cachestore.Record{
		{Key: "A.NS", Payload: testutil.Stock("A.NS", "1")},
		{Key: "B.NS", Payload: testutil.Stock("B.NS", "2")},
	}))

	var calls atomic.Int32
	c, err := New(Options{Cache: store, Fetch: func(ctx context.Context, symbol string) (model.Snapshot, error) {
		calls.Add(1)
		return testutil.Stock(symbol, "9"), nil
	}})
	require.NoError(t, err)

	got := c.Resolve(ctx, []string{"A.NS", "B.NS"})
	assert.Len(t, got, 2)
	assert.Equal(t, "2", got["B.NS"].Stock.Price.String())
	assert.Zero(t, calls.Load(), "no fetch when every symbol is fresh")
}

func TestResolve_StaleEntriesAreRefetched(t *testing.T) {
	now := testutil.MarketOpen
	store := testutil.NewStore(t, func() time.Time { return now })
	ctx := context.Background()
	require.NoError(t, store.Put(ctx, "A.NS", testutil.Stock("A.NS", "1")))

	now = now.Add(6 * time.Minute)

	c, err := New(Options{Cache: store, Fetch: fetchPrices(map[string]string{"A.NS": "2"})})
	require.NoError(t, err)

	got := c.Resolve(ctx, []string{"A.NS"})
	assert.Equal(t, "2", got["A.NS"].Stock.Price.String())
}

func TestResolve_WorkerCap(t *testing.T) {
	store := testutil.NewStore(t, nil)

	var active, peak atomic.Int32
	fetch := func(ctx context.Context, symbol string) (model.Snapshot, error) {
		n := active.Add(1)
		defer active.Add(-1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(2 * time.Millisecond)
		return testutil.Stock(symbol, "10"), nil
	}

	c, err := New(Options{Cache: store, Fetch: fetch, MaxWorkers: 10})
	require.NoError(t, err)

	symbols := make([]string, 200)
	for i := range symbols {
		symbols[i] = fmt.Sprintf("S%03d.NS", i)
	}

	got := c.Resolve(context.Background(), symbols)
	assert.Len(t, got, 200)
	assert.LessOrEqual(t, peak.Load(), int32(MaxWorkers))
	assert.GreaterOrEqual(t, peak.Load(), int32(1))
	assert.Equal(t, 200, store.Stats(context.Background()).Total)
}

func TestResolve_TimeoutDropsSymbol(t *testing.T) {
	store := testutil.NewStore(t, nil)
	release := make(chan struct{})
	defer close(release)

	c, err := New(Options{
		Cache:   store,
		Timeout: 20 * time.Millisecond,
		Fetch: func(ctx context.Context, symbol string) (model.Snapshot, error) {
			if symbol == "SLOW.NS" {
				<-release
			}
			return testutil.Stock(symbol, "5"), nil
		},
	})
	require.NoError(t, err)

	got := c.Resolve(context.Background(), []string{"SLOW.NS", "FAST.NS"})
	assert.Contains(t, got, "FAST.NS")
	assert.NotContains(t, got, "SLOW.NS")
	assert.Equal(t, []string{"FAST.NS"}, store.Keys(context.Background()))
}

func TestResolve_InvalidSnapshotIsFailure(t *testing.T) {
	store := testutil.NewStore(t, nil)
	c, err := New(Options{Cache: store, Fetch: func(ctx context.Context, symbol string) (model.Snapshot, error) {
		return model.Snapshot{Kind: model.KindStock}, nil
	}})
	require.NoError(t, err)

	assert.Empty(t, c.Resolve(context.Background(), []string{"A.NS"}))
	assert.Empty(t, store.Keys(context.Background()))
}

func TestResolve_Duplicates(t *testing.T) {
	store := testutil.NewStore(t, nil)
	var calls atomic.Int32
	c, err := New(Options{Cache: store, Fetch: func(ctx context.Context, symbol string) (model.Snapshot, error) {
		calls.Add(1)
		return testutil.Stock(symbol, "1"), nil
	}})
	require.NoError(t, err)

	got := c.Resolve(context.Background(), []string{"A.NS", "A.NS", "", "B.NS"})
	assert.Len(t, got, 2)
	assert.Equal(t, int32(2), calls.Load())
}

// failingCache reports every key as missing and refuses writes
type failingCache struct {
	mu     sync.Mutex
	writes int
}

func (f *failingCache) GetMany(ctx context.Context, keys []string) ([]cachestore.Entry, []string) {
	return nil, keys
}

func (f *failingCache) PutMany(ctx context.Context, records []cachestore.Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes++
	return errors.New("disk full")
}

func TestResolve_WriteFailureStillReturnsResults(t *testing.T) {
	cache := &failingCache{}
	c, err := New(Options{Cache: cache, Fetch: fetchPrices(map[string]string{"A.NS": "1", "B.NS": "2"})})
	require.NoError(t, err)

	got := c.Resolve(context.Background(), []string{"A.NS", "B.NS"})
	assert.Len(t, got, 2)
	assert.Equal(t, 1, cache.writes, "fresh results are written in one batch")
}

func TestRefresh_IgnoresCache(t *testing.T) {
	store := testutil.NewStore(t, nil)
	ctx := context.Background()
	require.NoError(t, store.Put(ctx, "A.NS", testutil.Stock("A.NS", "1")))

	c, err := New(Options{Cache: store, Fetch: fetchPrices(map[string]string{"A.NS": "7"})})
	require.NoError(t, err)

	got := c.Refresh(ctx, []string{"A.NS"})
	assert.Equal(t, "7", got["A.NS"].Stock.Price.String())

	e, ok := store.Get(ctx, "A.NS")
	require.True(t, ok)
	assert.Equal(t, "7", e.Payload.Stock.Price.String())
}

func TestResolve_CancelledContext(t *testing.T) {
	store := testutil.NewStore(t, nil)
	var calls atomic.Int32
	c, err := New(Options{Cache: store, Fetch: func(ctx context.Context, symbol string) (model.Snapshot, error) {
		calls.Add(1)
		return testutil.Stock(symbol, "1"), nil
	}})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.Empty(t, c.Resolve(ctx, []string{"A.NS", "B.NS"}))
	assert.Zero(t, calls.Load())
}

func TestInOrderAndMissing(t *testing.T) {
	results := map[string]model.Snapshot{
		"C.NS": testutil.Stock("C.NS", "3"),
		"A.NS": testutil.Stock("A.NS", "1"),
	}
	symbols := []string{"A.NS", "B.NS", "C.NS", "A.NS"}

	ordered := InOrder(symbols, results)
	require.Len(t, ordered, 2)
	assert.Equal(t, "A.NS", ordered[0].Key)
	assert.Equal(t, "C.NS", ordered[1].Key)

	assert.Equal(t, []string{"B.NS"}, Missing(symbols, results))
}

func TestResolve_BudgetIsReadPerBatch(t *testing.T) {
	store := testutil.NewStore(t, nil)
	release := make(chan struct{})
	defer close(release)

	var budget atomic.Int64
	budget.Store(int64(20 * time.Millisecond))

	c, err := New(Options{
		Cache:  store,
		Budget: func() time.Duration { return time.Duration(budget.Load()) },
		Fetch: func(ctx context.Context, symbol string) (model.Snapshot, error) {
			if symbol == "SLOW.NS" {
				select {
				case <-release:
				case <-time.After(100 * time.Millisecond):
				}
			}
			return testutil.Stock(symbol, "5"), nil
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 20*time.Millisecond, c.Timeout())

	got := c.Resolve(context.Background(), []string{"SLOW.NS"})
	assert.Empty(t, got)

	budget.Store(int64(5 * time.Second))
	assert.Equal(t, 5*time.Second, c.Timeout())
	got = c.Resolve(context.Background(), []string{"SLOW.NS"})
	assert.Contains(t, got, "SLOW.NS")
}

func TestNew_DefaultTimeout(t *testing.T) {
	c, err := New(Options{Cache: testutil.NewStore(t, nil), Fetch: func(ctx context.Context, symbol string) (model.Snapshot, error) {
		return testutil.Stock(symbol, "1"), nil
	}})
	require.NoError(t, err)
	assert.Equal(t, DefaultTimeout, c.Timeout())
}
