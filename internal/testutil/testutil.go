package testutil

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"marketpulse/internal/cachestore"
	"marketpulse/internal/fetcher"
	"marketpulse/internal/freshness"
	"marketpulse/internal/marketclock"
	"marketpulse/internal/model"
)

// IST is a fixed +05:30 zone so tests do not depend on the tz database
var IST = time.FixedZone("IST", 5*60*60+30*60)

// MarketOpen is a Tuesday 11:00 IST, inside trading hours (5 minute TTL)
var MarketOpen = time.Date(2025, time.June, 3, 11, 0, 0, 0, IST)

// MockFetcher is a mock implementation of the Fetcher interface for testing
type MockFetcher struct {
	SourceName string
	FetchFunc  func(ctx context.Context, symbol string) (model.Snapshot, error)
}

// Source implements the Fetcher interface
func (m *MockFetcher) Source() string {
	if m.SourceName == "" {
		return "mock"
	}
	return m.SourceName
}

// Fetch implements the Fetcher interface
func (m *MockFetcher) Fetch(ctx context.Context, symbol string) (model.Snapshot, error) {
	if m.FetchFunc != nil {
		return m.FetchFunc(ctx, symbol)
	}
	return model.Snapshot{}, fetcher.NewNoDataError(symbol)
}

// NewMockFetcher creates a mock source that knows a fixed set of prices.
// Unknown symbols fail with err, or with a no-data error when err is nil.
func NewMockFetcher(source string, prices map[string]string, err error) *MockFetcher {
	return &MockFetcher{
		SourceName: source,
		FetchFunc: func(ctx context.Context, symbol string) (model.Snapshot, error) {
			if price, ok := prices[symbol]; ok {
				s := Stock(symbol, price)
				s.Source = source
				return s, nil
			}
			if err != nil {
				return model.Snapshot{}, err
			}
			return model.Snapshot{}, fetcher.NewNoDataError(symbol)
		},
	}
}

// Stock builds a minimal stock snapshot
func Stock(symbol, price string) model.Snapshot {
	return model.NewStock(symbol, "mock", model.StockPerformance{
		Symbol: symbol,
		Name:   model.DisplayName(symbol),
		Price:  decimal.RequireFromString(price),
	})
}

// Policy returns the freshness policy in IST with the default holiday list
func Policy() *freshness.Policy {
	return freshness.NewPolicy(marketclock.New(IST, marketclock.DefaultHolidays()))
}

// NewStore opens a store in a fresh temp dir. A nil now pins the clock to MarketOpen.
func NewStore(t *testing.T, now func() time.Time) *cachestore.Store {
	t.Helper()
	if now == nil {
		now = func() time.Time { return MarketOpen }
	}
	s, err := cachestore.Open(cachestore.Options{
		Path:   filepath.Join(t.TempDir(), "cache.json"),
		Policy: Policy(),
		Now:    now,
	})
	require.NoError(t, err)
	return s
}
