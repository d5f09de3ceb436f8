package yahoo

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"marketpulse/internal/fetcher"
	"marketpulse/internal/model"
)

// MinBars is the shortest history that yields meaningful trailing returns
const MinBars = 20

const stockRange = "4mo"

// StockFetcher computes trailing performance for NSE/BSE tickers
type StockFetcher struct {
	c *Client
}

// Stocks returns the stock performance fetcher backed by c
func (c *Client) Stocks() *StockFetcher {
	return &StockFetcher{c: c}
}

// Source implements fetcher.Fetcher
func (f *StockFetcher) Source() string {
	return Source
}

// Fetch downloads four months of daily bars for symbol
func (f *StockFetcher) Fetch(ctx context.Context, symbol string) (model.Snapshot, error) {
	s, err := f.c.chart(ctx, symbol, stockRange)
	if err != nil {
		return model.Snapshot{}, err
	}
	if len(s.Bars) < MinBars {
		return model.Snapshot{}, fmt.Errorf("only %d bars for %s: %w", len(s.Bars), symbol, fetcher.NewNoDataError(symbol))
	}

	return model.NewStock(symbol, Source, performance(symbol, s)), nil
}

// performance derives the trailing returns. One week is five trading sessions
// back; longer windows use the bar nearest to the calendar date.
func performance(symbol string, s series) model.StockPerformance {
	bars := s.Bars
	current, _ := s.last()
	latest := bars[len(bars)-1].At

	week := bars[0].Close
	if len(bars) >= 6 {
		week = bars[len(bars)-6].Close
	}

	return model.StockPerformance{
		Symbol:      symbol,
		Name:        model.DisplayName(symbol),
		Price:       current.Round(2),
		Currency:    s.Currency,
		Today:       model.PercentChange(current, bars[len(bars)-2].Close),
		Week:        model.PercentChange(current, week),
		Month:       model.PercentChange(current, nearest(bars, latest.AddDate(0, 0, -30))),
		TwoMonths:   model.PercentChange(current, nearest(bars, latest.AddDate(0, 0, -60))),
		ThreeMonths: model.PercentChange(current, nearest(bars, latest.AddDate(0, 0, -90))),
	}
}

// nearest returns the close of the bar closest to target. Ties go to the earlier bar.
func nearest(bars []bar, target time.Time) decimal.Decimal {
	best := 0
	bestGap := absDuration(bars[0].At.Sub(target))
	for i := 1; i < len(bars); i++ {
		if gap := absDuration(bars[i].At.Sub(target)); gap < bestGap {
			best, bestGap = i, gap
		}
	}
	return bars[best].Close
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
