package yahoo

import (
	"context"

	"github.com/shopspring/decimal"

	"marketpulse/internal/fetcher"
	"marketpulse/internal/model"
)

const quoteRange = "5d"

// IndexFetcher reads the level and daily move of an index (^NSEI, ^BSESN, ...)
type IndexFetcher struct {
	c *Client
}

// Indices returns the index fetcher backed by c
func (c *Client) Indices() *IndexFetcher {
	return &IndexFetcher{c: c}
}

// Source implements fetcher.Fetcher
func (f *IndexFetcher) Source() string {
	return Source
}

// Fetch returns the index snapshot for symbol
func (f *IndexFetcher) Fetch(ctx context.Context, symbol string) (model.Snapshot, error) {
	s, err := f.c.chart(ctx, symbol, quoteRange)
	if err != nil {
		return model.Snapshot{}, err
	}
	current, ok := s.last()
	if !ok {
		return model.Snapshot{}, fetcher.NewNoDataError(symbol)
	}

	snap := model.IndexSnapshot{
		Name:   s.Name,
		Symbol: symbol,
		Price:  current.Round(2),
	}
	if prev, ok := previousClose(s); ok {
		snap.Change = model.PercentChange(current, prev)
	}
	return model.NewIndex(model.IndexKey(symbol), Source, snap), nil
}

// CommodityFetcher reads spot prices for futures, crypto and currency pairs
// (GC=F, BTC-USD, INR=X, ...)
type CommodityFetcher struct {
	c *Client
}

// Commodities returns the commodity fetcher backed by c
func (c *Client) Commodities() *CommodityFetcher {
	return &CommodityFetcher{c: c}
}

// Source implements fetcher.Fetcher
func (f *CommodityFetcher) Source() string {
	return Source
}

// Fetch returns the commodity snapshot for symbol. Change is the absolute move
// against the previous close.
func (f *CommodityFetcher) Fetch(ctx context.Context, symbol string) (model.Snapshot, error) {
	s, err := f.c.chart(ctx, symbol, quoteRange)
	if err != nil {
		return model.Snapshot{}, err
	}
	current, ok := s.last()
	if !ok {
		return model.Snapshot{}, fetcher.NewNoDataError(symbol)
	}

	snap := model.CommoditySnapshot{
		Name:     s.Name,
		Symbol:   symbol,
		Price:    current.Round(2),
		Currency: s.Currency,
	}
	if prev, ok := previousClose(s); ok {
		snap.Change = decimal.NewNullDecimal(current.Sub(prev).Round(4))
	}
	return model.NewCommodity(symbol, Source, snap), nil
}

// previousClose prefers the second-to-last bar and falls back to the meta field
func previousClose(s series) (decimal.Decimal, bool) {
	if n := len(s.Bars); n >= 2 {
		return s.Bars[n-2].Close, true
	}
	if s.Previous.Valid && !s.Previous.Decimal.IsZero() {
		return s.Previous.Decimal, true
	}
	return decimal.Decimal{}, false
}
