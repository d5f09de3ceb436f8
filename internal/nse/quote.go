package nse

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"

	"marketpulse/internal/fetcher"
	"marketpulse/internal/model"
)

type quoteEquityResponse struct {
	Info struct {
		Symbol      string `json:"symbol"`
		CompanyName string `json:"companyName"`
	} `json:"info"`
	PriceInfo struct {
		LastPrice     decimal.NullDecimal `json:"lastPrice"`
		PChange       decimal.NullDecimal `json:"pChange"`
		PreviousClose decimal.NullDecimal `json:"previousClose"`
	} `json:"priceInfo"`
}

// StockFetcher prices equities from the quote-equity API. Only the daily move is
// reported, so trailing returns are left empty.
type StockFetcher struct {
	c *Client
}

// Stocks returns the quote fetcher backed by c
func (c *Client) Stocks() *StockFetcher {
	return &StockFetcher{c: c}
}

// Source implements fetcher.Fetcher
func (f *StockFetcher) Source() string {
	return SourceAPI
}

// Fetch returns a partial stock snapshot for an .NS ticker
func (f *StockFetcher) Fetch(ctx context.Context, symbol string) (model.Snapshot, error) {
	base := model.DisplayName(symbol)

	var result quoteEquityResponse
	if _, err := f.c.get(ctx, "/api/quote-equity", map[string]string{"symbol": base}, &result); err != nil {
		return model.Snapshot{}, err
	}

	price := result.PriceInfo.LastPrice
	if !price.Valid || !price.Decimal.IsPositive() {
		return model.Snapshot{}, fetcher.NewNoDataError(symbol)
	}

	perf := model.StockPerformance{
		Symbol:   symbol,
		Name:     base,
		Price:    price.Decimal.Round(2),
		Currency: "INR",
	}
	if result.PriceInfo.PChange.Valid {
		perf.Today = decimal.NewNullDecimal(result.PriceInfo.PChange.Decimal.Round(2))
	} else if prev := result.PriceInfo.PreviousClose; prev.Valid {
		perf.Today = model.PercentChange(price.Decimal, prev.Decimal)
	}
	return model.NewStock(symbol, SourceAPI, perf), nil
}

type allIndicesResponse struct {
	Data []struct {
		Index         string              `json:"index"`
		IndexSymbol   string              `json:"indexSymbol"`
		Last          decimal.NullDecimal `json:"last"`
		PercentChange decimal.NullDecimal `json:"percentChange"`
	} `json:"data"`
}

// IndexFetcher reads index levels from the allIndices API. It is keyed by
// the exchange's own index name ("NIFTY 50", "NIFTY BANK").
type IndexFetcher struct {
	c *Client
}

// Indices returns the index fetcher backed by c
func (c *Client) Indices() *IndexFetcher {
	return &IndexFetcher{c: c}
}

// Source implements fetcher.Fetcher
func (f *IndexFetcher) Source() string {
	return SourceAPI
}

// Fetch returns the snapshot of the index called name
func (f *IndexFetcher) Fetch(ctx context.Context, name string) (model.Snapshot, error) {
	var result allIndicesResponse
	if _, err := f.c.get(ctx, "/api/allIndices", nil, &result); err != nil {
		return model.Snapshot{}, err
	}

	for _, row := range result.Data {
		if !strings.EqualFold(row.Index, name) && !strings.EqualFold(row.IndexSymbol, name) {
			continue
		}
		if !row.Last.Valid {
			break
		}
		return model.NewIndex(model.IndexKey(name), SourceAPI, model.IndexSnapshot{
			Name:   row.Index,
			Symbol: row.IndexSymbol,
			Price:  row.Last.Decimal.Round(2),
			Change: roundNull(row.PercentChange),
		}), nil
	}
	return model.Snapshot{}, fetcher.NewNoDataError(name)
}

func roundNull(d decimal.NullDecimal) decimal.NullDecimal {
	if !d.Valid {
		return d
	}
	return decimal.NewNullDecimal(d.Decimal.Round(2))
}
