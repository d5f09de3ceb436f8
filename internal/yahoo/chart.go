// Package yahoo reads daily bars from the Yahoo Finance v8 chart endpoint and
// turns them into stock, index and commodity snapshots.
package yahoo

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"resty.dev/v3"

	"marketpulse/internal/fetcher"
)

const (
	// Source is the name this adapter answers to in the category table
	Source = "yfinance"

	// DefaultBaseURL is the Yahoo Finance query host
	DefaultBaseURL = "https://query1.finance.yahoo.com"

	chartPath = "/v8/finance/chart/{symbol}"
)

// ChartResponse represents the v8 chart API response
type ChartResponse struct {
	Chart struct {
		Result []ChartResult `json:"result"`
		Error  *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// ChartResult is the series for one symbol. Closes may contain nulls for
// sessions without trades.
type ChartResult struct {
	Meta struct {
		Currency           string              `json:"currency"`
		Symbol             string              `json:"symbol"`
		ShortName          string              `json:"shortName"`
		LongName           string              `json:"longName"`
		RegularMarketPrice decimal.NullDecimal `json:"regularMarketPrice"`
		ChartPreviousClose decimal.NullDecimal `json:"chartPreviousClose"`
		PreviousClose      decimal.NullDecimal `json:"previousClose"`
	} `json:"meta"`
	Timestamp  []int64 `json:"timestamp"`
	Indicators struct {
		Quote []struct {
			Close []decimal.NullDecimal `json:"close"`
		} `json:"quote"`
	} `json:"indicators"`
}

// bar is one daily close
type bar struct {
	At    time.Time
	Close decimal.Decimal
}

// series is a parsed chart with null closes dropped
type series struct {
	Symbol   string
	Name     string
	Currency string
	Price    decimal.NullDecimal
	Previous decimal.NullDecimal
	Bars     []bar
}

// last returns the latest reported price, falling back to the last close
func (s series) last() (decimal.Decimal, bool) {
	if s.Price.Valid && s.Price.Decimal.IsPositive() {
		return s.Price.Decimal, true
	}
	if len(s.Bars) == 0 {
		return decimal.Decimal{}, false
	}
	return s.Bars[len(s.Bars)-1].Close, true
}

// Client fetches chart data from Yahoo Finance
type Client struct {
	client *resty.Client
}

// NewClient creates a chart client
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{client: fetcher.NewHTTPClient(baseURL)}
}

// chart downloads daily bars for symbol over rng (5d, 4mo, ...)
func (c *Client) chart(ctx context.Context, symbol, rng string) (series, error) {
	var result ChartResponse

	resp, err := c.client.R().
		SetContext(ctx).
		SetPathParam("symbol", symbol).
		SetQueryParams(map[string]string{
			"range":    rng,
			"interval": "1d",
		}).
		SetResult(&result).
		Get(chartPath)

	if err != nil {
		return series{}, fetcher.ClassifyTransportError(err)
	}

	if !resp.IsSuccess() {
		return series{}, fetcher.ClassifyHTTPError(resp.StatusCode())
	}

	if e := result.Chart.Error; e != nil {
		return series{}, fetcher.NewValidationError(fmt.Sprintf("chart error for %s: %s", symbol, e.Description))
	}

	if len(result.Chart.Result) == 0 {
		return series{}, fetcher.NewNoDataError(symbol)
	}

	return parseSeries(symbol, result.Chart.Result[0]), nil
}

func parseSeries(symbol string, r ChartResult) series {
	s := series{
		Symbol:   symbol,
		Name:     r.Meta.ShortName,
		Currency: r.Meta.Currency,
		Price:    r.Meta.RegularMarketPrice,
		Previous: r.Meta.ChartPreviousClose,
	}
	if r.Meta.LongName != "" {
		s.Name = r.Meta.LongName
	}
	if !s.Previous.Valid {
		s.Previous = r.Meta.PreviousClose
	}

	if len(r.Indicators.Quote) == 0 {
		return s
	}
	closes := r.Indicators.Quote[0].Close
	for i, ts := range r.Timestamp {
		if i >= len(closes) || !closes[i].Valid {
			continue
		}
		s.Bars = append(s.Bars, bar{At: time.Unix(ts, 0).UTC(), Close: closes[i].Decimal})
	}
	return s
}
