// Package alphavantage is the last-resort stock quote source. GLOBAL_QUOTE only
// carries the daily move, so snapshots from here have no trailing returns.
package alphavantage

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"resty.dev/v3"

	"marketpulse/internal/fetcher"
	"marketpulse/internal/model"
)

// Source is the name this adapter answers to in the category table
const Source = "alphavantage"

// DefaultBaseURL is the AlphaVantage query endpoint
const DefaultBaseURL = "https://www.alphavantage.co/query"

// GlobalQuoteResponse represents the AlphaVantage API response for stock quotes
type GlobalQuoteResponse struct {
	GlobalQuote struct {
		Symbol           string `json:"01. symbol"`
		Open             string `json:"02. open"`
		High             string `json:"03. high"`
		Low              string `json:"04. low"`
		Price            string `json:"05. price"`
		Volume           string `json:"06. volume"`
		LatestTradingDay string `json:"07. latest trading day"`
		PreviousClose    string `json:"08. previous close"`
		Change           string `json:"09. change"`
		ChangePercent    string `json:"10. change percent"`
	} `json:"Global Quote"`

	// Set instead of a quote when the free tier throttles the key
	Note        string `json:"Note"`
	Information string `json:"Information"`
}

// StockFetcher fetches stock quotes from AlphaVantage
type StockFetcher struct {
	apiKey string
	client *resty.Client
}

// NewStockFetcher creates a new stock quote fetcher
func NewStockFetcher(apiKey, baseURL string) *StockFetcher {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &StockFetcher{
		apiKey: apiKey,
		client: fetcher.NewHTTPClient(baseURL),
	}
}

// Source implements fetcher.Fetcher
func (f *StockFetcher) Source() string {
	return Source
}

// Fetch retrieves the latest quote for an NSE symbol. AlphaVantage lists NSE
// stocks on the BSE board, so RELIANCE.NS is queried as RELIANCE.BSE.
func (f *StockFetcher) Fetch(ctx context.Context, symbol string) (model.Snapshot, error) {
	if f.apiKey == "" {
		return model.Snapshot{}, fetcher.NewValidationError("alphavantage api key is not configured")
	}

	var result GlobalQuoteResponse

	resp, err := f.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"apikey":   f.apiKey,
			"function": "GLOBAL_QUOTE",
			"symbol":   boardSymbol(symbol),
		}).
		SetResult(&result).
		Get("")

	if err != nil {
		return model.Snapshot{}, fetcher.ClassifyTransportError(err)
	}

	if !resp.IsSuccess() {
		return model.Snapshot{}, fetcher.ClassifyHTTPError(resp.StatusCode())
	}

	if result.Note != "" || result.Information != "" {
		return model.Snapshot{}, fetcher.NewRateLimitError(resp.StatusCode())
	}

	if result.GlobalQuote.Price == "" {
		return model.Snapshot{}, fetcher.NewNoDataError(symbol)
	}

	price, err := decimal.NewFromString(result.GlobalQuote.Price)
	if err != nil {
		return model.Snapshot{}, fetcher.NewValidationError(fmt.Sprintf("failed to parse price %q: %v", result.GlobalQuote.Price, err))
	}

	perf := model.StockPerformance{
		Symbol:   symbol,
		Name:     model.DisplayName(symbol),
		Price:    price.Round(2),
		Currency: "INR",
		Today:    model.Percent(result.GlobalQuote.ChangePercent),
	}
	return model.NewStock(symbol, Source, perf), nil
}

func boardSymbol(symbol string) string {
	if base, ok := strings.CutSuffix(symbol, ".NS"); ok {
		return base + ".BSE"
	}
	return symbol
}
