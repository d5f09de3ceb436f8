// Package etherscan reports the ETH/USD spot price as a commodities fallback
package etherscan

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"resty.dev/v3"

	"marketpulse/internal/fetcher"
	"marketpulse/internal/model"
)

const (
	// Source is the name this adapter answers to in the category table
	Source = "etherscan"

	// DefaultBaseURL is the Etherscan v2 API endpoint
	DefaultBaseURL = "https://api.etherscan.io/v2/api"

	// Symbol is the only instrument this source can price
	Symbol = "ETH-USD"
)

// EthPriceResponse represents the Etherscan API response for ETH price
type EthPriceResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Result  struct {
		EthBTC          string `json:"ethbtc"`
		EthBTCTimestamp string `json:"ethbtc_timestamp"`
		EthUSD          string `json:"ethusd"`
		EthUSDTimestamp string `json:"ethusd_timestamp"`
	} `json:"result"`
}

// PriceFetcher fetches the ETH/USD price
type PriceFetcher struct {
	apiKey string
	client *resty.Client
}

// NewPriceFetcher creates a new ETH price fetcher
func NewPriceFetcher(apiKey, baseURL string) *PriceFetcher {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &PriceFetcher{
		apiKey: apiKey,
		client: fetcher.NewHTTPClient(baseURL),
	}
}

// Source implements fetcher.Fetcher
func (f *PriceFetcher) Source() string {
	return Source
}

// Fetch returns a commodity snapshot for ETH-USD. Any other symbol has no data here.
func (f *PriceFetcher) Fetch(ctx context.Context, symbol string) (model.Snapshot, error) {
	if !strings.EqualFold(symbol, Symbol) {
		return model.Snapshot{}, fetcher.NewNoDataError(symbol)
	}
	if f.apiKey == "" {
		return model.Snapshot{}, fetcher.NewValidationError("etherscan api key is not configured")
	}

	var result EthPriceResponse

	resp, err := f.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"chainid": "1",
			"module":  "stats",
			"action":  "ethprice",
			"apikey":  f.apiKey,
		}).
		SetResult(&result).
		Get("")

	if err != nil {
		return model.Snapshot{}, fetcher.ClassifyTransportError(err)
	}

	if !resp.IsSuccess() {
		return model.Snapshot{}, fetcher.ClassifyHTTPError(resp.StatusCode())
	}

	if result.Status != "" && result.Status != "1" {
		return model.Snapshot{}, fetcher.NewValidationError(fmt.Sprintf("etherscan error: %s", result.Message))
	}

	if result.Result.EthUSD == "" {
		return model.Snapshot{}, fetcher.NewNoDataError(symbol)
	}

	price, err := decimal.NewFromString(result.Result.EthUSD)
	if err != nil {
		return model.Snapshot{}, fetcher.NewValidationError(fmt.Sprintf("failed to parse ETH price %q: %v", result.Result.EthUSD, err))
	}

	return model.NewCommodity(Symbol, Source, model.CommoditySnapshot{
		Name:     "Ethereum",
		Symbol:   Symbol,
		Price:    price.Round(2),
		Currency: "USD",
	}), nil
}
