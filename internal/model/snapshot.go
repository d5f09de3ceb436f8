package model

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Kind tags which record a Snapshot carries
type Kind string

const (
	// KindStock marks a stock performance snapshot
	KindStock Kind = "stock"
	// KindIndex marks a market index snapshot
	KindIndex Kind = "index"
	// KindCommodity marks a commodity or currency snapshot
	KindCommodity Kind = "commodity"
	// KindFlows marks the daily institutional cash-market flows
	KindFlows Kind = "flows"
)

// Snapshot is the payload stored in the cache and handed to the presentation layer.
// Exactly one of Stock, Index, Commodity or Flows is set, matching Kind.
type Snapshot struct {
	Kind Kind `json:"kind"`

	// Key is the canonical identifier the snapshot was fetched and stored under.
	// It travels with the payload so callers never rebuild it from display fields.
	Key string `json:"key"`

	// Source names the upstream that produced the data (yfinance, nse_api, ...)
	Source string `json:"source,omitempty"`

	Stock     *StockPerformance  `json:"stock,omitempty"`
	Index     *IndexSnapshot     `json:"index,omitempty"`
	Commodity *CommoditySnapshot `json:"commodity,omitempty"`
	Flows     *FlowSnapshot      `json:"flows,omitempty"`
}

// StockPerformance is the price and trailing returns of a single stock.
// Percent fields are optional because some upstreams only report the daily move.
type StockPerformance struct {
	Symbol      string              `json:"symbol"`
	Name        string              `json:"name"`
	Price       decimal.Decimal     `json:"price"`
	Currency    string              `json:"currency,omitempty"`
	Today       decimal.NullDecimal `json:"today_pct"`
	Week        decimal.NullDecimal `json:"week_pct"`
	Month       decimal.NullDecimal `json:"month_pct"`
	TwoMonths   decimal.NullDecimal `json:"two_months_pct"`
	ThreeMonths decimal.NullDecimal `json:"three_months_pct"`
}

// IndexSnapshot is the level and daily move of a market index
type IndexSnapshot struct {
	Name   string              `json:"name"`
	Symbol string              `json:"symbol"`
	Price  decimal.Decimal     `json:"price"`
	Change decimal.NullDecimal `json:"change_pct"`
}

// CommoditySnapshot is the spot price of a commodity, crypto asset or currency pair.
// Change is absolute (not percent) so a currency move reads as the rate delta.
type CommoditySnapshot struct {
	Name     string              `json:"name"`
	Symbol   string              `json:"symbol"`
	Price    decimal.Decimal     `json:"price"`
	Currency string              `json:"currency,omitempty"`
	Change   decimal.NullDecimal `json:"change,omitempty"`
}

// NewStock wraps a stock performance record
func NewStock(key, source string, p StockPerformance) Snapshot {
	return Snapshot{Kind: KindStock, Key: key, Source: source, Stock: &p}
}

// NewIndex wraps an index record
func NewIndex(key, source string, s IndexSnapshot) Snapshot {
	return Snapshot{Kind: KindIndex, Key: key, Source: source, Index: &s}
}

// NewCommodity wraps a commodity record
func NewCommodity(key, source string, c CommoditySnapshot) Snapshot {
	return Snapshot{Kind: KindCommodity, Key: key, Source: source, Commodity: &c}
}

// Valid reports whether the record matching Kind is present
func (s Snapshot) Valid() bool {
	switch s.Kind {
	case KindStock:
		return s.Stock != nil
	case KindIndex:
		return s.Index != nil
	case KindCommodity:
		return s.Commodity != nil
	case KindFlows:
		return s.Flows != nil && !s.Flows.Empty()
	default:
		return false
	}
}

// IndexKey returns the cache key for an index symbol
func IndexKey(symbol string) string {
	return TaggedKey(symbol, string(KindIndex))
}

// CommodityKey returns the cache key for a named commodity
func CommodityKey(name string) string {
	return TaggedKey(name, string(KindCommodity))
}

// TaggedKey joins a symbol with an optional tag. Stocks are stored untagged
// under their exchange symbol (RELIANCE.NS).
func TaggedKey(symbol, tag string) string {
	if tag == "" {
		return symbol
	}
	return tag + ":" + symbol
}

// DisplayName strips the exchange suffix from a ticker (RELIANCE.NS -> RELIANCE)
func DisplayName(ticker string) string {
	for _, suffix := range []string{".NS", ".BO"} {
		if strings.HasSuffix(ticker, suffix) {
			return strings.TrimSuffix(ticker, suffix)
		}
	}
	return ticker
}
