// Package fallback tries ranked upstream sources for a data category until one answers.
package fallback

import (
	"sort"
	"time"
)

// Data categories
const (
	CategoryStockPrices   = "stock_prices"
	CategoryMarketIndices = "market_indices"
	CategoryFIIDII        = "fii_dii_data"
	CategoryStockLists    = "stock_lists"
	CategoryCommodities   = "commodities"
)

// SourceSpec is one upstream in a category's fallback order
type SourceSpec struct {
	Name           string `mapstructure:"name"`
	Priority       int    `mapstructure:"priority"`
	TimeoutSeconds int    `mapstructure:"timeout"`
	RetryCount     int    `mapstructure:"retry_count"`
}

// Timeout returns the per-attempt deadline, zero meaning unbounded
func (s SourceSpec) Timeout() time.Duration {
	return time.Duration(s.TimeoutSeconds) * time.Second
}

// Attempts returns the retry budget, at least one
func (s SourceSpec) Attempts() int {
	if s.RetryCount < 1 {
		return 1
	}
	return s.RetryCount
}

// BudgetSlack pads a category budget for throttle waits between attempts
const BudgetSlack = 10 * time.Second

// Category groups the sources for one kind of data
type Category struct {
	Disabled bool         `mapstructure:"disabled"`
	Sources  []SourceSpec `mapstructure:"sources"`
}

// Ordered returns the sources by ascending priority. Ties keep declaration order.
func (c Category) Ordered() []SourceSpec {
	out := make([]SourceSpec, len(c.Sources))
	copy(out, c.Sources)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Priority < out[j].Priority
	})
	return out
}

// Budget is the longest a walk over every source can take when each attempt
// runs to its timeout and each retry first waits retryDelay. ok is false when
// some source has no timeout.
func (c Category) Budget(retryDelay time.Duration) (d time.Duration, ok bool) {
	for _, s := range c.Sources {
		if s.Timeout() <= 0 {
			return 0, false
		}
		n := time.Duration(s.Attempts())
		d += n*s.Timeout() + (n-1)*retryDelay
	}
	return d, true
}

// Table maps category name to its sources
type Table map[string]Category

// Clone returns a deep copy so a published table is never shared with its builder
func (t Table) Clone() Table {
	out := make(Table, len(t))
	for name, c := range t {
		sources := make([]SourceSpec, len(c.Sources))
		copy(sources, c.Sources)
		out[name] = Category{Disabled: c.Disabled, Sources: sources}
	}
	return out
}

// DefaultCategories is the built-in source order for every category
func DefaultCategories() Table {
	return Table{
		CategoryStockPrices: {Sources: []SourceSpec{
			{Name: "yfinance", Priority: 1, TimeoutSeconds: 10, RetryCount: 2},
			{Name: "nse_api", Priority: 2, TimeoutSeconds: 15, RetryCount: 1},
			{Name: "alphavantage", Priority: 3, TimeoutSeconds: 15, RetryCount: 1},
		}},
		CategoryMarketIndices: {Sources: []SourceSpec{
			{Name: "yfinance", Priority: 1, TimeoutSeconds: 10, RetryCount: 2},
			{Name: "nse_api", Priority: 2, TimeoutSeconds: 15, RetryCount: 1},
		}},
		CategoryFIIDII: {Sources: []SourceSpec{
			{Name: "nse_api", Priority: 1, TimeoutSeconds: 15, RetryCount: 2},
			{Name: "nse_website", Priority: 2, TimeoutSeconds: 15, RetryCount: 1},
			{Name: "moneycontrol", Priority: 3, TimeoutSeconds: 10, RetryCount: 1},
		}},
		CategoryStockLists: {Sources: []SourceSpec{
			{Name: "nse_csv", Priority: 1, TimeoutSeconds: 15, RetryCount: 2},
			{Name: "nse_api", Priority: 2, TimeoutSeconds: 15, RetryCount: 1},
		}},
		CategoryCommodities: {Sources: []SourceSpec{
			{Name: "yfinance", Priority: 1, TimeoutSeconds: 10, RetryCount: 2},
			{Name: "investing_com", Priority: 2, TimeoutSeconds: 15, RetryCount: 1},
			{Name: "etherscan", Priority: 3, TimeoutSeconds: 15, RetryCount: 1},
		}},
	}
}
