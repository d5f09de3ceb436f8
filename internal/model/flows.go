package model

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Flow is one participant's cash-market turnover for a day, in crore rupees
type Flow struct {
	Buy  decimal.Decimal `json:"buy"`
	Sell decimal.Decimal `json:"sell"`
	Net  decimal.Decimal `json:"net"`
}

// FlowSnapshot is the daily buying and selling of foreign (FII/FPI) and
// domestic (DII) institutions. Either side may be absent.
type FlowSnapshot struct {
	// Date is the trading date as the upstream prints it (17-Oct-2025)
	Date string `json:"date"`
	FII  *Flow  `json:"fii,omitempty"`
	DII  *Flow  `json:"dii,omitempty"`
}

// Empty reports whether neither side was found
func (f FlowSnapshot) Empty() bool {
	return f.FII == nil && f.DII == nil
}

// Set files flow under the participant named by label. Labels that name
// neither FII/FPI nor DII are ignored and Set returns false.
func (f *FlowSnapshot) Set(label string, flow Flow) bool {
	label = strings.ToUpper(label)
	switch {
	case strings.Contains(label, "FII") || strings.Contains(label, "FPI"):
		f.FII = &flow
	case strings.Contains(label, "DII"):
		f.DII = &flow
	default:
		return false
	}
	return true
}

// FlowsKey is the cache key of the latest institutional flows
func FlowsKey() string {
	return TaggedKey("FII_DII", string(KindFlows))
}

// NewFlows wraps a flow record under FlowsKey
func NewFlows(source string, f FlowSnapshot) Snapshot {
	return Snapshot{Kind: KindFlows, Key: FlowsKey(), Source: source, Flows: &f}
}

// ParseFlow builds a Flow from the buy, sell and net amounts as printed
// upstream ("12,345.67"), rounded to two places
func ParseFlow(buy, sell, net string) (Flow, error) {
	var out Flow
	for _, f := range []struct {
		dst  *decimal.Decimal
		name string
		raw  string
	}{{&out.Buy, "buy", buy}, {&out.Sell, "sell", sell}, {&out.Net, "net", net}} {
		d, err := Amount(f.raw)
		if err != nil {
			return Flow{}, fmt.Errorf("%s: %w", f.name, err)
		}
		*f.dst = d.Round(2)
	}
	return out, nil
}

// Amount parses a money figure that may carry a rupee sign, thousands
// separators or surrounding space. An empty figure is zero.
func Amount(s string) (decimal.Decimal, error) {
	s = strings.NewReplacer(",", "", "₹", "", " ", "", "\u00a0", "").Replace(strings.TrimSpace(s))
	if s == "" || s == "-" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}
