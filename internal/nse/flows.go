package nse

import (
	"context"
	"encoding/json"
	"strings"

	"marketpulse/internal/fetcher"
	"marketpulse/internal/model"
)

// figure is an amount the API sends as either a JSON string or a number
type figure string

func (f *figure) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*f = figure(s)
		return nil
	}
	if string(b) == "null" {
		*f = ""
		return nil
	}
	*f = figure(b)
	return nil
}

type fiiDiiRow struct {
	Category  string `json:"category"`
	Date      string `json:"date"`
	BuyValue  figure `json:"buyValue"`
	SellValue figure `json:"sellValue"`
	NetValue  figure `json:"netValue"`
}

// FIIDII returns the latest provisional FII/FPI and DII cash-market flows
func (c *Client) FIIDII(ctx context.Context) (model.FlowSnapshot, error) {
	var rows []fiiDiiRow
	if _, err := c.get(ctx, "/api/fiidiiTradeReact", nil, &rows); err != nil {
		return model.FlowSnapshot{}, err
	}

	var out model.FlowSnapshot
	for _, row := range rows {
		flow, err := model.ParseFlow(string(row.BuyValue), string(row.SellValue), string(row.NetValue))
		if err != nil {
			c.logger.Debug("skipping flow row", "category", row.Category, "error", err)
			continue
		}
		if out.Set(row.Category, flow) && out.Date == "" {
			out.Date = strings.TrimSpace(row.Date)
		}
	}
	if out.Empty() {
		return out, fetcher.NewNoDataError("fiidiiTradeReact")
	}
	return out, nil
}

// FlowFetcher serves FII/DII flows under the nse_api source name
type FlowFetcher struct {
	c *Client
}

// Flows returns the flow fetcher backed by c
func (c *Client) Flows() *FlowFetcher {
	return &FlowFetcher{c: c}
}

// Source names the fetcher in the category table
func (f *FlowFetcher) Source() string {
	return SourceAPI
}

// FIIDII delegates to the client
func (f *FlowFetcher) FIIDII(ctx context.Context) (model.FlowSnapshot, error) {
	return f.c.FIIDII(ctx)
}
