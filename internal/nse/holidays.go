package nse

import (
	"context"
	"strings"
	"time"

	"marketpulse/internal/fetcher"
	"marketpulse/internal/marketclock"
)

const holidayLayout = "02-Jan-2006"

type holidayMasterResponse struct {
	CM []struct {
		TradingDate string `json:"tradingDate"`
		WeekDay     string `json:"weekDay"`
		Description string `json:"description"`
	} `json:"CM"`
}

// Holidays returns the capital-market trading holidays published by the exchange.
// Rows with unparseable dates are skipped.
func (c *Client) Holidays(ctx context.Context, loc *time.Location) ([]marketclock.Holiday, error) {
	if loc == nil {
		loc = marketclock.DefaultLocation()
	}

	var result holidayMasterResponse
	if _, err := c.get(ctx, "/api/holiday-master", map[string]string{"type": "trading"}, &result); err != nil {
		return nil, err
	}

	var out []marketclock.Holiday
	for _, row := range result.CM {
		d, err := time.ParseInLocation(holidayLayout, strings.TrimSpace(row.TradingDate), loc)
		if err != nil {
			c.logger.Debug("skipping holiday row", "trading_date", row.TradingDate, "error", err)
			continue
		}
		out = append(out, marketclock.Holiday{Date: d, Name: strings.TrimSpace(row.Description)})
	}
	if len(out) == 0 {
		return nil, fetcher.NewNoDataError("holiday-master")
	}
	return out, nil
}
