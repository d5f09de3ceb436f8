package nse

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"marketpulse/internal/fetcher"
)

// MinConstituents is the smallest list accepted as a real index membership
const MinConstituents = 5

// ConstituentsCSV returns the members of an index from its archive CSV
// (ind_nifty50list.csv, ...) as .NS tickers
func (c *Client) ConstituentsCSV(ctx context.Context, file string) ([]string, error) {
	c.warmUp(ctx)

	resp, err := c.archive.R().
		SetContext(ctx).
		SetPathParam("file", file).
		Get("/content/indices/{file}")

	if err != nil {
		return nil, fetcher.ClassifyTransportError(err)
	}
	if !resp.IsSuccess() {
		return nil, fetcher.ClassifyHTTPError(resp.StatusCode())
	}

	symbols, err := parseConstituents(strings.NewReader(resp.String()))
	if err != nil {
		return nil, err
	}
	return validList(file, symbols)
}

// parseConstituents reads the Symbol column of an NSE index CSV
func parseConstituents(r io.Reader) ([]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fetcher.NewValidationError(fmt.Sprintf("failed to read csv header: %v", err))
	}

	col := -1
	for i, h := range header {
		if strings.EqualFold(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")), "Symbol") {
			col = i
			break
		}
	}
	if col < 0 {
		return nil, fetcher.NewValidationError("csv has no Symbol column")
	}

	var symbols []string
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fetcher.NewValidationError(fmt.Sprintf("failed to parse csv: %v", err))
		}
		if col >= len(rec) {
			continue
		}
		if s := strings.TrimSpace(rec[col]); s != "" {
			symbols = append(symbols, s+".NS")
		}
	}
	return symbols, nil
}

// stockIndicesResponse is the equity-stockIndices payload. The first row
// describes the index itself.
type stockIndicesResponse struct {
	Name string `json:"name"`
	Data []struct {
		Symbol   string `json:"symbol"`
		Priority int    `json:"priority"`
	} `json:"data"`
}

// ConstituentsAPI returns the members of an index ("NIFTY 50", "NIFTY BANK")
// from the equity-stockIndices API as .NS tickers
func (c *Client) ConstituentsAPI(ctx context.Context, index string) ([]string, error) {
	var result stockIndicesResponse
	if _, err := c.get(ctx, "/api/equity-stockIndices", map[string]string{"index": index}, &result); err != nil {
		return nil, err
	}

	var symbols []string
	for _, row := range result.Data {
		if row.Priority != 0 || row.Symbol == "" || strings.EqualFold(row.Symbol, index) {
			continue
		}
		symbols = append(symbols, row.Symbol+".NS")
	}
	return validList(index, symbols)
}

func validList(name string, symbols []string) ([]string, error) {
	if len(symbols) < MinConstituents {
		return nil, fmt.Errorf("%s lists %d symbols: %w", name, len(symbols), fetcher.NewNoDataError(name))
	}
	return symbols, nil
}
