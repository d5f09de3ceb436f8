package fetcher

import (
	"context"
	"errors"

	"marketpulse/internal/model"
)

// ErrNoData is returned by a source that answered but had nothing for the request.
// The orchestrator treats it like any other failed attempt.
var ErrNoData = errors.New("no data")

// Fetcher is implemented by every upstream market-data adapter.
// Each fetcher retrieves one snapshot for a symbol from a single source.
type Fetcher interface {
	// Source returns the configured source name (yfinance, nse_api, alphavantage, ...).
	// It must match a source name in the category table to be tried.
	Source() string

	// Fetch retrieves the snapshot for symbol.
	// Returns an error if the upstream failed or had no data.
	Fetch(ctx context.Context, symbol string) (model.Snapshot, error)
}

// Func is a single source call with its arguments already bound
type Func[T any] func(ctx context.Context) (T, error)

// Bind builds the source-name -> call mapping for one symbol
func Bind(fetchers []Fetcher, symbol string) map[string]Func[model.Snapshot] {
	fns := make(map[string]Func[model.Snapshot], len(fetchers))
	for _, f := range fetchers {
		fns[f.Source()] = func(ctx context.Context) (model.Snapshot, error) {
			return f.Fetch(ctx, symbol)
		}
	}
	return fns
}
