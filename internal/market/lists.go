package market

import (
	"context"
	"fmt"
	"slices"

	"marketpulse/internal/fallback"
	"marketpulse/internal/fetcher"
	"marketpulse/internal/nse"
)

// StockLists returns the names GetStockList understands, sorted
func (s *Service) StockLists() []string {
	return listNames(s.stockLists)
}

// GetStockList returns the members of a named list with a status line for the user.
// Nifty Private Bank is Nifty Bank minus Nifty PSU Bank. Nifty 50 falls back to
// a built-in list when no source answers; other lists come back empty.
func (s *Service) GetStockList(ctx context.Context, name string) ([]string, string) {
	if name == NiftyPrivateBank {
		return s.privateBanks(ctx)
	}

	spec, ok := s.stockLists[name]
	if !ok {
		return nil, "No data available"
	}

	if symbols, ok := s.fetchList(ctx, name, spec); ok {
		return symbols, fmt.Sprintf("Fetched %d stocks from %s", len(symbols), name)
	}

	if name == Nifty50 {
		s.logger.Warn("serving built-in list", "list", name)
		return slices.Clone(FallbackNifty50), fmt.Sprintf("NSE unavailable, using built-in %s list (%d stocks)", name, len(FallbackNifty50))
	}
	return nil, fmt.Sprintf("Failed to fetch %s from NSE. Please try again later.", name)
}

func (s *Service) privateBanks(ctx context.Context) ([]string, string) {
	failed := fmt.Sprintf("Failed to calculate %s. Please try again later.", NiftyPrivateBank)

	all, ok := s.fetchList(ctx, NiftyBank, s.stockLists[NiftyBank])
	if !ok {
		return nil, failed
	}
	psu, ok := s.fetchList(ctx, NiftyPSUBank, s.stockLists[NiftyPSUBank])
	if !ok {
		return nil, failed
	}

	var private []string
	for _, symbol := range all {
		if !slices.Contains(psu, symbol) {
			private = append(private, symbol)
		}
	}
	if len(private) == 0 {
		return nil, failed
	}
	return private, fmt.Sprintf("Fetched %d private bank stocks (Nifty Bank - PSU)", len(private))
}

func (s *Service) fetchList(ctx context.Context, name string, spec ListSpec) ([]string, bool) {
	if s.lists == nil {
		s.logger.Info("no list source configured", "list", name)
		return nil, false
	}

	fns := map[string]fetcher.Func[[]string]{}
	if spec.CSV != "" {
		fns[nse.SourceCSV] = func(ctx context.Context) ([]string, error) {
			return s.lists.ConstituentsCSV(ctx, spec.CSV)
		}
	}
	if spec.APIName != "" {
		fns[nse.SourceAPI] = func(ctx context.Context) ([]string, error) {
			return s.lists.ConstituentsAPI(ctx, spec.APIName)
		}
	}

	symbols, _, ok := fallback.Fetch(ctx, s.orch, fallback.CategoryStockLists, fns)
	return symbols, ok
}
