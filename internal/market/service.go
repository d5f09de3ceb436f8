// Package market is the dashboard-facing facade. It wires the durable cache,
// the source fallback and the bulk coordinator together behind a handful of
// calls: stock performance, stock lists, indices, commodities, institutional
// flows and cache admin.
package market

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"marketpulse/internal/cachestore"
	"marketpulse/internal/coordinator"
	"marketpulse/internal/fallback"
	"marketpulse/internal/fetcher"
	"marketpulse/internal/freshness"
	"marketpulse/internal/marketclock"
	"marketpulse/internal/model"
	"marketpulse/internal/nse"
)

// ListSource lists index members
type ListSource interface {
	ConstituentsCSV(ctx context.Context, file string) ([]string, error)
	ConstituentsAPI(ctx context.Context, index string) ([]string, error)
}

// Options configures a Service. Store and Orchestrator are required.
type Options struct {
	Store        *cachestore.Store
	Orchestrator *fallback.Orchestrator
	Clock        *marketclock.Clock
	Policy       *freshness.Policy

	// Adapters per category. Each is tried under its Source() name.
	Stocks      []fetcher.Fetcher
	Indices     []fetcher.Fetcher
	Commodities []fetcher.Fetcher
	Lists       ListSource
	Flows       []FlowSource

	IndexCatalog     []IndexSpec
	CommodityCatalog []CommoditySpec
	StockLists       map[string]ListSpec

	MaxWorkers    int
	WorkerTimeout time.Duration

	Logger *slog.Logger
	Now    func() time.Time
}

// Service answers dashboard queries
type Service struct {
	store  *cachestore.Store
	orch   *fallback.Orchestrator
	clock  *marketclock.Clock
	policy *freshness.Policy
	logger *slog.Logger
	now    func() time.Time

	stockSources     []fetcher.Fetcher
	indexSources     []fetcher.Fetcher
	commoditySources []fetcher.Fetcher
	lists            ListSource
	flowSources      []FlowSource

	indices     map[string]IndexSpec
	indexKeys   []string
	commodities map[string]CommoditySpec
	commodKeys  []string
	stockLists  map[string]ListSpec

	stocksCoord      *coordinator.Coordinator
	indicesCoord     *coordinator.Coordinator
	commoditiesCoord *coordinator.Coordinator
}

// New wires a service
func New(opts Options) (*Service, error) {
	if opts.Store == nil {
		return nil, errors.New("market service requires a cache store")
	}
	if opts.Orchestrator == nil {
		return nil, errors.New("market service requires a fallback orchestrator")
	}
	if opts.Clock == nil {
		opts.Clock = marketclock.New(nil, marketclock.DefaultHolidays())
	}
	if opts.Policy == nil {
		opts.Policy = freshness.NewPolicy(opts.Clock)
	}
	if opts.IndexCatalog == nil {
		opts.IndexCatalog = DefaultIndices()
	}
	if opts.CommodityCatalog == nil {
		opts.CommodityCatalog = DefaultCommodities()
	}
	if opts.StockLists == nil {
		opts.StockLists = DefaultStockLists()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	s := &Service{
		store:            opts.Store,
		orch:             opts.Orchestrator,
		clock:            opts.Clock,
		policy:           opts.Policy,
		logger:           opts.Logger.With("component", "market"),
		now:              opts.Now,
		stockSources:     opts.Stocks,
		indexSources:     opts.Indices,
		commoditySources: opts.Commodities,
		lists:            opts.Lists,
		flowSources:      opts.Flows,
		indices:          make(map[string]IndexSpec, len(opts.IndexCatalog)),
		commodities:      make(map[string]CommoditySpec, len(opts.CommodityCatalog)),
		stockLists:       opts.StockLists,
	}
	for _, spec := range opts.IndexCatalog {
		key := model.IndexKey(spec.Symbol)
		s.indices[key] = spec
		s.indexKeys = append(s.indexKeys, key)
	}
	for _, spec := range opts.CommodityCatalog {
		key := model.CommodityKey(spec.Name)
		s.commodities[key] = spec
		s.commodKeys = append(s.commodKeys, key)
	}

	newCoord := func(category string, fetch coordinator.FetchFunc) (*coordinator.Coordinator, error) {
		co := coordinator.Options{
			Cache:      opts.Store,
			Fetch:      fetch,
			MaxWorkers: opts.MaxWorkers,
			Timeout:    opts.WorkerTimeout,
			Logger:     opts.Logger,
		}
		if opts.WorkerTimeout <= 0 {
			co.Budget = func() time.Duration { return s.workerBudget(category) }
		}
		return coordinator.New(co)
	}
	var err error
	if s.stocksCoord, err = newCoord(fallback.CategoryStockPrices, s.fetchStock); err != nil {
		return nil, fmt.Errorf("failed to create stock coordinator: %w", err)
	}
	if s.indicesCoord, err = newCoord(fallback.CategoryMarketIndices, s.fetchIndex); err != nil {
		return nil, fmt.Errorf("failed to create index coordinator: %w", err)
	}
	if s.commoditiesCoord, err = newCoord(fallback.CategoryCommodities, s.fetchCommodity); err != nil {
		return nil, fmt.Errorf("failed to create commodity coordinator: %w", err)
	}
	return s, nil
}

// ResolvePerformance returns stock performance for symbols in input order,
// plus the symbols no source could provide. With useCache false every symbol
// is fetched fresh.
func (s *Service) ResolvePerformance(ctx context.Context, symbols []string, useCache bool) ([]model.Snapshot, []string) {
	var results map[string]model.Snapshot
	if useCache {
		results = s.stocksCoord.Resolve(ctx, symbols)
	} else {
		results = s.stocksCoord.Refresh(ctx, symbols)
	}
	return coordinator.InOrder(symbols, results), coordinator.Missing(symbols, results)
}

// IndexPerformance returns the dashboard indices that could be resolved, in catalog order
func (s *Service) IndexPerformance(ctx context.Context) []model.Snapshot {
	return coordinator.InOrder(s.indexKeys, s.indicesCoord.Resolve(ctx, s.indexKeys))
}

// Commodities returns the dashboard commodities that could be resolved, in catalog order
func (s *Service) Commodities(ctx context.Context) []model.Snapshot {
	return coordinator.InOrder(s.commodKeys, s.commoditiesCoord.Resolve(ctx, s.commodKeys))
}

// CacheStats counts cached entries by validity now
func (s *Service) CacheStats(ctx context.Context) cachestore.Stats {
	return s.store.Stats(ctx)
}

// CacheClear drops every cached entry
func (s *Service) CacheClear(ctx context.Context) error {
	return s.store.Clear(ctx)
}

// CacheInfo describes the caching strategy in force now
func (s *Service) CacheInfo() string {
	return s.policy.Describe(s.now())
}

// Status classifies the current moment
func (s *Service) Status() marketclock.Status {
	return s.clock.Classify(s.now())
}

// NextHoliday returns the next configured trading holiday after today
func (s *Service) NextHoliday() (marketclock.Holiday, bool) {
	return s.clock.NextHoliday(s.now())
}

// workerBudget is the per-symbol deadline for category: its full fallback
// walk plus slack, or no deadline when the walk is unbounded
func (s *Service) workerBudget(category string) time.Duration {
	budget, ok := s.orch.Budget(category)
	if !ok {
		return 0
	}
	return budget + fallback.BudgetSlack
}

func (s *Service) fetchStock(ctx context.Context, symbol string) (model.Snapshot, error) {
	snap, source, ok := fallback.Fetch(ctx, s.orch, fallback.CategoryStockPrices, fetcher.Bind(s.stockSources, symbol))
	if !ok {
		return model.Snapshot{}, fmt.Errorf("%s: %w", symbol, fallback.ErrExhausted)
	}
	snap.Source = source
	return snap, nil
}

func (s *Service) fetchIndex(ctx context.Context, key string) (model.Snapshot, error) {
	spec, ok := s.indices[key]
	if !ok {
		return model.Snapshot{}, fetcher.NewNoDataError(key)
	}

	fns := make(map[string]fetcher.Func[model.Snapshot], len(s.indexSources))
	for _, f := range s.indexSources {
		symbol := spec.Symbol
		if f.Source() == nse.SourceAPI {
			if spec.NSEName == "" {
				continue
			}
			symbol = spec.NSEName
		}
		fns[f.Source()] = func(ctx context.Context) (model.Snapshot, error) {
			return f.Fetch(ctx, symbol)
		}
	}

	snap, source, ok := fallback.Fetch(ctx, s.orch, fallback.CategoryMarketIndices, fns)
	if !ok || snap.Index == nil {
		return model.Snapshot{}, fmt.Errorf("%s: %w", spec.Name, fallback.ErrExhausted)
	}
	snap.Source = source
	snap.Index.Name = spec.Name
	snap.Index.Symbol = spec.Symbol
	return snap, nil
}

func (s *Service) fetchCommodity(ctx context.Context, key string) (model.Snapshot, error) {
	spec, ok := s.commodities[key]
	if !ok {
		return model.Snapshot{}, fetcher.NewNoDataError(key)
	}

	snap, source, ok := fallback.Fetch(ctx, s.orch, fallback.CategoryCommodities, fetcher.Bind(s.commoditySources, spec.Symbol))
	if !ok || snap.Commodity == nil {
		return model.Snapshot{}, fmt.Errorf("%s: %w", spec.Name, fallback.ErrExhausted)
	}
	snap.Source = source
	snap.Commodity.Name = spec.Label
	return snap, nil
}
