package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"marketpulse/internal/alphavantage"
	"marketpulse/internal/cachestore"
	"marketpulse/internal/config"
	"marketpulse/internal/etherscan"
	"marketpulse/internal/fallback"
	"marketpulse/internal/fetcher"
	"marketpulse/internal/freshness"
	"marketpulse/internal/market"
	"marketpulse/internal/marketclock"
	"marketpulse/internal/moneycontrol"
	"marketpulse/internal/nse"
	"marketpulse/internal/ratelimit"
	"marketpulse/internal/yahoo"
)

// app is everything a command needs, built once from configuration
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	out     io.Writer
	clock   *marketclock.Clock
	store   *cachestore.Store
	limiter *ratelimit.Limiter
	orch    *fallback.Orchestrator
	nse     *nse.Client
	svc     *market.Service
}

func newApp(cfg *config.Config, logger *slog.Logger, out io.Writer) (*app, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	holidays, err := cfg.HolidayList()
	if err != nil {
		return nil, err
	}
	clock := marketclock.New(loc, holidays)
	policy := freshness.NewPolicy(clock)

	store, err := cachestore.Open(cachestore.Options{
		Path:       cfg.CachePath,
		SigningKey: []byte(cfg.CacheSigningKey),
		Policy:     policy,
		Logger:     logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open cache: %w", err)
	}

	limiter := ratelimit.New(cfg.Limits())
	orch := fallback.New(fallback.Options{
		Categories: cfg.CategoryTable(),
		Limiter:    limiter,
		RetryDelay: cfg.RetryDelay,
		Logger:     logger,
	})

	yc := yahoo.NewClient(cfg.YahooBaseURL)
	nc := nse.NewClient(nse.Options{
		BaseURL:    cfg.NSEBaseURL,
		ArchiveURL: cfg.NSEArchiveURL,
		Logger:     logger,
	})

	svc, err := market.New(market.Options{
		Store:        store,
		Orchestrator: orch,
		Clock:        clock,
		Policy:       policy,
		Stocks: []fetcher.Fetcher{
			yc.Stocks(),
			nc.Stocks(),
			alphavantage.NewStockFetcher(cfg.AlphavantageAPIKey, cfg.AlphavantageBaseURL),
		},
		Indices: []fetcher.Fetcher{
			yc.Indices(),
			nc.Indices(),
		},
		Commodities: []fetcher.Fetcher{
			yc.Commodities(),
			etherscan.NewPriceFetcher(cfg.EtherscanAPIKey, cfg.EtherscanBaseURL),
		},
		Lists: nc,
		Flows: []market.FlowSource{
			nc.Flows(),
			moneycontrol.NewClient(cfg.MoneycontrolBaseURL, nil),
		},
		MaxWorkers:    cfg.MaxWorkers,
		WorkerTimeout: cfg.WorkerTimeout,
		Logger:        logger,
	})
	if err != nil {
		return nil, err
	}

	return &app{
		cfg:     cfg,
		logger:  logger,
		out:     out,
		clock:   clock,
		store:   store,
		limiter: limiter,
		orch:    orch,
		nse:     nc,
		svc:     svc,
	}, nil
}

// reload applies the parts of a changed configuration that can be swapped live
func (a *app) reload(cfg *config.Config) {
	a.orch.SetCategories(cfg.CategoryTable())
	for source, rps := range cfg.Limits() {
		a.limiter.Set(source, rps)
	}
	a.logger.Info("source table reloaded", "disabled", cfg.DisabledCategories)
}

// watch follows the config file for the rest of ctx
func (a *app) watch(ctx context.Context, loader *config.Loader) {
	if !loader.Watch(ctx, a.reload) {
		a.logger.Debug("no config file to watch")
	}
}
