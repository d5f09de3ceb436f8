// Package coordinator resolves many symbols at once: fresh cache hits are
// served directly and misses are fetched on a bounded worker pool, then
// written back in a single batch.
package coordinator

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc/pool"

	"marketpulse/internal/cachestore"
	"marketpulse/internal/fetcher"
	"marketpulse/internal/model"
)

const (
	// MaxWorkers is the hard ceiling on concurrent upstream fetches.
	// Upstreams throttle or ban bursts above it.
	MaxWorkers = 5

	// DefaultWorkers is used when no worker count is configured
	DefaultWorkers = 3

	// DefaultTimeout bounds a single symbol's fetch
	DefaultTimeout = 30 * time.Second
)

// FetchFunc retrieves one symbol, typically through the fallback orchestrator
type FetchFunc func(ctx context.Context, symbol string) (model.Snapshot, error)

// Cache is the part of the durable store the coordinator needs
type Cache interface {
	GetMany(ctx context.Context, keys []string) ([]cachestore.Entry, []string)
	PutMany(ctx context.Context, records []cachestore.Record) error
}

// Options configures a Coordinator
type Options struct {
	Cache      Cache
	Fetch      FetchFunc
	MaxWorkers int
	Timeout    time.Duration
	// Budget, when set, replaces Timeout and is asked once per batch so a
	// reloaded source table takes effect. Zero or less leaves fetches unbounded.
	Budget func() time.Duration
	Logger *slog.Logger
}

// Coordinator manages concurrent fetches and aggregates results
type Coordinator struct {
	cache   Cache
	fetch   FetchFunc
	workers int
	timeout time.Duration
	budget  func() time.Duration
	logger  *slog.Logger
}

// New creates a coordinator. MaxWorkers is clamped to [1, MaxWorkers].
func New(opts Options) (*Coordinator, error) {
	if opts.Cache == nil {
		return nil, errors.New("coordinator requires a cache")
	}
	if opts.Fetch == nil {
		return nil, errors.New("coordinator requires a fetch function")
	}
	if opts.MaxWorkers <= 0 {
		opts.MaxWorkers = DefaultWorkers
	}
	if opts.Timeout <= 0 && opts.Budget == nil {
		opts.Timeout = DefaultTimeout
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	return &Coordinator{
		cache:   opts.Cache,
		fetch:   opts.Fetch,
		workers: min(opts.MaxWorkers, MaxWorkers),
		timeout: opts.Timeout,
		budget:  opts.Budget,
		logger:  opts.Logger.With("component", "coordinator"),
	}, nil
}

// Workers returns the effective pool size
func (c *Coordinator) Workers() int {
	return c.workers
}

// Timeout returns the per-symbol deadline the next batch will use
func (c *Coordinator) Timeout() time.Duration {
	if c.budget != nil {
		return max(c.budget(), 0)
	}
	return c.timeout
}

// Resolve returns a snapshot for every symbol that is either fresh in the
// cache or fetched successfully now. Symbols that fail or time out are absent.
// Map iteration order carries no meaning; use InOrder for positional output.
func (c *Coordinator) Resolve(ctx context.Context, symbols []string) map[string]model.Snapshot {
	symbols = dedupe(symbols)
	log := c.logger.With("batch_id", uuid.NewString())

	hits, misses := c.cache.GetMany(ctx, symbols)
	out := make(map[string]model.Snapshot, len(symbols))
	for _, e := range hits {
		out[e.Key] = e.Payload
	}

	log.Info("resolving symbols", "requested", len(symbols), "cached", len(hits), "missing", len(misses))
	if len(misses) == 0 {
		return out
	}

	c.fetchAndStore(ctx, log, misses, out)
	return out
}

// Refresh fetches every symbol from upstream, ignoring cached copies, and
// writes the successes back
func (c *Coordinator) Refresh(ctx context.Context, symbols []string) map[string]model.Snapshot {
	symbols = dedupe(symbols)
	log := c.logger.With("batch_id", uuid.NewString())
	log.Info("refreshing symbols", "requested", len(symbols))

	out := make(map[string]model.Snapshot, len(symbols))
	c.fetchAndStore(ctx, log, symbols, out)
	return out
}

func (c *Coordinator) fetchAndStore(ctx context.Context, log *slog.Logger, symbols []string, out map[string]model.Snapshot) {
	started := time.Now()
	timeout := c.Timeout()
	results := c.fetchAll(ctx, symbols, timeout)

	records := make([]cachestore.Record, 0, len(results))
	failed := 0
	for _, r := range results {
		if r.Error != nil {
			failed++
			log.Debug("symbol fetch failed", "symbol", r.Symbol, "error_type", fetcher.TypeOf(r.Error), "error", r.Error)
			continue
		}
		r.Snapshot.Key = r.Symbol
		out[r.Symbol] = r.Snapshot
		records = append(records, cachestore.Record{Key: r.Symbol, Payload: r.Snapshot})
	}

	log.Info("fetch complete",
		"fetched", len(records),
		"failed", failed,
		"workers", c.workers,
		"timeout", timeout,
		"elapsed", time.Since(started).Round(time.Millisecond))

	if len(records) == 0 {
		return
	}
	if err := c.cache.PutMany(ctx, records); err != nil {
		log.Error("failed to write fetched symbols to cache", "records", len(records), "error", err)
	}
}

// fetchAll runs one bounded fetch per symbol on a pool of c.workers goroutines.
// A fetch that outlives timeout is abandoned and reported as failed.
func (c *Coordinator) fetchAll(ctx context.Context, symbols []string, timeout time.Duration) []fetcher.Result {
	p := pool.NewWithResults[fetcher.Result]().WithMaxGoroutines(c.workers)

	for _, symbol := range symbols {
		p.Go(func() fetcher.Result {
			if err := ctx.Err(); err != nil {
				return fetcher.Result{Symbol: symbol, Error: err}
			}
			snap, err := fetcher.Call(ctx, timeout, func(ctx context.Context) (model.Snapshot, error) {
				return c.fetch(ctx, symbol)
			})
			if err == nil && !snap.Valid() {
				err = fetcher.NewNoDataError(symbol)
			}
			return fetcher.Result{Symbol: symbol, Snapshot: snap, Error: err}
		})
	}

	return p.Wait()
}

// InOrder lists the resolved snapshots following symbols, skipping absent ones
func InOrder(symbols []string, results map[string]model.Snapshot) []model.Snapshot {
	out := make([]model.Snapshot, 0, len(results))
	seen := make(map[string]bool, len(symbols))
	for _, s := range symbols {
		if seen[s] {
			continue
		}
		seen[s] = true
		if snap, ok := results[s]; ok {
			out = append(out, snap)
		}
	}
	return out
}

// Missing lists the symbols that have no result, in input order
func Missing(symbols []string, results map[string]model.Snapshot) []string {
	var out []string
	for _, s := range dedupe(symbols) {
		if _, ok := results[s]; !ok {
			out = append(out, s)
		}
	}
	return out
}

func dedupe(symbols []string) []string {
	seen := make(map[string]bool, len(symbols))
	out := make([]string, 0, len(symbols))
	for _, s := range symbols {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
