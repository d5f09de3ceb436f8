package fallback

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"marketpulse/internal/fetcher"
	"marketpulse/internal/ratelimit"
)

// DefaultRetryDelay is the pause between attempts against the same source
const DefaultRetryDelay = time.Second

// ErrExhausted is what callers report when Fetch comes back empty
var ErrExhausted = errors.New("all sources failed")

// Options configures an Orchestrator
type Options struct {
	Categories Table
	Limiter    *ratelimit.Limiter
	RetryDelay time.Duration
	Logger     *slog.Logger
}

// Orchestrator holds the category table and the shared throttle.
// The table is swapped atomically on reload and never mutated in place.
type Orchestrator struct {
	table      atomic.Pointer[Table]
	limiter    *ratelimit.Limiter
	retryDelay time.Duration
	logger     *slog.Logger
}

// New creates an orchestrator. A nil table means DefaultCategories; a zero
// RetryDelay means DefaultRetryDelay and a negative one disables the pause.
func New(opts Options) *Orchestrator {
	if opts.Categories == nil {
		opts.Categories = DefaultCategories()
	}
	switch {
	case opts.RetryDelay == 0:
		opts.RetryDelay = DefaultRetryDelay
	case opts.RetryDelay < 0:
		opts.RetryDelay = 0
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	o := &Orchestrator{
		limiter:    opts.Limiter,
		retryDelay: opts.RetryDelay,
		logger:     opts.Logger.With("component", "fallback"),
	}
	o.SetCategories(opts.Categories)
	return o
}

// SetCategories publishes a new category table
func (o *Orchestrator) SetCategories(t Table) {
	c := t.Clone()
	o.table.Store(&c)
}

// Category returns the configuration for name
func (o *Orchestrator) Category(name string) (Category, bool) {
	c, ok := (*o.table.Load())[name]
	return c, ok
}

// Budget is the worst-case duration of Fetch for category under the current
// table and retry delay
func (o *Orchestrator) Budget(category string) (time.Duration, bool) {
	c, found := o.Category(category)
	if !found {
		return 0, false
	}
	return c.Budget(o.retryDelay)
}

// EnabledSources lists source names for a category in priority order.
// A disabled or unknown category has none.
func (o *Orchestrator) EnabledSources(category string) []string {
	c, ok := o.Category(category)
	if !ok || c.Disabled {
		return nil
	}
	var names []string
	for _, s := range c.Ordered() {
		names = append(names, s.Name)
	}
	return names
}

// IsSourceEnabled reports whether source is configured for an enabled category
func (o *Orchestrator) IsSourceEnabled(category, source string) bool {
	for _, name := range o.EnabledSources(category) {
		if name == source {
			return true
		}
	}
	return false
}

// Fetch tries each configured source of category in priority order and
// returns the first successful value with the name of the source that produced it.
// ok is false when the category is disabled or every source failed; failures are
// logged, never returned. Sources without a function in fns are skipped.
func Fetch[T any](ctx context.Context, o *Orchestrator, category string, fns map[string]fetcher.Func[T]) (value T, source string, ok bool) {
	log := o.logger.With("category", category)

	c, found := o.Category(category)
	if !found {
		log.Warn("unknown data category")
		return value, "", false
	}
	if c.Disabled {
		log.Info("data category is disabled")
		return value, "", false
	}

	for _, spec := range c.Ordered() {
		fn, supplied := fns[spec.Name]
		if !supplied {
			log.Info("no fetch function supplied for source, skipping", "source", spec.Name)
			continue
		}

		if v, ok := trySource(ctx, o, log, spec, fn); ok {
			log.Debug("source succeeded", "source", spec.Name)
			return v, spec.Name, true
		}
		if ctx.Err() != nil {
			log.Warn("fetch cancelled", "error", ctx.Err())
			return value, "", false
		}
	}

	log.Warn("all sources failed")
	return value, "", false
}

func trySource[T any](ctx context.Context, o *Orchestrator, log *slog.Logger, spec SourceSpec, fn fetcher.Func[T]) (T, bool) {
	var zero T
	attempts := spec.Attempts()

	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 && !o.pause(ctx) {
			return zero, false
		}
		if err := o.limiter.Wait(ctx, spec.Name); err != nil {
			return zero, false
		}

		log.Debug("trying source", "source", spec.Name, "attempt", attempt, "max_attempts", attempts)

		v, err := fetcher.Call[T](ctx, spec.Timeout(), fn)
		if err == nil {
			return v, true
		}

		log.Info("source attempt failed",
			"source", spec.Name,
			"attempt", attempt,
			"error_type", fetcher.TypeOf(err),
			"error", err)

		if !fetcher.IsRetryable(err) {
			return zero, false
		}
	}
	return zero, false
}

// pause sleeps for the retry delay unless ctx ends first
func (o *Orchestrator) pause(ctx context.Context) bool {
	if o.retryDelay <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(o.retryDelay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
