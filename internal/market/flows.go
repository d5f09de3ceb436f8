package market

import (
	"context"
	"fmt"
	"time"

	"marketpulse/internal/cachestore"
	"marketpulse/internal/fallback"
	"marketpulse/internal/fetcher"
	"marketpulse/internal/model"
)

// FlowSource reports the daily institutional flows
type FlowSource interface {
	Source() string
	FIIDII(ctx context.Context) (model.FlowSnapshot, error)
}

// Flows is the answer to FIIDII
type Flows struct {
	model.FlowSnapshot
	Source    string
	FetchedAt time.Time
	// Stale is set when every source failed and an expired cached copy was served
	Stale bool
}

// FIIDII returns the latest FII/DII cash-market flows. A fresh cached copy is
// served unless useCache is false; fetched flows are written back. When every
// source fails the last cached copy is returned whatever its age.
func (s *Service) FIIDII(ctx context.Context, useCache bool) (Flows, error) {
	key := model.FlowsKey()
	if useCache {
		if hits, _ := s.store.GetMany(ctx, []string{key}); len(hits) == 1 && hits[0].Payload.Valid() {
			return flowsFrom(hits[0], false), nil
		}
	}

	fns := make(map[string]fetcher.Func[model.FlowSnapshot], len(s.flowSources))
	for _, src := range s.flowSources {
		fns[src.Source()] = src.FIIDII
	}

	flows, source, ok := fallback.Fetch(ctx, s.orch, fallback.CategoryFIIDII, fns)
	if ok && !flows.Empty() {
		if err := s.store.Put(ctx, key, model.NewFlows(source, flows)); err != nil {
			s.logger.Error("failed to cache institutional flows", "error", err)
		}
		return Flows{FlowSnapshot: flows, Source: source, FetchedAt: s.now().UTC()}, nil
	}

	if e, found := s.store.Get(ctx, key); found && e.Payload.Valid() {
		s.logger.Warn("serving stale institutional flows", "fetched_at", e.FetchedAt)
		return flowsFrom(e, true), nil
	}
	return Flows{}, fmt.Errorf("fii/dii flows: %w", fallback.ErrExhausted)
}

func flowsFrom(e cachestore.Entry, stale bool) Flows {
	return Flows{
		FlowSnapshot: *e.Payload.Flows,
		Source:       e.Payload.Source,
		FetchedAt:    e.FetchedAt,
		Stale:        stale,
	}
}
