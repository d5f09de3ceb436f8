package ratelimit

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// DefaultLimits are conservative requests-per-second budgets per source.
// Yahoo and NSE ban an origin that bursts, so they stay low.
func DefaultLimits() map[string]float64 {
	return map[string]float64{
		"yfinance":    2,
		"nse_api":     1,
		"nse_csv":     1,
		"nse_website": 1,
		// AlphaVantage: 5 requests per minute on free tier = 1 request every 12 seconds
		"alphavantage": 1.0 / 12.0,
		"etherscan":    4,
		"moneycontrol": 0.5,
	}
}

// Limiter manages rate limits for different sources
type Limiter struct {
	limiters map[string]*rate.Limiter
	mu       sync.RWMutex
}

// New creates a limiter from requests-per-second budgets.
// A budget <= 0 leaves that source unlimited.
func New(limits map[string]float64) *Limiter {
	l := &Limiter{
		limiters: make(map[string]*rate.Limiter, len(limits)),
	}
	for source, rps := range limits {
		l.Set(source, rps)
	}
	return l
}

// Unlimited returns a limiter that never blocks
func Unlimited() *Limiter {
	return New(nil)
}

// Set replaces the budget for one source
func (l *Limiter) Set(source string, rps float64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if rps <= 0 {
		delete(l.limiters, source)
		return
	}
	l.limiters[source] = rate.NewLimiter(rate.Limit(rps), 1)
}

// Wait blocks until the rate limiter permits an event for the given source
// It returns an error if the context is canceled before the event can proceed
func (l *Limiter) Wait(ctx context.Context, source string) error {
	if l == nil {
		return nil
	}

	l.mu.RLock()
	limiter, exists := l.limiters[source]
	l.mu.RUnlock()

	if !exists {
		// If no limiter exists for this source, allow the request without limiting
		return nil
	}

	return limiter.Wait(ctx)
}

// Allow reports whether an event for the given source may happen now
func (l *Limiter) Allow(source string) bool {
	if l == nil {
		return true
	}

	l.mu.RLock()
	limiter, exists := l.limiters[source]
	l.mu.RUnlock()

	if !exists {
		return true
	}

	return limiter.Allow()
}
