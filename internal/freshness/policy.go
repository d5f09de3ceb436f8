// Package freshness derives cache lifetimes from the market session.
package freshness

import (
	"time"

	"marketpulse/internal/marketclock"
)

// TTLs per session. Outside trading hours the last close is authoritative
// until the next session, so entries live longer.
const (
	TTLOpen    = 5 * time.Minute
	TTLClosed  = time.Hour
	TTLWeekend = 24 * time.Hour
	TTLHoliday = 24 * time.Hour
)

// Policy decides whether a cached entry is stale
type Policy struct {
	clock *marketclock.Clock
}

// NewPolicy creates a policy over the given market clock
func NewPolicy(clock *marketclock.Clock) *Policy {
	return &Policy{clock: clock}
}

// TTL returns the lifetime for entries checked during the given session
func TTL(s marketclock.Session) time.Duration {
	switch s {
	case marketclock.SessionWeekend:
		return TTLWeekend
	case marketclock.SessionHoliday:
		return TTLHoliday
	case marketclock.SessionOpen:
		return TTLOpen
	default:
		return TTLClosed
	}
}

// TTLSeconds is TTL as whole seconds
func TTLSeconds(s marketclock.Session) int {
	return int(TTL(s) / time.Second)
}

// TTLAt returns the lifetime in force at now
func (p *Policy) TTLAt(now time.Time) time.Duration {
	return TTL(p.clock.Classify(now).Session())
}

// ShouldRefresh reports whether an entry fetched at fetchedAt is stale at now.
// A zero fetchedAt always needs a refresh.
func (p *Policy) ShouldRefresh(fetchedAt, now time.Time) bool {
	if fetchedAt.IsZero() {
		return true
	}
	return now.Sub(fetchedAt) > p.TTLAt(now)
}

// Describe returns a one-line summary of the caching strategy in force at now
func (p *Policy) Describe(now time.Time) string {
	switch p.clock.Classify(now).Session() {
	case marketclock.SessionWeekend:
		return "Weekend detected - using 24-hour cache (market closed)"
	case marketclock.SessionHoliday:
		return "Holiday detected - using 24-hour cache (market closed)"
	case marketclock.SessionOpen:
		return "Market open - data refreshes every 5 minutes"
	default:
		return "After hours - data refreshes every hour"
	}
}
