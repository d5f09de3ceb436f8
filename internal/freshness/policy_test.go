package freshness

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"marketpulse/internal/marketclock"
)

var ist = time.FixedZone("IST", 5*60*60+30*60)

func newPolicy() *Policy {
	return NewPolicy(marketclock.New(ist, marketclock.DefaultHolidays()))
}

func TestTTLSeconds_BySession(t *testing.T) {
	p := newPolicy()

	tests := []struct {
		name string
		now  time.Time
		want int
	}{
		{"weekend", time.Date(2025, time.June, 7, 11, 0, 0, 0, ist), 86400},
		{"holiday", time.Date(2025, time.October, 2, 11, 0, 0, 0, ist), 86400},
		{"open", time.Date(2025, time.June, 3, 11, 0, 0, 0, ist), 300},
		{"pre open", time.Date(2025, time.June, 3, 8, 0, 0, 0, ist), 3600},
		{"post close", time.Date(2025, time.June, 3, 18, 0, 0, 0, ist), 3600},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, int(p.TTLAt(tt.now)/time.Second))
			assert.Equal(t, tt.want, TTLSeconds(p.clock.Classify(tt.now).Session()))
		})
	}
}

func TestShouldRefresh_Boundary(t *testing.T) {
	p := newPolicy()

	tests := []struct {
		name string
		now  time.Time
		ttl  time.Duration
	}{
		{"open", time.Date(2025, time.June, 3, 11, 0, 0, 0, ist), TTLOpen},
		{"closed", time.Date(2025, time.June, 3, 20, 0, 0, 0, ist), TTLClosed},
		{"weekend", time.Date(2025, time.June, 8, 20, 0, 0, 0, ist), TTLWeekend},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.False(t, p.ShouldRefresh(tt.now.Add(-tt.ttl+time.Second), tt.now), "one second inside the ttl")
			assert.False(t, p.ShouldRefresh(tt.now.Add(-tt.ttl), tt.now), "exactly at the ttl")
			assert.True(t, p.ShouldRefresh(tt.now.Add(-tt.ttl-time.Second), tt.now), "one second past the ttl")
		})
	}
}

func TestShouldRefresh_ZeroTimestamp(t *testing.T) {
	assert.True(t, newPolicy().ShouldRefresh(time.Time{}, time.Now()))
}

func TestShouldRefresh_UsesSessionAtNow(t *testing.T) {
	p := newPolicy()

	// fetched Friday evening, checked Saturday: weekend TTL applies
	fetched := time.Date(2025, time.June, 6, 18, 0, 0, 0, ist)
	now := time.Date(2025, time.June, 7, 12, 0, 0, 0, ist)
	assert.False(t, p.ShouldRefresh(fetched, now))
}

func TestDescribe(t *testing.T) {
	p := newPolicy()
	assert.Contains(t, p.Describe(time.Date(2025, time.June, 7, 11, 0, 0, 0, ist)), "Weekend")
	assert.Contains(t, p.Describe(time.Date(2025, time.December, 25, 11, 0, 0, 0, ist)), "Holiday")
	assert.Contains(t, p.Describe(time.Date(2025, time.June, 3, 11, 0, 0, 0, ist)), "5 minutes")
	assert.Contains(t, p.Describe(time.Date(2025, time.June, 3, 19, 0, 0, 0, ist)), "every hour")
}
