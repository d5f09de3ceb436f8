// Package marketclock classifies wall-clock time against the NSE trading calendar.
package marketclock

import (
	"fmt"
	"sort"
	"time"
)

// Session is the market state derived from a point in time. It is never persisted.
type Session string

const (
	SessionOpen    Session = "open"
	SessionClosed  Session = "closed"
	SessionWeekend Session = "weekend"
	SessionHoliday Session = "holiday"
)

const (
	// DefaultTimezone is the exchange-local zone used for all classification
	DefaultTimezone = "Asia/Kolkata"

	dateLayout = "2006-01-02"

	// trading hours in minutes of the local day, open inclusive, close exclusive
	openMinute  = 9*60 + 15
	closeMinute = 15*60 + 30
)

// Holiday is a single exchange holiday
type Holiday struct {
	Date time.Time
	Name string
}

// Status is the result of classifying a timestamp
type Status struct {
	IsWeekend bool
	IsHoliday bool
	IsOpen    bool
}

// Session collapses the flags into a single state. Weekend wins over holiday.
func (s Status) Session() Session {
	switch {
	case s.IsWeekend:
		return SessionWeekend
	case s.IsHoliday:
		return SessionHoliday
	case s.IsOpen:
		return SessionOpen
	default:
		return SessionClosed
	}
}

// Clock is a pure classifier over a fixed holiday calendar. Safe for concurrent use.
type Clock struct {
	loc      *time.Location
	holidays map[string]Holiday
	sorted   []Holiday
}

// New creates a clock for the given location and holiday list.
// A nil location means the exchange default.
func New(loc *time.Location, holidays []Holiday) *Clock {
	if loc == nil {
		loc = DefaultLocation()
	}

	c := &Clock{
		loc:      loc,
		holidays: make(map[string]Holiday, len(holidays)),
	}
	for _, h := range holidays {
		key := dateKey(h.Date)
		if _, dup := c.holidays[key]; dup {
			continue
		}
		c.holidays[key] = h
		c.sorted = append(c.sorted, h)
	}
	sort.Slice(c.sorted, func(i, j int) bool {
		return dateKey(c.sorted[i].Date) < dateKey(c.sorted[j].Date)
	})
	return c
}

// Location returns the market-local zone
func (c *Clock) Location() *time.Location {
	return c.loc
}

// Classify reports weekend, holiday and open flags for t in market-local time
func (c *Clock) Classify(t time.Time) Status {
	local := t.In(c.loc)

	var st Status
	wd := local.Weekday()
	st.IsWeekend = wd == time.Saturday || wd == time.Sunday
	_, st.IsHoliday = c.holidays[local.Format(dateLayout)]

	if st.IsWeekend || st.IsHoliday {
		return st
	}

	h, m, _ := local.Clock()
	minute := h*60 + m
	st.IsOpen = minute >= openMinute && minute < closeMinute
	return st
}

// NextHoliday returns the first configured holiday strictly after t's local date
func (c *Clock) NextHoliday(t time.Time) (Holiday, bool) {
	today := t.In(c.loc).Format(dateLayout)
	for _, h := range c.sorted {
		if dateKey(h.Date) > today {
			return h, true
		}
	}
	return Holiday{}, false
}

// Holidays returns the calendar in date order
func (c *Clock) Holidays() []Holiday {
	out := make([]Holiday, len(c.sorted))
	copy(out, c.sorted)
	return out
}

// ParseHolidays converts YYYY-MM-DD strings into holidays
func ParseHolidays(dates []string) ([]Holiday, error) {
	out := make([]Holiday, 0, len(dates))
	for _, d := range dates {
		t, err := time.Parse(dateLayout, d)
		if err != nil {
			return nil, fmt.Errorf("invalid holiday date %q: %w", d, err)
		}
		out = append(out, Holiday{Date: t})
	}
	return out, nil
}

// DefaultLocation loads the exchange zone, falling back to a fixed IST offset
// when tzdata is unavailable (minimal containers).
func DefaultLocation() *time.Location {
	loc, err := time.LoadLocation(DefaultTimezone)
	if err != nil {
		return time.FixedZone("IST", 5*60*60+30*60)
	}
	return loc
}

// dateKey uses the calendar fields as written, ignoring the zone the date was parsed in
func dateKey(t time.Time) string {
	return t.Format(dateLayout)
}
