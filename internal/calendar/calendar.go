// Package calendar resolves the "journal day": the wall-clock calendar date in
// the configured time zone. A journal day is a date, never a timestamp.
package calendar

import (
	"fmt"
	"log"
	"time"
)

// ISO layout used everywhere a day crosses a boundary (storage, :view input).
const dayLayout = "2006-01-02"

// Day is one calendar date. The zero value is the zero date.
type Day struct {
	year  int
	month time.Month
	day   int
}

// NewDay constructs a Day from its parts.
func NewDay(year int, month time.Month, day int) Day {
	return Day{year: year, month: month, day: day}
}

// DayOf truncates an instant to the calendar date in loc.
func DayOf(t time.Time, loc *time.Location) Day {
	y, m, d := t.In(loc).Date()
	return Day{year: y, month: m, day: d}
}

// ParseDay parses an ISO date such as "2024-03-01". Impossible dates like
// 2024-02-30 are rejected rather than normalized.
func ParseDay(s string) (Day, error) {
	t, err := time.Parse(dayLayout, s)
	if err != nil {
		return Day{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	y, m, d := t.Date()
	return Day{year: y, month: m, day: d}, nil
}

// String renders the ISO form.
func (d Day) String() string {
	return d.asTime().Format(dayLayout)
}

// Next returns the following calendar date. Pure date arithmetic, never
// re-resolved from the clock.
func (d Day) Next() Day {
	return d.add(1)
}

// Prev returns the preceding calendar date.
func (d Day) Prev() Day {
	return d.add(-1)
}

// IsZero reports whether d is the zero date.
func (d Day) IsZero() bool {
	return d.year == 0 && d.month == 0 && d.day == 0
}

// After reports whether d falls after other.
func (d Day) After(other Day) bool {
	return d.asTime().After(other.asTime())
}

func (d Day) add(days int) Day {
	t := d.asTime().AddDate(0, 0, days)
	y, m, dd := t.Date()
	return Day{year: y, month: m, day: dd}
}

func (d Day) asTime() time.Time {
	return time.Date(d.year, d.month, d.day, 0, 0, 0, 0, time.UTC)
}

// Resolver maps instants to journal days in one configured zone.
type Resolver struct {
	loc *time.Location
	now func() time.Time
}

// NewResolver builds a Resolver for the named zone. An unknown zone degrades
// to UTC instead of failing: sessions keep working with UTC-accurate dates.
func NewResolver(timezone string) *Resolver {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		log.Printf("[calendar] unknown timezone %q, falling back to UTC: %v", timezone, err)
		loc = time.UTC
	}
	return &Resolver{loc: loc, now: time.Now}
}

// NewResolverAt pins the clock, for tests.
func NewResolverAt(timezone string, now func() time.Time) *Resolver {
	r := NewResolver(timezone)
	r.now = now
	return r
}

// Today returns the current journal day.
func (r *Resolver) Today() Day {
	return DayOf(r.now(), r.loc)
}

// Location exposes the resolved zone.
func (r *Resolver) Location() *time.Location {
	return r.loc
}
