// Package calendar answers "which local day is this" questions for a clinic
// time zone.
package calendar

import (
	"time"
)

// Calendar resolves instants to local calendar days.
type Calendar struct {
	loc *time.Location
	now func() time.Time
}

// New returns a Calendar for loc. A nil now defaults to time.Now.
func New(loc *time.Location, now func() time.Time) *Calendar {
	if loc == nil {
		loc = time.UTC
	}
	if now == nil {
		now = time.Now
	}
	return &Calendar{loc: loc, now: now}
}

// Fixed returns a Calendar frozen at t, for tests.
func Fixed(loc *time.Location, t time.Time) *Calendar {
	return New(loc, func() time.Time { return t })
}

func (c *Calendar) Location() *time.Location { return c.loc }

func (c *Calendar) Now() time.Time { return c.now() }

// DateOf truncates t to midnight of its local day.
func (c *Calendar) DateOf(t time.Time) time.Time {
	y, m, d := t.In(c.loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, c.loc)
}

// Today is midnight of the current local day.
func (c *Calendar) Today() time.Time {
	return c.DateOf(c.now())
}

// DayBounds returns [start, end) of t's local day.
func (c *Calendar) DayBounds(t time.Time) (time.Time, time.Time) {
	start := c.DateOf(t)
	return start, start.AddDate(0, 0, 1)
}

// SameDay compares two instants by local date only.
func (c *Calendar) SameDay(a, b time.Time) bool {
	return c.DateOf(a).Equal(c.DateOf(b))
}

func (c *Calendar) IsToday(t time.Time) bool {
	return c.SameDay(t, c.now())
}

// BeforeToday reports whether t falls on a local day earlier than today.
func (c *Calendar) BeforeToday(t time.Time) bool {
	return c.DateOf(t).Before(c.Today())
}
