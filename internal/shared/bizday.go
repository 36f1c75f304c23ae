package shared

import (
	"fmt"
	"time"
)

// Clock resolves business-calendar days. All timestamps are stored in UTC;
// days, report windows and receipt prefixes follow the business timezone.
type Clock struct {
	loc *time.Location
	now func() time.Time
}

// NewClock builds a Clock for the named IANA timezone.
func NewClock(tz string) (*Clock, error) {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("shared: load timezone %q: %w", tz, err)
	}
	return &Clock{loc: loc, now: time.Now}, nil
}

// NewClockAt builds a Clock with a fixed now, for tests.
func NewClockAt(loc *time.Location, now time.Time) *Clock {
	return &Clock{loc: loc, now: func() time.Time { return now }}
}

// NowUTC returns the current instant in UTC for storage.
func (c *Clock) NowUTC() time.Time {
	return c.now().UTC()
}

// Today returns the current business-calendar date.
func (c *Clock) Today() time.Time {
	y, m, d := c.now().In(c.loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, c.loc)
}

// DayBoundsUTC returns the half-open UTC interval [start, end) covering the
// business-calendar day that contains d.
func (c *Clock) DayBoundsUTC(d time.Time) (time.Time, time.Time) {
	y, m, day := d.In(c.loc).Date()
	start := time.Date(y, m, day, 0, 0, 0, 0, c.loc)
	return start.UTC(), start.AddDate(0, 0, 1).UTC()
}

// RangeUTC converts an inclusive business-day range into UTC bounds. A zero
// from or to leaves the corresponding bound open (zero time).
func (c *Clock) RangeUTC(from, to time.Time) (time.Time, time.Time) {
	var start, end time.Time
	if !from.IsZero() {
		start, _ = c.DayBoundsUTC(from)
	}
	if !to.IsZero() {
		_, end = c.DayBoundsUTC(to)
	}
	return start, end
}

// DateOnly normalizes a calendar date to UTC midnight, mirroring a DATE
// column. The calendar components are taken as given, so the business-local
// and UTC midnights of the same date map to one stored value.
func DateOnly(d time.Time) time.Time {
	y, m, day := d.Date()
	return time.Date(y, m, day, 0, 0, 0, 0, time.UTC)
}

// DateWindow converts an inclusive calendar-date range into half-open UTC
// bounds over date-only values. A zero from or to leaves that bound open.
func DateWindow(from, to time.Time) (time.Time, time.Time) {
	var start, end time.Time
	if !from.IsZero() {
		start = DateOnly(from)
	}
	if !to.IsZero() {
		end = DateOnly(to).AddDate(0, 0, 1)
	}
	return start, end
}

// LocalDay formats a stored UTC timestamp as its business-calendar date.
func (c *Clock) LocalDay(t time.Time) string {
	return t.In(c.loc).Format("2006-01-02")
}

// ReceiptPrefix returns the YYYYMMDD prefix for today's receipt numbers.
func (c *Clock) ReceiptPrefix() string {
	return c.now().In(c.loc).Format("20060102")
}

// Location exposes the business timezone.
func (c *Clock) Location() *time.Location {
	return c.loc
}
