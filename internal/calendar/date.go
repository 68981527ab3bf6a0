// Package calendar provides the civil-date arithmetic used to pick task days and review windows.
package calendar

import (
	"fmt"
	"time"
)

// Layout is the ISO-8601 calendar date format used on the wire.
const Layout = "2006-01-02"

// WeekEnd is the weekday on which weekly reviews are due.
const WeekEnd = time.Sunday

// Date is a calendar day without a time or zone.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// On returns the calendar day of t in t's own location.
func On(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// Parse reads an ISO-8601 date. A datetime value is truncated to its date part.
func Parse(s string) (Date, error) {
	if len(s) > len(Layout) {
		s = s[:len(Layout)]
	}
	t, err := time.Parse(Layout, s)
	if err != nil {
		return Date{}, fmt.Errorf("calendar: parse %q: %w", s, err)
	}
	return On(t), nil
}

// String formats d as YYYY-MM-DD.
func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// IsZero reports whether d is the zero Date.
func (d Date) IsZero() bool {
	return d.Year == 0 && d.Month == 0 && d.Day == 0
}

// Time returns midnight of d in loc.
func (d Date) Time(loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, loc)
}

// AddDays returns d shifted by n days.
func (d Date) AddDays(n int) Date {
	return On(d.Time(time.UTC).AddDate(0, 0, n))
}

// Weekday returns the day of the week of d.
func (d Date) Weekday() time.Weekday {
	return d.Time(time.UTC).Weekday()
}

// Before reports whether d is strictly earlier than o.
func (d Date) Before(o Date) bool {
	return d.Time(time.UTC).Before(o.Time(time.UTC))
}

// IsWeekEnd reports whether d is the last day of the review week.
func (d Date) IsWeekEnd() bool {
	return d.Weekday() == WeekEnd
}

// IsMonthEnd reports whether the following day falls in another month.
func (d Date) IsMonthEnd() bool {
	return d.AddDays(1).Month != d.Month
}

// FirstOfMonth returns the first day of d's month.
func (d Date) FirstOfMonth() Date {
	return Date{Year: d.Year, Month: d.Month, Day: 1}
}

// Window is an inclusive range of days.
type Window struct {
	Start Date
	End   Date
}

func (w Window) String() string {
	return w.Start.String() + ".." + w.End.String()
}

// Contains reports whether d lies inside w.
func (w Window) Contains(d Date) bool {
	return !d.Before(w.Start) && !w.End.Before(d)
}

// WeekEnding returns the seven-day window that ends on end.
func WeekEnding(end Date) Window {
	return Window{Start: end.AddDays(-6), End: end}
}

// MonthThrough returns the window from the first of end's month through end.
func MonthThrough(end Date) Window {
	return Window{Start: end.FirstOfMonth(), End: end}
}
