package calendar

import (
	"sync"
	"time"
)

// Clock supplies the current wall-clock time in the configured zone.
type Clock interface {
	Now() time.Time
	Location() *time.Location
}

// SystemClock reads the real time and converts it to Loc.
type SystemClock struct {
	Loc *time.Location
}

// NewSystemClock returns a clock for the named IANA zone.
func NewSystemClock(zone string) (*SystemClock, error) {
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return nil, err
	}
	return &SystemClock{Loc: loc}, nil
}

func (c *SystemClock) Now() time.Time { return time.Now().In(c.Location()) }

func (c *SystemClock) Location() *time.Location {
	if c.Loc == nil {
		return time.Local
	}
	return c.Loc
}

// Today returns the current calendar day according to c.
func Today(c Clock) Date {
	return On(c.Now())
}

// ManualClock is a settable clock for tests and dry runs.
type ManualClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewManualClock returns a clock frozen at now.
func NewManualClock(now time.Time) *ManualClock {
	return &ManualClock{now: now}
}

func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *ManualClock) Location() *time.Location {
	return c.Now().Location()
}

// Set moves the clock to t.
func (c *ManualClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

// Advance moves the clock forward by d.
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}
