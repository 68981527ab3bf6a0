// Package scheduler fires daily jobs at wall-clock times from a single
// polling loop.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/starford/dayroll/internal/calendar"
)

// TimeOfDay is a wall-clock trigger time.
type TimeOfDay struct {
	Hour   int
	Minute int
}

// ParseTimeOfDay parses "HH:MM".
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return TimeOfDay{}, fmt.Errorf("scheduler: invalid time of day %q: %w", s, err)
	}
	return TimeOfDay{Hour: t.Hour(), Minute: t.Minute()}, nil
}

func (t TimeOfDay) String() string { return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute) }

// on returns t on day d in loc.
func (t TimeOfDay) on(d calendar.Date, loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, t.Hour, t.Minute, 0, 0, loc)
}

// Handler runs one job for a day.
type Handler func(ctx context.Context, today calendar.Date) error

// Job is a daily trigger. Due, when set, filters the days the job fires on.
type Job struct {
	Name    string
	At      TimeOfDay
	Due     func(calendar.Date) bool
	Handler Handler
}

// History tells the scheduler which jobs already succeeded for a day.
type History interface {
	Succeeded(job string, day calendar.Date) (bool, error)
}

// Options configure a Scheduler.
type Options struct {
	Clock          calendar.Clock
	Poll           time.Duration
	HandlerTimeout time.Duration
	History        History
	Logger         *slog.Logger
}

type entry struct {
	job  Job
	next time.Time
}

// Scheduler owns the jobs. Only the Run loop touches them; Reschedule
// hands new times to the loop over a channel.
type Scheduler struct {
	clock   calendar.Clock
	poll    time.Duration
	timeout time.Duration
	history History
	logger  *slog.Logger

	entries      []*entry
	rescheduleCh chan map[string]TimeOfDay
}

// New returns a scheduler. Each job's first run is its next occurrence
// strictly after now.
func New(opts Options, jobs ...Job) *Scheduler {
	if opts.Poll <= 0 {
		opts.Poll = 10 * time.Second
	}
	if opts.HandlerTimeout <= 0 {
		opts.HandlerTimeout = 10 * time.Minute
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	s := &Scheduler{
		clock:        opts.Clock,
		poll:         opts.Poll,
		timeout:      opts.HandlerTimeout,
		history:      opts.History,
		logger:       opts.Logger,
		rescheduleCh: make(chan map[string]TimeOfDay),
	}
	now := s.clock.Now()
	for _, j := range jobs {
		s.entries = append(s.entries, &entry{job: j, next: nextAfter(now, j.At, s.clock.Location())})
	}
	return s
}

// nextAfter returns the first occurrence of at strictly after now.
func nextAfter(now time.Time, at TimeOfDay, loc *time.Location) time.Time {
	now = now.In(loc)
	day := calendar.On(now)
	t := at.on(day, loc)
	if !t.After(now) {
		t = at.on(day.AddDays(1), loc)
	}
	return t
}

// Run polls until ctx is cancelled. Handlers run on this goroutine, one at
// a time, to completion.
func (s *Scheduler) Run(ctx context.Context) error {
	for _, e := range s.entries {
		s.logger.Info("scheduler: job scheduled",
			slog.String("job", e.job.Name),
			slog.String("at", e.job.At.String()),
			slog.String("next", e.next.Format(time.RFC3339)))
	}
	ticker := time.NewTicker(s.poll)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler: stopped")
			return nil
		case times := <-s.rescheduleCh:
			s.apply(times)
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// Reschedule changes trigger times by job name. It blocks until the loop
// accepts the change or ctx is done.
func (s *Scheduler) Reschedule(ctx context.Context, times map[string]TimeOfDay) error {
	select {
	case s.rescheduleCh <- times:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) apply(times map[string]TimeOfDay) {
	now := s.clock.Now()
	for _, e := range s.entries {
		at, ok := times[e.job.Name]
		if !ok || at == e.job.At {
			continue
		}
		e.job.At = at
		e.next = nextAfter(now, at, s.clock.Location())
		s.logger.Info("scheduler: job rescheduled",
			slog.String("job", e.job.Name),
			slog.String("at", at.String()),
			slog.String("next", e.next.Format(time.RFC3339)))
	}
}

// tick fires every job whose trigger time has passed.
func (s *Scheduler) tick(ctx context.Context) {
	for _, e := range s.entries {
		now := s.clock.Now()
		if now.Before(e.next) {
			continue
		}
		due := calendar.On(e.next)
		today := calendar.On(now.In(s.clock.Location()))
		e.next = nextAfter(now, e.job.At, s.clock.Location())

		if due != today {
			s.logger.Warn("scheduler: missed trigger skipped",
				slog.String("job", e.job.Name),
				slog.String("day", due.String()))
			continue
		}
		if e.job.Due != nil && !e.job.Due(today) {
			continue
		}
		if s.history != nil {
			done, err := s.history.Succeeded(e.job.Name, today)
			if err != nil {
				s.logger.Warn("scheduler: history lookup failed", slog.String("error", err.Error()))
			} else if done {
				s.logger.Info("scheduler: already ran today",
					slog.String("job", e.job.Name),
					slog.String("day", today.String()))
				continue
			}
		}
		s.fire(ctx, e.job, today)
	}
}

// fire runs one handler through Invoke and logs the outcome.
func (s *Scheduler) fire(ctx context.Context, job Job, today calendar.Date) {
	start := time.Now()
	s.logger.Info("scheduler: firing", slog.String("job", job.Name), slog.String("day", today.String()))
	if err := Invoke(ctx, s.logger, job.Name, s.timeout, job.Handler, today); err != nil {
		s.logger.Error("scheduler: handler failed",
			slog.String("job", job.Name),
			slog.String("error", err.Error()))
		return
	}
	s.logger.Info("scheduler: handler done",
		slog.String("job", job.Name),
		slog.Duration("elapsed", time.Since(start)))
}

// Invoke runs h for today under timeout. A panic is logged with its stack
// and returned as an error. A non-positive timeout means no deadline.
func Invoke(ctx context.Context, logger *slog.Logger, name string, timeout time.Duration, h Handler, today calendar.Date) (err error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	defer func() {
		if r := recover(); r != nil {
			logger.Error("scheduler: handler panic",
				slog.String("job", name),
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())))
			err = fmt.Errorf("scheduler: %s panicked: %v", name, r)
		}
	}()
	return h(ctx, today)
}
