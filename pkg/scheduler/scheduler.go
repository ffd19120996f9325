// Package scheduler drives scheduled commands against a virtual clock.
//
// A Scheduler replaces wall-clock timers in tests. Nothing fires until the
// test calls Wait or WaitAll. Each drain step fires at most one due command,
// and the next step is then handed to the host loop through a loop.Yielder.
// A burst of due commands therefore never monopolizes the loop, and other
// work queued on it still gets turns between callbacks.
//
// A Scheduler is single-threaded. All calls, including those made from
// firing callbacks, must come from the goroutine that runs its Yielder.
package scheduler

import (
	"log/slog"
	"math"
	"time"

	"github.com/NavarchProject/timerstub/pkg/clock"
	"github.com/NavarchProject/timerstub/pkg/loop"
	"github.com/NavarchProject/timerstub/pkg/timerqueue"
)

// Scheduler owns a timer queue and the virtual clock it drains against.
type Scheduler struct {
	clock   *clock.VirtualClock
	queue   *timerqueue.Queue
	yielder loop.Yielder
	logger  *slog.Logger
	metrics *Metrics

	// Initial clock settings, applied once options have run.
	start       int64
	autoAdvance int64
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLogger sets the logger for the scheduler.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) {
		s.logger = logger
	}
}

// WithStart sets the initial virtual time in milliseconds.
func WithStart(ms int64) Option {
	return func(s *Scheduler) {
		s.start = ms
	}
}

// WithAutoAdvance sets the initial auto-advance increment.
func WithAutoAdvance(ms int64) Option {
	return func(s *Scheduler) {
		s.autoAdvance = ms
	}
}

// WithMetrics records scheduler activity on m.
func WithMetrics(m *Metrics) Option {
	return func(s *Scheduler) {
		s.metrics = m
	}
}

// New creates a Scheduler that defers drain steps through y.
func New(y loop.Yielder, opts ...Option) *Scheduler {
	s := &Scheduler{
		queue:   timerqueue.New(),
		yielder: y,
		logger:  slog.Default(),
		start:   clock.DefaultStart,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.clock = clock.NewVirtualClock(s.start)
	s.clock.SetAutoAdvance(s.autoAdvance)
	s.metrics.observeQueue(s)
	return s
}

// Clock returns the scheduler's virtual clock.
func (s *Scheduler) Clock() *clock.VirtualClock {
	return s.clock
}

// Now returns the current virtual time in milliseconds.
func (s *Scheduler) Now() int64 {
	return s.clock.Now()
}

// Date returns the current virtual time.
func (s *Scheduler) Date() time.Time {
	return s.clock.Time()
}

// DateAt returns the time for ms milliseconds since the Unix epoch.
func (s *Scheduler) DateAt(ms int64) time.Time {
	return time.UnixMilli(ms)
}

// Pending returns the number of scheduled commands.
func (s *Scheduler) Pending() int {
	return s.queue.Len()
}

// Scheduled returns a snapshot of scheduled commands in firing order.
func (s *Scheduler) Scheduled() []timerqueue.Command {
	return s.queue.Commands()
}

// SetAutoAdvance sets the amount added to the remaining wait budget after
// each fired command.
func (s *Scheduler) SetAutoAdvance(ms int64) {
	s.clock.SetAutoAdvance(ms)
}

// SetTimeout schedules fn to fire once, delay milliseconds from now.
//
// With a zero delay a zero-budget drain step is yielded before fn is queued.
// When the loop runs that step, it fires every command already due at or
// before now, one per turn. fn comes last among them because of the FIFO
// tie-break. fn never runs inside SetTimeout itself.
func (s *Scheduler) SetTimeout(fn func(), delay int64) (timerqueue.ID, error) {
	if fn == nil {
		return 0, invalidArgument("setTimeout", delay, "callback must not be nil")
	}
	if delay < 0 {
		return 0, invalidArgument("setTimeout", delay, "delay must be non-negative")
	}
	if delay > math.MaxInt64-s.clock.Now() {
		return 0, invalidArgument("setTimeout", delay, "due time overflows the clock")
	}

	if delay == 0 {
		s.wait(0, nil)
	}

	id := s.queue.Insert(s.clock.Now()+delay, fn, 0, 0)
	s.logger.Debug("scheduled timeout",
		slog.Uint64("id", uint64(id)),
		slog.Int64("delay", delay),
		slog.Int64("due", s.clock.Now()+delay),
	)
	s.metrics.observeSchedule(kindTimeout, s)
	return id, nil
}

// SetInterval schedules fn to fire every interval milliseconds, starting
// interval milliseconds from now. A zero interval is rejected because it
// would never consume virtual time.
func (s *Scheduler) SetInterval(fn func(), interval int64) (timerqueue.ID, error) {
	if interval == 0 {
		return 0, invalidArgument("setInterval", interval, "zero interval is not supported")
	}
	if interval < 0 {
		return 0, invalidArgument("setInterval", interval, "interval must be positive")
	}
	if fn == nil {
		return 0, invalidArgument("setInterval", interval, "callback must not be nil")
	}
	if interval > math.MaxInt64-s.clock.Now() {
		return 0, invalidArgument("setInterval", interval, "due time overflows the clock")
	}

	id := s.queue.Insert(s.clock.Now()+interval, fn, interval, 0)
	s.logger.Debug("scheduled interval",
		slog.Uint64("id", uint64(id)),
		slog.Int64("interval", interval),
	)
	s.metrics.observeSchedule(kindInterval, s)
	return id, nil
}

// ClearTimeout cancels the command with the given id. Unknown ids are
// ignored.
func (s *Scheduler) ClearTimeout(id timerqueue.ID) {
	if s.queue.Remove(id) {
		s.logger.Debug("cancelled command", slog.Uint64("id", uint64(id)))
		s.metrics.observeCancel(s)
	}
}

// ClearInterval is the same as ClearTimeout. The queue does not distinguish
// intervals from timeouts.
func (s *Scheduler) ClearInterval(id timerqueue.ID) {
	s.ClearTimeout(id)
}

// ClearAll drops every scheduled command. The clock and the auto-advance
// increment are left alone.
func (s *Scheduler) ClearAll() {
	n := s.queue.Len()
	s.queue.Clear()
	s.logger.Debug("cleared all commands", slog.Int("count", n))
	s.metrics.observeQueue(s)
}

// Wait advances the clock by amount milliseconds, firing due commands one
// per loop turn, and calls done once the budget is used up. The first step
// is itself deferred, so Wait(0, nil) still yields once.
//
// A budget reaching past math.MaxInt64 is clamped there. A negative amount
// is rejected here. A budget that turns negative later, e.g. through a
// negative auto-advance, makes the step return an error that
// stops the host loop. Panics from callbacks are not recovered.
func (s *Scheduler) Wait(amount int64, done func()) error {
	if amount < 0 {
		return invalidArgument("wait", amount, "amount must be non-negative")
	}
	s.wait(amount, adapt(done))
	return nil
}

// WaitAll drains the queue, one due command per loop turn, until it is
// empty, then calls done on a later turn. It does not terminate while an
// interval is still scheduled.
func (s *Scheduler) WaitAll(done func()) error {
	next, ok := s.queue.Peek()
	if !ok {
		if done != nil {
			s.yielder.Yield(func() error {
				done()
				return nil
			})
		}
		return nil
	}

	amount := next.Time - s.clock.Now()
	if amount < 0 {
		return invalidArgument("waitAll", amount, "earliest command is overdue")
	}
	s.wait(amount, func() error {
		return s.WaitAll(done)
	})
	return nil
}

func (s *Scheduler) wait(amount int64, cont func() error) {
	s.yielder.Yield(func() error {
		return s.step(amount, cont)
	})
}

// step runs a single drain step with the given remaining budget.
func (s *Scheduler) step(amount int64, cont func() error) error {
	if amount < 0 {
		return invalidArgument("wait", amount, "amount must be non-negative")
	}
	s.metrics.observeStep()

	now := s.clock.Now()
	end := addSat(now, amount)
	next, ok := s.queue.Peek()
	if !ok || end < next.Time {
		s.clock.AdvanceTo(end)
		s.metrics.observeQueue(s)
		if cont != nil {
			return cont()
		}
		return nil
	}

	cmd, _ := s.queue.Pop()
	amount -= cmd.Time - now
	s.clock.AdvanceTo(cmd.Time)
	if cmd.Repeat > 0 {
		s.queue.Insert(addSat(cmd.Time, cmd.Repeat), cmd.Fn, cmd.Repeat, cmd.ID)
	}

	s.logger.Debug("firing command",
		slog.Uint64("id", uint64(cmd.ID)),
		slog.Int64("at", cmd.Time),
		slog.Int64("repeat", cmd.Repeat),
		slog.Int64("budget", amount),
	)
	s.metrics.observeFire(cmd, s)
	cmd.Fn()

	amount = addSat(amount, s.clock.AutoAdvance())
	s.wait(amount, cont)
	return nil
}

// addSat returns a+b clamped to the int64 range. Budgets and due times
// saturate instead of wrapping, so the clock never runs backwards.
func addSat(a, b int64) int64 {
	switch {
	case b > 0 && a > math.MaxInt64-b:
		return math.MaxInt64
	case b < 0 && a < math.MinInt64-b:
		return math.MinInt64
	}
	return a + b
}

func adapt(done func()) func() error {
	if done == nil {
		return nil
	}
	return func() error {
		done()
		return nil
	}
}
