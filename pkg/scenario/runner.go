package scenario

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/NavarchProject/timerstub/pkg/clock"
	"github.com/NavarchProject/timerstub/pkg/config"
	"github.com/NavarchProject/timerstub/pkg/jsbind"
	"github.com/NavarchProject/timerstub/pkg/scheduler"
	"github.com/NavarchProject/timerstub/pkg/timerqueue"
)

// ErrAssertionFailed is returned by Result.Err when a condition is false.
var ErrAssertionFailed = errors.New("assertion failed")

// Fire records one firing of a labeled timer, or one call to record() from
// a script.
type Fire struct {
	Label string        `json:"label"`
	ID    timerqueue.ID `json:"id,omitempty"`
	At    int64         `json:"at"`
}

// AssertionResult is the outcome of one condition.
type AssertionResult struct {
	Name   string `json:"name"`
	Expr   string `json:"expr"`
	Passed bool   `json:"passed"`

	// Step is the index of the assert step, or -1 for final assertions.
	Step int `json:"step"`

	// Now is the virtual time the condition was checked at.
	Now int64 `json:"now"`
}

// Result summarizes a scenario run.
type Result struct {
	RunID      string            `json:"run_id"`
	Scenario   string            `json:"scenario"`
	Start      int64             `json:"start"`
	Now        int64             `json:"now"`
	Date       time.Time         `json:"date"`
	Pending    int               `json:"pending"`
	Turns      uint64            `json:"turns"`
	Fires      []Fire            `json:"fires"`
	Assertions []AssertionResult `json:"assertions"`
	StartedAt  time.Time         `json:"started_at"`
	Duration   time.Duration     `json:"duration_ns"`
}

// Passed reports whether every assertion held.
func (r *Result) Passed() bool {
	for _, a := range r.Assertions {
		if !a.Passed {
			return false
		}
	}
	return true
}

// Err returns an error naming the first failed assertion, or nil.
func (r *Result) Err() error {
	for _, a := range r.Assertions {
		if !a.Passed {
			return fmt.Errorf("%w: %s", ErrAssertionFailed, a.Name)
		}
	}
	return nil
}

// Runner executes a scenario.
type Runner struct {
	scenario  *Scenario
	logger    *slog.Logger
	metrics   *scheduler.Metrics
	defaults  config.DefaultsCfg
	wallClock clock.Clock
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithLogger sets the logger for the runner.
func WithLogger(logger *slog.Logger) RunnerOption {
	return func(r *Runner) {
		r.logger = logger
	}
}

// WithMetrics records scheduler activity of the run on m.
func WithMetrics(m *scheduler.Metrics) RunnerOption {
	return func(r *Runner) {
		r.metrics = m
	}
}

// WithDefaults sets the values used where the scenario leaves start,
// auto_advance or max_turns unset.
func WithDefaults(d config.DefaultsCfg) RunnerOption {
	return func(r *Runner) {
		r.defaults = d
	}
}

// WithWallClock sets the clock used to time the run.
func WithWallClock(c clock.Clock) RunnerOption {
	return func(r *Runner) {
		r.wallClock = c
	}
}

// NewRunner creates a runner for the given scenario.
func NewRunner(scenario *Scenario, opts ...RunnerOption) *Runner {
	r := &Runner{
		scenario:  scenario,
		logger:    slog.Default(),
		defaults:  config.Default().Defaults,
		wallClock: clock.Real(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// run holds the state of one execution.
type run struct {
	*Runner
	logger    *slog.Logger
	host      *jsbind.Host
	sched     *scheduler.Scheduler
	evaluator *Evaluator
	maxTurns  int
	start     int64
	labels    map[string]timerqueue.ID
	result    *Result
}

// Run executes every step, draining the loop after each one, and then
// checks the final assertions. A failed assertion does not stop the run;
// it is reported in the result. Errors are returned for steps that cannot
// execute, a drain that fails, or a condition that cannot be evaluated.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	runID := uuid.New().String()
	logger := r.logger.With(slog.String("run_id", runID))
	startedAt := r.wallClock.Now()

	evaluator, err := NewEvaluator()
	if err != nil {
		return nil, err
	}
	for _, expr := range r.scenario.Expressions() {
		if err := evaluator.Check(expr); err != nil {
			return nil, err
		}
	}

	var schedOpts []scheduler.Option
	if start := r.startTime(); start != nil {
		schedOpts = append(schedOpts, scheduler.WithStart(*start))
	}
	schedOpts = append(schedOpts,
		scheduler.WithAutoAdvance(r.autoAdvance()),
		scheduler.WithMetrics(r.metrics),
	)

	host, err := jsbind.New(
		jsbind.WithLogger(logger),
		jsbind.WithSchedulerOptions(schedOpts...),
	)
	if err != nil {
		return nil, fmt.Errorf("create script host: %w", err)
	}

	x := &run{
		Runner:    r,
		logger:    logger,
		host:      host,
		sched:     host.Scheduler(),
		evaluator: evaluator,
		maxTurns:  r.maxTurns(),
		labels:    make(map[string]timerqueue.ID),
	}
	x.start = x.sched.Now()
	x.result = &Result{
		RunID:      runID,
		Scenario:   r.scenario.Name,
		Start:      x.start,
		Fires:      []Fire{},
		Assertions: []AssertionResult{},
		StartedAt:  startedAt,
	}

	if err := host.Runtime().Set("record", x.record); err != nil {
		return nil, fmt.Errorf("install record: %w", err)
	}

	logger.Info("starting scenario",
		slog.String("name", r.scenario.Name),
		slog.Int("step_count", len(r.scenario.Steps)),
		slog.Int64("start", x.start),
		slog.Int("max_turns", x.maxTurns),
	)

	for i, step := range r.scenario.Steps {
		if err := ctx.Err(); err != nil {
			return x.finish(), err
		}

		logger.Debug("executing step",
			slog.Int("index", i),
			slog.String("action", step.Action),
			slog.String("label", step.Label),
			slog.Int64("now", x.sched.Now()),
		)
		if err := x.execute(i, step); err != nil {
			return x.finish(), fmt.Errorf("step %d (%s): %w", i, step.Action, err)
		}
		if err := host.DrainLimit(ctx, x.maxTurns); err != nil {
			return x.finish(), fmt.Errorf("step %d (%s): drain: %w", i, step.Action, err)
		}
	}

	for _, a := range r.scenario.Assertions {
		if err := x.check(-1, a.DisplayName(), a.Expr); err != nil {
			return x.finish(), err
		}
	}

	res := x.finish()
	logger.Info("scenario completed",
		slog.Int64("now", res.Now),
		slog.Int("fires", len(res.Fires)),
		slog.Int("pending", res.Pending),
		slog.Bool("passed", res.Passed()),
		slog.Duration("duration", res.Duration),
	)
	return res, nil
}

func (x *run) execute(index int, step Step) error {
	switch step.Action {
	case ActionSetTimeout:
		id, err := x.sched.SetTimeout(x.labeled(step.Label), step.Delay.Int64())
		if err != nil {
			return err
		}
		x.labels[step.Label] = id
	case ActionSetInterval:
		id, err := x.sched.SetInterval(x.labeled(step.Label), step.Interval.Int64())
		if err != nil {
			return err
		}
		x.labels[step.Label] = id
	case ActionClear:
		id, ok := x.labels[step.Label]
		if !ok {
			return fmt.Errorf("unknown label %q", step.Label)
		}
		x.sched.ClearTimeout(id)
	case ActionWait:
		return x.sched.Wait(step.Amount.Int64(), nil)
	case ActionWaitAll:
		return x.sched.WaitAll(nil)
	case ActionSetAutoAdvance:
		x.sched.SetAutoAdvance(step.Amount.Int64())
	case ActionClearAll:
		x.sched.ClearAll()
	case ActionJS:
		_, err := x.host.RunScript(fmt.Sprintf("step-%d.js", index), step.Source)
		return err
	case ActionAssert:
		return x.check(index, step.Expr, step.Expr)
	default:
		return fmt.Errorf("unknown action %q", step.Action)
	}
	return nil
}

// labeled returns a callback that records a fire for label. The id is
// looked up when it fires, so it names the command that is firing.
func (x *run) labeled(label string) func() {
	return func() {
		x.result.Fires = append(x.result.Fires, Fire{
			Label: label,
			ID:    x.labels[label],
			At:    x.sched.Now(),
		})
	}
}

// record backs the record(label) script global.
func (x *run) record(label string) {
	x.result.Fires = append(x.result.Fires, Fire{
		Label: label,
		At:    x.sched.Now(),
	})
}

func (x *run) check(step int, name, expr string) error {
	ok, err := x.evaluator.Evaluate(expr, x.state())
	if err != nil {
		return err
	}
	x.result.Assertions = append(x.result.Assertions, AssertionResult{
		Name:   name,
		Expr:   expr,
		Passed: ok,
		Step:   step,
		Now:    x.sched.Now(),
	})
	if !ok {
		x.logger.Warn("assertion failed",
			slog.String("name", name),
			slog.String("expr", expr),
			slog.Int64("now", x.sched.Now()),
		)
	}
	return nil
}

func (x *run) state() State {
	return State{
		Now:         x.sched.Now(),
		Start:       x.start,
		Pending:     x.sched.Pending(),
		AutoAdvance: x.sched.Clock().AutoAdvance(),
		Turns:       x.host.Loop().Turns(),
		Fires:       x.result.Fires,
	}
}

func (x *run) finish() *Result {
	res := x.result
	res.Now = x.sched.Now()
	res.Date = x.sched.Date().UTC()
	res.Pending = x.sched.Pending()
	res.Turns = x.host.Loop().Turns()
	res.Duration = x.wallClock.Since(res.StartedAt)
	return res
}

func (r *Runner) startTime() *int64 {
	if r.scenario.Start != nil {
		return r.scenario.Start
	}
	return r.defaults.Start
}

func (r *Runner) autoAdvance() int64 {
	if r.scenario.AutoAdvance != nil {
		return r.scenario.AutoAdvance.Int64()
	}
	return r.defaults.AutoAdvance.Int64()
}

func (r *Runner) maxTurns() int {
	if r.scenario.MaxTurns > 0 {
		return r.scenario.MaxTurns
	}
	return r.defaults.MaxTurns
}
