// Package jsbind exposes a Scheduler to JavaScript running in a goja runtime.
//
// The timer functions are installed as globals and are also available as the
// "timers" native module:
//
//	const timers = require("timers");
//	timers.setTimeout(() => print("fired"), 1000);
//	timers.wait(1000);
//
// Scripts only schedule work. Callbacks run when the Go side drains the host
// loop with Drain.
package jsbind

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dop251/goja"
	requirePkg "github.com/dop251/goja_nodejs/require"

	"github.com/NavarchProject/timerstub/pkg/loop"
	"github.com/NavarchProject/timerstub/pkg/scheduler"
)

// ModuleName is the name the timer module is registered under.
const ModuleName = "timers"

// ErrTurnLimit is returned by DrainLimit when the loop still has work after
// the allowed number of turns, typically because an interval is scheduled.
var ErrTurnLimit = errors.New("turn limit exceeded")

// Host couples a goja runtime with a Scheduler and the task loop it yields
// to. A Host is single-threaded like the runtime it wraps.
type Host struct {
	vm     *goja.Runtime
	sched  *scheduler.Scheduler
	tasks  *loop.TaskQueue
	logger *slog.Logger

	schedOpts []scheduler.Option
	globals   bool
	exports   []export
}

type export struct {
	name  string
	value goja.Value
}

// Option configures a Host.
type Option func(*Host)

// WithLogger sets the logger for the host and its scheduler.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Host) {
		h.logger = logger
	}
}

// WithSchedulerOptions passes options through to the scheduler.
func WithSchedulerOptions(opts ...scheduler.Option) Option {
	return func(h *Host) {
		h.schedOpts = append(h.schedOpts, opts...)
	}
}

// WithoutGlobals leaves the global object alone. The timers are then only
// reachable through require("timers").
func WithoutGlobals() Option {
	return func(h *Host) {
		h.globals = false
	}
}

// New creates a Host with a fresh runtime and scheduler.
func New(opts ...Option) (*Host, error) {
	h := &Host{
		vm:      goja.New(),
		tasks:   loop.NewTaskQueue(),
		logger:  slog.Default(),
		globals: true,
	}
	for _, opt := range opts {
		opt(h)
	}

	schedOpts := append([]scheduler.Option{scheduler.WithLogger(h.logger)}, h.schedOpts...)
	h.sched = scheduler.New(h.tasks, schedOpts...)

	if err := h.buildExports(); err != nil {
		return nil, err
	}

	registry := new(requirePkg.Registry)
	registry.RegisterNativeModule(ModuleName, h.loadModule)
	registry.Enable(h.vm)

	if err := h.vm.Set("print", h.print); err != nil {
		return nil, err
	}
	if h.globals {
		for _, e := range h.exports {
			if err := h.vm.Set(e.name, e.value); err != nil {
				return nil, fmt.Errorf("install global %s: %w", e.name, err)
			}
		}
	}
	return h, nil
}

// Runtime returns the underlying goja runtime.
func (h *Host) Runtime() *goja.Runtime {
	return h.vm
}

// Scheduler returns the scheduler backing the timer functions.
func (h *Host) Scheduler() *scheduler.Scheduler {
	return h.sched
}

// Loop returns the task loop the scheduler yields to.
func (h *Host) Loop() *loop.TaskQueue {
	return h.tasks
}

// RunScript evaluates src. Timers it schedules do not fire until Drain.
func (h *Host) RunScript(name, src string) (goja.Value, error) {
	v, err := h.vm.RunScript(name, src)
	if err != nil {
		return nil, fmt.Errorf("run %s: %w", name, err)
	}
	return v, nil
}

// Drain runs the host loop until it is empty. An exception thrown by a
// timer callback stops the loop and is returned.
func (h *Host) Drain() error {
	return h.DrainContext(context.Background())
}

// DrainContext is like Drain but interrupts the runtime when ctx is done.
func (h *Host) DrainContext(ctx context.Context) error {
	return h.DrainLimit(ctx, 0)
}

// DrainLimit is like DrainContext but gives up with ErrTurnLimit after
// maxTurns loop turns. Zero means no limit.
func (h *Host) DrainLimit(ctx context.Context, maxTurns int) (err error) {
	interrupted := make(chan struct{})
	stop := context.AfterFunc(ctx, func() {
		defer close(interrupted)
		h.vm.Interrupt(ctx.Err())
	})
	defer func() {
		// The interrupt may be in flight. Clearing it first would let it
		// land on the next script run.
		if !stop() {
			<-interrupted
		}
		h.vm.ClearInterrupt()
	}()

	defer func() {
		if r := recover(); r != nil {
			cp, ok := r.(callbackPanic)
			if !ok {
				panic(r)
			}
			err = fmt.Errorf("timer callback: %w", cp.err)
		}
	}()

	for turns := 0; ; turns++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if maxTurns > 0 && turns >= maxTurns && h.tasks.Len() > 0 {
			return fmt.Errorf("%w: %d turns", ErrTurnLimit, maxTurns)
		}
		ran, err := h.tasks.RunOnce()
		if err != nil {
			return err
		}
		if !ran {
			return nil
		}
	}
}

// callbackPanic carries a JS callback failure out of the scheduler, which
// does not recover panics, to Drain.
type callbackPanic struct {
	err error
}

func (h *Host) loadModule(vm *goja.Runtime, module *goja.Object) {
	exports := module.Get("exports").(*goja.Object)
	for _, e := range h.exports {
		if err := exports.Set(e.name, e.value); err != nil {
			panic(vm.NewGoError(err))
		}
	}
}

// fakeDateSrc builds a Date replacement that works with and without new.
const fakeDateSrc = `(function (RealDate, now) {
	function Date(time) {
		return new RealDate(time != null ? time : now());
	}
	Date.now = now;
	Date.UTC = RealDate.UTC;
	Date.parse = RealDate.parse;
	Date.prototype = RealDate.prototype;
	return Date;
})`

func (h *Host) buildExports() error {
	factoryVal, err := h.vm.RunString(fakeDateSrc)
	if err != nil {
		return fmt.Errorf("compile Date shim: %w", err)
	}
	factory, ok := goja.AssertFunction(factoryVal)
	if !ok {
		return errors.New("compile Date shim: not a function")
	}
	realDate := h.vm.Get("Date")
	now := h.vm.ToValue(func(goja.FunctionCall) goja.Value {
		return h.vm.ToValue(h.sched.Now())
	})
	fakeDate, err := factory(goja.Undefined(), realDate, now)
	if err != nil {
		return fmt.Errorf("build Date shim: %w", err)
	}

	h.exports = []export{
		{"setTimeout", h.vm.ToValue(h.setTimeout)},
		{"setInterval", h.vm.ToValue(h.setInterval)},
		{"clearTimeout", h.vm.ToValue(h.clearTimeout)},
		{"clearInterval", h.vm.ToValue(h.clearTimeout)},
		{"Date", fakeDate},
		{"wait", h.vm.ToValue(h.wait)},
		{"waitAll", h.vm.ToValue(h.waitAll)},
		{"clearAll", h.vm.ToValue(h.clearAll)},
		{"setAutoAdvance", h.vm.ToValue(h.setAutoAdvance)},
	}
	return nil
}

func (h *Host) print(call goja.FunctionCall) goja.Value {
	parts := make([]string, len(call.Arguments))
	for i, v := range call.Arguments {
		parts[i] = v.String()
	}
	h.logger.Info("script output",
		slog.String("message", strings.Join(parts, " ")),
		slog.Int64("now", h.sched.Now()),
	)
	return goja.Undefined()
}
