package jsbind

import (
	"math"

	"github.com/dop251/goja"

	"github.com/NavarchProject/timerstub/pkg/timerqueue"
)

func (h *Host) setTimeout(call goja.FunctionCall) goja.Value {
	fn := h.callback("setTimeout", call.Argument(0))
	delay := h.optionalMillis("setTimeout", "delay", call.Argument(1))

	id, err := h.sched.SetTimeout(fn, delay)
	if err != nil {
		panic(h.vm.NewGoError(err))
	}
	return h.vm.ToValue(int64(id))
}

func (h *Host) setInterval(call goja.FunctionCall) goja.Value {
	fn := h.callback("setInterval", call.Argument(0))
	interval := h.optionalMillis("setInterval", "interval", call.Argument(1))

	id, err := h.sched.SetInterval(fn, interval)
	if err != nil {
		panic(h.vm.NewGoError(err))
	}
	return h.vm.ToValue(int64(id))
}

// clearTimeout also backs clearInterval. Ids that are not positive integers
// cannot name a timer and are ignored.
func (h *Host) clearTimeout(call goja.FunctionCall) goja.Value {
	if ms, ok := exportMillis(call.Argument(0)); ok && ms > 0 {
		h.sched.ClearTimeout(timerqueue.ID(ms))
	}
	return goja.Undefined()
}

func (h *Host) wait(call goja.FunctionCall) goja.Value {
	amount, ok := exportMillis(call.Argument(0))
	if !ok {
		panic(h.vm.NewTypeError("wait: amount must be a non-negative number"))
	}
	done := h.optionalCallback("wait", call.Argument(1))

	if err := h.sched.Wait(amount, done); err != nil {
		panic(h.vm.NewGoError(err))
	}
	return goja.Undefined()
}

func (h *Host) waitAll(call goja.FunctionCall) goja.Value {
	done := h.optionalCallback("waitAll", call.Argument(0))

	if err := h.sched.WaitAll(done); err != nil {
		panic(h.vm.NewGoError(err))
	}
	return goja.Undefined()
}

func (h *Host) clearAll(goja.FunctionCall) goja.Value {
	h.sched.ClearAll()
	return goja.Undefined()
}

func (h *Host) setAutoAdvance(call goja.FunctionCall) goja.Value {
	ms, ok := exportMillis(call.Argument(0))
	if !ok {
		panic(h.vm.NewTypeError("setAutoAdvance: amount must be a number"))
	}
	h.sched.SetAutoAdvance(ms)
	return goja.Undefined()
}

// callback converts a JS function into a scheduler callback. String bodies
// are rejected rather than evaluated.
func (h *Host) callback(op string, v goja.Value) func() {
	fn, ok := goja.AssertFunction(v)
	if !ok {
		panic(h.vm.NewTypeError(op + ": callback must be a function"))
	}
	return func() {
		if _, err := fn(goja.Undefined()); err != nil {
			panic(callbackPanic{err: err})
		}
	}
}

func (h *Host) optionalCallback(op string, v goja.Value) func() {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return nil
	}
	return h.callback(op, v)
}

// optionalMillis treats a missing delay as zero, as browsers do.
func (h *Host) optionalMillis(op, name string, v goja.Value) int64 {
	if v == nil || goja.IsUndefined(v) {
		return 0
	}
	ms, ok := exportMillis(v)
	if !ok {
		panic(h.vm.NewTypeError(op + ": " + name + " must be a number of milliseconds in int64 range"))
	}
	return ms
}

// exportMillis returns v as whole milliseconds if it is a finite number
// that fits in an int64.
func exportMillis(v goja.Value) (int64, bool) {
	if v == nil {
		return 0, false
	}
	switch n := v.Export().(type) {
	case int64:
		return n, true
	case float64:
		// -2^63 is exact as a float64; 2^63 is the first value past MaxInt64.
		if math.IsNaN(n) || n < math.MinInt64 || n >= -math.MinInt64 {
			return 0, false
		}
		return int64(n), true
	default:
		return 0, false
	}
}
