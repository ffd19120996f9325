package scenario

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/NavarchProject/timerstub/pkg/config"
	"github.com/NavarchProject/timerstub/pkg/jsbind"
	"github.com/NavarchProject/timerstub/pkg/scheduler"
)

type stubClock struct {
	now     time.Time
	elapsed time.Duration
}

func (c stubClock) Now() time.Time { return c.now }

func (c stubClock) Since(time.Time) time.Duration { return c.elapsed }

func (c stubClock) Until(time.Time) time.Duration { return -c.elapsed }

func runScenario(t *testing.T, src string, opts ...RunnerOption) (*Result, error) {
	t.Helper()
	s, err := Parse([]byte(src))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	opts = append([]RunnerOption{
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	}, opts...)
	return NewRunner(s, opts...).Run(context.Background())
}

func mustRunScenario(t *testing.T, src string, opts ...RunnerOption) *Result {
	t.Helper()
	res, err := runScenario(t, src, opts...)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	return res
}

func firedLabels(res *Result) string {
	parts := make([]string, len(res.Fires))
	for i, f := range res.Fires {
		parts[i] = f.Label
	}
	return strings.Join(parts, ",")
}

func TestRunner_Basic(t *testing.T) {
	wall := stubClock{now: time.Unix(1700000000, 0), elapsed: 3 * time.Millisecond}
	res := mustRunScenario(t, basicScenario, WithWallClock(wall))

	if got := firedLabels(res); got != "a,b,c" {
		t.Errorf("fired = %q, want a,b,c", got)
	}
	wantAt := []int64{10, 10, 50}
	for i, f := range res.Fires {
		if f.At != wantAt[i] {
			t.Errorf("Fires[%d].At = %d, want %d", i, f.At, wantAt[i])
		}
	}
	if res.Fires[0].ID != 2 || res.Fires[2].ID != 1 {
		t.Errorf("fire ids = %d,%d,%d, want 2,3,1", res.Fires[0].ID, res.Fires[1].ID, res.Fires[2].ID)
	}
	if res.Now != 100 {
		t.Errorf("Now = %d, want 100", res.Now)
	}
	if res.Pending != 0 {
		t.Errorf("Pending = %d, want 0", res.Pending)
	}
	if !res.Passed() {
		t.Errorf("Passed() = false, assertions = %+v", res.Assertions)
	}
	if len(res.Assertions) != 2 {
		t.Errorf("len(Assertions) = %d, want 2", len(res.Assertions))
	}
	if _, err := uuid.Parse(res.RunID); err != nil {
		t.Errorf("RunID %q is not a uuid: %v", res.RunID, err)
	}
	if !res.StartedAt.Equal(wall.now) || res.Duration != wall.elapsed {
		t.Errorf("StartedAt, Duration = %v, %v, want %v, %v", res.StartedAt, res.Duration, wall.now, wall.elapsed)
	}
	if got := res.Date.UnixMilli(); got != 100 {
		t.Errorf("Date = %d ms, want 100", got)
	}
}

func TestRunner_IntervalClear(t *testing.T) {
	res := mustRunScenario(t, `
name: interval
start: 0
steps:
  - action: set_interval
    label: tick
    interval: 100
  - action: wait
    amount: 350
  - action: assert
    expr: fired_at["tick"] == [100, 200, 300] && pending == 1
  - action: clear
    label: tick
  - action: wait
    amount: 1000
assertions:
  - expr: fired_count == 3 && pending == 0 && now == 1350
`)

	if !res.Passed() {
		t.Errorf("Passed() = false, assertions = %+v", res.Assertions)
	}
	if res.Assertions[0].Step != 2 || res.Assertions[0].Now != 350 {
		t.Errorf("inline assertion = %+v, want step 2 at 350", res.Assertions[0])
	}
	if res.Assertions[1].Step != -1 {
		t.Errorf("final assertion step = %d, want -1", res.Assertions[1].Step)
	}
}

func TestRunner_JSSteps(t *testing.T) {
	res := mustRunScenario(t, `
name: js
start: 0
steps:
  - action: js
    source: |
      var n = 0;
      var id = setInterval(function () {
        record("tick");
        if (++n === 3) clearInterval(id);
      }, 1000);
      waitAll(function () { record("done"); });
  - action: set_timeout
    label: after
    delay: 5
  - action: wait_all
assertions:
  - expr: fired == ["tick", "tick", "tick", "done", "after"]
  - expr: fired_at["done"] == [3000]
  - expr: now == 3005
`)

	if !res.Passed() {
		t.Errorf("Passed() = false, assertions = %+v", res.Assertions)
	}
}

func TestRunner_AutoAdvance(t *testing.T) {
	res := mustRunScenario(t, `
name: auto advance
start: 0
steps:
  - action: set_auto_advance
    amount: 5
  - action: set_timeout
    label: t100
    delay: 100
  - action: set_timeout
    label: t200
    delay: 200
  - action: wait
    amount: 150
assertions:
  - expr: fired == ["t100"] && now == 155 && auto_advance == 5
`)

	if !res.Passed() {
		t.Errorf("Passed() = false, assertions = %+v", res.Assertions)
	}
}

func TestRunner_Defaults(t *testing.T) {
	start := int64(500)
	defaults := config.DefaultsCfg{Start: &start, AutoAdvance: 7, MaxTurns: 100}

	res := mustRunScenario(t, `
name: defaults
steps:
  - action: set_timeout
    label: a
    delay: 10
  - action: wait_all
assertions:
  - expr: start == 500 && auto_advance == 7
`, WithDefaults(defaults))

	if res.Start != 500 {
		t.Errorf("Start = %d, want 500", res.Start)
	}
	if !res.Passed() {
		t.Errorf("Passed() = false, assertions = %+v", res.Assertions)
	}

	// Scenario values win over defaults.
	res = mustRunScenario(t, `
name: override
start: 0
auto_advance: 0
steps:
  - action: wait
    amount: 1
assertions:
  - expr: start == 0 && auto_advance == 0
`, WithDefaults(defaults))
	if !res.Passed() {
		t.Errorf("Passed() = false, assertions = %+v", res.Assertions)
	}
}

func TestRunner_DefaultStart(t *testing.T) {
	res := mustRunScenario(t, "name: default start\nsteps:\n  - action: wait_all\n")
	if res.Start != 1_000_000 || res.Now != 1_000_000 {
		t.Errorf("Start, Now = %d, %d, want 1000000", res.Start, res.Now)
	}
}

func TestRunner_FailedAssertion(t *testing.T) {
	res := mustRunScenario(t, `
name: failing
start: 0
steps:
  - action: set_timeout
    label: a
    delay: 10
  - action: wait
    amount: 5
assertions:
  - name: a fired
    expr: fired_count == 1
  - name: clock moved
    expr: now == 5
`)

	if res.Passed() {
		t.Fatal("Passed() = true, want false")
	}
	if !res.Assertions[1].Passed {
		t.Error("later assertions should still be checked")
	}
	err := res.Err()
	if !errors.Is(err, ErrAssertionFailed) {
		t.Fatalf("Err() = %v, want ErrAssertionFailed", err)
	}
	if !strings.Contains(err.Error(), "a fired") {
		t.Errorf("Err() = %v, want naming the assertion", err)
	}
}

func TestRunner_TurnLimit(t *testing.T) {
	res, err := runScenario(t, `
name: endless
start: 0
max_turns: 20
steps:
  - action: set_interval
    label: tick
    interval: 10
  - action: wait_all
`)
	if !errors.Is(err, jsbind.ErrTurnLimit) {
		t.Fatalf("Run() error = %v, want ErrTurnLimit", err)
	}
	if !strings.Contains(err.Error(), "step 1 (wait_all)") {
		t.Errorf("Run() error = %v, want naming the step", err)
	}
	if res == nil || len(res.Fires) == 0 {
		t.Error("partial result should carry the fires so far")
	}
}

func TestRunner_Errors(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		wantErr string
	}{
		{
			name:    "invalid assertion",
			src:     "name: x\nsteps:\n  - action: wait_all\nassertions:\n  - expr: now +\n",
			wantErr: "compile",
		},
		{
			name:    "script error",
			src:     "name: x\nsteps:\n  - action: js\n    source: nope()\n",
			wantErr: "step 0 (js)",
		},
		{
			name:    "callback exception",
			src:     "name: x\nsteps:\n  - action: js\n    source: setTimeout(function () { throw new Error('boom'); }, 1); wait(5);\n",
			wantErr: "boom",
		},
		{
			name:    "negative auto advance",
			src:     "name: x\nsteps:\n  - action: set_auto_advance\n    amount: -50\n  - action: set_timeout\n    label: a\n    delay: 10\n  - action: wait\n    amount: 20\n",
			wantErr: "invalid argument",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := runScenario(t, tt.src)
			if err == nil {
				t.Fatalf("Run() error = nil, want %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Run() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestRunner_ContextCanceled(t *testing.T) {
	s, err := Parse([]byte("name: x\nsteps:\n  - action: wait_all\n"))
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = NewRunner(s, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))).Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Run() error = %v, want context.Canceled", err)
	}
}

func TestRunner_Metrics(t *testing.T) {
	m := scheduler.NewMetrics()
	mustRunScenario(t, basicScenario, WithMetrics(m))

	if got := testutil.CollectAndCount(m, "timerstub_commands_fired_total"); got != 1 {
		t.Errorf("fired series = %d, want 1", got)
	}
	if got := testutil.CollectAndCount(m, "timerstub_pending_commands"); got != 1 {
		t.Errorf("pending series = %d, want 1", got)
	}
}
