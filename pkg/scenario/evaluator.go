package scenario

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
)

// Evaluator checks CEL conditions against the state of a run.
//
// Conditions see these variables:
//
//	now           int                  current virtual time
//	start         int                  virtual time the run started at
//	elapsed       int                  now - start
//	pending       int                  scheduled commands
//	auto_advance  int                  current auto-advance increment
//	turns         int                  loop turns run so far
//	fired         list(string)         labels in firing order
//	fired_count   int                  size(fired)
//	fired_at      map(string, list(int)) firing times per label
type Evaluator struct {
	env      *cel.Env
	programs map[string]cel.Program
	mu       sync.Mutex
}

// State is a snapshot of a run that conditions are evaluated against.
type State struct {
	Now         int64
	Start       int64
	Pending     int
	AutoAdvance int64
	Turns       uint64
	Fires       []Fire
}

// NewEvaluator creates an Evaluator.
func NewEvaluator() (*Evaluator, error) {
	env, err := cel.NewEnv(
		cel.Variable("now", cel.IntType),
		cel.Variable("start", cel.IntType),
		cel.Variable("elapsed", cel.IntType),
		cel.Variable("pending", cel.IntType),
		cel.Variable("auto_advance", cel.IntType),
		cel.Variable("turns", cel.IntType),
		cel.Variable("fired", cel.ListType(cel.StringType)),
		cel.Variable("fired_count", cel.IntType),
		cel.Variable("fired_at", cel.MapType(cel.StringType, cel.ListType(cel.IntType))),
	)
	if err != nil {
		return nil, fmt.Errorf("create CEL environment: %w", err)
	}
	return &Evaluator{
		env:      env,
		programs: make(map[string]cel.Program),
	}, nil
}

// Check compiles expr and reports whether it is a valid boolean condition.
func (e *Evaluator) Check(expr string) error {
	_, err := e.program(expr)
	return err
}

// Evaluate reports whether expr holds for st.
func (e *Evaluator) Evaluate(expr string, st State) (bool, error) {
	program, err := e.program(expr)
	if err != nil {
		return false, err
	}

	out, _, err := program.Eval(st.activation())
	if err != nil {
		return false, fmt.Errorf("evaluate %q: %w", expr, err)
	}
	if out.Type() != types.BoolType {
		return false, fmt.Errorf("evaluate %q: got %s, want bool", expr, out.Type().TypeName())
	}
	return out.Value().(bool), nil
}

func (e *Evaluator) program(expr string) (cel.Program, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if p, ok := e.programs[expr]; ok {
		return p, nil
	}

	ast, issues := e.env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile %q: %w", expr, issues.Err())
	}
	if k := ast.OutputType().Kind(); k != types.BoolKind && k != types.DynKind {
		return nil, fmt.Errorf("compile %q: condition must be bool, got %s", expr, ast.OutputType())
	}

	program, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("create program for %q: %w", expr, err)
	}
	e.programs[expr] = program
	return program, nil
}

func (st State) activation() map[string]any {
	fired := make([]string, len(st.Fires))
	firedAt := make(map[string][]int64)
	for i, f := range st.Fires {
		fired[i] = f.Label
		firedAt[f.Label] = append(firedAt[f.Label], f.At)
	}
	return map[string]any{
		"now":          st.Now,
		"start":        st.Start,
		"elapsed":      st.Now - st.Start,
		"pending":      int64(st.Pending),
		"auto_advance": st.AutoAdvance,
		"turns":        int64(st.Turns),
		"fired":        fired,
		"fired_count":  int64(len(fired)),
		"fired_at":     firedAt,
	}
}
