// Package scenario runs scripted timer scenarios against a Scheduler.
//
// A scenario is a YAML file listing steps that schedule, clear and drain
// timers, optionally mixed with JavaScript run through jsbind. Every step
// is followed by a full drain of the host loop, and labeled timers record
// when they fire. CEL assertions then check the resulting trace.
package scenario

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/NavarchProject/timerstub/pkg/config"
)

// Step actions.
const (
	ActionSetTimeout     = "set_timeout"
	ActionSetInterval    = "set_interval"
	ActionClear          = "clear"
	ActionWait           = "wait"
	ActionWaitAll        = "wait_all"
	ActionSetAutoAdvance = "set_auto_advance"
	ActionClearAll       = "clear_all"
	ActionJS             = "js"
	ActionAssert         = "assert"
)

// Scenario defines a timer scenario.
type Scenario struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description,omitempty"`

	// Start is the initial virtual time. Nil defers to the tool config.
	Start *int64 `yaml:"start,omitempty"`

	// AutoAdvance is the initial auto-advance increment. Nil defers to the
	// tool config.
	AutoAdvance *config.Millis `yaml:"auto_advance,omitempty"`

	// MaxTurns bounds each drain. Zero defers to the tool config.
	MaxTurns int `yaml:"max_turns,omitempty"`

	Steps      []Step      `yaml:"steps"`
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// Step is one action of a scenario.
type Step struct {
	Action string `yaml:"action"`

	// Label names the timer for set_timeout, set_interval and clear.
	Label string `yaml:"label,omitempty"`

	// Delay is the set_timeout delay.
	Delay config.Millis `yaml:"delay,omitempty"`

	// Interval is the set_interval period.
	Interval config.Millis `yaml:"interval,omitempty"`

	// Amount is the wait budget or the set_auto_advance increment.
	Amount config.Millis `yaml:"amount,omitempty"`

	// Source is the script for js steps.
	Source string `yaml:"source,omitempty"`

	// Expr is the CEL condition for assert steps.
	Expr string `yaml:"expr,omitempty"`
}

// Assertion is a CEL condition checked after the last step.
type Assertion struct {
	Name string `yaml:"name,omitempty"`
	Expr string `yaml:"expr"`
}

// LoadScenario loads a scenario from a YAML file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a scenario. Unknown fields are rejected.
func Parse(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse scenario: %w", err)
	}

	if err := scenario.Validate(); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// Validate checks that the scenario is well-formed. CEL expressions are
// only checked for presence here; Evaluator.Check compiles them.
func (s *Scenario) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("scenario name is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("at least one step is required")
	}
	if s.MaxTurns < 0 {
		return fmt.Errorf("max_turns must be >= 0")
	}

	labels := make(map[string]bool)
	for i, step := range s.Steps {
		if err := step.validate(labels); err != nil {
			return fmt.Errorf("step %d (%s): %w", i, step.Action, err)
		}
	}

	names := make(map[string]bool)
	for i, a := range s.Assertions {
		if a.Expr == "" {
			return fmt.Errorf("assertion %d: expr is required", i)
		}
		name := a.DisplayName()
		if names[name] {
			return fmt.Errorf("assertion %d: duplicate name %q", i, name)
		}
		names[name] = true
	}
	return nil
}

func (st Step) validate(labels map[string]bool) error {
	switch st.Action {
	case ActionSetTimeout:
		if st.Delay < 0 {
			return fmt.Errorf("delay must be >= 0")
		}
		return defineLabel(labels, st.Label)
	case ActionSetInterval:
		if st.Interval <= 0 {
			return fmt.Errorf("interval must be > 0")
		}
		return defineLabel(labels, st.Label)
	case ActionClear:
		if st.Label == "" {
			return fmt.Errorf("label is required")
		}
		if !labels[st.Label] {
			return fmt.Errorf("unknown label %q", st.Label)
		}
	case ActionWait:
		if st.Amount < 0 {
			return fmt.Errorf("amount must be >= 0")
		}
	case ActionWaitAll, ActionClearAll, ActionSetAutoAdvance:
	case ActionJS:
		if st.Source == "" {
			return fmt.Errorf("source is required")
		}
	case ActionAssert:
		if st.Expr == "" {
			return fmt.Errorf("expr is required")
		}
	case "":
		return fmt.Errorf("action is required")
	default:
		return fmt.Errorf("unknown action %q", st.Action)
	}
	return nil
}

func defineLabel(labels map[string]bool, label string) error {
	if label == "" {
		return fmt.Errorf("label is required")
	}
	if labels[label] {
		return fmt.Errorf("duplicate label %q", label)
	}
	labels[label] = true
	return nil
}

// DisplayName returns the assertion name, falling back to its expression.
func (a Assertion) DisplayName() string {
	if a.Name != "" {
		return a.Name
	}
	return a.Expr
}

// Expressions returns every CEL expression in the scenario, inline assert
// steps first.
func (s *Scenario) Expressions() []string {
	var exprs []string
	for _, st := range s.Steps {
		if st.Action == ActionAssert {
			exprs = append(exprs, st.Expr)
		}
	}
	for _, a := range s.Assertions {
		exprs = append(exprs, a.Expr)
	}
	return exprs
}
