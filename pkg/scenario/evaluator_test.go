package scenario

import (
	"strings"
	"testing"
)

func TestEvaluator_Evaluate(t *testing.T) {
	eval, err := NewEvaluator()
	if err != nil {
		t.Fatalf("NewEvaluator() error = %v", err)
	}

	st := State{
		Now:         1300,
		Start:       1000,
		Pending:     1,
		AutoAdvance: 5,
		Turns:       7,
		Fires: []Fire{
			{Label: "tick", ID: 1, At: 1100},
			{Label: "once", ID: 2, At: 1150},
			{Label: "tick", ID: 1, At: 1200},
		},
	}

	tests := []struct {
		expr string
		want bool
	}{
		{"now == 1300", true},
		{"elapsed == 300", true},
		{"start == 1000", true},
		{"pending == 1", true},
		{"auto_advance == 5", true},
		{"turns > 0", true},
		{`fired == ["tick", "once", "tick"]`, true},
		{"fired_count == 3", true},
		{`fired_at["tick"] == [1100, 1200]`, true},
		{`fired_at["once"][0] - start == 150`, true},
		{`"missing" in fired_at`, false},
		{`fired.exists(l, l == "once")`, true},
		{"pending == 0", false},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, err := eval.Evaluate(tt.expr, st)
			if err != nil {
				t.Fatalf("Evaluate() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Evaluate(%q) = %v, want %v", tt.expr, got, tt.want)
			}
		})
	}
}

func TestEvaluator_Check(t *testing.T) {
	eval, err := NewEvaluator()
	if err != nil {
		t.Fatalf("NewEvaluator() error = %v", err)
	}

	tests := []struct {
		name    string
		expr    string
		wantErr string
	}{
		{"valid", "now >= start", ""},
		{"syntax error", "now >=", "compile"},
		{"undeclared variable", "clock == 1", "undeclared reference"},
		{"not bool", "now + 1", "must be bool"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := eval.Check(tt.expr)
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Check(%q) error = %v", tt.expr, err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Check(%q) error = %v, want containing %q", tt.expr, err, tt.wantErr)
			}
		})
	}
}

func TestEvaluator_EvaluateRuntimeError(t *testing.T) {
	eval, err := NewEvaluator()
	if err != nil {
		t.Fatalf("NewEvaluator() error = %v", err)
	}

	if _, err := eval.Evaluate(`fired_at["nope"][0] == 1`, State{}); err == nil {
		t.Error("Evaluate() error = nil, want missing key error")
	}
}
