package scenario

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
)

func TestExampleScenarios(t *testing.T) {
	paths, err := filepath.Glob(filepath.Join("..", "..", "scenarios", "*.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if len(paths) == 0 {
		t.Fatal("no example scenarios found")
	}

	for _, path := range paths {
		t.Run(filepath.Base(path), func(t *testing.T) {
			s, err := LoadScenario(path)
			if err != nil {
				t.Fatalf("LoadScenario() error = %v", err)
			}

			runner := NewRunner(s, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
			res, err := runner.Run(context.Background())
			if err != nil {
				t.Fatalf("Run() error = %v", err)
			}
			for _, a := range res.Assertions {
				if !a.Passed {
					t.Errorf("assertion %q failed at %d", a.Name, a.Now)
				}
			}
		})
	}
}
