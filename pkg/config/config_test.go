package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"
)

func TestLoad(t *testing.T) {
	data := `
apiVersion: timerstub/v1
defaults:
  start: 0
  auto_advance: 5
  max_turns: 500
logging:
  level: debug
  format: json
output:
  format: json
metrics:
  enabled: true
`
	path := filepath.Join(t.TempDir(), "timerstub.yaml")
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Defaults.Start == nil || *cfg.Defaults.Start != 0 {
		t.Errorf("defaults.start = %v, want 0", cfg.Defaults.Start)
	}
	if cfg.Defaults.AutoAdvance != 5 {
		t.Errorf("defaults.auto_advance = %d, want 5", cfg.Defaults.AutoAdvance)
	}
	if cfg.Defaults.MaxTurns != 500 {
		t.Errorf("defaults.max_turns = %d, want 500", cfg.Defaults.MaxTurns)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "json" {
		t.Errorf("logging = %+v, want debug/json", cfg.Logging)
	}
	if cfg.Output.Format != "json" {
		t.Errorf("output.format = %q, want json", cfg.Output.Format)
	}
	if !cfg.Metrics.Enabled {
		t.Error("metrics.enabled = false, want true")
	}
}

func TestLoad_FileNotFound(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Error("expected error for nonexistent file")
	}
}

func TestParse_Defaults(t *testing.T) {
	for _, data := range []string{"", "defaults: {}\n"} {
		cfg, err := Parse([]byte(data))
		if err != nil {
			t.Fatalf("Parse(%q) error: %v", data, err)
		}
		want := Default()
		if cfg.Defaults.Start != nil {
			t.Errorf("defaults.start = %d, want nil", *cfg.Defaults.Start)
		}
		if cfg.Defaults.MaxTurns != want.Defaults.MaxTurns {
			t.Errorf("defaults.max_turns = %d, want %d", cfg.Defaults.MaxTurns, want.Defaults.MaxTurns)
		}
		if cfg.Logging != want.Logging {
			t.Errorf("logging = %+v, want %+v", cfg.Logging, want.Logging)
		}
		if cfg.Output.Format != DefaultOutputFormat {
			t.Errorf("output.format = %q, want %q", cfg.Output.Format, DefaultOutputFormat)
		}
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		wantErr string
	}{
		{"unsupported apiVersion", "apiVersion: timerstub/v9\n", "unsupported apiVersion"},
		{"unknown field", "server:\n  address: :80\n", "field server not found"},
		{"negative max turns", "defaults:\n  max_turns: -1\n", "max_turns"},
		{"bad log level", "logging:\n  level: loud\n", "logging.level"},
		{"bad log format", "logging:\n  format: xml\n", "logging.format"},
		{"bad output format", "output:\n  format: csv\n", "output.format"},
		{"bad millis", "defaults:\n  auto_advance: soon\n", "invalid milliseconds"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.data))
			if err == nil {
				t.Fatalf("Parse() error = nil, want %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Parse() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestMillis_UnmarshalYAML(t *testing.T) {
	tests := []struct {
		input string
		want  Millis
	}{
		{`ms: 250`, 250},
		{`ms: 0`, 0},
		{`ms: -5`, -5},
		{`ms: 1s`, 1000},
		{`ms: 1.5s`, 1500},
		{`ms: 2m`, 120000},
		{`ms: ""`, 0},
	}

	for _, tt := range tests {
		var obj struct {
			Ms Millis `yaml:"ms"`
		}
		if err := yaml.Unmarshal([]byte(tt.input), &obj); err != nil {
			t.Errorf("failed to parse %q: %v", tt.input, err)
			continue
		}
		if obj.Ms != tt.want {
			t.Errorf("input %q: got %d, want %d", tt.input, obj.Ms, tt.want)
		}
	}
}

func TestMillis_Duration(t *testing.T) {
	if got := Millis(1500).Duration(); got != 1500*time.Millisecond {
		t.Errorf("Duration() = %v, want 1.5s", got)
	}

	out, err := yaml.Marshal(struct {
		Ms Millis `yaml:"ms"`
	}{Ms: 42})
	if err != nil {
		t.Fatal(err)
	}
	if got := strings.TrimSpace(string(out)); got != "ms: 42" {
		t.Errorf("Marshal() = %q, want %q", got, "ms: 42")
	}
}
