package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"strings"
	"syscall"

	"github.com/olekukonko/tablewriter"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/NavarchProject/timerstub/pkg/scenario"
	"github.com/NavarchProject/timerstub/pkg/scheduler"
)

func runCmd() *cobra.Command {
	var withMetrics bool

	cmd := &cobra.Command{
		Use:   "run <scenario.yaml>",
		Short: "Run a timer scenario",
		Long: `Run a timer scenario from a YAML file.

Each step is executed and the loop is drained before the next step runs.
Labeled timers are recorded when they fire, and the scenario's assertions
are checked against the resulting trace. The command fails if any
assertion does not hold.

Examples:
  # Run a scenario
  timerstub run scenarios/interval.yaml

  # Print the result as JSON, with scheduler metrics
  timerstub run scenarios/interval.yaml -o json --metrics`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenario(cmd, args[0], withMetrics)
		},
	}

	cmd.Flags().BoolVar(&withMetrics, "metrics", false, "Print scheduler metrics after the run")

	return cmd
}

func runScenario(cmd *cobra.Command, path string, withMetrics bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cmd.ErrOrStderr(), cfg.Logging)

	s, err := scenario.LoadScenario(path)
	if err != nil {
		return fmt.Errorf("failed to load scenario: %w", err)
	}
	logger.Info("loaded scenario",
		slog.String("name", s.Name),
		slog.String("description", s.Description),
	)

	opts := []scenario.RunnerOption{
		scenario.WithLogger(logger),
		scenario.WithDefaults(cfg.Defaults),
	}
	var registry *prometheus.Registry
	if withMetrics || cfg.Metrics.Enabled {
		m := scheduler.NewMetrics()
		registry = prometheus.NewRegistry()
		registry.MustRegister(m)
		opts = append(opts, scenario.WithMetrics(m))
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	console := scenario.NewConsole()
	tableOutput := cfg.Output.Format == "table"
	if tableOutput {
		console.PrintHeader(s)
	}

	res, err := scenario.NewRunner(s, opts...).Run(ctx)
	if err != nil {
		if tableOutput {
			console.PrintError(err.Error())
		}
		return fmt.Errorf("scenario %q: %w", s.Name, err)
	}

	var samples []metricSample
	if registry != nil {
		if samples, err = gatherMetrics(registry); err != nil {
			return fmt.Errorf("failed to gather metrics: %w", err)
		}
	}

	out := cmd.OutOrStdout()
	switch cfg.Output.Format {
	case "json":
		if err := outputJSON(out, runReport{Result: res, Metrics: samples}); err != nil {
			return err
		}
	default:
		console.PrintResult(res)
		if len(samples) > 0 {
			fmt.Fprintln(out)
			outputMetricsTable(out, samples)
		}
	}

	return res.Err()
}

// runReport is the JSON shape of a run.
type runReport struct {
	*scenario.Result
	Metrics []metricSample `json:"metrics,omitempty"`
}

// metricSample is one series of a gathered metric family.
type metricSample struct {
	Name   string  `json:"name"`
	Labels string  `json:"labels,omitempty"`
	Value  float64 `json:"value"`
}

func gatherMetrics(g prometheus.Gatherer) ([]metricSample, error) {
	families, err := g.Gather()
	if err != nil {
		return nil, err
	}

	var samples []metricSample
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			var labels []string
			for _, lp := range m.GetLabel() {
				labels = append(labels, lp.GetName()+"="+lp.GetValue())
			}
			value := m.GetCounter().GetValue()
			if gauge := m.GetGauge(); gauge != nil {
				value = gauge.GetValue()
			}
			samples = append(samples, metricSample{
				Name:   mf.GetName(),
				Labels: strings.Join(labels, ","),
				Value:  value,
			})
		}
	}
	sort.SliceStable(samples, func(i, j int) bool {
		if samples[i].Name != samples[j].Name {
			return samples[i].Name < samples[j].Name
		}
		return samples[i].Labels < samples[j].Labels
	})
	return samples, nil
}

func outputJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func outputMetricsTable(w io.Writer, samples []metricSample) {
	table := tablewriter.NewWriter(w)
	table.Append([]string{"Metric", "Labels", "Value"})

	for _, s := range samples {
		labels := s.Labels
		if labels == "" {
			labels = "-"
		}
		table.Append([]string{
			s.Name,
			labels,
			strconv.FormatFloat(s.Value, 'f', -1, 64),
		})
	}

	table.Render()
}
