package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/NavarchProject/timerstub/pkg/config"
	"github.com/NavarchProject/timerstub/pkg/jsbind"
	"github.com/NavarchProject/timerstub/pkg/scheduler"
	"github.com/NavarchProject/timerstub/pkg/timerqueue"
)

func evalCmd() *cobra.Command {
	var (
		start       int64
		autoAdvance config.Millis
	)

	cmd := &cobra.Command{
		Use:   "eval <file.js>",
		Short: "Run a script with fake timers installed",
		Long: `Run a JavaScript file with setTimeout, setInterval, clearTimeout,
clearInterval, Date, wait, waitAll, clearAll and setAutoAdvance replaced by
the virtual-clock scheduler. The same functions are also available through
require("timers").

The script runs first; timer callbacks fire while the loop is drained
afterwards. Commands still scheduled at the end are listed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("start") {
				cfg.Defaults.Start = &start
			}
			if cmd.Flags().Changed("auto-advance") {
				cfg.Defaults.AutoAdvance = autoAdvance
			}
			return evalScript(cmd, cfg, args[0])
		},
	}

	cmd.Flags().Int64Var(&start, "start", 0, "Initial virtual time in milliseconds")
	cmd.Flags().Int64Var((*int64)(&autoAdvance), "auto-advance", 0, "Auto-advance increment in milliseconds")

	return cmd
}

// evalResult is the JSON shape of an eval run.
type evalResult struct {
	Now       int64           `json:"now"`
	Pending   int             `json:"pending"`
	Turns     uint64          `json:"turns"`
	Scheduled []scheduledInfo `json:"scheduled"`
}

type scheduledInfo struct {
	ID     timerqueue.ID `json:"id"`
	Due    int64         `json:"due"`
	Repeat int64         `json:"repeat,omitempty"`
}

func evalScript(cmd *cobra.Command, cfg *config.Config, path string) error {
	src, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read script: %w", err)
	}

	logger := newLogger(cmd.ErrOrStderr(), cfg.Logging)

	schedOpts := []scheduler.Option{scheduler.WithAutoAdvance(cfg.Defaults.AutoAdvance.Int64())}
	if cfg.Defaults.Start != nil {
		schedOpts = append(schedOpts, scheduler.WithStart(*cfg.Defaults.Start))
	}

	host, err := jsbind.New(
		jsbind.WithLogger(logger),
		jsbind.WithSchedulerOptions(schedOpts...),
	)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if _, err := host.RunScript(path, string(src)); err != nil {
		return err
	}
	if err := host.DrainLimit(ctx, cfg.Defaults.MaxTurns); err != nil {
		return fmt.Errorf("drain: %w", err)
	}

	sched := host.Scheduler()
	res := evalResult{
		Now:       sched.Now(),
		Pending:   sched.Pending(),
		Turns:     host.Loop().Turns(),
		Scheduled: []scheduledInfo{},
	}
	for _, c := range sched.Scheduled() {
		res.Scheduled = append(res.Scheduled, scheduledInfo{ID: c.ID, Due: c.Time, Repeat: c.Repeat})
	}

	out := cmd.OutOrStdout()
	switch cfg.Output.Format {
	case "json":
		return outputJSON(out, res)
	default:
		fmt.Fprintf(out, "now: %d (%s)\n", res.Now, sched.Date().UTC().Format("2006-01-02T15:04:05.000Z07:00"))
		fmt.Fprintf(out, "turns: %d\n", res.Turns)
		fmt.Fprintf(out, "pending: %d\n", res.Pending)
		if len(res.Scheduled) > 0 {
			outputScheduledTable(out, res.Now, res.Scheduled)
		}
	}
	return nil
}

func outputScheduledTable(w io.Writer, now int64, scheduled []scheduledInfo) {
	table := tablewriter.NewWriter(w)
	table.Append([]string{"ID", "Due", "In (ms)", "Repeat (ms)"})

	for _, s := range scheduled {
		repeat := "-"
		if s.Repeat > 0 {
			repeat = strconv.FormatInt(s.Repeat, 10)
		}
		table.Append([]string{
			strconv.FormatUint(uint64(s.ID), 10),
			strconv.FormatInt(s.Due, 10),
			strconv.FormatInt(s.Due-now, 10),
			repeat,
		})
	}

	table.Render()
}
