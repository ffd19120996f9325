package scenario

import (
	"fmt"
	"strconv"
	"time"

	"github.com/pterm/pterm"
)

// Console provides styled console output for scenario runs.
type Console struct{}

// NewConsole creates a new console output handler.
func NewConsole() *Console {
	return &Console{}
}

// PrintHeader prints the scenario header.
func (c *Console) PrintHeader(s *Scenario) {
	pterm.DefaultHeader.WithBackgroundStyle(pterm.NewStyle(pterm.BgDarkGray)).
		WithTextStyle(pterm.NewStyle(pterm.FgLightCyan, pterm.Bold)).
		Println("SCENARIO: " + s.Name)

	fmt.Println()

	content := fmt.Sprintf("Steps: %d\nAssertions: %d", len(s.Steps), len(s.Assertions))
	if s.Description != "" {
		content = s.Description + "\n\n" + content
	}
	pterm.DefaultBox.WithTitle("Scenario").WithTitleTopCenter().Println(content)
	fmt.Println()
}

// PrintResult prints the run summary, the fire trace and assertion
// outcomes.
func (c *Console) PrintResult(res *Result) {
	summary := pterm.TableData{
		{"Metric", "Value"},
		{"Run ID", res.RunID},
		{"Start", strconv.FormatInt(res.Start, 10)},
		{"Now", strconv.FormatInt(res.Now, 10)},
		{"Elapsed (virtual)", (time.Duration(res.Now-res.Start) * time.Millisecond).String()},
		{"Fires", strconv.Itoa(len(res.Fires))},
		{"Pending", strconv.Itoa(res.Pending)},
		{"Loop turns", strconv.FormatUint(res.Turns, 10)},
		{"Wall time", res.Duration.Round(time.Microsecond).String()},
	}
	pterm.DefaultSection.Println("Summary")
	pterm.DefaultTable.WithHasHeader().WithBoxed().WithData(summary).Render()

	if len(res.Fires) > 0 {
		fires := pterm.TableData{{"#", "Label", "ID", "At", "+ms"}}
		for i, f := range res.Fires {
			id := "-"
			if f.ID != 0 {
				id = strconv.FormatUint(uint64(f.ID), 10)
			}
			fires = append(fires, []string{
				strconv.Itoa(i + 1),
				f.Label,
				id,
				strconv.FormatInt(f.At, 10),
				strconv.FormatInt(f.At-res.Start, 10),
			})
		}
		pterm.DefaultSection.Println("Fire Trace")
		pterm.DefaultTable.WithHasHeader().WithBoxed().WithData(fires).Render()
	}

	if len(res.Assertions) > 0 {
		assertions := pterm.TableData{{"Assertion", "At", "Result"}}
		for _, a := range res.Assertions {
			outcome := pterm.Green("PASS")
			if !a.Passed {
				outcome = pterm.Red("FAIL")
			}
			assertions = append(assertions, []string{a.Name, strconv.FormatInt(a.Now, 10), outcome})
		}
		pterm.DefaultSection.Println("Assertions")
		pterm.DefaultTable.WithHasHeader().WithBoxed().WithData(assertions).Render()
	}

	fmt.Println()
	if res.Passed() {
		c.PrintSuccess(fmt.Sprintf("Scenario %q passed", res.Scenario))
	} else {
		c.PrintError(fmt.Sprintf("Scenario %q failed", res.Scenario))
	}
}

// PrintSuccess prints a success message.
func (c *Console) PrintSuccess(msg string) {
	pterm.Success.Println(msg)
}

// PrintError prints an error message.
func (c *Console) PrintError(msg string) {
	pterm.Error.Println(msg)
}
