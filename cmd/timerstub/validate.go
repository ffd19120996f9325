package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/NavarchProject/timerstub/pkg/scenario"
)

func validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <scenario.yaml>",
		Short: "Validate a scenario file without running it",
		Long: `Validate a scenario file without running it.

The file is parsed and checked for unknown actions, undefined labels and
invalid amounts. Every CEL assertion is compiled and must evaluate to a
bool.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return validateScenario(args[0])
		},
	}
}

func validateScenario(path string) error {
	s, err := scenario.LoadScenario(path)
	if err != nil {
		return err
	}

	evaluator, err := scenario.NewEvaluator()
	if err != nil {
		return err
	}
	for _, expr := range s.Expressions() {
		if err := evaluator.Check(expr); err != nil {
			return fmt.Errorf("invalid scenario: %w", err)
		}
	}

	scenario.NewConsole().PrintSuccess(fmt.Sprintf("Scenario %q is valid (%d steps, %d assertions)",
		s.Name, len(s.Steps), len(s.Assertions)))
	return nil
}
