package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var noDeps bool

var runCmd = &cobra.Command{
	Use:   "run <plan> <target>",
	Short: "Run a target and its dependencies",
	Long: `Run executes the target step after every step it depends on, then prints
the target's value and the final stack as JSON.`,
	Args: cobra.ExactArgs(2),
	RunE: runTarget,
}

func init() {
	runCmd.Flags().BoolVar(&noDeps, "no-deps", false, "run only the target, skipping its dependencies")
}

// runOutput is what the run command prints.
type runOutput struct {
	RunID  string         `json:"runId"`
	Target string         `json:"target"`
	Value  any            `json:"value"`
	Stack  map[string]any `json:"stack"`
}

func runTarget(cmd *cobra.Command, args []string) error {
	runner, err := loadRunner(cmd, args[0])
	if err != nil {
		return err
	}

	target := args[1]
	value, err := runner.RunStep(cmd.Context(), target, !noDeps)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(runOutput{
		RunID:  runner.RunID().String(),
		Target: target,
		Value:  value,
		Stack:  runner.StackValues(),
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding run output: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}
