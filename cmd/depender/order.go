package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var orderCmd = &cobra.Command{
	Use:   "order <plan> <target>",
	Short: "Print the execution order of a target",
	Args:  cobra.ExactArgs(2),
	RunE:  runOrder,
}

func runOrder(cmd *cobra.Command, args []string) error {
	runner, err := loadRunner(cmd, args[0])
	if err != nil {
		return err
	}

	order, err := runner.ResolveOrder(args[1])
	if err != nil {
		return err
	}

	for _, id := range order {
		fmt.Fprintln(cmd.OutOrStdout(), id)
	}
	return nil
}
