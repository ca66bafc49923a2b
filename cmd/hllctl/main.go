// Package main provides the entry point for the hllctl CLI tool.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/cardcount/hllsketch/cmd/hllctl/commands"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "hllctl",
		Short: "Build, estimate, merge, and inspect HyperLogLog sketches",
		Long: `hllctl drives the HyperLogLog sketch engine from the command line.

Commands:
  update    Build a sketch from newline-delimited input
  estimate  Print the cardinality estimate and bounds for a sketch
  merge     Union serialized sketches into one output sketch
  inspect   Print the decoded preamble and mode of a sketch`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(commands.NewUpdateCommand())
	rootCmd.AddCommand(commands.NewEstimateCommand())
	rootCmd.AddCommand(commands.NewMergeCommand())
	rootCmd.AddCommand(commands.NewInspectCommand())

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
