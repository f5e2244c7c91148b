package main

import (
	"context"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"

	"github.com/mark3labs/dispatchr/internal/logger"
)

// Version set via ldflags during build
var version = "dev"

func main() {
	// Ensure logger is closed on exit
	defer func() { _ = logger.Close() }()

	if err := fang.Execute(context.Background(), rootCmd, fang.WithVersion(version)); err != nil {
		logger.Error("Command execution failed: %v", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "dispatchr",
	Short: "Tool-call dispatcher and agent-protocol normalizer",
	Long: `dispatchr drives an LLM agent through an iterative tool-call loop:
parallel execution with repeat-loop detection, background shell
sessions for long-running commands, and a journaled plan exposed
over MCP.

It can also normalize an agent-control protocol event stream (NDJSON)
into the same console rendering, so either front-end looks identical
to the reader.`,
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(eventsCmd)
	rootCmd.AddCommand(initCmd)
}
