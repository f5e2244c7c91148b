package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mark3labs/dispatchr/internal/config"
	"github.com/mark3labs/dispatchr/internal/logger"
	"github.com/mark3labs/dispatchr/internal/protocol"
	"github.com/mark3labs/dispatchr/internal/render"
)

var eventsFlags struct {
	file string
}

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Render an agent-control event stream",
	Long: `Read NDJSON agent-control protocol events from a file or stdin
and render them: thousands of heartbeat updates collapse into one
started line and one result line per tool call.`,
	RunE: runEvents,
}

func init() {
	eventsCmd.Flags().StringVarP(&eventsFlags.file, "file", "f", "", "Event stream file (default: stdin)")
}

func runEvents(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := logger.Configure(cfg.LogLevel, cfg.LogFile); err != nil {
		return err
	}

	var in io.Reader = os.Stdin
	if eventsFlags.file != "" {
		f, err := os.Open(eventsFlags.file)
		if err != nil {
			return fmt.Errorf("opening event stream: %w", err)
		}
		defer f.Close()
		in = f
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// The stream is consumed on one goroutine, so the console can be
	// driven directly; no bus needed.
	console := render.NewConsole(os.Stdout, os.Environ())
	normalizer := protocol.NewNormalizer(console)
	if err := normalizer.Consume(ctx, in); err != nil {
		return err
	}
	return console.Flush()
}
