package main

import (
	"context"
	"errors"
	"log"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"hearth.world/internal/sim/engine"
)

func newRunCmd(flags *rootFlags, logger *log.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "run <ticks>",
		Short: "advance the world by n ticks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := strconv.Atoi(args[0])
			if err != nil || n < 1 {
				return fatalUsage(cmd, "run: tick count must be a positive integer, got %q", args[0])
			}
			eng, cleanup, err := openEngine(flags, logger)
			if err != nil {
				return err
			}
			defer cleanup()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runTicks(ctx, eng, n, logger)
		},
	}
}

func runTicks(ctx context.Context, eng *engine.Engine, n int, logger *log.Logger) error {
	for i := 0; i < n; i++ {
		if ctx.Err() != nil {
			logger.Printf("interrupted after %d tick(s)", i)
			return nil
		}
		if err := eng.TickOnce(ctx); err != nil {
			if errors.Is(err, engine.ErrReasonerTerminal) {
				return err
			}
			// Anything else fatal at tick level comes from storage: the
			// tick was rolled back and the last consistent state stands.
			return asStorage(err)
		}
	}
	ws, err := eng.Store().WorldState()
	if err != nil {
		return asStorage(err)
	}
	logger.Printf("advanced to tick %d (%s, %s)", ws.Tick, ws.TimeOfDay(), ws.Weather)
	return nil
}
