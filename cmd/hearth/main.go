// Command hearth runs the tick-based agent world: init seeds a fresh
// database, run advances ticks, status prints the world row, and tui hosts
// the observer endpoint while ticking continuously.
package main

import (
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"hearth.world/internal/sim/engine"
)

// Exit codes for `run`.
const (
	exitOK       = 0
	exitStorage  = 2
	exitReasoner = 3
)

type rootFlags struct {
	DataDir   string
	ConfigDir string
}

func main() {
	logger := log.New(os.Stdout, "[hearth] ", log.LstdFlags)

	var flags rootFlags
	root := &cobra.Command{
		Use:           "hearth",
		Short:         "a small world for autonomous agents",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flags.DataDir, "data", "./data", "runtime data directory")
	root.PersistentFlags().StringVar(&flags.ConfigDir, "configs", "./configs", "config directory")

	root.AddCommand(newInitCmd(&flags, logger))
	root.AddCommand(newRunCmd(&flags, logger))
	root.AddCommand(newStatusCmd(&flags))
	tui := newTUICmd(&flags, logger)
	root.AddCommand(tui)

	// tui is the default when no subcommand is named.
	root.RunE = tui.RunE

	if err := root.Execute(); err != nil {
		logger.Printf("%v", err)
		os.Exit(exitCodeFor(err))
	}
}

func exitCodeFor(err error) int {
	if errors.Is(err, engine.ErrReasonerTerminal) {
		return exitReasoner
	}
	var se *storageError
	if errors.As(err, &se) {
		return exitStorage
	}
	return 1
}

// storageError marks failures from the storage layer for the exit-code
// contract.
type storageError struct{ err error }

func (e *storageError) Error() string { return e.err.Error() }
func (e *storageError) Unwrap() error { return e.err }

func asStorage(err error) error {
	if err == nil {
		return nil
	}
	return &storageError{err: err}
}

func fatalUsage(cmd *cobra.Command, format string, args ...any) error {
	_ = cmd.Usage()
	return fmt.Errorf(format, args...)
}
