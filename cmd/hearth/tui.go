package main

import (
	"errors"
	"log"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"hearth.world/internal/sim/engine"
	observertransport "hearth.world/internal/transport/observer"
)

func newTUICmd(flags *rootFlags, logger *log.Logger) *cobra.Command {
	var (
		listen   string
		interval time.Duration
	)
	cmd := &cobra.Command{
		Use:   "tui",
		Short: "tick continuously and host the observer endpoint",
		Long: "Runs the world at a fixed cadence and serves the observer websocket\n" +
			"protocol for terminal viewers. The viewer itself is a separate program;\n" +
			"this command is what it attaches to.",
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, cleanup, err := openEngine(flags, logger)
			if err != nil {
				return err
			}
			defer cleanup()

			srv := observertransport.NewServer(eng, logger)
			mux := http.NewServeMux()
			mux.Handle("/v1/observer", srv.Handler())

			ln, err := net.Listen("tcp", listen)
			if err != nil {
				return err
			}
			httpSrv := &http.Server{Handler: mux}
			go func() {
				if err := httpSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Printf("observer server: %v", err)
				}
			}()
			defer httpSrv.Close()
			logger.Printf("observer endpoint on ws://%s/v1/observer", ln.Addr())

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					logger.Printf("stopping")
					return nil
				case <-ticker.C:
					if err := eng.TickOnce(ctx); err != nil {
						if errors.Is(err, engine.ErrReasonerTerminal) {
							return err
						}
						return asStorage(err)
					}
					srv.BroadcastTick()
				}
			}
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "127.0.0.1:8171", "observer listen address")
	cmd.Flags().DurationVar(&interval, "interval", 5*time.Second, "time between ticks")
	return cmd
}
