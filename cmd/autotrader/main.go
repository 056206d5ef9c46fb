package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"autotrader/internal/engine"
	"autotrader/internal/logger"
	"autotrader/internal/metrics"
	"autotrader/internal/scheduler"
)

var version = "dev"

const shutdownGrace = 30 * time.Second

func main() {
	if err := initializeSystem(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "autotrader",
		Short:         "Autonomous trading decision engine",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().String("config", "", "Configuration file path (default $AUTOTRADER_CONFIG or config.yaml)")

	root.AddCommand(newRunCmd())
	root.AddCommand(newServeCmd())
	root.AddCommand(newVersionCmd())
	return root
}

func newRunCmd() *cobra.Command {
	var symbol string
	cmd := &cobra.Command{
		Use:       "run <operation>",
		Short:     "Run one operation and print its result as JSON",
		Args:      cobra.ExactArgs(1),
		ValidArgs: operationNames(),
		RunE: func(cmd *cobra.Command, args []string) error {
			op, err := engine.ParseOperation(args[0])
			if err != nil {
				return err
			}
			cfgFlag, _ := cmd.Flags().GetString("config")

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, cfgFlag)
			if err != nil {
				return err
			}
			defer func() {
				cctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
				defer cancel()
				a.close(cctx)
			}()

			res, err := a.runner.Dispatch(ctx, op, engine.Params{Symbol: symbol})
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if encErr := enc.Encode(res); encErr != nil {
				return encErr
			}
			return err
		},
	}
	cmd.Flags().StringVar(&symbol, "symbol", "", "Symbol for analyze_symbol")
	return cmd
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run scheduled operations and serve /metrics until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgFlag, _ := cmd.Flags().GetString("config")

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, cfgFlag)
			if err != nil {
				return err
			}

			sched := scheduler.New(ctx, a.cfg, a.runner)
			if err := sched.Register(scheduler.Jobs(a.cfg)); err != nil {
				a.close(context.Background())
				return err
			}

			mux := http.NewServeMux()
			mux.Handle("/metrics", metrics.Handler())
			srv := &http.Server{Addr: a.cfg.Metrics.Addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.ErrorWithErr(ctx, "Metrics server failed", err, "addr", srv.Addr)
				}
			}()

			sched.Start()
			logger.Info(ctx, "Autotrader started", "mode", a.cfg.Mode, "metrics_addr", srv.Addr, "version", version)
			<-ctx.Done()
			logger.Info(context.Background(), "Shutting down...")

			sctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
			defer cancel()
			sched.Stop(sctx)
			if err := srv.Shutdown(sctx); err != nil {
				logger.Warn(sctx, "Metrics server shutdown failed", "error", err)
			}
			a.close(sctx)
			return nil
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "autotrader %s\n", version)
		},
	}
}

func operationNames() []string {
	names := make([]string, len(engine.Operations))
	for i, op := range engine.Operations {
		names[i] = string(op)
	}
	return names
}
