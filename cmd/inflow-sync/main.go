package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/spf13/cobra"

	"github.com/dmehra2102/inflow-order-sync/internal/config"
	inflowhttp "github.com/dmehra2102/inflow-order-sync/internal/inflow/infrastructure/http"
	"github.com/dmehra2102/inflow-order-sync/pkg/logging"
	"github.com/dmehra2102/inflow-order-sync/pkg/scheduler"
	"github.com/dmehra2102/inflow-order-sync/pkg/shutdown"
	"github.com/dmehra2102/inflow-order-sync/pkg/tracing"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "inflow-sync",
		Short:         "Pull started sales orders from inFlow into the local order store",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.AddCommand(newServeCommand())
	cmd.AddCommand(newSyncCommand())
	return cmd
}

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, the periodic sync job and the outbox relay",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context())
		},
	}
}

func newSyncCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Run one sync and print the result as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			return syncOnce(cmd.Context(), cmd)
		},
	}
}

func serve(parent context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		return err
	}
	log := logging.New(cfg.LogLevel)

	ctx, cancel := shutdown.WithSignals(contextOrBackground(parent))
	defer cancel()

	tp, err := tracing.Init(ctx, "inflow-sync", cfg.OTLPEndpoint, log)
	if err != nil {
		log.Error("otel init failed", "err", err)
		return err
	}
	defer func() { _ = tp.Shutdown(context.Background()) }()

	a, err := newApp(ctx, log, cfg)
	if err != nil {
		log.Error("startup failed", "err", err)
		return err
	}
	defer a.Close()

	sched := scheduler.New(log)
	if cfg.Sync.Enabled {
		if err := sched.Add(scheduler.Job{
			ID:       syncJobID,
			Name:     syncJobName,
			Interval: cfg.Sync.Interval,
			Run:      a.service.RunScheduled,
		}); err != nil {
			return err
		}
		log.Info("inflow sync scheduled", "job_id", syncJobID, "interval", cfg.Sync.Interval.String())
	} else {
		log.Info("inflow sync scheduling disabled")
	}
	if err := sched.Start(ctx); err != nil {
		return err
	}
	defer sched.Stop()

	if a.relay != nil {
		go func() {
			if err := a.relay.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("relay stopped with error", "err", err)
			}
		}()
	}

	handler := inflowhttp.NewHandler(log, a.service)
	r := chi.NewRouter()
	r.Mount("/", handler.Routes())
	srv := &http.Server{
		Addr:        cfg.HTTPAddr,
		Handler:     r,
		ReadTimeout: 5 * time.Second,
		// A manual sync holds the request open for the whole run.
		WriteTimeout: cfg.Sync.RunTimeout + 10*time.Second,
	}

	go func() {
		log.Info("http listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("http server error", "err", err)
			cancel()
		}
	}()

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	_ = srv.Shutdown(shutdownCtx)
	log.Info("inflow-sync shutdown complete")
	return nil
}

func syncOnce(parent context.Context, cmd *cobra.Command) error {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		return err
	}
	log := logging.NewWithWriter(os.Stderr, cfg.LogLevel)

	ctx, cancel := shutdown.WithSignals(contextOrBackground(parent))
	defer cancel()

	a, err := newApp(ctx, log, cfg)
	if err != nil {
		log.Error("startup failed", "err", err)
		return err
	}
	defer a.Close()

	res, err := a.service.Sync(ctx)
	if err != nil {
		log.Error("Inflow sync failed", "err", err)
		return err
	}

	// Drain what this run wrote to the outbox before exiting.
	if a.relay != nil {
		if _, err := a.relay.RelayOnce(ctx); err != nil {
			log.Warn("outbox relay failed", "err", err)
		}
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}

func contextOrBackground(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}
