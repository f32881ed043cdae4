package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"cardanoScope/internal/config"
	"cardanoScope/internal/metrics"
	"cardanoScope/internal/pipeline"
	"cardanoScope/internal/storage"
)

func runNormalize(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadNormalize(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if err := cfg.Validate(); err != nil {
		return err
	}
	selectors, err := cfg.Selectors()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg, err := openRegistry(ctx, cfg.Registry)
	if err != nil {
		return err
	}
	defer reg.Close()

	var lookupRegistry pipeline.Registry
	if reg != nil {
		lookupRegistry = reg
	}

	var state pipeline.StateStore
	switch {
	case !cfg.CheckpointEnabled:
	case cfg.CheckpointDB:
		if err := reg.pg.Migrate(ctx); err != nil {
			return err
		}
		state = &pipeline.DBStateStore{Store: reg.pg, Name: cfg.StateName}
	default:
		state = &pipeline.FileStateStore{Path: cfg.Checkpoint}
	}

	sink, err := openSink(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer sink.Close()

	var errSink pipeline.ErrorSink
	if cfg.Errors != "" {
		errWriter, err := newJSONLWriter(cfg.Errors, true)
		if err != nil {
			return err
		}
		defer errWriter.Close()
		errSink = errWriter
	}

	promRegistry := prometheus.NewRegistry()
	m := metrics.NewMetrics(promRegistry)
	if cfg.MetricsAddr != "" {
		shutdown := serveMetrics(cfg.MetricsAddr, promRegistry, logger)
		defer shutdown()
	}

	runner := pipeline.NewRunner(pipeline.RunConfig{
		BatchSize:    cfg.BatchSize,
		Workers:      cfg.Workers,
		LookupChunk:  cfg.LookupChunk,
		Selectors:    selectors,
		MaxRetries:   cfg.MaxRetries,
		RetryBackoff: cfg.RetryBackoff,
	}, lookupRegistry, sink, state, errSink, m, logger)

	logger.Info("normalize start",
		zap.String("in", cfg.In),
		zap.String("sink", cfg.Sink),
		zap.String("registry", cfg.Registry.Backend),
		zap.String("registry_dsn", redactDSN(cfg.Registry.DSN)),
		zap.Int("assets", len(selectors)),
		zap.Int("batch_size", cfg.BatchSize),
		zap.Int("workers", cfg.Workers),
		zap.Bool("checkpoint_enabled", cfg.CheckpointEnabled),
	)

	_, err = runner.Run(ctx, cfg.In)
	return err
}

func openSink(ctx context.Context, cfg config.NormalizeConfig, logger *zap.Logger) (storage.Sink, error) {
	switch cfg.Sink {
	case config.SinkNats:
		return storage.NewNatsSink(ctx, cfg.NatsURL, logger)
	default:
		return storage.NewJsonlSink(cfg.Out), nil
	}
}

func serveMetrics(addr string, gatherer prometheus.Gatherer, logger *zap.Logger) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(gatherer))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", zap.Error(err))
		}
	}()
	logger.Info("metrics server listening", zap.String("addr", addr))

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logger.Warn("metrics server shutdown", zap.Error(fmt.Errorf("shutdown: %w", err)))
		}
	}
}
