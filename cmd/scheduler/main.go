// Copyright 2025 James Ross
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

	"github.com/danhajduk/synthiacore-scheduler/internal/adminapi"
	"github.com/danhajduk/synthiacore-scheduler/internal/config"
	"github.com/danhajduk/synthiacore-scheduler/internal/expiry"
	"github.com/danhajduk/synthiacore-scheduler/internal/history"
	"github.com/danhajduk/synthiacore-scheduler/internal/metricsprovider"
	"github.com/danhajduk/synthiacore-scheduler/internal/obs"
	"github.com/danhajduk/synthiacore-scheduler/internal/scheduler"
	"go.uber.org/zap"
)

var version = "dev"

func main() {
	configPath := "config/config.yaml"
	if v, ok := os.LookupEnv("SCHEDULER_CONFIG"); ok && v != "" {
		configPath = v
	}
	for i, arg := range os.Args {
		if arg == "-config" && i+1 < len(os.Args) {
			configPath = os.Args[i+1]
		}
		if arg == "-version" {
			fmt.Println(version)
			return
		}
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := obs.NewLogger(cfg.Observability.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	tp, err := obs.MaybeInitTracing(cfg)
	if err != nil {
		logger.Warn("tracing init failed", obs.Err(err))
	}
	if tp != nil {
		defer func() { _ = tp.Shutdown(context.Background()) }()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sink, err := history.NewSQLiteSink(cfg.History.DBPath, logger)
	if err != nil {
		logger.Fatal("failed to open history store", obs.Err(err))
	}
	defer sink.Close()

	audit := history.NewAuditTrail(cfg.History.AuditLogPath, cfg.History.AuditMaxSizeMB, cfg.History.AuditMaxBackups, cfg.History.AuditMaxAgeDays, logger)
	defer audit.Close()

	historySink := &history.Sink{SQLite: sink, Audit: audit}

	retention, err := history.NewRetentionScheduler(cfg.History.CleanupSchedule, cfg.History.RetentionDays, sink, logger)
	if err != nil {
		logger.Fatal("failed to start retention scheduler", obs.Err(err))
	}
	retention.Start()
	defer retention.Stop()

	hostCollector := metricsprovider.NewHostCollector(logger)
	go hostCollector.Run(ctx, 5*time.Second)
	apiCollector := metricsprovider.NewAPICollector()
	provider := &metricsprovider.Provider{Host: hostCollector, API: apiCollector}

	evaluator := scheduler.NewBusyRatingEvaluator(provider, cfg.BusyRating.FailClosedDefault)
	capacity := scheduler.CapacityModel{
		TotalUnits:   cfg.Capacity.TotalUnits,
		ReserveUnits: cfg.Capacity.ReserveUnits,
		HeadroomPct:  cfg.Capacity.HeadroomPct,
	}
	store := scheduler.NewStore()
	engine := scheduler.NewEngine(store, capacity, evaluator, historySink, scheduler.EngineConfig{
		LeaseTTL:                cfg.Lease.TTL,
		HeartbeatGrace:          cfg.Lease.HeartbeatGrace,
		MaxActiveLeases:         cfg.Lease.MaxActiveLeases,
		MaxActiveLeasesPerOwner: cfg.Lease.MaxActiveLeasesPerOwner,
	}, logger)

	ticker := expiry.New(engine, cfg.Expiry.TickInterval, logger)
	go ticker.Run(ctx)

	readyCheck := func(context.Context) error { return nil }
	metricsSrv := obs.StartHTTPServer(cfg, readyCheck)
	defer func() { _ = metricsSrv.Shutdown(context.Background()) }()

	adapter := adminapi.NewServer(cfg, engine, sink, apiCollector, logger)
	go func() {
		if err := adapter.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("external adapter stopped", obs.Err(err))
			cancel()
		}
	}()

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		logger.Info("signal received, shutting down", obs.String("signal", sig.String()))
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Adapter.ShutdownTimeout)
	defer shutdownCancel()
	if err := adapter.Shutdown(shutdownCtx); err != nil {
		logger.Warn("external adapter shutdown error", obs.Err(err))
	}
}
