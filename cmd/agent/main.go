package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/luanmachadops/smartclass-telemetry/internal/analytics"
	"github.com/luanmachadops/smartclass-telemetry/internal/config"
	"github.com/luanmachadops/smartclass-telemetry/internal/domain"
	"github.com/luanmachadops/smartclass-telemetry/internal/handler"
	"github.com/luanmachadops/smartclass-telemetry/internal/health"
	"github.com/luanmachadops/smartclass-telemetry/internal/health/probe"
	"github.com/luanmachadops/smartclass-telemetry/internal/logger"
	"github.com/luanmachadops/smartclass-telemetry/internal/session"
	"github.com/luanmachadops/smartclass-telemetry/internal/sink"
	chsink "github.com/luanmachadops/smartclass-telemetry/internal/sink/clickhouse"
	httpsink "github.com/luanmachadops/smartclass-telemetry/internal/sink/http"
	sqssink "github.com/luanmachadops/smartclass-telemetry/internal/sink/sqs"
	"github.com/luanmachadops/smartclass-telemetry/internal/store/sqlite"
)

func main() {
	// Local development convenience; missing .env is fine
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	log, err := logger.New(cfg.Service.Environment, "smartclass-telemetry")
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer func(log *zap.Logger) {
		_ = log.Sync()
	}(log)

	log.Info("Starting telemetry agent",
		zap.String("environment", cfg.Service.Environment),
		zap.String("port", cfg.Service.APIPort),
		zap.String("sink", cfg.Sink.Kind))

	ctx := context.Background()

	// Local durable store: offline buffer + session snapshot
	st, err := sqlite.Open(cfg.Store.Path, cfg.Pipeline.OfflineMaxEvents, log)
	if err != nil {
		log.Fatal("Failed to open local store", zap.Error(err))
	}
	defer func() {
		if err := st.Close(); err != nil {
			log.Error("Failed to close local store", zap.Error(err))
		}
	}()

	snk, err := buildSink(ctx, cfg, log)
	if err != nil {
		log.Fatal("Failed to create sink", zap.Error(err))
	}

	// Session tracker: opens the session now, recovers any crashed one
	tracker := session.NewTracker(cfg.Session, cfg.Service.AppVersion, snk, st, log)
	tracker.Start(ctx)

	collector := analytics.NewCollector(analytics.Config{
		Enabled:         cfg.Pipeline.Enabled,
		SampleRate:      cfg.Pipeline.SampleRate,
		BatchSize:       cfg.Pipeline.BatchSize,
		FlushInterval:   time.Duration(cfg.Pipeline.FlushIntervalSec) * time.Second,
		RealtimeMode:    cfg.Pipeline.RealtimeMode,
		DefaultCurrency: cfg.Pipeline.DefaultCurrency,
		DetachedTimeout: time.Duration(cfg.Sink.DetachedMaxSec) * time.Second,
	}, tracker, snk, st, log)
	collector.Start(ctx)

	monitor := health.NewMonitor(health.MonitorConfig{
		Interval:           time.Duration(cfg.Health.IntervalSec) * time.Second,
		ProbeTimeout:       time.Duration(cfg.Health.ProbeTimeoutSec) * time.Second,
		DegradedThreshold:  time.Duration(cfg.Health.DegradedThresholdMs) * time.Millisecond,
		AggregateThreshold: time.Duration(cfg.Health.AggregateThresholdMs) * time.Millisecond,
	}, buildProbes(ctx, cfg.Health, log), log)

	// Status transitions become system events in the pipeline itself
	var lastStatus domain.OverallStatus
	monitor.AddStatusListener(func(status domain.HealthStatus) {
		if status.Status == lastStatus {
			return
		}
		previous := lastStatus
		lastStatus = status.Status
		collector.TrackEvent("health_status_changed", domain.CategorySystem,
			map[string]interface{}{
				"from": string(previous),
				"to":   string(status.Status),
			}, nil)
	})
	monitor.Start(ctx)

	h := handler.NewHandler(collector, monitor, tracker, log)

	server := &http.Server{
		Addr:    ":" + cfg.Service.APIPort,
		Handler: h,
	}

	go func() {
		log.Info("Agent API starting", zap.String("address", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start agent API", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Info("Shutting down telemetry agent")

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("API shutdown error", zap.Error(err))
	}

	monitor.Stop()

	// Final delivery order matters: detached event flush first, then the
	// finished session record
	collector.Destroy()
	tracker.End(shutdownCtx)
}

func buildSink(ctx context.Context, cfg *config.Config, log *zap.Logger) (sink.Sink, error) {
	switch cfg.Sink.Kind {
	case "http":
		return httpsink.NewSink(cfg.Sink, log)

	case "sqs":
		return sqssink.NewSink(ctx, cfg.SQS, log)

	case "clickhouse":
		client, err := chsink.NewClient(ctx, &cfg.ClickHouse, log)
		if err != nil {
			return nil, err
		}
		s := chsink.NewSink(client, log)
		if err := s.InitSchema(ctx); err != nil {
			return nil, err
		}
		return s, nil

	default:
		return nil, fmt.Errorf("unknown sink kind: %s", cfg.Sink.Kind)
	}
}

func buildProbes(ctx context.Context, cfg config.Health, log *zap.Logger) health.Probes {
	probes := health.Probes{
		Database: probe.Unconfigured("database"),
		Auth:     probe.Unconfigured("auth"),
		Storage:  probe.Unconfigured("storage"),
		Realtime: probe.Unconfigured("realtime"),
	}

	if cfg.DatabaseURL != "" {
		p, err := probe.NewPostgres(cfg.DatabaseURL)
		if err != nil {
			log.Warn("Failed to create database probe", zap.Error(err))
		} else {
			probes.Database = p
		}
	}

	if cfg.AuthURL != "" {
		probes.Auth = probe.NewAuth(cfg.AuthURL)
	}

	if cfg.StorageBucket != "" {
		p, err := probe.NewStorage(ctx, cfg.StorageBucket, cfg.StorageRegion)
		if err != nil {
			log.Warn("Failed to create storage probe", zap.Error(err))
		} else {
			probes.Storage = p
		}
	}

	if cfg.RedisURL != "" {
		p, err := probe.NewRealtime(cfg.RedisURL)
		if err != nil {
			log.Warn("Failed to create realtime probe", zap.Error(err))
		} else {
			probes.Realtime = p
		}
	}

	return probes
}
