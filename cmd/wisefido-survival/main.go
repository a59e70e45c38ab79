package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"wisefido-survival/internal/common/logger"
	"wisefido-survival/internal/config"
	"wisefido-survival/internal/httpapi"
	"wisefido-survival/internal/metrics"
	"wisefido-survival/internal/service"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	zlog, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, "wisefido-survival")
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer zlog.Sync()

	zlog.Info("Starting wisefido-survival service",
		zap.Strings("families", cfg.Survival.FamilyIDs),
		zap.Duration("poll_interval", cfg.Survival.PollInterval),
		zap.String("timezone", cfg.Survival.Timezone),
		zap.Bool("db_enabled", cfg.DBEnabled),
		zap.Bool("mqtt_enabled", cfg.MQTTEnabled),
	)
	if len(cfg.Survival.FamilyIDs) == 0 {
		zlog.Warn("FAMILY_IDS is empty, no family will be monitored")
	}

	metrics.Init()

	survival, err := service.NewSurvivalService(cfg, zlog)
	if err != nil {
		zlog.Fatal("Failed to create survival service", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := survival.Start(ctx); err != nil {
		zlog.Fatal("Failed to start survival service", zap.Error(err))
	}

	handler := httpapi.NewSurvivalHandler(survival, zlog)
	router := httpapi.NewRouter(zlog)
	router.RegisterSurvivalRoutes(handler)
	router.RegisterHealthRoutes(handler, promhttp.Handler())

	srv := service.NewServer(cfg.HTTP.Addr, router, zlog)
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		zlog.Info("Received signal, shutting down", zap.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			zlog.Error("HTTP server failed", zap.Error(err))
		}
	}

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Stop(shutdownCtx); err != nil {
		zlog.Error("Error stopping HTTP server", zap.Error(err))
	}
	if err := survival.Stop(shutdownCtx); err != nil {
		zlog.Error("Error during shutdown", zap.Error(err))
	}

	zlog.Info("Service stopped")
}
