package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"hearth/internal/config"
	"hearth/internal/db"
	"hearth/internal/logging"
	"hearth/internal/metrics"
	"hearth/internal/realtime"
	"hearth/internal/router"
	"hearth/internal/services"
	"hearth/internal/storage"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, finding env vars from system")
	}

	if err := run(); err != nil {
		slog.Error("Server exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := config.Load()

	logger, err := logging.Init(cfg.LogLevel)
	if err != nil {
		logger, _ = logging.Init("error")
		logger.Error("Invalid LOG_LEVEL, falling back to error", "error", err)
	}
	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	conn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	if err := db.Seed(conn); err != nil {
		return err
	}

	broker, err := newBroker(cfg, logger)
	if err != nil {
		return err
	}

	bucket, err := storage.NewFileBucket(cfg.StorageDir, cfg.StoragePublicURL)
	if err != nil {
		return err
	}

	svc := services.New(conn, cfg, broker, bucket, logger)
	defer svc.Close()
	svc.Start(ctx)

	collector := &metrics.Collector{DB: conn, Interval: time.Minute, Logger: logger}
	go func() {
		if err := collector.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Warn("Metrics collector stopped", "error", err)
		}
	}()

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router.New(cfg, svc, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Hearth server starting", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// newBroker 配置了 NATS_URL 时多实例共享事件，否则进程内广播
func newBroker(cfg *config.Config, logger *slog.Logger) (realtime.Broker, error) {
	if cfg.NATSURL == "" {
		return realtime.NewMemoryBroker(logger), nil
	}
	broker, err := realtime.NewNATSBroker(cfg.NATSURL, logger)
	if err != nil {
		return nil, err
	}
	return broker, nil
}
