package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"beacon-network-backend/config"
	"beacon-network-backend/internal/api"
	"beacon-network-backend/internal/db"
	"beacon-network-backend/internal/device"
	"beacon-network-backend/internal/encryption"
	"beacon-network-backend/internal/liveness"
	"beacon-network-backend/internal/logger"
	"beacon-network-backend/internal/marketplace"
	"beacon-network-backend/internal/metrics"
	"beacon-network-backend/internal/notification"
	"beacon-network-backend/internal/relay"
	"beacon-network-backend/internal/store"
)

func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config/config.yaml" // Default path for local development
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("failed to load configuration from %s: %v", configPath, err)
	}

	zlog, err := logger.New(cfg.Logging)
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}
	defer func() { _ = zlog.Sync() }()
	zlog.Info("configuration loaded", zap.String("path", configPath))

	if err := run(cfg, zlog); err != nil {
		zlog.Fatal("beacon network backend stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, zlog *zap.Logger) error {
	gormDB, err := db.Init(&cfg.Database, zlog)
	if err != nil {
		return fmt.Errorf("initialize database: %w", err)
	}
	appStore := store.NewGormStore(gormDB)

	key, ephemeral, err := encryption.KeyFromConfig(cfg.Encryption)
	if err != nil {
		return err
	}
	if ephemeral {
		zlog.Warn("no encryption key configured; using an ephemeral key, encrypted messages will not be readable after restart")
	}
	cipher, err := encryption.NewAESService(key)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	registry := device.NewRegistry(appStore, zlog.Named("devices"))
	msgRelay := relay.New(appStore, registry, cipher, zlog.Named("relay"))

	var (
		notifier       relay.Notifier
		webpushOptions *webpush.Options
		pool           *notification.WorkerPool
	)
	if cfg.Push.Enabled() {
		webpushOptions = &webpush.Options{
			VAPIDPublicKey:  cfg.Push.PublicKey,
			VAPIDPrivateKey: cfg.Push.PrivateKey,
			Subscriber:      cfg.Push.Subject,
			TTL:             cfg.Push.TTL,
		}
		pool = notification.NewWorkerPool(cfg.WorkerPool.Size, appStore, webpushOptions, m, zlog.Named("push"))
		pool.Start(ctx)
		notifier = pool
		zlog.Info("push notifications enabled", zap.Int("workers", cfg.WorkerPool.Size))
	} else {
		zlog.Info("VAPID keys not configured; push notifications disabled")
	}

	responses := api.NewResponseCache(cfg.Server)
	sweeper := liveness.NewService(cfg.Liveness, appStore, m, zlog.Named("liveness")).
		OnChange(responses.Flush)
	go sweeper.Run(ctx)

	handler := api.NewHandler(api.Dependencies{
		Devices:     registry,
		Relay:       msgRelay,
		Broadcasts:  relay.NewBroadcastRouter(msgRelay, notifier, zlog.Named("broadcast")),
		Marketplace: marketplace.NewEngine(appStore, registry, zlog.Named("marketplace")),
		Store:       appStore,
		WebPush:     webpushOptions,
		Metrics:     m,
		Log:         zlog.Named("http"),
	})

	gin.SetMode(gin.ReleaseMode)
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           api.NewRouter(cfg.Server, handler, reg, responses),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		zlog.Info("HTTP server starting", zap.Int("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-stop:
		zlog.Info("shutdown signal received", zap.String("signal", sig.String()))
	case err := <-serverErr:
		return fmt.Errorf("HTTP server: %w", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("HTTP server shutdown: %w", err)
	}

	cancel()
	if pool != nil {
		pool.Wait()
	}
	if sqlDB, err := gormDB.DB(); err == nil {
		_ = sqlDB.Close()
	}

	zlog.Info("server gracefully stopped")
	return nil
}
