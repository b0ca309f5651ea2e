package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cacao-server/cache"
	"cacao-server/confs"
	"cacao-server/db"
	"cacao-server/logging"
	"cacao-server/server"
	"cacao-server/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const shutdownTimeout = 15 * time.Second

func main() {
	// load config
	cfg, err := confs.LoadConfig()
	if err != nil {
		log.Fatalf("Error loading config: %v", err)
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format, "cacao-server")
	if err != nil {
		log.Fatalf("Error building logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if cfg.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg *confs.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// connect to database Postgres
	database, err := db.Connect(cfg.Database, logger)
	if err != nil {
		return err
	}

	snapshotCache, closeCache, err := newSnapshotCache(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeCache()

	srv, err := server.NewServer(cfg, database, snapshotCache, logger)
	if err != nil {
		return err
	}
	if err := srv.Bootstrap(ctx); err != nil {
		return err
	}

	if cfg.MQTT.Broker != "" {
		ingestor := services.NewMQTTIngestor(srv.Ingestion(), cfg.RequestTimeout, logger)
		if err := ingestor.Start(cfg.MQTT); err != nil {
			return err
		}
		defer ingestor.Stop()
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// newSnapshotCache uses Redis when REDIS_ADDR is set and an in-process map
// otherwise.
func newSnapshotCache(ctx context.Context, cfg *confs.Config, logger *zap.Logger) (cache.SnapshotCache, func(), error) {
	if cfg.Redis.Addr == "" {
		logger.Info("using in-memory snapshot cache", zap.Duration("ttl", cfg.SnapshotCacheTTL))
		return cache.NewMemoryCache(cfg.SnapshotCacheTTL), func() {}, nil
	}
	client, err := cache.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		return nil, nil, err
	}
	logger.Info("using redis snapshot cache", zap.String("addr", cfg.Redis.Addr), zap.Duration("ttl", cfg.SnapshotCacheTTL))
	return cache.NewRedisCache(client, cfg.SnapshotCacheTTL), func() { _ = client.Close() }, nil
}
