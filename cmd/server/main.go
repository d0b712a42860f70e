package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"google.golang.org/grpc"

	"github.com/rl1809/incoming-qc/internal/adapter/handler"
	"github.com/rl1809/incoming-qc/internal/adapter/storage"
	"github.com/rl1809/incoming-qc/internal/config"
	"github.com/rl1809/incoming-qc/internal/core/service"
)

const healthProbeInterval = 15 * time.Second

func main() {
	if err := run(); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger, err := config.NewLogger(os.Stdout, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize database
	repo, err := openRepository(ctx, cfg)
	if err != nil {
		return err
	}
	defer repo.Close()
	if err := repo.Migrate(ctx); err != nil {
		return err
	}
	logger.Info("connected to database", "driver", cfg.DBDriver)

	deps := map[string]handler.Pinger{"database": repo}
	opts := []service.Option{service.WithLogger(logger)}

	// Initialize Redis, optional
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			PoolSize: 100,
		})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			return err
		}
		cache := storage.NewRedisAdapter(rdb)
		deps["cache"] = cache
		opts = append(opts, service.WithCache(cache))
		logger.Info("connected to redis", "addr", cfg.RedisAddr)
	} else {
		logger.Warn("QC_REDIS_ADDR not set, request ids will not be deduplicated")
	}

	// Initialize services
	svc := handler.Services{
		Catalog:     service.NewCatalogService(repo, opts...),
		Shipments:   service.NewShipmentService(repo, repo, opts...),
		Inspections: service.NewInspectionService(repo, opts...),
		Quarantine:  service.NewQuarantineService(repo, repo, opts...),
		Gages:       service.NewGageService(repo, opts...),
	}

	// Initialize gRPC server
	grpcServer := grpc.NewServer()
	grpcHandler := handler.NewGRPCHandler(deps, logger)
	grpcHandler.Register(grpcServer)
	go grpcHandler.Run(ctx, healthProbeInterval)

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		return err
	}
	go func() {
		logger.Info("gRPC server listening", "addr", cfg.GRPCAddr)
		if err := grpcServer.Serve(lis); err != nil {
			logger.Error("gRPC server error", "error", err)
		}
	}()

	// Initialize HTTP server
	mux := http.NewServeMux()
	handler.NewHTTPHandler(svc, logger).Register(mux)

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("HTTP server listening", "addr", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server error", "error", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	grpcHandler.Shutdown()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP shutdown", "error", err)
	}
	logger.Info("HTTP server stopped")

	grpcServer.GracefulStop()
	logger.Info("gRPC server stopped")

	cancel()
	return nil
}

func openRepository(ctx context.Context, cfg config.Config) (*storage.SQLAdapter, error) {
	if cfg.DBDriver == config.DriverSQLite {
		return storage.OpenSQLite(ctx, cfg.SQLitePath)
	}
	return storage.OpenMySQL(ctx, cfg.MySQLConfig())
}
