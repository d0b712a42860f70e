package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
)

// Pinger is a backing store whose reachability decides the serving status.
type Pinger interface {
	Ping(ctx context.Context) error
}

// GRPCHandler serves grpc.health.v1.Health for load balancers. Status is
// SERVING while every dependency answers and NOT_SERVING otherwise.
type GRPCHandler struct {
	health *health.Server
	deps   map[string]Pinger
	log    *slog.Logger
}

func NewGRPCHandler(deps map[string]Pinger, logger *slog.Logger) *GRPCHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &GRPCHandler{health: health.NewServer(), deps: deps, log: logger}
}

func (h *GRPCHandler) Register(s *grpc.Server) {
	grpc_health_v1.RegisterHealthServer(s, h.health)
	h.health.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
}

// Probe pings every dependency once and publishes the result.
func (h *GRPCHandler) Probe(ctx context.Context) error {
	names := make([]string, 0, len(h.deps))
	for name := range h.deps {
		names = append(names, name)
	}
	sort.Strings(names)

	var errs []error
	for _, name := range names {
		if err := h.deps[name].Ping(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}

	err := errors.Join(errs...)
	status := grpc_health_v1.HealthCheckResponse_SERVING
	if err != nil {
		status = grpc_health_v1.HealthCheckResponse_NOT_SERVING
		h.log.Warn("health probe failed", "error", err)
	}
	h.health.SetServingStatus("", status)
	return err
}

// Run probes on every tick until ctx is done.
func (h *GRPCHandler) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			probeCtx, cancel := context.WithTimeout(ctx, interval)
			_ = h.Probe(probeCtx)
			cancel()
		}
	}
}

// Shutdown reports NOT_SERVING from now on, ahead of GracefulStop.
func (h *GRPCHandler) Shutdown() {
	h.health.Shutdown()
}
