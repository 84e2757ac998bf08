// Package grpcapi exposes service health over grpc.health.v1.
package grpcapi

import (
	"context"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"orgguard.dev/internal/obs"
)

// ServiceName is the health service key reported alongside the overall ("") status.
const ServiceName = "orgguard.v1.Access"

// ReadinessChecker reports whether dependencies (database) are reachable.
type ReadinessChecker interface {
	Check(ctx context.Context) error
}

// Health mirrors the readiness probe into a grpc health server.
type Health struct {
	probe  ReadinessChecker
	server *health.Server
	log    *zap.Logger
}

func NewHealth(probe ReadinessChecker, logger *zap.Logger) *Health {
	h := &Health{probe: probe, server: health.NewServer(), log: obs.OrNop(logger)}
	h.set(healthpb.HealthCheckResponse_NOT_SERVING)
	return h
}

// Register attaches the health service to srv.
func (h *Health) Register(srv *grpc.Server) {
	healthpb.RegisterHealthServer(srv, h.server)
}

// Refresh runs the probe once and publishes the result.
func (h *Health) Refresh(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := h.probe.Check(ctx); err != nil {
		h.log.Warn("readiness probe failed", zap.Error(err))
		h.set(healthpb.HealthCheckResponse_NOT_SERVING)
		return false
	}
	h.set(healthpb.HealthCheckResponse_SERVING)
	return true
}

// Run refreshes every interval until ctx is done, then marks the service as shutting down.
func (h *Health) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	h.Refresh(ctx)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			h.server.Shutdown()
			return
		case <-ticker.C:
			h.Refresh(ctx)
		}
	}
}

func (h *Health) set(status healthpb.HealthCheckResponse_ServingStatus) {
	h.server.SetServingStatus("", status)
	h.server.SetServingStatus(ServiceName, status)
}

// NewServer builds a grpc server with health registered.
func NewServer(h *Health, opts ...grpc.ServerOption) *grpc.Server {
	srv := grpc.NewServer(opts...)
	h.Register(srv)
	return srv
}
