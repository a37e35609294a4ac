// Package grpcx exposes the standard gRPC health service for the relay process.
package grpcx

import (
	"context"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the health service name reported next to the overall ("") status.
const ServiceName = "watchparty.Relay"

// Pinger reports storage health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Health mirrors storage reachability into the gRPC health service.
type Health struct {
	srv     *health.Server
	storage Pinger
	every   time.Duration
}

func NewHealth(storage Pinger, every time.Duration) *Health {
	if every <= 0 {
		every = 10 * time.Second
	}
	return &Health{srv: health.NewServer(), storage: storage, every: every}
}

// NewServer builds a grpc.Server with the logging/recovery interceptors and the health service.
func NewServer(h *Health, opts ...grpc.ServerOption) *grpc.Server {
	opts = append(opts,
		grpc.ChainUnaryInterceptor(UnaryServerInterceptor()),
		grpc.ChainStreamInterceptor(StreamServerInterceptor()),
	)
	s := grpc.NewServer(opts...)
	healthpb.RegisterHealthServer(s, h.srv)
	return s
}

// Check pings storage once and publishes the result.
func (h *Health) Check(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	st := healthpb.HealthCheckResponse_SERVING
	if h.storage != nil {
		pctx, cancel := context.WithTimeout(ctx, h.every)
		err := h.storage.Ping(pctx)
		cancel()
		if err != nil {
			slog.Warn("grpc health: storage ping failed", "err", err)
			st = healthpb.HealthCheckResponse_NOT_SERVING
		}
	}
	h.srv.SetServingStatus("", st)
	h.srv.SetServingStatus(ServiceName, st)
	return st
}

// Run re-checks storage until ctx is done, then marks everything NOT_SERVING.
func (h *Health) Run(ctx context.Context) {
	h.Check(ctx)
	t := time.NewTicker(h.every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			h.srv.Shutdown()
			return
		case <-t.C:
			h.Check(ctx)
		}
	}
}
