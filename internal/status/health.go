package status

import (
	"context"
	"fmt"
	"net"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// HealthService is the gRPC health service name that tracks whether a
// configuration image is published.
const HealthService = "ecconf"

// HealthServer exposes the standard gRPC health protocol so supervisors
// can wait for the image before starting the EtherCAT master.
type HealthServer struct {
	grpcServer *grpc.Server
	health     *health.Server
	addr       string
	lis        net.Listener
	logger     *zap.Logger
}

func NewHealthServer(port int, logger *zap.Logger) *HealthServer {
	h := &HealthServer{
		grpcServer: grpc.NewServer(),
		health:     health.NewServer(),
		addr:       fmt.Sprintf(":%d", port),
		logger:     logger,
	}
	healthpb.RegisterHealthServer(h.grpcServer, h.health)
	h.health.SetServingStatus(HealthService, healthpb.HealthCheckResponse_NOT_SERVING)
	return h
}

func (h *HealthServer) Start() error {
	lis, err := net.Listen("tcp", h.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", h.addr, err)
	}
	h.lis = lis

	h.logger.Info("Starting gRPC health server", zap.String("address", lis.Addr().String()))
	go func() {
		if err := h.grpcServer.Serve(lis); err != nil {
			h.logger.Error("gRPC health server failed", zap.Error(err))
		}
	}()
	return nil
}

// Addr reports the bound address once Start succeeded.
func (h *HealthServer) Addr() string {
	if h.lis == nil {
		return h.addr
	}
	return h.lis.Addr().String()
}

func (h *HealthServer) SetServing(serving bool) {
	st := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		st = healthpb.HealthCheckResponse_SERVING
	}
	h.health.SetServingStatus(HealthService, st)
}

// Shutdown drains watchers and stops the server, forcing it once ctx
// expires.
func (h *HealthServer) Shutdown(ctx context.Context) error {
	h.logger.Info("Shutting down gRPC health server")
	h.health.Shutdown()

	done := make(chan struct{})
	go func() {
		h.grpcServer.GracefulStop()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		h.grpcServer.Stop()
		return ctx.Err()
	}
}
