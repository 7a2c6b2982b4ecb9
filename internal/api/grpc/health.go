// Package grpc serves the standard gRPC health service on a side port for orchestrators.
package grpc

import (
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"mibarrio-backend/internal/api/grpc/interceptor"
	"mibarrio-backend/internal/logger"
)

// HealthServer reports SERVING while the backend accepts traffic
type HealthServer struct {
	server *grpc.Server
	health *health.Server
}

func NewHealthServer() *HealthServer {
	s := grpc.NewServer(grpc.UnaryInterceptor(interceptor.Unary()))
	h := health.NewServer()
	healthpb.RegisterHealthServer(s, h)

	// Register reflection service for grpcurl
	reflection.Register(s)

	return &HealthServer{server: s, health: h}
}

// SetServing flips the overall status reported to health checks
func (h *HealthServer) SetServing(serving bool) {
	st := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		st = healthpb.HealthCheckResponse_SERVING
	}
	h.health.SetServingStatus("", st)
}

// Serve blocks until the listener fails or Stop is called
func (h *HealthServer) Serve(lis net.Listener) error {
	logger.Info("gRPC health server listening", "address", lis.Addr().String())
	h.SetServing(true)
	return h.server.Serve(lis)
}

// Stop reports NOT_SERVING and drains in-flight checks
func (h *HealthServer) Stop() {
	h.health.Shutdown()
	h.server.GracefulStop()
}
