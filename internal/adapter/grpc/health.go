package grpc

import (
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// HealthReporter serves grpc.health.v1.Health for the overall service ("")
// and for the users service name.
type HealthReporter struct {
	srv     *health.Server
	service string
	log     *zap.Logger
}

// NewHealthReporter creates a reporter that starts in NOT_SERVING
func NewHealthReporter(service string, log *zap.Logger) *HealthReporter {
	h := &HealthReporter{
		srv:     health.NewServer(),
		service: service,
		log:     log,
	}
	h.SetReady(false)
	return h
}

// Register attaches the health service to a gRPC server
func (h *HealthReporter) Register(s *grpc.Server) {
	healthpb.RegisterHealthServer(s, h.srv)
}

// SetReady flips both entries between SERVING and NOT_SERVING
func (h *HealthReporter) SetReady(ready bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if ready {
		status = healthpb.HealthCheckResponse_SERVING
	}
	h.srv.SetServingStatus("", status)
	h.srv.SetServingStatus(h.service, status)

	h.log.Info("grpc health status changed",
		zap.String("service", h.service),
		zap.String("status", status.String()),
	)
}

// Shutdown marks every service NOT_SERVING and ignores later updates
func (h *HealthReporter) Shutdown() {
	h.srv.Shutdown()
}
