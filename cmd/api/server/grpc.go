package server

import (
	grpcadapter "users-api/internal/adapter/grpc"
	"users-api/internal/adapter/grpc/middleware"

	"go.uber.org/zap"
	"google.golang.org/grpc"
)

// SetupGRPC creates the gRPC server that carries the health service
func SetupGRPC(reporter *grpcadapter.HealthReporter, l *zap.Logger) *grpc.Server {
	grpcServer := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			middleware.UnaryLogging(l),
		),
	)
	reporter.Register(grpcServer)

	return grpcServer
}
