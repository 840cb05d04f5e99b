package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"

	ginhandler "users-api/internal/adapter/gin/handler"
	"users-api/internal/adapter/gin/middleware"
	ginrouter "users-api/internal/adapter/gin/router"
	grpcadapter "users-api/internal/adapter/grpc"
	"users-api/internal/config"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
)

// Server struct holds all server dependencies
type Server struct {
	Config *config.Config
	Logger *zap.Logger
	HTTP   *http.Server
	GRPC   *grpc.Server                // nil when GRPC_ENABLED=false
	Health *grpcadapter.HealthReporter // nil when GRPC_ENABLED=false

	mu       sync.Mutex
	httpAddr net.Addr
}

// New creates a new server instance
func New(
	cfg *config.Config,
	l *zap.Logger,
	userHandler *ginhandler.UserHandler,
	healthHandler *ginhandler.HealthHandler,
	rateLimiter *middleware.RateLimiter,
	schemaReady bool,
) *Server {
	s := &Server{
		Config: cfg,
		Logger: l,
		HTTP: SetupGinServer(userHandler, healthHandler, ginrouter.Options{
			AllowedOrigins: cfg.App.AllowedOrigins,
			Development:    cfg.App.IsDevelopment(),
			RateLimiter:    rateLimiter,
		}, cfg.App.HTTPAddress(), l),
	}

	if cfg.App.GRPCEnabled {
		s.Health = grpcadapter.NewHealthReporter(cfg.Logger.ServiceName, l)
		s.Health.SetReady(schemaReady)
		s.GRPC = SetupGRPC(s.Health, l)
	}

	return s
}

// Start binds every listener, then serves until Shutdown. Bind errors are
// returned before anything is served.
func (s *Server) Start(ctx context.Context) error {
	lc := net.ListenConfig{}

	httpLis, err := lc.Listen(ctx, "tcp", s.HTTP.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.HTTP.Addr, err)
	}
	s.mu.Lock()
	s.httpAddr = httpLis.Addr()
	s.mu.Unlock()

	var grpcLis net.Listener
	if s.GRPC != nil {
		grpcLis, err = lc.Listen(ctx, "tcp", s.Config.App.GRPCAddress())
		if err != nil {
			_ = httpLis.Close()
			return fmt.Errorf("failed to listen on %s: %w", s.Config.App.GRPCAddress(), err)
		}
	}

	g := new(errgroup.Group)

	g.Go(func() error {
		s.Logger.Info("HTTP server running", zap.String("address", httpLis.Addr().String()))
		if err := s.HTTP.Serve(httpLis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server: %w", err)
		}
		return nil
	})

	if grpcLis != nil {
		g.Go(func() error {
			s.Logger.Info("gRPC health server running", zap.String("address", grpcLis.Addr().String()))
			if err := s.GRPC.Serve(grpcLis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
				return fmt.Errorf("gRPC server: %w", err)
			}
			return nil
		})
	}

	return g.Wait()
}

// HTTPAddr returns the bound HTTP address, or nil before Start.
func (s *Server) HTTPAddr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.httpAddr
}

// Shutdown flips gRPC health to NOT_SERVING, drains HTTP within ctx and
// then stops gRPC.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.Health != nil {
		s.Health.Shutdown()
	}

	var errs []error

	s.Logger.Info("shutting down HTTP server...")
	if err := s.HTTP.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("HTTP shutdown: %w", err))
	}

	if s.GRPC != nil {
		s.Logger.Info("shutting down gRPC server...")
		stopped := make(chan struct{})
		go func() {
			s.GRPC.GracefulStop()
			close(stopped)
		}()
		select {
		case <-stopped:
		case <-ctx.Done():
			s.GRPC.Stop()
			errs = append(errs, fmt.Errorf("gRPC shutdown: %w", ctx.Err()))
		}
	}

	return errors.Join(errs...)
}
