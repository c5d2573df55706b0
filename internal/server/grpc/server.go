package grpcserver

import (
	"context"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	xworkv1 "github.com/rzbill/xwork/api/xwork/v1"
	"github.com/rzbill/xwork/internal/runtime"
	"github.com/rzbill/xwork/internal/services/extworker"
	logpkg "github.com/rzbill/xwork/pkg/log"
)

// Server owns the gRPC server instance and runtime.
type Server struct {
	rt     *runtime.Runtime
	grpc   *grpc.Server
	health *health.Server
	lis    net.Listener
	logger logpkg.Logger
}

// New constructs a gRPC server and registers the ExternalWorker and health
// services.
func New(rt *runtime.Runtime, svc *extworker.Service, logger logpkg.Logger, opts ...grpc.ServerOption) *Server {
	if logger == nil {
		logger = logpkg.NewLogger(logpkg.WithLevel(logpkg.InfoLevel))
	}
	logger = logger.WithComponent("grpc")
	opts = append([]grpc.ServerOption{grpc.ChainUnaryInterceptor(logUnary(logger))}, opts...)
	s := &Server{rt: rt, grpc: grpc.NewServer(opts...), health: health.NewServer(), logger: logger}
	xworkv1.RegisterExternalWorkerServer(s.grpc, &externalWorkerSvc{svc: svc})
	healthpb.RegisterHealthServer(s.grpc, s.health)
	return s
}

// ListenAndServe binds to addr and serves until ctx is done. Health status
// follows the runtime health check.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.lis = l
	go s.watchHealth(ctx, 5*time.Second)
	errCh := make(chan error, 1)
	go func() { errCh <- s.grpc.Serve(l) }()
	select {
	case <-ctx.Done():
		s.health.Shutdown()
		s.grpc.GracefulStop()
		return nil
	case err := <-errCh:
		return err
	}
}

// UpdateHealth sets the serving status from one runtime health check.
func (s *Server) UpdateHealth(ctx context.Context) {
	status := healthpb.HealthCheckResponse_SERVING
	if err := s.rt.CheckHealth(ctx); err != nil {
		s.logger.Warn("health check failed", logpkg.Err(err))
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(xworkv1.ServiceName, status)
}

func (s *Server) watchHealth(ctx context.Context, every time.Duration) {
	s.UpdateHealth(ctx)
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.UpdateHealth(ctx)
		}
	}
}

// Close stops the server and closes the listener.
func (s *Server) Close() {
	if s.grpc != nil {
		s.grpc.GracefulStop()
	}
	if s.lis != nil {
		_ = s.lis.Close()
	}
}

func logUnary(logger logpkg.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		fields := []logpkg.Field{logpkg.Str("method", info.FullMethod), logpkg.Duration("elapsed", time.Since(start))}
		if err != nil {
			logger.Debug("call failed", append(fields, logpkg.Err(err))...)
			return resp, err
		}
		logger.Debug("call", fields...)
		return resp, nil
	}
}
