// Package grpcapi exposes the standard gRPC health service so the scanner
// bridge and orchestrators can tell whether scans will be accepted.
package grpcapi

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
)

// EnrollmentService is the health service name the scanner bridge watches.
const EnrollmentService = "hrm.enrollment.v1.Enrollment"

type Config struct {
	// Check reports whether the backing store is reachable. nil means
	// always healthy.
	Check func(ctx context.Context) error
	// Interval between checks. Defaults to 10s.
	Interval time.Duration
}

type Server struct {
	grpcServer *grpc.Server
	health     *health.Server
	check      func(ctx context.Context) error
	interval   time.Duration
	logger     zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	// mu orders watcher start in Serve against cancel in Stop.
	mu      sync.Mutex
	watcher sync.WaitGroup
}

func NewServer(cfg Config, logger zerolog.Logger) *Server {
	if cfg.Interval <= 0 {
		cfg.Interval = 10 * time.Second
	}

	grpcServer := grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler()))
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)

	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		grpcServer: grpcServer,
		health:     healthServer,
		check:      cfg.Check,
		interval:   cfg.Interval,
		logger:     logger.With().Str("component", "grpc").Logger(),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Serve runs an initial check, starts the periodic watcher and blocks
// serving on lis until Stop.
func (s *Server) Serve(lis net.Listener) error {
	s.mu.Lock()
	if s.ctx.Err() == nil {
		s.Refresh(s.ctx)
		s.watcher.Add(1)
		go s.watch()
	}
	s.mu.Unlock()

	s.logger.Info().Str("addr", lis.Addr().String()).Msg("grpc health listening")
	return s.grpcServer.Serve(lis)
}

// Stop reports NOT_SERVING to watchers, stops the checker and drains RPCs.
func (s *Server) Stop() {
	s.health.Shutdown()

	s.mu.Lock()
	s.cancel()
	s.mu.Unlock()
	s.watcher.Wait()

	s.grpcServer.GracefulStop()
}

// Refresh runs the check once and publishes the result.
func (s *Server) Refresh(ctx context.Context) {
	status := grpc_health_v1.HealthCheckResponse_SERVING
	if s.check != nil {
		checkCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := s.check(checkCtx)
		cancel()
		if err != nil {
			s.logger.Warn().Err(err).Msg("health check failed")
			status = grpc_health_v1.HealthCheckResponse_NOT_SERVING
		}
	}
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(EnrollmentService, status)
}

func (s *Server) watch() {
	defer s.watcher.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.Refresh(s.ctx)
		}
	}
}
