package api

import (
	"context"
	"fmt"
	"net"
	"time"

	"bengkel/internal/config"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// ServiceName is the health service key reported alongside the overall "".
const ServiceName = "bengkel.api"

// GRPCServer exposes the standard health service backed by a store ping.
type GRPCServer struct {
	server   *grpc.Server
	health   *health.Server
	listener net.Listener
	store    Pinger
	interval time.Duration
	log      zerolog.Logger
}

func NewGRPCServer(cfg config.APIGRPCConfig, store Pinger, logger *zerolog.Logger) (*GRPCServer, error) {
	addr := fmt.Sprintf(":%d", cfg.Port)
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("grpc listen %s: %w", addr, err)
	}

	unary := ChainUnaryInterceptors(
		RecoveryUnaryInterceptor(logger),
		LoggingUnaryInterceptor(logger),
	)
	grpcServer := grpc.NewServer(grpc.UnaryInterceptor(unary))

	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)

	if cfg.Reflection {
		reflection.Register(grpcServer)
	}

	serverLogger := zerolog.Nop()
	if logger != nil {
		serverLogger = logger.With().Str("component", "grpc").Logger()
	}

	s := &GRPCServer{
		server:   grpcServer,
		health:   healthServer,
		listener: lis,
		store:    store,
		interval: 10 * time.Second,
		log:      serverLogger,
	}
	s.setServing(false)
	return s, nil
}

func (s *GRPCServer) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *GRPCServer) Serve() error {
	s.log.Info().Str("addr", s.Addr()).Msg("gRPC API listening")
	return s.server.Serve(s.listener)
}

// WatchStore updates the health status from a store ping until ctx is done.
func (s *GRPCServer) WatchStore(ctx context.Context) {
	s.checkStore(ctx)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.checkStore(ctx)
		}
	}
}

func (s *GRPCServer) checkStore(ctx context.Context) {
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	err := s.store.Ping(pingCtx)
	if err != nil && ctx.Err() == nil {
		s.log.Warn().Err(err).Msg("store ping failed")
	}
	s.setServing(err == nil)
}

func (s *GRPCServer) setServing(ok bool) {
	st := healthpb.HealthCheckResponse_NOT_SERVING
	if ok {
		st = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus("", st)
	s.health.SetServingStatus(ServiceName, st)
}

func (s *GRPCServer) Shutdown(ctx context.Context) {
	s.health.Shutdown()

	done := make(chan struct{})
	go func() {
		s.server.GracefulStop()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		s.log.Warn().Msg("gRPC graceful shutdown timed out; forcing stop")
		s.server.Stop()
	}
}
