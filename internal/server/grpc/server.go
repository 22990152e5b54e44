// Package grpc serves the operational gRPC surface: the standard health
// service, open to everyone, and channelz, restricted to admins. Both sit
// behind the same bearer-token gate as the REST API.
package grpc

import (
	"context"
	"net"

	"github.com/dmitrijs2005/webshelf/internal/logging"
	"github.com/dmitrijs2005/webshelf/internal/server/auth"
	"github.com/dmitrijs2005/webshelf/internal/server/metrics"
	"google.golang.org/grpc"
	channelzsvc "google.golang.org/grpc/channelz/service"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

const (
	healthPrefix   = "/grpc.health.v1.Health"
	channelzPrefix = "/grpc.channelz.v1.Channelz"
)

type GRPCServer struct {
	address string
	gate    *auth.Gate
	health  *health.Server
	logger  logging.Logger
	metrics *metrics.Metrics
}

// NewGRPCServer builds a server whose gate accepts tokens signed with
// secret. Health checks need no token.
func NewGRPCServer(address string, secret []byte, l logging.Logger, mtr *metrics.Metrics) *GRPCServer {
	return &GRPCServer{
		address: address,
		gate:    auth.NewGate(secret, []string{healthPrefix}),
		health:  health.NewServer(),
		logger:  l.With("module", "grpc_server"),
		metrics: mtr,
	}
}

// Run listens on the configured address and serves until ctx is done.
func (s *GRPCServer) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}
	return s.Serve(ctx, listen)
}

// Serve accepts connections on listen until ctx is done, then stops
// gracefully.
func (s *GRPCServer) Serve(ctx context.Context, listen net.Listener) error {
	srv := grpc.NewServer(
		grpc.ChainUnaryInterceptor(s.unaryAuthInterceptor),
		grpc.ChainStreamInterceptor(s.streamAuthInterceptor),
	)

	healthpb.RegisterHealthServer(srv, s.health)
	channelzsvc.RegisterChannelzServiceToServer(srv)
	s.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		s.health.Shutdown()
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", listen.Addr().String())

	if err := srv.Serve(listen); err != nil {
		return err
	}
	return nil
}
