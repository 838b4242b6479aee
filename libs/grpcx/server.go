package grpcx

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// NewServer returns a gRPC server with tracing, request ids, access logging and the
// standard grpc.health.v1 service registered. The returned health server starts
// NOT_SERVING for service; flip it with SetServingStatus once dependencies are up.
func NewServer(service string, logger *slog.Logger, opts ...grpc.ServerOption) (*grpc.Server, *health.Server) {
	base := []grpc.ServerOption{
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(UnaryServerInterceptor(logger)),
	}
	srv := grpc.NewServer(append(base, opts...)...)
	hs := health.NewServer()
	hs.SetServingStatus(service, healthpb.HealthCheckResponse_NOT_SERVING)
	healthpb.RegisterHealthServer(srv, hs)
	return srv, hs
}

// HealthReadyCheck dials addr and asks the health service about service. It is meant
// for /readyz of a process that depends on another one.
func HealthReadyCheck(addr, service string) func(context.Context) error {
	return func(ctx context.Context) error {
		if addr == "" {
			return errors.New("grpc address not configured")
		}
		conn, err := Dial(addr, nil)
		if err != nil {
			return err
		}
		defer conn.Close()

		resp, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{Service: service})
		if err != nil {
			return err
		}
		if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
			return fmt.Errorf("%s is %s", service, resp.GetStatus())
		}
		return nil
	}
}
