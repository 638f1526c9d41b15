package grpcx

import (
	"context"
	"log/slog"
	"time"

	"github.com/md-rashed-zaman/clinicbook/libs/runtime"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

const healthCheckMethod = "/grpc.health.v1.Health/Check"

// NewServer builds a gRPC server with tracing, request ids and access logging, and
// registers the standard health service. Its status starts as NOT_SERVING.
func NewServer(logger *slog.Logger, extra ...grpc.ServerOption) (*grpc.Server, *health.Server) {
	opts := []grpc.ServerOption{
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(
			UnaryServerRequestIDInterceptor(),
			UnaryServerLoggingInterceptor(logger),
		),
	}
	opts = append(opts, extra...)

	srv := grpc.NewServer(opts...)
	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	healthpb.RegisterHealthServer(srv, hs)
	reflection.Register(srv)
	return srv, hs
}

// ReportHealth mirrors the readiness checks into the health server for every
// service name given ("" is the overall status) until ctx is done, then marks
// everything NOT_SERVING.
func ReportHealth(ctx context.Context, hs *health.Server, every time.Duration, services []string, checks ...runtime.ReadyCheck) {
	if every <= 0 {
		every = 5 * time.Second
	}
	if len(services) == 0 {
		services = []string{""}
	}
	set := func(st healthpb.HealthCheckResponse_ServingStatus) {
		for _, name := range services {
			hs.SetServingStatus(name, st)
		}
	}
	report := func() {
		if err := runtime.CheckAll(ctx, checks...); err != nil {
			set(healthpb.HealthCheckResponse_NOT_SERVING)
			return
		}
		set(healthpb.HealthCheckResponse_SERVING)
	}

	report()
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			hs.Shutdown()
			return
		case <-ticker.C:
			report()
		}
	}
}
