package grpcx

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// Dial returns a lazily connecting client that traces calls and forwards the
// request id. A nil creds means plaintext.
func Dial(addr string, creds credentials.TransportCredentials, extra ...grpc.DialOption) (*grpc.ClientConn, error) {
	if creds == nil {
		creds = insecure.NewCredentials()
	}
	opts := append([]grpc.DialOption{
		grpc.WithTransportCredentials(creds),
		grpc.WithStatsHandler(otelgrpc.NewClientHandler()),
		grpc.WithChainUnaryInterceptor(UnaryClientRequestIDInterceptor()),
	}, extra...)
	return grpc.NewClient(addr, opts...)
}

// WaitServing polls grpc.health.v1 until service reports SERVING. It returns
// the last status or error when ctx ends first.
func WaitServing(ctx context.Context, conn grpc.ClientConnInterface, service string, every time.Duration) error {
	if every <= 0 {
		every = 200 * time.Millisecond
	}
	client := healthpb.NewHealthClient(conn)
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	var last error
	for {
		callCtx, cancel := context.WithTimeout(ctx, every)
		resp, err := client.Check(callCtx, &healthpb.HealthCheckRequest{Service: service})
		cancel()
		switch {
		case err != nil:
			last = err
		case resp.GetStatus() == healthpb.HealthCheckResponse_SERVING:
			return nil
		default:
			last = fmt.Errorf("%q is %s", service, resp.GetStatus())
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("grpc health: %w (last: %v)", ctx.Err(), last)
		case <-ticker.C:
		}
	}
}
