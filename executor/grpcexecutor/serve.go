package grpcexecutor

import (
	"context"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// Serve serves f as the executor API on lis until ctx is canceled.
//
// The standard health service is registered alongside the executor service
// and reports it as serving for as long as Serve() runs.
func Serve(
	ctx context.Context,
	lis net.Listener,
	f Flows,
	options ...grpc.ServerOption,
) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s := grpc.NewServer(options...)
	RegisterServer(s, f)

	hs := health.NewServer()
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(s, hs)

	go func() {
		<-ctx.Done()
		hs.Shutdown()
		s.Stop()
	}()

	err := s.Serve(lis)

	// Serve() only returns nil once Stop() has been called, which only
	// happens when ctx is canceled.
	if err == nil {
		<-ctx.Done()
		err = ctx.Err()
	}

	return err
}
