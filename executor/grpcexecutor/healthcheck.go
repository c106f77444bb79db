package grpcexecutor

import (
	"context"
	"time"

	"github.com/dogmatiq/accord/executor"
	"github.com/dogmatiq/dodeca/logging"
	"github.com/dogmatiq/linger"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// DefaultHealthCheckInterval is the default interval at which the health of
// each executor is checked.
var DefaultHealthCheckInterval = 10 * time.Second

// HealthChecker maintains the health and heartbeat of registered executors using
// the standard gRPC health checking protocol.
type HealthChecker struct {
	// Registry is the registry to update.
	Registry executor.Registry

	// Client is used to obtain connections to each executor.
	Client *Client

	// Interval is the time between rounds of health checks. If it is zero,
	// DefaultHealthCheckInterval is used.
	Interval time.Duration

	// Timeout is the deadline of each health check. If it is zero, the
	// interval is used.
	Timeout time.Duration

	// Logger is the target for log messages about changes in health.
	Logger logging.Logger
}

// Run checks the health of executors until ctx is canceled.
func (p *HealthChecker) Run(ctx context.Context) error {
	interval := linger.MustCoalesce(p.Interval, DefaultHealthCheckInterval)

	for {
		if err := p.CheckAll(ctx); err != nil {
			return err
		}

		if err := linger.Sleep(ctx, interval); err != nil {
			return err
		}
	}
}

// CheckAll checks the health of every registered executor once.
func (p *HealthChecker) CheckAll(ctx context.Context) error {
	executors, err := p.Registry.Executors(ctx)
	if err != nil {
		return err
	}

	for _, x := range executors {
		if err := p.update(ctx, x); err != nil {
			return err
		}
	}

	return nil
}

func (p *HealthChecker) update(ctx context.Context, x executor.Registration) error {
	healthy := p.check(ctx, x)

	if healthy {
		if err := p.Registry.Heartbeat(ctx, x.ID, time.Now()); err != nil {
			return ignoreUnknown(err)
		}
	}

	if healthy != x.Healthy {
		logging.Log(
			p.Logger,
			"executor %s health changed to %t",
			x.ID,
			healthy,
		)

		if err := p.Registry.SetHealth(ctx, x.ID, healthy); err != nil {
			return ignoreUnknown(err)
		}
	}

	return ctx.Err()
}

func (p *HealthChecker) check(ctx context.Context, x executor.Registration) bool {
	timeout := linger.MustCoalesce(p.Timeout, p.Interval, DefaultHealthCheckInterval)

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	conn, err := p.Client.Conn(ctx, x.ID)
	if err != nil {
		logging.Debug(p.Logger, "executor %s could not be dialed: %s", x.ID, err)
		return false
	}

	res, err := healthpb.NewHealthClient(conn).Check(
		ctx,
		&healthpb.HealthCheckRequest{Service: ServiceName},
	)
	if err != nil {
		logging.Debug(p.Logger, "executor %s health check failed: %s", x.ID, err)
		return false
	}

	return res.GetStatus() == healthpb.HealthCheckResponse_SERVING
}

// ignoreUnknown returns nil if err indicates that the executor was
// deregistered while its health was being checked.
func ignoreUnknown(err error) error {
	if _, ok := err.(executor.UnknownExecutorError); ok {
		return nil
	}

	return err
}
