package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/dogmatiq/accord"
	"github.com/dogmatiq/accord/executor"
	"github.com/dogmatiq/accord/executor/grpcexecutor"
	"github.com/dogmatiq/accord/internal/x/loggingx"
	"github.com/dogmatiq/accord/persistence"
	"github.com/dogmatiq/accord/persistence/boltpersistence"
	"github.com/dogmatiq/accord/persistence/sqlpersistence"
	"github.com/dogmatiq/accord/protocol/natsdispatcher"
	"github.com/dogmatiq/dodeca/config"
	"github.com/dogmatiq/dodeca/logging"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	_ "modernc.org/sqlite"
)

// createRunCommand creates the "run" command, which runs the connector until
// it receives a signal.
func createRunCommand(env config.Bucket) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the connector",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := loadSettings(env)
			if err != nil {
				return err
			}

			return run(cmd.Context(), s)
		},
	}
}

// run starts the engine and its supporting servers and blocks until ctx is
// canceled or one of them fails.
func run(parent context.Context, s settings) error {
	zl := newLogger(s)
	defer zl.Sync() // nolint:errcheck

	logger := loggingx.Zap(zl)

	conn, err := nats.Connect(
		s.NATSURL,
		nats.Name("accord/"+s.ConnectorID),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return err
	}
	defer conn.Close()

	registry := &executor.MemoryRegistry{}
	for _, x := range s.Executors {
		if err := registry.Register(parent, x); err != nil {
			return err
		}
	}

	client := &grpcexecutor.Client{Registry: registry}
	defer client.Close()

	metrics := prometheus.NewRegistry()
	metrics.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	options := []accord.EngineOption{
		accord.WithPersistence(newProvider(s)),
		accord.WithConnectorID(s.ConnectorID),
		accord.WithAddress(s.Address),
		accord.WithDispatcher(&natsdispatcher.Dispatcher{
			Conn:          conn,
			SubjectPrefix: s.SubjectPrefix,
		}),
		accord.WithExecutorRegistry(registry),
		accord.WithExecutorClient(client),
		accord.WithMetrics(metrics),
		accord.WithLogger(logger),
	}

	if s.ParticipantID != "" {
		options = append(options, accord.WithParticipantID(s.ParticipantID))
	}

	e := accord.New(options...)
	defer e.Close()

	server := &natsdispatcher.Server{
		Conn:          conn,
		Address:       s.Address,
		SubjectPrefix: s.SubjectPrefix,
		Receiver:      e,
		Logger:        loggingx.WithPrefix(logger, "[nats %s] ", s.Address),
	}

	checker := &grpcexecutor.HealthChecker{
		Registry: registry,
		Client:   client,
		Interval: s.HealthCheckInterval,
		Logger:   loggingx.WithPrefix(logger, "[health] "),
	}

	g, ctx := errgroup.WithContext(parent)

	g.Go(func() error { return e.Run(ctx) })
	g.Go(func() error { return server.Run(ctx) })
	g.Go(func() error { return checker.Run(ctx) })
	g.Go(func() error { return serveMetrics(ctx, s.MetricsAddress, metrics, logger) })

	logging.Log(logger, "connector %s listening at %s", s.ConnectorID, s.Address)

	err = g.Wait()

	if parent.Err() != nil {
		return nil
	}

	return err
}

// newProvider returns the persistence provider for the configured store.
func newProvider(s settings) persistence.Provider {
	if s.Store == "bolt" {
		return &boltpersistence.FileProvider{Path: s.BoltPath}
	}

	return &sqlpersistence.DSNProvider{
		DriverName:       s.driverName(),
		DSN:              s.DSN,
		AutoCreateSchema: s.AutoSchema,
	}
}

// serveMetrics serves the Prometheus metrics in g until ctx is canceled.
func serveMetrics(
	ctx context.Context,
	addr string,
	g prometheus.Gatherer,
	logger logging.Logger,
) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logging.Log(logger, "metrics server did not shut down cleanly: %s", err)
		}
	}()

	logging.Debug(logger, "serving metrics at %s", addr)

	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return ctx.Err()
}
