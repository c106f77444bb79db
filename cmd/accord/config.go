package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/dogmatiq/accord/executor"
	"github.com/dogmatiq/dodeca/config"
	"github.com/nats-io/nats.go"
)

// settings is the configuration of the accord binary, read from ACCORD_*
// environment variables.
type settings struct {
	ConnectorID   string
	Address       string
	ParticipantID string

	Store      string
	BoltPath   string
	DSN        string
	AutoSchema bool

	NATSURL       string
	SubjectPrefix string

	Executors           []executor.Registration
	HealthCheckInterval time.Duration

	MetricsAddress string

	LogFile string
	Debug   bool
}

// loadSettings reads the binary's configuration from b.
//
// Malformed values are reported as errors rather than panics.
func loadSettings(b config.Bucket) (s settings, err error) {
	defer recoverKeyError(&err)

	s = settings{
		ConnectorID:         config.AsStringDefault(b, "ACCORD_CONNECTOR_ID", "accord"),
		Address:             config.AsStringDefault(b, "ACCORD_ADDRESS", ""),
		ParticipantID:       config.AsStringDefault(b, "ACCORD_PARTICIPANT_ID", ""),
		Store:               config.AsStringDefault(b, "ACCORD_STORE", "bolt"),
		BoltPath:            config.AsStringDefault(b, "ACCORD_BOLT_PATH", "/var/run/accord.boltdb"),
		DSN:                 config.AsStringDefault(b, "ACCORD_DSN", ""),
		AutoSchema:          config.AsBoolDefault(b, "ACCORD_SQL_AUTO_SCHEMA", false),
		NATSURL:             config.AsStringDefault(b, "ACCORD_NATS_URL", nats.DefaultURL),
		SubjectPrefix:       config.AsStringDefault(b, "ACCORD_NATS_SUBJECT_PREFIX", ""),
		HealthCheckInterval: config.AsDurationDefault(b, "ACCORD_HEALTH_CHECK_INTERVAL", 10*time.Second),
		MetricsAddress:      config.AsStringDefault(b, "ACCORD_METRICS_ADDRESS", ":9090"),
		LogFile:             config.AsStringDefault(b, "ACCORD_LOG_FILE", ""),
		Debug:               config.AsBoolDefault(b, "ACCORD_DEBUG", false),
	}

	if s.Address == "" {
		return settings{}, fmt.Errorf("ACCORD_ADDRESS must be set")
	}

	switch s.Store {
	case "bolt":
	case "sqlite", "postgres":
		if s.DSN == "" {
			return settings{}, fmt.Errorf("ACCORD_DSN must be set when using the %s store", s.Store)
		}
	default:
		return settings{}, fmt.Errorf("unsupported store '%s'", s.Store)
	}

	x, err := parseExecutors(config.AsStringDefault(b, "ACCORD_EXECUTORS", ""))
	if err != nil {
		return settings{}, err
	}
	s.Executors = x

	return s, nil
}

// recoverKeyError converts a panic caused by a missing or malformed
// configuration value into an error.
func recoverKeyError(err *error) {
	switch v := recover().(type) {
	case nil:
	case config.KeyError:
		*err = v
	default:
		panic(v)
	}
}

// driverName returns the database/sql driver name for the configured store.
func (s settings) driverName() string {
	if s.Store == "postgres" {
		return "pgx"
	}

	return "sqlite"
}

// parseExecutors parses a whitespace-separated list of executors.
//
// Each entry has the form "<id>=<endpoint>;<capability>,...[;<label>,...]".
func parseExecutors(v string) ([]executor.Registration, error) {
	var result []executor.Registration

	for _, entry := range strings.Fields(v) {
		id, rest, ok := strings.Cut(entry, "=")
		if !ok || id == "" {
			return nil, fmt.Errorf("executor entry '%s' has no ID", entry)
		}

		parts := strings.Split(rest, ";")
		if parts[0] == "" {
			return nil, fmt.Errorf("executor '%s' has no endpoint", id)
		}

		x := executor.Registration{
			ID:       id,
			Endpoint: parts[0],
		}

		if len(parts) > 1 {
			x.Capabilities = splitList(parts[1])
		}

		if len(parts) > 2 {
			x.Labels = splitList(parts[2])
		}

		if len(parts) > 3 {
			return nil, fmt.Errorf("executor '%s' has too many sections", id)
		}

		result = append(result, x)
	}

	return result, nil
}

func splitList(v string) []string {
	var result []string

	for _, s := range strings.Split(v, ",") {
		if s != "" {
			result = append(result, s)
		}
	}

	return result
}
