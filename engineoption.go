package accord

import (
	"context"
	"errors"
	"os"
	"runtime"
	"strconv"
	"time"

	"github.com/dogmatiq/accord/credential"
	"github.com/dogmatiq/accord/executor"
	"github.com/dogmatiq/accord/handler"
	"github.com/dogmatiq/accord/internal/metrics"
	"github.com/dogmatiq/accord/persistence"
	"github.com/dogmatiq/accord/persistence/boltpersistence"
	"github.com/dogmatiq/accord/policy"
	"github.com/dogmatiq/accord/process"
	"github.com/dogmatiq/accord/protocol"
	"github.com/dogmatiq/accord/retry"
	"github.com/dogmatiq/dodeca/config"
	"github.com/dogmatiq/dodeca/logging"
	"github.com/dogmatiq/linger"
	"github.com/dogmatiq/linger/backoff"
	"github.com/dogmatiq/marshalkit"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// DefaultPersistenceProvider is the default persistence provider.
	//
	// It is overridden by the WithPersistence() option.
	DefaultPersistenceProvider persistence.Provider = &boltpersistence.FileProvider{
		Path: "/var/run/accord.boltdb",
	}

	// DefaultConnectorID is the default connector ID. All nodes of the same
	// connector share the process store partition identified by this ID.
	//
	// It is overridden by the WithConnectorID() option.
	DefaultConnectorID = "accord"

	// DefaultHandlerTimeout is the default duration the engine allows for a
	// single state action, including any network calls it makes.
	//
	// It is overridden by the WithHandlerTimeout() option.
	DefaultHandlerTimeout = 10 * time.Second

	// DefaultBackoff is the default policy used to delay retries of a failed
	// state action.
	//
	// It is overridden by the WithBackoff() option.
	DefaultBackoff retry.Policy = retry.ExponentialBackoff{
		Min:    1 * time.Second,
		Max:    5 * time.Minute,
		Jitter: 0.25,
	}

	// DefaultCommandBackoff is the default backoff strategy used while
	// waiting for a process lease to be released before a command can be
	// recorded.
	//
	// It is overridden by the WithCommandBackoff() option.
	DefaultCommandBackoff backoff.Strategy = backoff.WithTransforms(
		backoff.Exponential(10*time.Millisecond),
		linger.FullJitter,
		linger.Limiter(0, 1*time.Second),
	)

	// DefaultMaxRetries is the default number of consecutive retries
	// permitted in a single state before the process fails.
	//
	// It is overridden by the WithMaxRetries() option.
	DefaultMaxRetries uint = 10

	// DefaultWorkerCount is the default number of processes that are handled
	// concurrently.
	//
	// It is overridden by the WithWorkerCount() option.
	DefaultWorkerCount = uint(runtime.GOMAXPROCS(0) * 2)

	// DefaultBatchSize is the default maximum number of due processes of each
	// type loaded by a single poll.
	//
	// It is overridden by the WithBatchSize() option.
	DefaultBatchSize = 100

	// DefaultLeaseDuration is the default duration of the lease acquired on a
	// process for the duration of an engine pass.
	//
	// It is overridden by the WithLeaseDuration() option.
	DefaultLeaseDuration = 1 * time.Minute

	// DefaultPollInterval is the default time the engine waits before polling
	// again when no processes were due.
	//
	// It is overridden by the WithPollInterval() option.
	DefaultPollInterval = 1 * time.Second

	// DefaultWatchdogInterval is the default interval at which expired leases
	// are cleared.
	//
	// It is overridden by the WithWatchdogInterval() option.
	DefaultWatchdogInterval = 30 * time.Second

	// DefaultAwaitTimeout is the default time a process may wait on its peer
	// before it fails.
	//
	// It is overridden by the WithAwaitTimeout() option.
	DefaultAwaitTimeout = 24 * time.Hour

	// DefaultLogger is the default target for log messages produced by the
	// engine.
	//
	// It is overridden by the WithLogger() option.
	DefaultLogger = logging.DefaultLogger
)

// EngineOption configures the behavior of an engine.
type EngineOption func(*engineOptions)

// WithPersistence returns an engine option that sets the persistence provider
// used to store processes.
//
// If this option is omitted or p is nil, DefaultPersistenceProvider is used.
func WithPersistence(p persistence.Provider) EngineOption {
	return func(opts *engineOptions) {
		opts.PersistenceProvider = p
	}
}

// WithConnectorID returns an engine option that sets the ID of the connector.
//
// It is used as the persistence key, so every node of the same connector must
// use the same ID.
//
// If this option is omitted or id is empty, DefaultConnectorID is used.
func WithConnectorID(id string) EngineOption {
	return func(opts *engineOptions) {
		opts.ConnectorID = id
	}
}

// WithNodeID returns an engine option that sets the ID of this node. It is
// used to identify the owner of process leases.
//
// If this option is omitted or id is empty, the host name and process ID are
// used.
func WithNodeID(id string) EngineOption {
	return func(opts *engineOptions) {
		opts.NodeID = id
	}
}

// WithAddress returns an engine option that sets the address at which peers
// send messages to this connector.
//
// If this option is omitted the connector ID is used.
func WithAddress(addr string) EngineOption {
	return func(opts *engineOptions) {
		opts.Address = addr
	}
}

// WithParticipantID returns an engine option that sets the participant ID
// asserted in access tokens issued for data flows.
//
// If this option is omitted the connector ID is used.
func WithParticipantID(id string) EngineOption {
	return func(opts *engineOptions) {
		opts.ParticipantID = id
	}
}

// WithHandlerTimeout returns an engine option that sets the duration the
// engine allows for a single state action.
//
// If this option is omitted or d is zero DefaultHandlerTimeout is used.
func WithHandlerTimeout(d time.Duration) EngineOption {
	mustBePositive(d)

	return func(opts *engineOptions) {
		opts.HandlerTimeout = d
	}
}

// WithBackoff returns an engine option that sets the retry policy used to
// delay retries of failed state actions.
//
// If this option is omitted or p is nil DefaultBackoff is used.
func WithBackoff(p retry.Policy) EngineOption {
	return func(opts *engineOptions) {
		opts.Backoff = p
	}
}

// WithCommandBackoff returns an engine option that sets the backoff strategy
// used by SubmitCommand() while a process is leased.
//
// If this option is omitted or s is nil DefaultCommandBackoff is used.
func WithCommandBackoff(s backoff.Strategy) EngineOption {
	return func(opts *engineOptions) {
		opts.CommandBackoff = s
	}
}

// WithMaxRetries returns an engine option that sets the number of consecutive
// retries permitted in a single state before the process fails.
//
// If this option is omitted or n is zero DefaultMaxRetries is used.
func WithMaxRetries(n uint) EngineOption {
	return func(opts *engineOptions) {
		opts.MaxRetries = n
	}
}

// WithWorkerCount returns an engine option that limits the number of
// processes that are handled at the same time.
//
// If this option is omitted or n is zero DefaultWorkerCount is used.
func WithWorkerCount(n uint) EngineOption {
	return func(opts *engineOptions) {
		opts.WorkerCount = n
	}
}

// WithBatchSize returns an engine option that sets the maximum number of due
// processes of each type loaded by a single poll.
//
// If this option is omitted or n is non-positive DefaultBatchSize is used.
func WithBatchSize(n int) EngineOption {
	return func(opts *engineOptions) {
		opts.BatchSize = n
	}
}

// WithLeaseDuration returns an engine option that sets the duration of the
// lease acquired on a process for each engine pass.
//
// It must be longer than the handler timeout.
//
// If this option is omitted or d is zero DefaultLeaseDuration is used.
func WithLeaseDuration(d time.Duration) EngineOption {
	mustBePositive(d)

	return func(opts *engineOptions) {
		opts.LeaseDuration = d
	}
}

// WithPollInterval returns an engine option that sets how long the engine
// waits before polling again when no processes were due.
//
// If this option is omitted or d is zero DefaultPollInterval is used.
func WithPollInterval(d time.Duration) EngineOption {
	mustBePositive(d)

	return func(opts *engineOptions) {
		opts.PollInterval = d
	}
}

// WithWatchdogInterval returns an engine option that sets the interval at
// which expired leases are cleared.
//
// If this option is omitted or d is zero DefaultWatchdogInterval is used.
func WithWatchdogInterval(d time.Duration) EngineOption {
	mustBePositive(d)

	return func(opts *engineOptions) {
		opts.WatchdogInterval = d
	}
}

// WithAwaitTimeout returns an engine option that sets how long a process may
// wait on its peer before it fails.
//
// If this option is omitted or d is zero DefaultAwaitTimeout is used.
func WithAwaitTimeout(d time.Duration) EngineOption {
	mustBePositive(d)

	return func(opts *engineOptions) {
		opts.AwaitTimeout = d
	}
}

// WithMarshaler returns an engine option that sets the marshaler used to
// marshal process payloads.
//
// If this option is omitted or m is nil, process.NewMarshaler() is used.
func WithMarshaler(m marshalkit.ValueMarshaler) EngineOption {
	return func(opts *engineOptions) {
		opts.Marshaler = m
	}
}

// WithDispatcher returns an engine option that sets the dispatcher used to
// send messages to peers.
//
// If this option is omitted every attempt to send a message fails.
func WithDispatcher(d protocol.Dispatcher) EngineOption {
	return func(opts *engineOptions) {
		opts.Dispatcher = d
	}
}

// WithExecutorRegistry returns an engine option that sets the registry from
// which executors are selected.
//
// It is ignored if the WithSelector() option is used. If both are omitted,
// an empty registry is used.
func WithExecutorRegistry(r executor.Query) EngineOption {
	return func(opts *engineOptions) {
		opts.Registry = r
	}
}

// WithSelector returns an engine option that sets the executor selector.
//
// If this option is omitted an executor.Selector over the executor registry
// is used.
func WithSelector(s handler.ExecutorSelector) EngineOption {
	return func(opts *engineOptions) {
		opts.Selector = s
	}
}

// WithExecutorClient returns an engine option that sets the client used to
// control data flows on executors.
//
// If this option is omitted every call to an executor fails.
func WithExecutorClient(c executor.Client) EngineOption {
	return func(opts *engineOptions) {
		opts.ExecutorClient = c
	}
}

// WithCredentials returns an engine option that sets the issuer of access
// tokens for data flows.
//
// If this option is omitted an in-memory credential.OpaqueIssuer is used.
func WithCredentials(i credential.Issuer) EngineOption {
	return func(opts *engineOptions) {
		opts.Credentials = i
	}
}

// WithSecrets returns an engine option that sets the store used to resolve
// secret references in data destinations.
//
// If this option is omitted secrets are read from environment variables
// prefixed with ACCORD_SECRET_.
func WithSecrets(s credential.SecretStore) EngineOption {
	return func(opts *engineOptions) {
		opts.Secrets = s
	}
}

// WithPolicyEvaluator returns an engine option that sets the evaluator used
// by monitor processes.
//
// If this option is omitted policy.ExpiryEvaluator is used.
func WithPolicyEvaluator(e policy.Evaluator) EngineOption {
	return func(opts *engineOptions) {
		opts.PolicyEvaluator = e
	}
}

// WithAgreementValidity returns an engine option that sets the period for
// which agreements made by this connector remain valid.
//
// If this option is omitted agreements do not expire.
func WithAgreementValidity(d time.Duration) EngineOption {
	mustBePositive(d)

	return func(opts *engineOptions) {
		opts.AgreementValidity = d
	}
}

// WithStatusInterval returns an engine option that sets the interval at
// which the status of active data flows is polled.
//
// If this option is omitted or d is zero, the transfer handler's default is
// used.
func WithStatusInterval(d time.Duration) EngineOption {
	mustBePositive(d)

	return func(opts *engineOptions) {
		opts.StatusInterval = d
	}
}

// WithMonitorInterval returns an engine option that sets the interval between
// compliance checks performed by monitor processes.
//
// If this option is omitted or d is zero, the monitor handler's default is
// used.
func WithMonitorInterval(d time.Duration) EngineOption {
	mustBePositive(d)

	return func(opts *engineOptions) {
		opts.MonitorInterval = d
	}
}

// WithMetrics returns an engine option that registers the engine's Prometheus
// collectors with r.
//
// If this option is omitted no metrics are collected.
func WithMetrics(r prometheus.Registerer) EngineOption {
	return func(opts *engineOptions) {
		opts.Registerer = r
	}
}

// WithLogger returns an engine option that sets the target for log messages
// produced by the engine.
//
// If this option is omitted or l is nil DefaultLogger is used.
func WithLogger(l logging.Logger) EngineOption {
	return func(opts *engineOptions) {
		opts.Logger = l
	}
}

// engineOptions is a container for a fully-resolved set of engine options.
type engineOptions struct {
	PersistenceProvider persistence.Provider
	ConnectorID         string
	NodeID              string
	Address             string
	ParticipantID       string
	HandlerTimeout      time.Duration
	Backoff             retry.Policy
	CommandBackoff      backoff.Strategy
	MaxRetries          uint
	WorkerCount         uint
	BatchSize           int
	LeaseDuration       time.Duration
	PollInterval        time.Duration
	WatchdogInterval    time.Duration
	AwaitTimeout        time.Duration
	Marshaler           marshalkit.ValueMarshaler
	Dispatcher          protocol.Dispatcher
	Registry            executor.Query
	Selector            handler.ExecutorSelector
	ExecutorClient      executor.Client
	Credentials         credential.Issuer
	Secrets             credential.SecretStore
	PolicyEvaluator     policy.Evaluator
	AgreementValidity   time.Duration
	StatusInterval      time.Duration
	MonitorInterval     time.Duration
	Registerer          prometheus.Registerer
	Metrics             *metrics.Metrics
	Logger              logging.Logger
}

// resolveEngineOptions returns a fully-populated set of engine options built
// from the given set of option functions.
func resolveEngineOptions(options ...EngineOption) *engineOptions {
	opts := &engineOptions{}

	for _, o := range options {
		o(opts)
	}

	if opts.PersistenceProvider == nil {
		opts.PersistenceProvider = DefaultPersistenceProvider
	}

	if opts.ConnectorID == "" {
		opts.ConnectorID = DefaultConnectorID
	}

	if opts.NodeID == "" {
		opts.NodeID = defaultNodeID()
	}

	if opts.Address == "" {
		opts.Address = opts.ConnectorID
	}

	if opts.ParticipantID == "" {
		opts.ParticipantID = opts.ConnectorID
	}

	if opts.HandlerTimeout == 0 {
		opts.HandlerTimeout = DefaultHandlerTimeout
	}

	if opts.Backoff == nil {
		opts.Backoff = DefaultBackoff
	}

	if opts.CommandBackoff == nil {
		opts.CommandBackoff = DefaultCommandBackoff
	}

	if opts.MaxRetries == 0 {
		opts.MaxRetries = DefaultMaxRetries
	}

	if opts.WorkerCount == 0 {
		opts.WorkerCount = DefaultWorkerCount
	}

	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}

	if opts.LeaseDuration == 0 {
		opts.LeaseDuration = DefaultLeaseDuration
	}

	if opts.LeaseDuration <= opts.HandlerTimeout {
		panic("lease duration must be longer than the handler timeout")
	}

	if opts.PollInterval == 0 {
		opts.PollInterval = DefaultPollInterval
	}

	if opts.WatchdogInterval == 0 {
		opts.WatchdogInterval = DefaultWatchdogInterval
	}

	if opts.AwaitTimeout == 0 {
		opts.AwaitTimeout = DefaultAwaitTimeout
	}

	if opts.Marshaler == nil {
		opts.Marshaler = process.NewMarshaler()
	}

	if opts.Dispatcher == nil {
		opts.Dispatcher = unconfigured{}
	}

	if opts.Registry == nil {
		opts.Registry = &executor.MemoryRegistry{}
	}

	if opts.Selector == nil {
		opts.Selector = &executor.Selector{Registry: opts.Registry}
	}

	if opts.ExecutorClient == nil {
		opts.ExecutorClient = unconfigured{}
	}

	if opts.Credentials == nil {
		opts.Credentials = &credential.OpaqueIssuer{}
	}

	if opts.Secrets == nil {
		opts.Secrets = credential.ConfigSecretStore{
			Config: config.Environment(),
			Prefix: "ACCORD_SECRET_",
		}
	}

	if opts.PolicyEvaluator == nil {
		opts.PolicyEvaluator = policy.ExpiryEvaluator{}
	}

	if opts.Registerer != nil {
		m, err := metrics.New(opts.Registerer)
		if err != nil {
			panic(err)
		}
		opts.Metrics = m
	}

	if opts.Logger == nil {
		opts.Logger = DefaultLogger
	}

	return opts
}

func mustBePositive(d time.Duration) {
	if d < 0 {
		panic("duration must not be negative")
	}
}

func defaultNodeID() string {
	h, err := os.Hostname()
	if err != nil {
		h = "localhost"
	}

	return h + "." + strconv.Itoa(os.Getpid())
}

// errUnconfigured is returned by collaborators that have not been
// configured.
var errUnconfigured = errors.New("not configured, see accord.WithDispatcher() and accord.WithExecutorClient()")

// unconfigured is a dispatcher and executor client that always fails.
type unconfigured struct{}

func (unconfigured) Send(context.Context, string, protocol.Message) error {
	return errUnconfigured
}

func (unconfigured) StartFlow(context.Context, string, executor.FlowRequest) error {
	return errUnconfigured
}

func (unconfigured) SuspendFlow(context.Context, string, string) error {
	return errUnconfigured
}

func (unconfigured) TerminateFlow(context.Context, string, string) error {
	return errUnconfigured
}

func (unconfigured) FlowStatus(context.Context, string, string) (executor.FlowStatus, error) {
	return "", errUnconfigured
}
