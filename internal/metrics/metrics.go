package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"
)

// Metrics is the set of Prometheus collectors maintained by the engine.
//
// All methods are safe to call on a nil *Metrics, in which case they do
// nothing.
type Metrics struct {
	passes      *prometheus.CounterVec
	passTime    *prometheus.HistogramVec
	transitions *prometheus.CounterVec
	conflicts   *prometheus.CounterVec
	inbound     *prometheus.CounterVec
	reclaimed   prometheus.Counter
}

// New returns a new set of collectors registered with r.
//
// Collectors that are already registered with r are reused.
func New(r prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		passes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "accord",
				Subsystem: "engine",
				Name:      "passes_total",
				Help:      "Number of engine passes by process type and outcome.",
			}, []string{"type", "outcome"},
		),
		passTime: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "accord",
				Subsystem: "engine",
				Name:      "pass_duration_seconds",
				Help:      "Duration of engine passes by process type.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"type"},
		),
		transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "accord",
				Subsystem: "process",
				Name:      "state_transitions_total",
				Help:      "Number of committed state transitions.",
			}, []string{"type", "from", "to"},
		),
		conflicts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "accord",
				Subsystem: "engine",
				Name:      "conflicts_total",
				Help:      "Number of discarded writes due to optimistic concurrency conflicts.",
			}, []string{"type"},
		),
		inbound: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "accord",
				Subsystem: "protocol",
				Name:      "inbound_messages_total",
				Help:      "Number of messages received from peers by message type and result.",
			}, []string{"message_type", "result"},
		),
		reclaimed: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "accord",
				Subsystem: "watchdog",
				Name:      "leases_reclaimed_total",
				Help:      "Number of expired leases cleared by the watchdog.",
			},
		),
	}

	if r == nil {
		return m, nil
	}

	if err := multierr.Combine(
		register(r, &m.passes),
		register(r, &m.passTime),
		register(r, &m.transitions),
		register(r, &m.conflicts),
		register(r, &m.inbound),
		register(r, &m.reclaimed),
	); err != nil {
		return nil, err
	}

	return m, nil
}

// ObservePass records the outcome and duration of an engine pass.
func (m *Metrics) ObservePass(t, outcome string, d time.Duration) {
	if m == nil {
		return
	}

	m.passes.WithLabelValues(t, outcome).Inc()
	m.passTime.WithLabelValues(t).Observe(d.Seconds())
}

// RecordTransition records a committed state transition.
func (m *Metrics) RecordTransition(t, from, to string) {
	if m == nil || from == to {
		return
	}

	m.transitions.WithLabelValues(t, from, to).Inc()
}

// RecordConflict records a discarded write.
func (m *Metrics) RecordConflict(t string) {
	if m == nil {
		return
	}

	m.conflicts.WithLabelValues(t).Inc()
}

// RecordInbound records the result of handling a message from a peer.
func (m *Metrics) RecordInbound(mt string, err error) {
	if m == nil {
		return
	}

	result := "accepted"
	if err != nil {
		result = "rejected"
	}

	m.inbound.WithLabelValues(mt, result).Inc()
}

// RecordReclaimed records leases cleared by the watchdog.
func (m *Metrics) RecordReclaimed(n int) {
	if m == nil || n == 0 {
		return
	}

	m.reclaimed.Add(float64(n))
}

// register registers *c with r, replacing *c with the existing collector if
// an equivalent one is already registered.
func register[T prometheus.Collector](r prometheus.Registerer, c *T) error {
	err := r.Register(*c)
	if err == nil {
		return nil
	}

	var are prometheus.AlreadyRegisteredError
	if !errors.As(err, &are) {
		return err
	}

	if x, ok := are.ExistingCollector.(T); ok {
		*c = x
		return nil
	}

	return err
}
