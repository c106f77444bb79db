package executor

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// DefaultLivenessWindow is the default period within which an executor must
// have sent a heartbeat to be considered for selection.
var DefaultLivenessWindow = 30 * time.Second

// Strategy chooses one executor from a non-empty set of candidates.
type Strategy interface {
	Choose(candidates []Registration, c Criteria) Registration
}

// Selector picks an executor for a transfer.
type Selector struct {
	// Registry is the source of executor registrations.
	Registry Query

	// Strategy ranks the eligible executors. If it is nil,
	// AffinityStrategy{} is used.
	Strategy Strategy

	// LivenessWindow is the period within which an executor must have sent a
	// heartbeat. If it is zero, DefaultLivenessWindow is used.
	LivenessWindow time.Duration

	// Now returns the current time. If it is nil, time.Now() is used.
	Now func() time.Time
}

// Select returns the ID of an executor that satisfies c.
//
// It returns a NoAvailableExecutorError if no registered executor is healthy,
// live and supports every required capability.
func (s *Selector) Select(ctx context.Context, c Criteria) (string, error) {
	executors, err := s.Registry.Executors(ctx)
	if err != nil {
		return "", err
	}

	candidates := s.Eligible(executors, c)
	if len(candidates) == 0 {
		return "", NoAvailableExecutorError{
			Capabilities: c.Capabilities,
		}
	}

	strategy := s.Strategy
	if strategy == nil {
		strategy = AffinityStrategy{}
	}

	return strategy.Choose(candidates, c).ID, nil
}

// Eligible returns the executors that may be chosen for c.
func (s *Selector) Eligible(executors []Registration, c Criteria) []Registration {
	now := time.Now()
	if s.Now != nil {
		now = s.Now()
	}

	window := s.LivenessWindow
	if window == 0 {
		window = DefaultLivenessWindow
	}

	var candidates []Registration
	for _, x := range executors {
		if x.IsLive(now, window) && x.Supports(c.Capabilities...) {
			candidates = append(candidates, x)
		}
	}

	return candidates
}

// RandomStrategy chooses uniformly at random among the candidates.
type RandomStrategy struct {
	m    sync.Mutex
	rand *rand.Rand
}

// NewRandomStrategy returns a random strategy with a deterministic seed.
func NewRandomStrategy(seed int64) *RandomStrategy {
	return &RandomStrategy{
		rand: rand.New(rand.NewSource(seed)),
	}
}

// Choose returns a random candidate.
func (s *RandomStrategy) Choose(candidates []Registration, _ Criteria) Registration {
	if s == nil || s.rand == nil {
		return candidates[rand.Intn(len(candidates))]
	}

	s.m.Lock()
	defer s.m.Unlock()

	return candidates[s.rand.Intn(len(candidates))]
}

// AffinityStrategy prefers the candidates that carry the most of the
// requested affinity labels, breaking ties with another strategy.
type AffinityStrategy struct {
	// TieBreaker chooses among equally preferred candidates. If it is nil,
	// the choice is uniformly random.
	TieBreaker Strategy
}

// Choose returns the candidate with the highest affinity.
func (s AffinityStrategy) Choose(candidates []Registration, c Criteria) Registration {
	best := -1
	var preferred []Registration

	for _, x := range candidates {
		n := x.Affinity(c.Affinity...)

		switch {
		case n > best:
			best = n
			preferred = append(preferred[:0], x)
		case n == best:
			preferred = append(preferred, x)
		}
	}

	tb := s.TieBreaker
	if tb == nil {
		tb = &RandomStrategy{}
	}

	return tb.Choose(preferred, c)
}
