package retry

import (
	"math"
	"math/rand"
	"time"
)

// Policy is an interface for determining when a failed process pass should
// next be attempted.
type Policy interface {
	// NextRetry returns the time at which the process is next due.
	//
	// retries is the number of failed passes that preceded this failure.
	NextRetry(now time.Time, retries uint, cause error) time.Time
}

// ExponentialBackoff is a retry policy that uses exponential backoff.
//
// The delay is min(Max, Min * 2^retries), adjusted by a random amount of up to
// ±Jitter of itself.
type ExponentialBackoff struct {
	Min    time.Duration
	Max    time.Duration
	Jitter float64
}

// NextRetry returns the time at which the process is next due.
func (p ExponentialBackoff) NextRetry(
	now time.Time,
	retries uint,
	_ error,
) time.Time {
	return now.Add(
		p.Delay(retries),
	)
}

// Delay returns the delay to apply after the n'th retry.
//
// The delay is always positive.
func (p ExponentialBackoff) Delay(n uint) time.Duration {
	s := math.Pow(2, float64(n)) * p.Min.Seconds()

	if s > p.Max.Seconds() {
		s = p.Max.Seconds()
	}

	j := p.Jitter
	if j > 1 {
		j = 1
	}

	s *= 1 + (rand.Float64()*2-1)*j

	d := time.Duration(
		s * float64(time.Second),
	)

	if d <= 0 {
		d = time.Nanosecond
	}

	return d
}
