package policy

import (
	"context"
	"fmt"
	"time"
)

// Subject is the context against which a policy is evaluated.
type Subject struct {
	// Policy is the policy of the agreement, in an implementation-specific
	// language.
	Policy string

	AgreementID string
	TransferID  string

	// NotAfter is the time at which the agreement expires, if any.
	NotAfter time.Time

	// Now is the time of evaluation.
	Now time.Time
}

// Decision is the result of evaluating a policy.
type Decision struct {
	// Compliant is false if the policy has been violated.
	Compliant bool

	// Reason describes the violation.
	Reason string
}

// Permit is the decision that the policy has not been violated.
var Permit = Decision{Compliant: true}

// Deny returns a decision that the policy has been violated.
func Deny(f string, v ...interface{}) Decision {
	return Decision{Reason: fmt.Sprintf(f, v...)}
}

// Evaluator determines whether an ongoing transfer still complies with its
// agreement.
type Evaluator interface {
	Evaluate(ctx context.Context, s Subject) (Decision, error)
}

// EvaluatorFunc is an adaptor to use a function as an Evaluator.
type EvaluatorFunc func(context.Context, Subject) (Decision, error)

// Evaluate returns fn(ctx, s).
func (fn EvaluatorFunc) Evaluate(ctx context.Context, s Subject) (Decision, error) {
	return fn(ctx, s)
}

// ExpiryEvaluator denies transfers once their agreement has expired.
type ExpiryEvaluator struct{}

// Evaluate denies s if its agreement has an expiry time that has passed.
func (ExpiryEvaluator) Evaluate(_ context.Context, s Subject) (Decision, error) {
	if s.NotAfter.IsZero() || s.Now.Before(s.NotAfter) {
		return Permit, nil
	}

	return Deny(
		"agreement %s expired at %s",
		s.AgreementID,
		s.NotAfter.Format(time.RFC3339),
	), nil
}

// AllOf returns an evaluator that permits a subject only if every one of the
// given evaluators permits it.
func AllOf(evaluators ...Evaluator) Evaluator {
	return EvaluatorFunc(func(ctx context.Context, s Subject) (Decision, error) {
		for _, e := range evaluators {
			d, err := e.Evaluate(ctx, s)
			if err != nil || !d.Compliant {
				return d, err
			}
		}

		return Permit, nil
	})
}
