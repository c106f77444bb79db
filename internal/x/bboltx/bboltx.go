// Package bboltx contains helpers for BoltDB that report failures by
// panicking with a PanicSentinel, so that the body of a transaction can be
// written without checking each error.
package bboltx

// PanicSentinel is the value panicked by Must().
type PanicSentinel struct {
	Cause error
}

// Must panics with a PanicSentinel if err is non-nil.
func Must(err error) {
	if err != nil {
		panic(PanicSentinel{err})
	}
}

// Recover assigns the cause of a PanicSentinel panic to *err.
//
// It must be called directly by a deferred statement. Any other panic value
// is re-panicked.
func Recover(err *error) {
	if err == nil {
		panic("err must be a non-nil pointer")
	}

	r := recover()
	if r == nil {
		return
	}

	if s, ok := r.(PanicSentinel); ok {
		*err = s.Cause
		return
	}

	panic(r)
}
