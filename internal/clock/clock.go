// Package clock provides the time source injected into scheduling and
// timestamp stamping, so tests can pin "now".
package clock

import "time"

type Clock interface {
	Now() time.Time
}

type realClock struct{}

func New() Clock { return realClock{} }

func (realClock) Now() time.Time { return time.Now() }

// Fixed is a clock pinned to a settable instant.
type Fixed struct {
	T time.Time
}

func (f *Fixed) Now() time.Time { return f.T }

// Advance moves the fixed clock forward.
func (f *Fixed) Advance(d time.Duration) { f.T = f.T.Add(d) }
