// Package clock abstracts wall time so the monitor can be driven from tests.
package clock

import "time"

// Clock time source
type Clock interface {
	Now() time.Time
	NewTicker(d time.Duration) Ticker
}

// Ticker subset of *time.Ticker
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// Real returns the system clock
func Real() Clock {
	return realClock{}
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) NewTicker(d time.Duration) Ticker {
	return &realTicker{t: time.NewTicker(d)}
}

type realTicker struct {
	t *time.Ticker
}

func (r *realTicker) C() <-chan time.Time { return r.t.C }

func (r *realTicker) Stop() { r.t.Stop() }
