package capture

import "time"

// Ticker is a cancellable source of ticks.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// Clock creates tick sources. The sequencer never reads wall time directly so
// tests can run it with an instant clock.
type Clock interface {
	NewTicker(d time.Duration) Ticker
	After(d time.Duration) <-chan time.Time
}

// RealClock is backed by the time package.
type RealClock struct{}

func (RealClock) NewTicker(d time.Duration) Ticker { return realTicker{time.NewTicker(d)} }

func (RealClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

type realTicker struct{ t *time.Ticker }

func (r realTicker) C() <-chan time.Time { return r.t.C }
func (r realTicker) Stop()               { r.t.Stop() }

// InstantClock fires every tick and timer immediately. The sequencer still
// walks every state, so step order and frame counts stay observable.
type InstantClock struct{}

func (InstantClock) NewTicker(time.Duration) Ticker { return instantTicker{} }

func (InstantClock) After(time.Duration) <-chan time.Time { return closedChan() }

type instantTicker struct{}

func (instantTicker) C() <-chan time.Time { return closedChan() }
func (instantTicker) Stop()               {}

func closedChan() <-chan time.Time {
	ch := make(chan time.Time)
	close(ch)
	return ch
}
