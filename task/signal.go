package task

import "sync/atomic"

// Signal reports whether the logical thread waiting on a future is being torn
// down.
type Signal interface {
	Cancelled() bool
}

// SignalFunc adapts a function to Signal.
type SignalFunc func() bool

func (f SignalFunc) Cancelled() bool {
	if f == nil {
		return false
	}
	return f()
}

// Never is a Signal that is never set.
var Never Signal = SignalFunc(nil)

// Flag is a settable cancellation signal.
type Flag struct {
	set atomic.Bool
}

// Cancel sets the flag.
func (f *Flag) Cancel() { f.set.Store(true) }

// Reset clears the flag.
func (f *Flag) Reset() { f.set.Store(false) }

// Cancelled reports whether the flag is set.
func (f *Flag) Cancelled() bool { return f != nil && f.set.Load() }

type anySignal []Signal

func (s anySignal) Cancelled() bool {
	for _, sig := range s {
		if sig != nil && sig.Cancelled() {
			return true
		}
	}
	return false
}

// Any returns a Signal that is set when any of sigs is set.
func Any(sigs ...Signal) Signal {
	return anySignal(sigs)
}
