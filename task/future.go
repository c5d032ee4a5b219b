package task

// Status is the outcome of a single poll.
type Status uint8

const (
	Pending   Status = iota // not settled, poll again next frame
	Done                    // completed normally
	Cancelled               // abandoned because the signal was set
	Failed                  // could not complete
)

func (s Status) String() string {
	switch s {
	case Pending:
		return "pending"
	case Done:
		return "done"
	case Cancelled:
		return "cancelled"
	case Failed:
		return "failed"
	}
	return "unknown"
}

// Settled reports whether s is a final status.
func (s Status) Settled() bool {
	return s != Pending
}

// Future is a unit of cooperative work.
type Future interface {
	Poll(sig Signal) Status
}

// Func adapts a function to Future.
type Func func(sig Signal) Status

func (f Func) Poll(sig Signal) Status { return f(sig) }

// Ready returns a future that settles with s on its first poll.
func Ready(s Status) Future {
	return Func(func(Signal) Status { return s })
}

type frames struct {
	remaining int
}

// Frames returns a future that stays Pending for n polls and is Done on the
// next one. It settles Cancelled as soon as the signal is observed.
func Frames(n int) Future {
	if n < 0 {
		n = 0
	}
	return &frames{remaining: n}
}

func (f *frames) Poll(sig Signal) Status {
	if sig != nil && sig.Cancelled() {
		return Cancelled
	}
	if f.remaining > 0 {
		f.remaining--
		return Pending
	}
	return Done
}

type then struct {
	first  Future
	next   func(Status) Future
	second Future
}

// Then runs first and, once it settles, hands its status to next. When next
// returns nil the first status is final. The second future gets its first
// poll on the same frame the first one settled.
func Then(first Future, next func(Status) Future) Future {
	return &then{first: first, next: next}
}

func (t *then) Poll(sig Signal) Status {
	if t.second != nil {
		return t.second.Poll(sig)
	}
	st := t.first.Poll(sig)
	if st == Pending {
		return Pending
	}
	t.second = t.next(st)
	if t.second == nil {
		t.second = Ready(st)
	}
	return t.second.Poll(sig)
}

type finally struct {
	f       Future
	cleanup func(Status)
	done    bool
	status  Status
}

// Finally wraps f so cleanup runs exactly once, with the settled status, the
// first time f settles.
func Finally(f Future, cleanup func(Status)) Future {
	return &finally{f: f, cleanup: cleanup}
}

func (f *finally) Poll(sig Signal) Status {
	if f.done {
		return f.status
	}
	st := f.f.Poll(sig)
	if st == Pending {
		return Pending
	}
	f.done = true
	f.status = st
	if f.cleanup != nil {
		f.cleanup(st)
	}
	return st
}

// Drive polls f until it settles or maxPolls polls have been made. It returns
// the last status and the number of polls. maxPolls <= 0 means no limit.
func Drive(f Future, sig Signal, maxPolls int) (Status, int) {
	n := 0
	for {
		st := f.Poll(sig)
		n++
		if st.Settled() || (maxPolls > 0 && n >= maxPolls) {
			return st, n
		}
	}
}
