// Package task provides the cooperative task abstraction the bridge uses to
// wait without blocking the host's only thread.
//
// A Future is polled at most once per frame. Each poll either settles the
// future (Done, Cancelled, Failed) or reports Pending, in which case the owner
// polls it again on the next frame:
//
//	f := task.Frames(3)
//	for f.Poll(sig) == task.Pending {
//	    // return to the host, come back next frame
//	}
//
// Every wait re-checks its Signal on every poll, so cancellation is observed
// within one frame. Finally attaches cleanup that runs exactly once on any
// outcome, which is how scoped control tokens are always released.
package task
