// Package slots implements the fixed-capacity scheduler-slot registry.
//
// The host's per-frame scheduler can only call entry points it was given up
// front. The registry therefore builds one trampoline per slot index when it
// is created; Register fills the next free slot with a continuation name, its
// arguments and an optional region, and the trampoline for that index starts
// forwarding to it:
//
//	r := slots.New(20, invoker, slots.WithHost(hostTable))
//	idx, err := r.Register("patrol", []any{int64(3)}, "harbor")
//	// r.Trampoline(idx) is now live
//
// Registration beyond capacity fails with a capacity_exhausted error and
// changes nothing. Slots are never removed individually; Clear discards all
// of them.
//
// A trampoline never lets a failure escape to the host. A continuation that
// returns an error or panics is logged and the frame moves on to the next
// slot.
package slots
