// Package control implements the control acquisition protocol.
//
// A script must hold a Controlled token before it can command an entity.
// Tokens move through
//
//	Idle -> Acquiring -> Controlled -> Releasing -> Idle
//
// Acquire wraps the entity and returns an AcquireOp future. Each poll asks the
// host for control until it is granted, the entity disappears or the waiting
// thread is cancelled; there is no timeout. Waiters for the same entity are
// served in request order, and at most one token per entity is Controlled at
// any time.
//
// Release is idempotent. A Controlled token has its control revoked on the
// host before its entity handle is released; every other live token just
// releases its handle.
package control
