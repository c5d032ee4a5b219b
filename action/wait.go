package action

import (
	"github.com/wippyai/scriptbridge/control"
	"github.com/wippyai/scriptbridge/errors"
	"github.com/wippyai/scriptbridge/host"
	"github.com/wippyai/scriptbridge/task"
)

// WaitOp issues a request and waits for the entity to go idle.
type WaitOp struct {
	d      *Dispatcher
	tok    *control.Token
	err    error
	status task.Status
}

// IssueAndWait issues req immediately. The returned future settles Done once
// the host reports no action in progress, Failed if the request was not
// issued and Cancelled as soon as the signal is set. A cancelled wait leaves
// the in-flight action running.
func (d *Dispatcher) IssueAndWait(tok *control.Token, req Request) *WaitOp {
	op := &WaitOp{d: d, tok: tok}
	if err := d.Issue(tok, req); err != nil {
		op.status = task.Failed
		op.err = err
	}
	return op
}

// Err explains a Failed or Cancelled outcome.
func (op *WaitOp) Err() error { return op.err }

func (op *WaitOp) Poll(sig task.Signal) task.Status {
	if op.status.Settled() {
		return op.status
	}
	if sig != nil && sig.Cancelled() {
		op.status = task.Cancelled
		op.err = errors.Cancelled(errors.PhaseDispatch, uint64(op.tok.Entity()))
		return op.status
	}
	if op.d.InProgress(op.tok) {
		return task.Pending
	}
	op.status = task.Done
	return op.status
}

// ScopedOp acquires an entity, issues one request, waits for it and releases
// the token on every outcome.
type ScopedOp struct {
	d       *Dispatcher
	req     Request
	acquire *control.AcquireOp
	wait    *WaitOp
	err     error
	status  task.Status
}

// Scoped starts a scoped call for owner on entity.
func (d *Dispatcher) Scoped(owner string, entity host.EntityID, req Request) *ScopedOp {
	return &ScopedOp{
		d:       d,
		req:     req,
		acquire: d.ctrl.Acquire(owner, entity),
	}
}

// Token returns the token used by the call, or nil if wrapping failed.
func (op *ScopedOp) Token() *control.Token { return op.acquire.Token() }

// Err explains a Failed or Cancelled outcome.
func (op *ScopedOp) Err() error { return op.err }

func (op *ScopedOp) Poll(sig task.Signal) task.Status {
	if op.status.Settled() {
		return op.status
	}
	if op.wait == nil {
		st := op.acquire.Poll(sig)
		switch st {
		case task.Pending:
			return task.Pending
		case task.Done:
			op.wait = op.d.IssueAndWait(op.acquire.Token(), op.req)
		default:
			return op.settle(st, op.acquire.Err())
		}
	}

	st := op.wait.Poll(sig)
	if st == task.Pending {
		return task.Pending
	}
	op.d.ctrl.Release(op.acquire.Token())
	return op.settle(st, op.wait.Err())
}

// Cancel releases the token without waiting for a poll. Used when the owning
// thread is discarded instead of unwound.
func (op *ScopedOp) Cancel() {
	if op.status.Settled() {
		return
	}
	op.d.ctrl.Release(op.acquire.Token())
	op.settle(task.Cancelled, errors.Cancelled(errors.PhaseDispatch, 0))
}

func (op *ScopedOp) settle(st task.Status, err error) task.Status {
	op.status = st
	op.err = err
	return st
}
