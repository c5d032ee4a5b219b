package control

import (
	"sort"

	"go.uber.org/zap"

	"github.com/wippyai/scriptbridge/errors"
	"github.com/wippyai/scriptbridge/handle"
	"github.com/wippyai/scriptbridge/host"
	"github.com/wippyai/scriptbridge/task"
)

// Controller owns every live token. It is driven from the host's frame thread
// only and takes no locks.
type Controller struct {
	host      *host.Table
	handles   *handle.Table
	live      map[host.TokenID]*Token
	waiting   map[host.EntityID][]*Token
	holders   map[host.EntityID]*Token
	observers []Observer
	nextID    host.TokenID
}

// NewController creates a controller that wraps entities through handles and
// asks h for grants.
func NewController(h *host.Table, handles *handle.Table) *Controller {
	return &Controller{
		host:    h,
		handles: handles,
		live:    make(map[host.TokenID]*Token),
		waiting: make(map[host.EntityID][]*Token),
		holders: make(map[host.EntityID]*Token),
	}
}

// Subscribe adds an observer for token events.
func (c *Controller) Subscribe(o Observer) {
	c.observers = append(c.observers, o)
}

// Acquire starts acquiring control of entity for owner. The returned future
// must be polled, starting on the calling frame, until it settles.
func (c *Controller) Acquire(owner string, entity host.EntityID) *AcquireOp {
	h, err := c.handles.Wrap(entity)
	if err != nil {
		Logger().Debug("acquire failed to wrap entity",
			zap.String("owner", owner),
			zap.Uint64("entity", uint64(entity)),
			zap.Error(err))
		return &AcquireOp{c: c, err: err, status: task.Failed}
	}

	c.nextID++
	tok := &Token{
		id:     c.nextID,
		owner:  owner,
		entity: entity,
		handle: h,
		state:  Acquiring,
	}
	c.live[tok.id] = tok
	c.waiting[entity] = append(c.waiting[entity], tok)
	c.notify(tok, EventRequested)
	return &AcquireOp{c: c, tok: tok}
}

// Holder returns the Controlled token for entity, if any.
func (c *Controller) Holder(entity host.EntityID) (*Token, bool) {
	t, ok := c.holders[entity]
	return t, ok
}

// Release hands control back and releases the token's handle. Releasing an
// Idle or already releasing token does nothing.
func (c *Controller) Release(t *Token) {
	if t == nil {
		return
	}
	switch t.state {
	case Idle, Releasing:
		return
	case Acquiring:
		c.teardown(t)
		c.notify(t, EventReleased)
	case Controlled:
		t.state = Releasing
		delete(c.holders, t.entity)
		if err := c.host.Revoke(t.entity, t.id); err != nil {
			Logger().Warn("revoke control",
				zap.String("owner", t.owner),
				zap.Uint64("entity", uint64(t.entity)),
				zap.Error(err))
		}
		c.teardown(t)
		c.notify(t, EventReleased)
	}
}

// ReleaseOwner releases every live token held by owner and returns how many
// were released.
func (c *Controller) ReleaseOwner(owner string) int {
	n := 0
	for _, t := range c.Tokens(owner) {
		c.Release(t)
		n++
	}
	return n
}

// Tokens returns owner's live tokens in creation order. An empty owner
// matches every token.
func (c *Controller) Tokens(owner string) []*Token {
	out := make([]*Token, 0, len(c.live))
	for _, t := range c.live {
		if owner == "" || t.owner == owner {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

// Len returns the number of live tokens.
func (c *Controller) Len() int {
	return len(c.live)
}

// Close releases every live token.
func (c *Controller) Close() {
	for _, t := range c.Tokens("") {
		c.Release(t)
	}
}

// teardown drops t from all indexes and releases its handle once.
func (c *Controller) teardown(t *Token) {
	c.dequeue(t)
	if c.holders[t.entity] == t {
		delete(c.holders, t.entity)
	}
	delete(c.live, t.id)
	t.handle.Release()
	t.state = Idle
}

func (c *Controller) dequeue(t *Token) {
	q := c.waiting[t.entity]
	for i, w := range q {
		if w == t {
			q = append(q[:i], q[i+1:]...)
			break
		}
	}
	if len(q) == 0 {
		delete(c.waiting, t.entity)
	} else {
		c.waiting[t.entity] = q
	}
}

func (c *Controller) head(entity host.EntityID) *Token {
	q := c.waiting[entity]
	if len(q) == 0 {
		return nil
	}
	return q[0]
}

func (c *Controller) notify(t *Token, typ EventType) {
	e := Event{Type: typ, Token: t.id, Entity: t.entity, Owner: t.owner}
	for _, o := range c.observers {
		o.OnTokenEvent(e)
	}
}

// AcquireOp is the future returned by Acquire.
type AcquireOp struct {
	c      *Controller
	tok    *Token
	err    error
	status task.Status
}

// Token returns the token being acquired. It is nil when the entity could not
// be wrapped.
func (op *AcquireOp) Token() *Token { return op.tok }

// Err explains a Cancelled or Failed outcome.
func (op *AcquireOp) Err() error { return op.err }

// Poll makes one acquisition attempt.
func (op *AcquireOp) Poll(sig task.Signal) task.Status {
	if op.status.Settled() {
		return op.status
	}
	c, t := op.c, op.tok

	if t.state != Acquiring {
		return op.settle(task.Cancelled, errors.Cancelled(errors.PhaseAcquire, uint64(t.entity)))
	}
	if sig != nil && sig.Cancelled() {
		c.teardown(t)
		c.notify(t, EventCancelled)
		return op.settle(task.Cancelled, errors.Cancelled(errors.PhaseAcquire, uint64(t.entity)))
	}
	if !t.handle.Present() {
		c.teardown(t)
		c.notify(t, EventFailed)
		return op.settle(task.Failed, errors.EntityAbsent(errors.PhaseAcquire, uint64(t.entity)))
	}
	if _, held := c.holders[t.entity]; held || c.head(t.entity) != t {
		return task.Pending
	}

	granted, err := c.host.Grant(t.entity, t.id)
	if err != nil {
		Logger().Warn("grant control",
			zap.String("owner", t.owner),
			zap.Uint64("entity", uint64(t.entity)),
			zap.Error(err))
		c.teardown(t)
		c.notify(t, EventFailed)
		return op.settle(task.Failed, err)
	}
	if !granted {
		c.notify(t, EventDenied)
		return task.Pending
	}

	c.dequeue(t)
	c.holders[t.entity] = t
	t.state = Controlled
	c.notify(t, EventGranted)
	return op.settle(task.Done, nil)
}

func (op *AcquireOp) settle(st task.Status, err error) task.Status {
	op.status = st
	op.err = err
	return st
}
