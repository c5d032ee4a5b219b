package script

import (
	lua "github.com/yuin/gopher-lua"

	"github.com/wippyai/scriptbridge/control"
	"github.com/wippyai/scriptbridge/errors"
	"github.com/wippyai/scriptbridge/host"
	"github.com/wippyai/scriptbridge/task"
)

// thread is one logical script thread backed by a Lua coroutine.
type thread struct {
	co      *lua.LState
	fn      *lua.LFunction
	pending *pending
	tokens  []*control.Token
	name    string
	args    []lua.LValue
	seq     uint64
	slot    int
	id      host.ThreadID
	cancel  task.Flag
	started bool
	done    bool
}

// pending is a blocking call the thread is suspended on. result converts the
// settled status into the values the binding returns to Lua.
type pending struct {
	fut    task.Future
	result func(task.Status) []lua.LValue
}

var cancelled task.Signal = task.SignalFunc(func() bool { return true })

func (e *Environment) spawn(name string, id host.ThreadID, slot int, fn *lua.LFunction, args []lua.LValue) *thread {
	co, _ := e.L.NewThread()
	e.threadSeq++
	th := &thread{
		co:   co,
		fn:   fn,
		name: name,
		args: args,
		seq:  e.threadSeq,
		slot: slot,
		id:   id,
	}
	e.threads[co] = th
	return th
}

// signal combines the thread's own flag, the environment's flag and the
// host's per-thread cancellation query.
func (e *Environment) signal(th *thread) task.Signal {
	h := e.reg.svc.Host
	return task.Any(&th.cancel, &e.cancel, task.SignalFunc(func() bool {
		return h.Cancelled(th.id)
	}))
}

// run advances th by at most one resume. A cancelled thread gets its
// pending future polled once for cleanup and is never resumed.
func (e *Environment) run(th *thread) error {
	if th.done {
		return nil
	}
	sig := e.signal(th)
	if sig.Cancelled() {
		e.abandon(th)
		return nil
	}

	var args []lua.LValue
	if !th.started {
		args = th.args
	}
	if p := th.pending; p != nil {
		st := p.fut.Poll(sig)
		if st == task.Pending {
			return nil
		}
		th.pending = nil
		args = p.result(st)
	}

	th.started = true
	state, err, _ := e.L.Resume(th.co, th.fn, args...)
	switch state {
	case lua.ResumeOK:
		e.finish(th)
	case lua.ResumeError:
		e.abandon(th)
		return errors.ScriptFault(errors.PhaseScript, e.owner.String(), th.name, err)
	}
	return nil
}

// finish marks th dead. A pending future is polled once with a set signal
// so it can release what it holds.
func (e *Environment) finish(th *thread) {
	if p := th.pending; p != nil {
		th.pending = nil
		p.fut.Poll(cancelled)
	}
	th.done = true
	delete(e.threads, th.co)
}

// abandon finishes a cancelled or faulted th and releases every token it
// acquired. Tokens of a thread that returns normally stay open for the
// environment's other threads.
func (e *Environment) abandon(th *thread) {
	e.finish(th)
	ctrl := e.reg.svc.Controller
	for _, t := range th.tokens {
		ctrl.Release(t)
	}
	th.tokens = nil
}

// adopt records t as acquired by th, dropping tokens already released.
func (th *thread) adopt(t *control.Token) {
	live := th.tokens[:0]
	for _, o := range th.tokens {
		if o.State() != control.Idle {
			live = append(live, o)
		}
	}
	th.tokens = append(live, t)
}

// block implements a blocking binding. The future gets its first poll right
// away; if it settles the results are returned directly, otherwise the
// calling thread yields until Tick sees the future settle.
func (e *Environment) block(L *lua.LState, fut task.Future, result func(task.Status) []lua.LValue) int {
	th, ok := e.threads[L]
	sig := task.Never
	if ok {
		sig = e.signal(th)
	}

	if st := fut.Poll(sig); st.Settled() {
		vals := result(st)
		for _, v := range vals {
			L.Push(v)
		}
		return len(vals)
	}

	if !ok {
		fut.Poll(cancelled)
		L.RaiseError("blocking call outside a logical thread")
		return 0
	}
	th.pending = &pending{fut: fut, result: result}
	return L.Yield()
}
