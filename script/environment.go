package script

import (
	"bytes"
	"sort"
	"time"

	"github.com/google/uuid"
	lua "github.com/yuin/gopher-lua"

	"github.com/wippyai/scriptbridge/errors"
	"github.com/wippyai/scriptbridge/slots"
	"github.com/wippyai/scriptbridge/task"
)

// Environment is one owner's isolated Lua state and the threads running in
// it.
type Environment struct {
	created     time.Time
	reg         *Registry
	L           *lua.LState
	self        *lua.LTable
	main        *thread
	threads     map[*lua.LState]*thread
	slotThreads map[int]*thread
	slots       *slots.Registry
	script      string
	file        string
	owner       Owner
	cancel      task.Flag
	faults      int
	threadSeq   uint64
	id          uuid.UUID
	closed      bool
}

// ThreadInfo describes one live logical thread.
type ThreadInfo struct {
	Name    string
	ID      uint64
	Slot    int
	Waiting bool
}

// Info is a diagnostic view of an environment.
type Info struct {
	Created time.Time
	Owner   Owner
	Script  string
	Threads []ThreadInfo
	Slots   []slots.Slot
	Faults  int
	ID      uuid.UUID
}

func newEnvironment(r *Registry, owner Owner, script, file string, src []byte) (*Environment, error) {
	e := &Environment{
		created:     time.Now(),
		reg:         r,
		owner:       owner,
		script:      script,
		file:        file,
		id:          uuid.New(),
		threads:     make(map[*lua.LState]*thread),
		slotThreads: make(map[int]*thread),
	}

	opts := []slots.Option{
		slots.WithHost(r.svc.Host),
		slots.WithSignal(&e.cancel),
		slots.WithThreadIDs(r.nextThread),
		slots.WithOwner(owner.String()),
	}
	for _, o := range r.slotObservers {
		opts = append(opts, slots.WithObserver(o))
	}
	e.slots = slots.New(r.slotCapacity, e, opts...)

	e.L = newSandbox()
	e.install()

	fn, err := e.L.Load(bytes.NewReader(src), "@"+file)
	if err != nil {
		e.L.Close()
		return nil, errors.New(errors.PhaseEnvironment, errors.KindLoad).
			Owner(owner.String()).
			Detail("compile %s", file).
			Cause(err).
			Build()
	}
	e.L.Push(fn)
	if err := e.L.PCall(0, 0, nil); err != nil {
		e.L.Close()
		return nil, errors.New(errors.PhaseEnvironment, errors.KindLoad).
			Owner(owner.String()).
			Detail("run %s", file).
			Cause(err).
			Build()
	}
	return e, nil
}

// newSandbox opens the safe standard libraries only.
func newSandbox() *lua.LState {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	for _, lib := range []struct {
		name string
		fn   lua.LGFunction
	}{
		{lua.BaseLibName, lua.OpenBase},
		{lua.TabLibName, lua.OpenTable},
		{lua.StringLibName, lua.OpenString},
		{lua.MathLibName, lua.OpenMath},
		{lua.CoroutineLibName, lua.OpenCoroutine},
	} {
		L.Push(L.NewFunction(lib.fn))
		L.Push(lua.LString(lib.name))
		L.Call(1, 0)
	}
	for _, name := range []string{"dofile", "loadfile", "load", "loadstring", "require", "module", "collectgarbage"} {
		L.SetGlobal(name, lua.LNil)
	}
	return L
}

// start calls Init(self) synchronously and starts Main(self) as a thread.
func (e *Environment) start() {
	if fn, ok := e.L.GetGlobal("Init").(*lua.LFunction); ok {
		err := e.L.CallByParam(lua.P{Fn: fn, NRet: 0, Protect: true}, e.self)
		if err != nil {
			e.fault("Init", err)
		}
	}
	if fn, ok := e.L.GetGlobal("Main").(*lua.LFunction); ok {
		e.main = e.spawn("Main", e.reg.nextThread(), -1, fn, []lua.LValue{e.self})
		if err := e.run(e.main); err != nil {
			e.fault("Main", err)
		}
	}
}

// step runs one frame: Main, then every slot trampoline, then cleanup of
// cancelled threads.
func (e *Environment) step() {
	if e.closed {
		return
	}
	if e.main != nil && !e.main.done {
		if err := e.run(e.main); err != nil {
			e.fault("Main", err)
		}
	}
	e.slots.RunFrame()
	e.reap()
}

// InvokeContinuation runs slot s. A continuation still waiting from an
// earlier frame is resumed; otherwise a fresh invocation starts.
func (e *Environment) InvokeContinuation(s slots.Slot) error {
	if e.closed {
		return errors.Closed(errors.PhaseSchedule, "environment")
	}
	err := e.continuation(s)
	if err != nil {
		// the slot registry logs it
		e.faults++
		e.reg.notify(Event{Type: EventFault, Owner: e.owner, Entry: s.Name, Err: err})
	}
	return err
}

func (e *Environment) continuation(s slots.Slot) error {
	th := e.slotThreads[s.Index]
	if th == nil || th.done {
		fn, ok := e.L.GetGlobal(s.Name).(*lua.LFunction)
		if !ok {
			return errors.NotFound(errors.PhaseSchedule, "continuation", s.Name)
		}
		th = e.spawn(s.Name, s.Thread, s.Index, fn, e.argsToLua(s.Args))
		e.slotThreads[s.Index] = th
	}
	return e.run(th)
}

// reap discards threads whose cancellation was observed outside run, such
// as slot threads skipped by their trampoline.
func (e *Environment) reap() {
	for _, th := range e.liveThreads() {
		if e.signal(th).Cancelled() {
			e.abandon(th)
		}
	}
}

func (e *Environment) close() {
	if e.closed {
		return
	}
	e.cancel.Cancel()
	for _, th := range e.liveThreads() {
		e.abandon(th)
	}
	e.slots.Close()
	e.reg.svc.Controller.ReleaseOwner(e.owner.String())
	e.closed = true
	e.L.Close()
}

func (e *Environment) persist(ctx any) error {
	fn, ok := e.L.GetGlobal("OnPersist").(*lua.LFunction)
	if !ok {
		return nil
	}
	return e.L.CallByParam(lua.P{Fn: fn, NRet: 0, Protect: true}, e.self, e.newTransfer(ctx))
}

func (e *Environment) fault(entry string, err error) {
	e.faults++
	e.reg.fault(e.owner, entry, err)
}

// ID returns the environment's instance id. It changes on every create.
func (e *Environment) ID() uuid.UUID { return e.id }

func (e *Environment) Owner() Owner { return e.owner }

// Script returns the script name the environment was created from.
func (e *Environment) Script() string { return e.script }

// File returns the resolved script file.
func (e *Environment) File() string { return e.file }

// Slots returns the environment's slot registry.
func (e *Environment) Slots() *slots.Registry { return e.slots }

// Faults returns how many script faults the environment has logged.
func (e *Environment) Faults() int { return e.faults }

// Closed reports whether the environment has been destroyed.
func (e *Environment) Closed() bool { return e.closed }

// Info returns a diagnostic snapshot.
func (e *Environment) Info() Info {
	info := Info{
		ID:      e.id,
		Owner:   e.owner,
		Script:  e.script,
		Created: e.created,
		Faults:  e.faults,
		Slots:   e.slots.Slots(),
	}
	for _, th := range e.liveThreads() {
		info.Threads = append(info.Threads, ThreadInfo{
			ID:      uint64(th.id),
			Name:    th.name,
			Slot:    th.slot,
			Waiting: th.pending != nil,
		})
	}
	return info
}

func (e *Environment) liveThreads() []*thread {
	out := make([]*thread, 0, len(e.threads))
	for _, th := range e.threads {
		out = append(out, th)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].seq < out[j].seq })
	return out
}
