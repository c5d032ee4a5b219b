package slots

import (
	"fmt"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/wippyai/scriptbridge/errors"
	"github.com/wippyai/scriptbridge/host"
	"github.com/wippyai/scriptbridge/internal/simhost"
	"github.com/wippyai/scriptbridge/task"
)

type callLog struct {
	names []string
	fail  map[string]error
	panic map[string]bool
}

func (c *callLog) InvokeContinuation(s Slot) error {
	c.names = append(c.names, s.Name)
	if c.panic[s.Name] {
		panic("boom in " + s.Name)
	}
	return c.fail[s.Name]
}

func TestRegister_Capacity(t *testing.T) {
	r := New(20, &callLog{})

	for i := 0; i < 20; i++ {
		idx, err := r.Register(fmt.Sprintf("cont%d", i), []any{int64(i)}, "")
		if err != nil {
			t.Fatalf("Register %d: %v", i, err)
		}
		if idx != i {
			t.Fatalf("index = %d, want %d", idx, i)
		}
	}

	idx, err := r.Register("overflow", nil, "")
	if !errors.IsKind(err, errors.KindCapacityExhausted) {
		t.Fatalf("err = %v, want capacity_exhausted", err)
	}
	if idx != -1 {
		t.Fatalf("index = %d, want -1", idx)
	}
	if r.Len() != 20 || r.Cap() != 20 {
		t.Fatalf("Len/Cap = %d/%d, want 20/20", r.Len(), r.Cap())
	}
	for i, s := range r.Slots() {
		if s.Index != i || s.Name != fmt.Sprintf("cont%d", i) || s.Args[0] != int64(i) {
			t.Fatalf("slot %d changed: %+v", i, s)
		}
	}
}

func TestRegister_Validation(t *testing.T) {
	r := New(0, &callLog{})
	if r.Cap() != DefaultCapacity {
		t.Fatalf("Cap = %d, want %d", r.Cap(), DefaultCapacity)
	}
	if _, err := r.Register("", nil, ""); !errors.IsKind(err, errors.KindInvalidInput) {
		t.Fatalf("err = %v, want invalid_input", err)
	}
	r.Close()
	if _, err := r.Register("x", nil, ""); !errors.IsKind(err, errors.KindClosed) {
		t.Fatalf("err = %v, want closed", err)
	}
}

func TestRegister_CopiesArgs(t *testing.T) {
	r := New(2, &callLog{})
	args := []any{"a"}
	r.Register("x", args, "")
	args[0] = "b"
	s, _ := r.Slot(0)
	if s.Args[0] != "a" {
		t.Fatal("slot args must not alias the caller's slice")
	}
}

func TestTrampolines_Distinct(t *testing.T) {
	calls := &callLog{}
	r := New(3, calls)
	r.Register("a", nil, "")
	r.Register("b", nil, "")

	r.Trampoline(1)()
	r.Trampoline(0)()
	r.Trampoline(2)()

	if len(calls.names) != 2 || calls.names[0] != "b" || calls.names[1] != "a" {
		t.Fatalf("calls = %v, want [b a]", calls.names)
	}
	if r.Trampoline(3) != nil || r.Trampoline(-1) != nil {
		t.Fatal("out of range trampolines should be nil")
	}
}

func TestRunFrame_FaultIsolation(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	SetLogger(zap.New(core))
	defer SetLogger(zap.NewNop())

	calls := &callLog{
		fail:  map[string]error{"b": fmt.Errorf("runtime error")},
		panic: map[string]bool{"c": true},
	}
	var faults []Event
	r := New(5, calls, WithOwner("entity:1"), WithObserver(ObserverFunc(func(e Event) {
		if e.Type == EventFault {
			faults = append(faults, e)
		}
	})))
	for _, n := range []string{"a", "b", "c", "d"} {
		r.Register(n, nil, "")
	}

	r.RunFrame()

	if len(calls.names) != 4 {
		t.Fatalf("calls = %v, want all four", calls.names)
	}
	if len(faults) != 2 {
		t.Fatalf("faults = %d, want 2", len(faults))
	}
	if !errors.IsKind(faults[1].Err, errors.KindScriptFault) {
		t.Fatalf("panic err = %v, want script_fault", faults[1].Err)
	}
	if n := logs.FilterMessage("continuation failed").Len(); n != 2 {
		t.Fatalf("logged faults = %d, want 2", n)
	}
}

func TestRunFrame_Cancellation(t *testing.T) {
	w := simhost.New()
	var flag task.Flag
	var next host.ThreadID
	calls := &callLog{}
	r := New(4, calls,
		WithHost(w.Table()),
		WithSignal(&flag),
		WithThreadIDs(func() host.ThreadID { next++; return next }))

	r.Register("a", nil, "")
	r.Register("b", nil, "")

	w.Cancel(1)
	r.RunFrame()
	if len(calls.names) != 1 || calls.names[0] != "b" {
		t.Fatalf("calls = %v, want [b]", calls.names)
	}

	flag.Cancel()
	r.RunFrame()
	if len(calls.names) != 1 {
		t.Fatal("registry-wide cancellation should stop every slot")
	}
}

func TestRunFrame_RegionGate(t *testing.T) {
	w := simhost.New()
	calls := &callLog{}
	skipped := 0
	r := New(4, calls, WithHost(w.Table()), WithObserver(ObserverFunc(func(e Event) {
		if e.Type == EventSkipped {
			skipped++
		}
	})))
	r.Register("anywhere", nil, "")
	r.Register("harbor_only", nil, "harbor")

	w.SetRegion("forest")
	r.RunFrame()
	w.SetRegion("harbor")
	r.RunFrame()

	want := []string{"anywhere", "anywhere", "harbor_only"}
	if fmt.Sprint(calls.names) != fmt.Sprint(want) {
		t.Fatalf("calls = %v, want %v", calls.names, want)
	}
	if skipped != 1 {
		t.Fatalf("skipped = %d, want 1", skipped)
	}
}

func TestRegionGate_NoHostRegion(t *testing.T) {
	calls := &callLog{}
	r := New(1, calls)
	r.Register("x", nil, "harbor")
	r.RunFrame()
	if len(calls.names) != 1 {
		t.Fatal("without a host region the gate should stay open")
	}
}

func TestClear(t *testing.T) {
	calls := &callLog{}
	r := New(2, calls)
	r.Register("a", nil, "")
	tramp := r.Trampoline(0)

	r.Clear()
	tramp()
	r.RunFrame()
	if len(calls.names) != 0 {
		t.Fatalf("calls = %v after Clear, want none", calls.names)
	}
	if _, ok := r.Slot(0); ok {
		t.Fatal("cleared slot should be gone")
	}

	idx, err := r.Register("b", nil, "")
	if err != nil || idx != 0 {
		t.Fatalf("Register after Clear = %d, %v", idx, err)
	}
	tramp()
	if len(calls.names) != 1 || calls.names[0] != "b" {
		t.Fatalf("calls = %v, want [b]", calls.names)
	}
}

func TestEventType_String(t *testing.T) {
	for typ, want := range map[EventType]string{
		EventRegistered: "registered",
		EventInvoked:    "invoked",
		EventSkipped:    "skipped",
		EventFault:      "fault",
		EventCleared:    "cleared",
		EventType(50):   "unknown",
	} {
		if typ.String() != want {
			t.Errorf("%d = %q, want %q", typ, typ.String(), want)
		}
	}
}
