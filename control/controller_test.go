package control

import (
	"testing"

	"github.com/wippyai/scriptbridge/errors"
	"github.com/wippyai/scriptbridge/handle"
	"github.com/wippyai/scriptbridge/host"
	"github.com/wippyai/scriptbridge/internal/simhost"
	"github.com/wippyai/scriptbridge/task"
)

func newController(t *testing.T) (*Controller, *simhost.World) {
	t.Helper()
	w := simhost.New()
	tbl := w.Table()
	return NewController(tbl, handle.NewTable(tbl)), w
}

type recorder struct {
	events []EventType
}

func (r *recorder) OnTokenEvent(e Event) { r.events = append(r.events, e.Type) }

func TestAcquireRelease_RestoresRefCount(t *testing.T) {
	c, w := newController(t)
	w.Spawn(1, "npc")

	op := c.Acquire("quest:1", 1)
	if st := op.Poll(task.Never); st != task.Done {
		t.Fatalf("status = %v, want done (err %v)", st, op.Err())
	}
	tok := op.Token()
	if tok.State() != Controlled {
		t.Fatalf("state = %v, want Controlled", tok.State())
	}
	if w.Refs(1) != 1 {
		t.Fatalf("refs = %d while controlled, want 1", w.Refs(1))
	}
	if w.Controller(1) != tok.ID() {
		t.Fatal("host should record the grant")
	}

	c.Release(tok)
	c.Release(tok)

	if tok.State() != Idle {
		t.Fatalf("state = %v, want Idle", tok.State())
	}
	if w.Refs(1) != 0 {
		t.Fatalf("refs = %d after release, want 0", w.Refs(1))
	}
	if w.Controller(1) != 0 {
		t.Fatal("host control should be revoked")
	}
	ops := w.CallsFor(1)
	if len(ops) != 2 || ops[0] != "grant" || ops[1] != "revoke" {
		t.Fatalf("calls = %v, want [grant revoke]", ops)
	}
	if c.Len() != 0 {
		t.Fatalf("live tokens = %d, want 0", c.Len())
	}
}

func TestAcquire_DeniedThenGranted(t *testing.T) {
	c, w := newController(t)
	w.Spawn(1, "npc")
	w.DenyGrants(1, 3)

	op := c.Acquire("entity:9", 1)
	st, polls := task.Drive(op, task.Never, 10)
	if st != task.Done {
		t.Fatalf("status = %v, want done", st)
	}
	if polls != 4 {
		t.Fatalf("polls = %d, want 4", polls)
	}
}

func TestAcquire_CancelMidWait(t *testing.T) {
	c, w := newController(t)
	w.Spawn(1, "npc")
	w.DenyGrants(1, 100)

	rec := &recorder{}
	c.Subscribe(rec)

	var sig task.Flag
	op := c.Acquire("quest:3", 1)
	for i := 0; i < 3; i++ {
		if st := op.Poll(&sig); st != task.Pending {
			t.Fatalf("poll %d = %v, want pending", i, st)
		}
	}
	sig.Cancel()
	if st := op.Poll(&sig); st != task.Cancelled {
		t.Fatalf("status = %v, want cancelled", st)
	}
	if !errors.IsKind(op.Err(), errors.KindCancelled) {
		t.Fatalf("err = %v, want cancelled", op.Err())
	}
	if op.Token().State() != Idle {
		t.Fatalf("state = %v, want Idle", op.Token().State())
	}
	if w.Refs(1) != 0 {
		t.Fatalf("refs = %d, want 0", w.Refs(1))
	}
	if !op.Token().Handle().Released() {
		t.Fatal("handle should be released")
	}
	for _, o := range w.CallsFor(1) {
		if o != "deny" {
			t.Fatalf("unexpected host call %q", o)
		}
	}

	// releasing a cancelled token is a no-op
	c.Release(op.Token())
	if w.Refs(1) != 0 {
		t.Fatal("release after cancel must not touch the host")
	}
	last := rec.events[len(rec.events)-1]
	if last != EventCancelled {
		t.Fatalf("last event = %v, want cancelled", last)
	}
}

func TestAcquire_AbsentEntity(t *testing.T) {
	c, w := newController(t)

	op := c.Acquire("quest:1", 42)
	if st := op.Poll(task.Never); st != task.Failed {
		t.Fatalf("status = %v, want failed", st)
	}
	if op.Token() != nil {
		t.Fatal("no token expected for an absent entity")
	}
	if !errors.IsKind(op.Err(), errors.KindEntityAbsent) {
		t.Fatalf("err = %v, want entity_absent", op.Err())
	}

	w.Spawn(2, "npc")
	w.DenyGrants(2, 1)
	op = c.Acquire("quest:1", 2)
	op.Poll(task.Never)
	w.Despawn(2)
	if st := op.Poll(task.Never); st != task.Failed {
		t.Fatalf("status = %v, want failed after despawn", st)
	}
	if w.Refs(2) != 0 {
		t.Fatalf("refs = %d, want 0", w.Refs(2))
	}
}

func TestAcquire_HostUnavailable(t *testing.T) {
	w := simhost.New()
	w.Spawn(1, "npc")
	e := w.Entries()
	e.GrantControl = nil
	tbl := host.NewTable(e)
	c := NewController(tbl, handle.NewTable(tbl))

	op := c.Acquire("quest:1", 1)
	if st := op.Poll(task.Never); st != task.Failed {
		t.Fatalf("status = %v, want failed", st)
	}
	if !errors.IsKind(op.Err(), errors.KindHostUnavailable) {
		t.Fatalf("err = %v, want host_unavailable", op.Err())
	}
	if w.Refs(1) != 0 {
		t.Fatalf("refs = %d, want 0", w.Refs(1))
	}
}

func TestAcquire_QueuesBehindHolder(t *testing.T) {
	c, w := newController(t)
	w.Spawn(1, "npc")

	first := c.Acquire("quest:1", 1)
	second := c.Acquire("quest:2", 1)

	if first.Poll(task.Never) != task.Done {
		t.Fatal("first acquire should be granted")
	}
	for i := 0; i < 3; i++ {
		if st := second.Poll(task.Never); st != task.Pending {
			t.Fatalf("second acquire = %v while held, want pending", st)
		}
	}
	if h, ok := c.Holder(1); !ok || h != first.Token() {
		t.Fatal("first token should hold the entity")
	}

	c.Release(first.Token())
	if st := second.Poll(task.Never); st != task.Done {
		t.Fatalf("second acquire = %v after release, want done", st)
	}
	if w.Controller(1) != second.Token().ID() {
		t.Fatal("host should see the second token")
	}
	c.Release(second.Token())
	if w.Refs(1) != 0 {
		t.Fatalf("refs = %d, want 0", w.Refs(1))
	}
}

func TestAcquire_FIFOOrder(t *testing.T) {
	c, w := newController(t)
	w.Spawn(1, "npc")
	w.DenyGrants(1, 1)

	a := c.Acquire("a", 1)
	b := c.Acquire("b", 1)

	// b polls first but is not at the head of the queue
	if b.Poll(task.Never) != task.Pending {
		t.Fatal("b should wait behind a")
	}
	if a.Poll(task.Never) != task.Pending {
		t.Fatal("a should be denied once")
	}
	if b.Poll(task.Never) != task.Pending {
		t.Fatal("b should still wait")
	}
	if a.Poll(task.Never) != task.Done {
		t.Fatal("a should be granted")
	}
}

func TestRelease_WhileAcquiring(t *testing.T) {
	c, w := newController(t)
	w.Spawn(1, "npc")
	w.DenyGrants(1, 5)

	op := c.Acquire("quest:1", 1)
	op.Poll(task.Never)
	c.Release(op.Token())

	if st := op.Poll(task.Never); st != task.Cancelled {
		t.Fatalf("status = %v, want cancelled", st)
	}
	if w.Refs(1) != 0 {
		t.Fatalf("refs = %d, want 0", w.Refs(1))
	}
	for _, o := range w.CallsFor(1) {
		if o == "revoke" {
			t.Fatal("a token that never held control must not revoke")
		}
	}
}

func TestReleaseOwner(t *testing.T) {
	c, w := newController(t)
	w.Spawn(1, "npc")
	w.Spawn(2, "npc")
	w.Spawn(3, "npc")

	a := c.Acquire("quest:1", 1)
	b := c.Acquire("quest:1", 2)
	other := c.Acquire("quest:2", 3)
	a.Poll(task.Never)
	other.Poll(task.Never)

	if n := c.ReleaseOwner("quest:1"); n != 2 {
		t.Fatalf("released %d, want 2", n)
	}
	if a.Token().State() != Idle || b.Token().State() != Idle {
		t.Fatal("owner tokens should be Idle")
	}
	if other.Token().State() != Controlled {
		t.Fatal("other owner's token must be untouched")
	}
	if w.Refs(1) != 0 || w.Refs(2) != 0 || w.Refs(3) != 1 {
		t.Fatalf("refs = %d %d %d, want 0 0 1", w.Refs(1), w.Refs(2), w.Refs(3))
	}

	c.Close()
	if c.Len() != 0 || w.Refs(3) != 0 {
		t.Fatal("Close should release everything")
	}
}

func TestTokens_Ordered(t *testing.T) {
	c, w := newController(t)
	for id := host.EntityID(1); id <= 4; id++ {
		w.Spawn(id, "npc")
		c.Acquire("q", id)
	}
	toks := c.Tokens("q")
	if len(toks) != 4 {
		t.Fatalf("tokens = %d, want 4", len(toks))
	}
	for i := 1; i < len(toks); i++ {
		if toks[i-1].ID() >= toks[i].ID() {
			t.Fatal("tokens not in creation order")
		}
	}
	if len(c.Tokens("nobody")) != 0 {
		t.Fatal("unknown owner should have no tokens")
	}
}

func TestNilToken(t *testing.T) {
	c, _ := newController(t)
	var tok *Token
	c.Release(tok)
	if tok.State() != Idle || tok.Controlled() {
		t.Fatal("nil token is Idle")
	}
}

func TestStrings(t *testing.T) {
	states := map[State]string{Idle: "Idle", Acquiring: "Acquiring", Controlled: "Controlled", Releasing: "Releasing", State(9): "Unknown"}
	for s, want := range states {
		if s.String() != want {
			t.Errorf("State %d = %q, want %q", s, s.String(), want)
		}
	}
	if EventGranted.String() != "granted" || EventType(99).String() != "unknown" {
		t.Error("unexpected event names")
	}
}
