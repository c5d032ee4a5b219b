package simhost

import (
	"testing"

	"github.com/wippyai/scriptbridge/host"
)

func TestWorld_RefsAndValidity(t *testing.T) {
	w := New()
	w.Spawn(1, "npc")
	tbl := w.Table()

	if err := tbl.AddRef(1); err != nil {
		t.Fatal(err)
	}
	if w.Refs(1) != 1 {
		t.Fatalf("refs = %d, want 1", w.Refs(1))
	}
	w.Despawn(1)
	if tbl.Valid(1) {
		t.Fatal("despawned entity should be invalid")
	}
	if err := tbl.AddRef(1); err == nil {
		t.Fatal("AddRef on despawned entity should fail")
	}
	tbl.ReleaseRef(1)
	if w.Refs(1) != 0 {
		t.Fatalf("refs = %d, want 0", w.Refs(1))
	}
	if got := w.IDs(); len(got) != 0 {
		t.Fatalf("IDs = %v, want none", got)
	}
}

func TestWorld_Grants(t *testing.T) {
	w := New()
	w.Spawn(1, "npc")
	w.DenyGrants(1, 2)
	tbl := w.Table()

	for i := 0; i < 2; i++ {
		if ok, _ := tbl.Grant(1, 10); ok {
			t.Fatalf("grant %d should be denied", i)
		}
	}
	if ok, _ := tbl.Grant(1, 10); !ok {
		t.Fatal("third grant should succeed")
	}
	if ok, _ := tbl.Grant(1, 11); ok {
		t.Fatal("a second token must not be granted")
	}
	tbl.Revoke(1, 10)
	if w.Controller(1) != 0 {
		t.Fatal("revoke should clear the controller")
	}
}

func TestWorld_ActionsTickDown(t *testing.T) {
	w := New()
	w.Spawn(1, "npc", host.CapMove)
	w.SetActionFrames(1, 2)

	s, err := w.Table().Surface(1)
	if err != nil {
		t.Fatal(err)
	}
	m, ok := host.Lookup[host.Mover](s, host.CapMove)
	if !ok {
		t.Fatal("entity should be movable")
	}
	m.MoveTo(host.Vec3{X: 5}, false)

	if !s.ActionInProgress() {
		t.Fatal("move should be in progress")
	}
	w.Step()
	if !s.ActionInProgress() {
		t.Fatal("move should still be in progress after one frame")
	}
	w.Step()
	if s.ActionInProgress() {
		t.Fatal("move should be complete after two frames")
	}
	e, _ := w.Entity(1)
	if e.Pos.X != 5 {
		t.Fatalf("position = %v, want x=5", e.Pos)
	}
}

func TestWorld_CapabilitiesFollowState(t *testing.T) {
	w := New()
	w.Spawn(1, "npc", host.CapSpeak)
	s, _ := w.Table().Surface(1)

	if !host.Supports(s, host.CapSpeak) {
		t.Fatal("speaker expected")
	}
	if host.Supports(s, host.CapMove) {
		t.Fatal("movable not expected")
	}
	w.SetCapability(1, host.CapMove, true)
	if !host.Supports(s, host.CapMove) {
		t.Fatal("movable should be enabled")
	}
}

func TestWorld_Buffers(t *testing.T) {
	w := New()
	tbl := w.Table()
	b, err := tbl.Alloc(3)
	if err != nil {
		t.Fatal(err)
	}
	if w.Buffers() != 1 {
		t.Fatalf("buffers = %d, want 1", w.Buffers())
	}
	tbl.Free(b)
	if w.Buffers() != 0 {
		t.Fatalf("buffers = %d, want 0", w.Buffers())
	}
}

func TestWorld_CallLog(t *testing.T) {
	w := New()
	w.Spawn(2, "npc", host.CapAnimate, host.CapFollow)
	s, _ := w.Table().Surface(2)

	s.ClearQueuedAction()
	a, _ := host.Lookup[host.Animator](s, host.CapAnimate)
	a.PlayAnimation("wave", true)
	f, _ := host.Lookup[host.Follower](s, host.CapFollow)
	f.Follow(3, 2)

	got := w.CallsFor(2)
	want := []string{"clear", "play_animation", "follow"}
	if len(got) != len(want) {
		t.Fatalf("calls = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("calls = %v, want %v", got, want)
		}
	}
	if id, ok := w.Table().Following(2); !ok || id != 3 {
		t.Fatalf("Following = %d, %v", id, ok)
	}
	if c := w.Calls()[1]; c.String() != "2:play_animation(wave loop)" {
		t.Fatalf("String = %q", c.String())
	}
	w.ResetCalls()
	if len(w.Calls()) != 0 {
		t.Fatal("ResetCalls should clear the log")
	}
}
