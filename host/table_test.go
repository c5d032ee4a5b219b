package host

import (
	"testing"

	"github.com/wippyai/scriptbridge/errors"
)

type plainSurface struct{ moved bool }

func (s *plainSurface) ClearQueuedAction()        {}
func (s *plainSurface) ActionInProgress() bool    { return false }
func (s *plainSurface) MoveTo(pos Vec3, run bool) { s.moved = true }

type providerSurface struct {
	caps map[Capability]any
}

func (s *providerSurface) ClearQueuedAction()     {}
func (s *providerSurface) ActionInProgress() bool { return false }
func (s *providerSurface) Capability(c Capability) (any, bool) {
	v, ok := s.caps[c]
	return v, ok
}

func TestTable_EmptyEntries(t *testing.T) {
	tbl := NewTable(Entries{})

	checks := []struct {
		name string
		err  error
	}{
		{"AddRef", tbl.AddRef(1)},
		{"ReleaseRef", tbl.ReleaseRef(1)},
		{"Revoke", tbl.Revoke(1, 1)},
		{"Free", tbl.Free(Buffer{})},
	}
	for _, c := range checks {
		if !errors.IsKind(c.err, errors.KindHostUnavailable) {
			t.Errorf("%s err = %v, want host_unavailable", c.name, c.err)
		}
	}

	if _, err := tbl.Grant(1, 1); !errors.IsKind(err, errors.KindHostUnavailable) {
		t.Errorf("Grant err = %v", err)
	}
	if _, err := tbl.Surface(1); !errors.IsKind(err, errors.KindHostUnavailable) {
		t.Errorf("Surface err = %v", err)
	}
	if _, err := tbl.Alloc(1); !errors.IsKind(err, errors.KindHostUnavailable) {
		t.Errorf("Alloc err = %v", err)
	}

	if tbl.Valid(1) || tbl.Alive(1) || tbl.Cancelled(1) {
		t.Error("unresolved queries should answer false")
	}
	if _, ok := tbl.ActiveRegion(); ok {
		t.Error("ActiveRegion should be unavailable")
	}
	if _, ok := tbl.Position(1); ok {
		t.Error("Position should be unavailable")
	}
	if _, ok := tbl.Following(1); ok {
		t.Error("Following should be unavailable")
	}
	if got := len(tbl.Missing()); got != 13 {
		t.Errorf("Missing = %d entries, want 13", got)
	}
}

func TestTable_Require(t *testing.T) {
	tbl := NewTable(Entries{
		AddRef:     func(EntityID) bool { return true },
		ReleaseRef: func(EntityID) {},
	})

	if err := tbl.Require("AddRef", "ReleaseRef"); err != nil {
		t.Fatalf("Require: %v", err)
	}
	err := tbl.Require("AddRef", "GrantControl", "Surface")
	me, ok := err.(*errors.MissingEntriesError)
	if !ok {
		t.Fatalf("err = %T, want *MissingEntriesError", err)
	}
	if len(me.Entries) != 2 || me.Entries[0] != "GrantControl" || me.Entries[1] != "Surface" {
		t.Fatalf("Entries = %v", me.Entries)
	}
}

func TestTable_ZeroEntity(t *testing.T) {
	called := false
	tbl := NewTable(Entries{
		Valid: func(EntityID) bool { called = true; return true },
		Alive: func(EntityID) bool { called = true; return true },
	})
	if tbl.Valid(0) || tbl.Alive(0) {
		t.Fatal("entity 0 is never valid")
	}
	if called {
		t.Fatal("host should not be asked about entity 0")
	}
}

func TestTable_AddRefAbsent(t *testing.T) {
	tbl := NewTable(Entries{AddRef: func(EntityID) bool { return false }})
	if err := tbl.AddRef(4); !errors.IsKind(err, errors.KindEntityAbsent) {
		t.Fatalf("err = %v, want entity_absent", err)
	}
}

func TestTable_SurfaceAbsent(t *testing.T) {
	tbl := NewTable(Entries{Surface: func(EntityID) (Commander, bool) { return nil, false }})
	if _, err := tbl.Surface(4); !errors.IsKind(err, errors.KindEntityAbsent) {
		t.Fatalf("err = %v, want entity_absent", err)
	}
}

func TestTable_AllocRefused(t *testing.T) {
	tbl := NewTable(Entries{Alloc: func(int) (Buffer, bool) { return Buffer{}, false }})
	if _, err := tbl.Alloc(8); !errors.IsKind(err, errors.KindInvalidInput) {
		t.Fatalf("err = %v, want invalid_input", err)
	}
}

func TestLookup(t *testing.T) {
	t.Run("type assertion", func(t *testing.T) {
		s := &plainSurface{}
		m, ok := Lookup[Mover](s, CapMove)
		if !ok {
			t.Fatal("plain surface should be a Mover")
		}
		m.MoveTo(Vec3{}, false)
		if !s.moved {
			t.Fatal("MoveTo not forwarded")
		}
		if Supports(s, CapSpeak) {
			t.Fatal("plain surface is not a Speaker")
		}
	})

	t.Run("provider", func(t *testing.T) {
		inner := &plainSurface{}
		s := &providerSurface{caps: map[Capability]any{CapMove: inner}}
		if !Supports(s, CapMove) {
			t.Fatal("provider should expose movable")
		}
		if Supports(s, CapAnimate) {
			t.Fatal("provider should not expose animator")
		}
		delete(s.caps, CapMove)
		if Supports(s, CapMove) {
			t.Fatal("capability should follow provider state")
		}
	})

	t.Run("nil surface", func(t *testing.T) {
		if _, ok := Lookup[Mover](nil, CapMove); ok {
			t.Fatal("nil surface supports nothing")
		}
	})

	t.Run("unknown capability", func(t *testing.T) {
		if Supports(&plainSurface{}, Capability("flying")) {
			t.Fatal("unknown capability should not be supported")
		}
	})
}

func TestVec3_String(t *testing.T) {
	if got := (Vec3{X: 1, Y: 2.5, Z: -3}).String(); got != "(1.00, 2.50, -3.00)" {
		t.Fatalf("String = %q", got)
	}
}
