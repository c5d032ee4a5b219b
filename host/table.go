package host

import (
	"github.com/wippyai/scriptbridge/errors"
)

// Entries is the table of native entry points resolved at load time.
// A nil field means the entry point could not be resolved.
type Entries struct {
	// AddRef increments the host reference count. Returns false when the
	// entity is not valid.
	AddRef func(EntityID) bool
	// ReleaseRef decrements the host reference count.
	ReleaseRef func(EntityID)
	// Valid reports whether the entity's backing object still exists.
	Valid func(EntityID) bool

	// GrantControl asks the host for exclusive scripted control.
	GrantControl func(EntityID, TokenID) bool
	// RevokeControl hands control back to the host.
	RevokeControl func(EntityID, TokenID)
	// Surface returns the entity's current command surface.
	Surface func(EntityID) (Commander, bool)

	// Cancelled reports whether the host is tearing down a logical thread.
	Cancelled func(ThreadID) bool
	// ActiveRegion names the region the host is currently simulating.
	ActiveRegion func() string

	Alloc func(size int) (Buffer, bool)
	Free  func(Buffer)

	Alive     func(EntityID) bool
	Position  func(EntityID) (Vec3, bool)
	Following func(EntityID) (EntityID, bool)
}

// Table wraps Entries with checked calls.
type Table struct {
	e Entries
}

// NewTable wraps a resolved entry table.
func NewTable(e Entries) *Table {
	return &Table{e: e}
}

// Entries returns the raw entry table.
func (t *Table) Entries() Entries {
	return t.e
}

// Missing lists the entry points that were not resolved.
func (t *Table) Missing() []string {
	var missing []string
	check := func(name string, ok bool) {
		if !ok {
			missing = append(missing, name)
		}
	}
	check("AddRef", t.e.AddRef != nil)
	check("ReleaseRef", t.e.ReleaseRef != nil)
	check("Valid", t.e.Valid != nil)
	check("GrantControl", t.e.GrantControl != nil)
	check("RevokeControl", t.e.RevokeControl != nil)
	check("Surface", t.e.Surface != nil)
	check("Cancelled", t.e.Cancelled != nil)
	check("ActiveRegion", t.e.ActiveRegion != nil)
	check("Alloc", t.e.Alloc != nil)
	check("Free", t.e.Free != nil)
	check("Alive", t.e.Alive != nil)
	check("Position", t.e.Position != nil)
	check("Following", t.e.Following != nil)
	return missing
}

// Require returns a MissingEntriesError if any of the named entries is unresolved.
func (t *Table) Require(names ...string) error {
	missing := make(map[string]bool)
	for _, m := range t.Missing() {
		missing[m] = true
	}
	var out []string
	for _, n := range names {
		if missing[n] {
			out = append(out, n)
		}
	}
	if len(out) > 0 {
		return &errors.MissingEntriesError{Entries: out}
	}
	return nil
}

func (t *Table) AddRef(id EntityID) error {
	if t.e.AddRef == nil {
		return errors.HostUnavailable(errors.PhaseHandle, "AddRef")
	}
	if !t.e.AddRef(id) {
		return errors.EntityAbsent(errors.PhaseHandle, uint64(id))
	}
	return nil
}

func (t *Table) ReleaseRef(id EntityID) error {
	if t.e.ReleaseRef == nil {
		return errors.HostUnavailable(errors.PhaseHandle, "ReleaseRef")
	}
	t.e.ReleaseRef(id)
	return nil
}

// Valid is false for unresolved tables: an entity that cannot be checked is
// treated as absent.
func (t *Table) Valid(id EntityID) bool {
	if t.e.Valid == nil || id == 0 {
		return false
	}
	return t.e.Valid(id)
}

func (t *Table) Grant(id EntityID, tok TokenID) (bool, error) {
	if t.e.GrantControl == nil {
		return false, errors.HostUnavailable(errors.PhaseAcquire, "GrantControl")
	}
	return t.e.GrantControl(id, tok), nil
}

func (t *Table) Revoke(id EntityID, tok TokenID) error {
	if t.e.RevokeControl == nil {
		return errors.HostUnavailable(errors.PhaseRelease, "RevokeControl")
	}
	t.e.RevokeControl(id, tok)
	return nil
}

// Surface resolves the entity's current command surface.
func (t *Table) Surface(id EntityID) (Commander, error) {
	if t.e.Surface == nil {
		return nil, errors.HostUnavailable(errors.PhaseDispatch, "Surface")
	}
	s, ok := t.e.Surface(id)
	if !ok || s == nil {
		return nil, errors.EntityAbsent(errors.PhaseDispatch, uint64(id))
	}
	return s, nil
}

// Cancelled is false when the host cannot answer.
func (t *Table) Cancelled(th ThreadID) bool {
	if t.e.Cancelled == nil || th == 0 {
		return false
	}
	return t.e.Cancelled(th)
}

func (t *Table) ActiveRegion() (string, bool) {
	if t.e.ActiveRegion == nil {
		return "", false
	}
	return t.e.ActiveRegion(), true
}

func (t *Table) Alloc(size int) (Buffer, error) {
	if t.e.Alloc == nil {
		return Buffer{}, errors.HostUnavailable(errors.PhaseDispatch, "Alloc")
	}
	buf, ok := t.e.Alloc(size)
	if !ok {
		return Buffer{}, errors.New(errors.PhaseDispatch, errors.KindInvalidInput).
			Detail("host refused allocation of %d bytes", size).
			Build()
	}
	return buf, nil
}

func (t *Table) Free(buf Buffer) error {
	if t.e.Free == nil {
		return errors.HostUnavailable(errors.PhaseDispatch, "Free")
	}
	t.e.Free(buf)
	return nil
}

func (t *Table) Alive(id EntityID) bool {
	if t.e.Alive == nil || id == 0 {
		return false
	}
	return t.e.Alive(id)
}

func (t *Table) Position(id EntityID) (Vec3, bool) {
	if t.e.Position == nil || id == 0 {
		return Vec3{}, false
	}
	return t.e.Position(id)
}

func (t *Table) Following(id EntityID) (EntityID, bool) {
	if t.e.Following == nil || id == 0 {
		return 0, false
	}
	return t.e.Following(id)
}
