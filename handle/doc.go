// Package handle wraps host-owned, reference-counted entities.
//
// The host counts references to its entities. The bridge takes exactly one
// reference when it wraps an entity and gives exactly one back when the
// wrapper is released, no matter how many times Release is called:
//
//	table := handle.NewTable(hostTable)
//
//	// AddRef on the host
//	h, err := table.Wrap(entityID)
//	if err != nil {
//	    // entity absent or host entry point missing
//	}
//
//	// ReleaseRef on the host, once
//	h.Release()
//	h.Release() // no-op
//
// # Presence
//
// A wrapped entity can despawn while the bridge still holds it. Present
// reports whether the backing object is still valid; an absent handle is a
// normal state, not an error.
//
// # Bookkeeping
//
// The Table tracks every live handle in a slot table with a free list so that
// a full reinitialize (Reset) or shutdown (Close) can give every outstanding
// reference back to the host. Observers receive EventWrapped and
// EventReleased notifications:
//
//	table.Subscribe(observer)
//
// # Host buffers
//
// Alloc wraps host.Entries.Alloc with the same release-once discipline:
//
//	buf, err := table.Alloc(len(line))
//	defer buf.Free()
package handle
