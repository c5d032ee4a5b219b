// Package host describes the host collaborator the bridge is embedded in.
//
// The host owns every entity, runs the real frame loop and decides who may
// control an entity. The bridge only ever talks to it through an Entries table
// of resolved native entry points. Resolution itself happens outside this
// module; any entry may be left nil, and every call made through Table checks
// for that and reports errors.KindHostUnavailable instead of calling through a
// missing pointer.
//
// # Capabilities
//
// What an entity can be told to do depends on its current kind. The command
// surface returned by Surface always implements Commander; the remaining
// operations are optional capability interfaces:
//
//	Mover      move-to
//	Animator   play-animation
//	Speaker    speak
//	Follower   follow / stop-following
//	Combatant  attack
//	Looker     look-at
//	Waiter     idle wait
//
// Use Lookup to resolve a capability. Surfaces whose capability set changes at
// runtime implement Provider; otherwise a plain type assertion is used:
//
//	mover, ok := host.Lookup[host.Mover](surface, host.CapMove)
//	if !ok {
//	    // entity cannot move right now
//	}
package host
