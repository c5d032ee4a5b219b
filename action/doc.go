// Package action issues commands to controlled entities.
//
// A Request describes one command. Dispatcher.Issue checks that the token is
// Controlled, resolves the entity's current command surface, validates any
// target entity, looks up the capability the request needs, clears whatever
// the entity was doing and then sends the command:
//
//	err := d.Issue(tok, action.MoveTo{Pos: host.Vec3{X: 10}})
//
// Issue never panics on a missing entity or capability. It returns a typed
// error and logs a rate-limited diagnostic instead; nothing is retried.
//
// Blocking variants are futures polled once per frame:
//
//	wait := d.IssueAndWait(tok, action.PlayAnimation{Name: "bow"})
//	// Pending while the host reports the action in progress
//
//	op := d.Scoped(owner, entity, action.LookAt{Target: other})
//	// acquire, issue, wait, always release
package action
