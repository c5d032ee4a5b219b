// Package script hosts the per-owner Lua environments.
//
// Every entity or quest that has a script gets its own Environment: an
// isolated gopher-lua state, the logical threads running inside it, a slot
// registry for registered continuations and the control tokens it holds.
// Environments never share Lua globals; scripts talk to each other through
// the process-wide globals store or through entity ids.
//
// # Lifecycle
//
//	reg := script.NewRegistry(services, script.WithScriptDir("scripts"))
//	env, err := reg.Create(script.Owner{Kind: script.OwnerQuest, ID: 7}, "ferry")
//
// Create loads ferry.lua into a sandboxed state (base, table, string, math
// and coroutine libraries; no file loading), runs the chunk, calls Init(self)
// if it exists and starts Main(self) as a logical thread. A fault inside Init
// or Main is logged and swallowed.
//
// # Logical threads
//
// Main and every registered continuation run as Lua coroutines. A blocking
// binding such as token:move_to polls its future once; when the future is
// still pending the binding records it and yields. Registry.Tick polls each
// pending future once per frame and resumes the coroutine with the result
// once it settles. No goroutines are involved.
//
// A thread whose cancellation signal is set has its pending future polled
// once more so that tokens and waits can clean up, and is then discarded
// without being resumed.
//
// # Script interface
//
// Each environment sees these globals:
//
//	self                        owner table: id, kind (and entity for entity owners)
//	entity(id)                  entity proxy
//	yield(), sleep(n)           suspend for one or n frames
//	register_thread(name, region, ...)
//	global_get(k), global_set(k, v), global_del(k)
//	log(...), frame()
//
// Entity proxies offer id, alive, position, following, a blocking acquire
// returning a token, and scoped blocking actions (move_to, play_animation,
// speak, follow, stop_following, attack, look_at, wait) that acquire, act,
// wait and release in one call. Tokens offer the same actions in blocking
// form and with an _async suffix, plus busy, state, entity and release.
//
// Blocking calls return true on completion or false and a reason. Async
// calls return true once the command reached the host, or false and a reason.
package script
