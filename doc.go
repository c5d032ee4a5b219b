// Package scriptbridge embeds Lua scripting in a frame-stepped game host.
//
// Scripts take temporary exclusive control of host entities, issue movement,
// animation and dialogue commands to them and wait for those commands to
// finish without ever blocking the host's thread. They can also register
// named continuations that the host's per-frame scheduler invokes, which
// gives the illusion of several scripts running side by side.
//
// # Architecture Overview
//
// The library is organized into packages with distinct responsibilities:
//
//	scriptbridge/        Root package with the Bridge facade
//	├── host/            Host entry-point table and capability interfaces
//	├── handle/          Reference-counted entity handles and host buffers
//	├── task/            Poll futures, cancellation signals, frame clock
//	├── control/         Control tokens and the acquisition protocol
//	├── action/          Action requests, dispatch and blocking waits
//	├── slots/           Fixed-capacity scheduler slot registry
//	├── globals/         Process-wide bool/int/string store
//	├── script/          Per-owner Lua environments and bindings
//	├── metrics/         Prometheus collectors fed by observers
//	├── config/          YAML configuration
//	└── errors/          Structured error types
//
// # Quick Start
//
//	b, err := scriptbridge.New(scriptbridge.Options{
//	    Config: cfg,
//	    Host:   entries,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer b.Close()
//
//	if _, err := b.CreateEnvironment(script.EntityOwner(42), "guard"); err != nil {
//	    log.Fatal(err)
//	}
//
//	// once per host frame
//	if err := b.Tick(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// # Scripts
//
// A script may define Init(self), run once when the environment is created,
// Main(self), run as a logical thread that can wait across frames, and
// OnPersist(self, ctx), called on save and load. Blocking calls such as
// ent:move_to(x, y, z) or sleep(n) suspend only the calling logical thread.
//
// # Thread Safety
//
// A Bridge is driven from the host's single frame thread. No goroutines are
// started on the frame path and its methods must not be called concurrently.
// Metrics collectors may be scraped from any goroutine.
package scriptbridge
