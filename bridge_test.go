package scriptbridge

import (
	"context"
	stderrors "errors"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/wippyai/scriptbridge/config"
	"github.com/wippyai/scriptbridge/control"
	"github.com/wippyai/scriptbridge/errors"
	"github.com/wippyai/scriptbridge/host"
	"github.com/wippyai/scriptbridge/internal/simhost"
	"github.com/wippyai/scriptbridge/script"
)

const guardScript = `
function Init(self)
  global_set("guards", (global_get("guards") or 0) + 1)
end

function Main(self)
  local tok = entity(2):acquire()
  tok:move_to_async(4, 0, 0)
  sleep(100)
end
`

func newBridge(t *testing.T, w *simhost.World, opts Options) *Bridge {
	t.Helper()
	if opts.FS == nil {
		opts.FS = fstest.MapFS{"guard.lua": &fstest.MapFile{Data: []byte(guardScript)}}
	}
	opts.Host = w.Entries()
	b, err := New(opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { b.Close() })
	return b
}

func TestNew_Defaults(t *testing.T) {
	b, err := New(Options{})
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()
	if b.Config().Slots.Capacity != config.Default().Slots.Capacity {
		t.Errorf("capacity = %d", b.Config().Slots.Capacity)
	}
	if len(b.Snapshot().Missing) != len(host.NewTable(host.Entries{}).Missing()) {
		t.Errorf("missing = %v", b.Snapshot().Missing)
	}
	if b.Metrics() != nil {
		t.Error("metrics should be off without a registerer")
	}
}

func TestNew_Errors(t *testing.T) {
	_, err := New(Options{Required: []string{"GrantControl", "Surface"}})
	if !stderrors.Is(err, &errors.MissingEntriesError{}) {
		t.Fatalf("err = %v, want missing entries", err)
	}

	cfg := config.Default()
	cfg.Slots.Capacity = 0
	if _, err := New(Options{Config: cfg}); !errors.IsKind(err, errors.KindInvalidInput) {
		t.Fatalf("err = %v, want invalid_input", err)
	}
}

func TestBridge_Lifecycle(t *testing.T) {
	w := simhost.New()
	w.Spawn(1, "guard")
	w.Spawn(2, "npc", host.CapMove)
	w.SetActionFrames(2, 50)
	b := newBridge(t, w, Options{})

	owner := script.EntityOwner(1)
	if _, err := b.CreateEnvironment(owner, "guard"); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		w.Step()
		if err := b.Tick(context.Background()); err != nil {
			t.Fatal(err)
		}
	}

	snap := b.Snapshot()
	if snap.Frame != 3 {
		t.Errorf("frame = %d, want 3", snap.Frame)
	}
	if len(snap.Environments) != 1 || snap.Environments[0].Owner != owner {
		t.Fatalf("environments = %+v", snap.Environments)
	}
	if len(snap.Tokens) != 1 || snap.Tokens[0].State != control.Controlled || snap.Tokens[0].Entity != 2 {
		t.Fatalf("tokens = %+v", snap.Tokens)
	}
	if len(snap.Handles) != 1 || !snap.Handles[0].Present {
		t.Fatalf("handles = %+v", snap.Handles)
	}
	if v := snap.Globals["guards"]; v.Interface() != int64(1) {
		t.Fatalf("guards = %v", v)
	}

	env, _ := b.Lookup(owner)
	reloaded, err := b.Reload(owner)
	if err != nil {
		t.Fatal(err)
	}
	if reloaded.ID() == env.ID() || !env.Closed() {
		t.Fatal("reload should replace the environment")
	}
	if err := b.Persist(owner, nil); err != nil {
		t.Fatal(err)
	}

	b.Reinitialize()
	snap = b.Snapshot()
	if len(snap.Environments) != 0 || len(snap.Tokens) != 0 || len(snap.Handles) != 0 || len(snap.Globals) != 0 {
		t.Fatalf("reinitialize left state behind: %+v", snap)
	}
	if snap.Frame != 0 {
		t.Errorf("frame = %d after reinitialize", snap.Frame)
	}
	if w.Refs(2) != 0 || w.Controller(2) != 0 {
		t.Fatal("host still holds references or control")
	}

	// still usable
	if _, err := b.CreateEnvironment(owner, "guard"); err != nil {
		t.Fatal(err)
	}
	if err := b.DestroyEnvironment(owner); err != nil {
		t.Fatal(err)
	}
	if err := b.DestroyEnvironment(owner); !errors.IsKind(err, errors.KindNotFound) {
		t.Fatalf("err = %v, want not_found", err)
	}
}

func TestBridge_Close(t *testing.T) {
	w := simhost.New()
	w.Spawn(2, "npc", host.CapMove)
	b := newBridge(t, w, Options{})
	if _, err := b.CreateEnvironment(script.QuestOwner(1), "guard"); err != nil {
		t.Fatal(err)
	}
	if w.Refs(2) != 1 {
		t.Fatalf("refs = %d, want 1", w.Refs(2))
	}
	if err := b.Close(); err != nil {
		t.Fatal(err)
	}
	if w.Refs(2) != 0 {
		t.Fatalf("refs = %d after close", w.Refs(2))
	}
	if err := b.Tick(context.Background()); !errors.IsKind(err, errors.KindClosed) {
		t.Fatalf("err = %v, want closed", err)
	}
	if _, err := b.CreateEnvironment(script.QuestOwner(1), "guard"); !errors.IsKind(err, errors.KindClosed) {
		t.Fatalf("err = %v, want closed", err)
	}
}

func TestBridge_Metrics(t *testing.T) {
	w := simhost.New()
	w.Spawn(2, "npc", host.CapMove)
	reg := prometheus.NewRegistry()
	b := newBridge(t, w, Options{Registerer: reg})

	if _, err := b.CreateEnvironment(script.QuestOwner(1), "guard"); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 2; i++ {
		if err := b.Tick(context.Background()); err != nil {
			t.Fatal(err)
		}
	}

	expected := `
# HELP scriptbridge_frames_total Frames ticked.
# TYPE scriptbridge_frames_total counter
scriptbridge_frames_total 2
# HELP scriptbridge_handles_live Entity handles currently holding a host reference.
# TYPE scriptbridge_handles_live gauge
scriptbridge_handles_live 1
# HELP scriptbridge_actions_total Action issues by kind and result. Result is issued or the error kind.
# TYPE scriptbridge_actions_total counter
scriptbridge_actions_total{action="move_to",result="issued"} 1
`
	err := testutil.GatherAndCompare(reg, strings.NewReader(expected),
		"scriptbridge_frames_total", "scriptbridge_handles_live", "scriptbridge_actions_total")
	if err != nil {
		t.Fatal(err)
	}

	if _, err := New(Options{Registerer: reg}); err == nil {
		t.Fatal("registering twice on one registry should fail")
	}
}

func TestSetLogger(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	t.Cleanup(func() { SetLogger(zap.NewNop()) })

	w := simhost.New()
	b := newBridge(t, w, Options{
		Logger: zap.New(core),
		FS:     fstest.MapFS{"hello.lua": &fstest.MapFile{Data: []byte(`log("hello", 1)`)}},
	})
	if _, err := b.CreateEnvironment(script.QuestOwner(5), "hello"); err != nil {
		t.Fatal(err)
	}

	if logs.FilterMessage("bridge ready").Len() == 0 {
		t.Error("bridge logger not installed")
	}
	entries := logs.FilterMessage("hello 1").All()
	if len(entries) != 1 {
		t.Fatalf("script log entries = %d, want 1", len(entries))
	}
	if entries[0].LoggerName != "script" {
		t.Errorf("logger name = %q, want script", entries[0].LoggerName)
	}
	if entries[0].ContextMap()["owner"] != "quest:5" {
		t.Errorf("owner field = %v", entries[0].ContextMap()["owner"])
	}
}
