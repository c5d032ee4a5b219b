package script

import (
	"math"
	"strings"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/wippyai/scriptbridge/action"
	"github.com/wippyai/scriptbridge/control"
	"github.com/wippyai/scriptbridge/errors"
	"github.com/wippyai/scriptbridge/globals"
	"github.com/wippyai/scriptbridge/host"
	"github.com/wippyai/scriptbridge/task"
)

const (
	entityTypeName   = "scriptbridge.entity"
	tokenTypeName    = "scriptbridge.token"
	transferTypeName = "scriptbridge.transfer"
)

// entityRef is the userdata value behind an entity proxy.
type entityRef struct {
	id host.EntityID
}

// requestBuilder reads an action's parameters starting at stack index base.
type requestBuilder func(L *lua.LState, base int) action.Request

var requestBuilders = map[string]requestBuilder{
	"move_to": func(L *lua.LState, base int) action.Request {
		return action.MoveTo{
			Pos: host.Vec3{
				X: float64(L.CheckNumber(base)),
				Y: float64(L.CheckNumber(base + 1)),
				Z: float64(L.CheckNumber(base + 2)),
			},
			Run: L.OptBool(base+3, false),
		}
	},
	"play_animation": func(L *lua.LState, base int) action.Request {
		return action.PlayAnimation{Name: L.CheckString(base), Loop: L.OptBool(base+1, false)}
	},
	"speak": func(L *lua.LState, base int) action.Request {
		return action.Speak{Target: checkEntityID(L, base), Line: L.CheckString(base + 1)}
	},
	"follow": func(L *lua.LState, base int) action.Request {
		return action.Follow{Target: checkEntityID(L, base), Distance: float64(L.OptNumber(base+1, 2))}
	},
	"stop_following": func(*lua.LState, int) action.Request {
		return action.StopFollowing{}
	},
	"attack": func(L *lua.LState, base int) action.Request {
		return action.Attack{Target: checkEntityID(L, base)}
	},
	"look_at": func(L *lua.LState, base int) action.Request {
		return action.LookAt{Target: checkEntityID(L, base)}
	},
	"wait": func(L *lua.LState, base int) action.Request {
		return action.Wait{Frames: L.CheckInt(base)}
	},
}

// install registers the script interface in e.L.
func (e *Environment) install() {
	L := e.L

	entityMethods := map[string]lua.LGFunction{
		"id":        e.entityID,
		"alive":     e.entityAlive,
		"position":  e.entityPosition,
		"following": e.entityFollowing,
		"acquire":   e.entityAcquire,
	}
	tokenMethods := map[string]lua.LGFunction{
		"busy":    e.tokenBusy,
		"state":   e.tokenState,
		"entity":  e.tokenEntity,
		"release": e.tokenRelease,
	}
	for name, build := range requestBuilders {
		entityMethods[name] = e.scopedAction(build)
		tokenMethods[name] = e.tokenAction(build)
		tokenMethods[name+"_async"] = e.tokenActionAsync(build)
	}

	mt := L.NewTypeMetatable(entityTypeName)
	L.SetField(mt, "__index", L.SetFuncs(L.NewTable(), entityMethods))
	L.SetField(mt, "__tostring", L.NewFunction(e.entityString))
	L.SetField(mt, "__eq", L.NewFunction(e.entityEqual))

	mt = L.NewTypeMetatable(tokenTypeName)
	L.SetField(mt, "__index", L.SetFuncs(L.NewTable(), tokenMethods))

	mt = L.NewTypeMetatable(transferTypeName)
	L.SetField(mt, "__index", L.SetFuncs(L.NewTable(), map[string]lua.LGFunction{
		"saving": e.transferSaving,
		"get":    e.transferGet,
		"set":    e.transferSet,
	}))

	e.self = L.NewTable()
	e.self.RawSetString("id", lua.LNumber(e.owner.ID))
	e.self.RawSetString("kind", lua.LString(e.owner.Kind.String()))
	if e.owner.Kind == OwnerEntity {
		e.self.RawSetString("entity", e.newEntity(host.EntityID(e.owner.ID)))
	}
	L.SetGlobal("self", e.self)

	for name, fn := range map[string]lua.LGFunction{
		"entity":          e.luaEntity,
		"yield":           e.luaYield,
		"sleep":           e.luaSleep,
		"register_thread": e.luaRegisterThread,
		"global_get":      e.luaGlobalGet,
		"global_set":      e.luaGlobalSet,
		"global_del":      e.luaGlobalDel,
		"log":             e.luaLog,
		"print":           e.luaLog,
		"frame":           e.luaFrame,
	} {
		L.SetGlobal(name, L.NewFunction(fn))
	}
}

func (e *Environment) newEntity(id host.EntityID) *lua.LUserData {
	ud := e.L.NewUserData()
	ud.Value = entityRef{id: id}
	e.L.SetMetatable(ud, e.L.GetTypeMetatable(entityTypeName))
	return ud
}

func (e *Environment) newToken(t *control.Token) *lua.LUserData {
	ud := e.L.NewUserData()
	ud.Value = t
	e.L.SetMetatable(ud, e.L.GetTypeMetatable(tokenTypeName))
	return ud
}

// checkEntityID accepts an entity proxy or a non-negative integral id.
func checkEntityID(L *lua.LState, n int) host.EntityID {
	switch v := L.Get(n).(type) {
	case *lua.LUserData:
		if ref, ok := v.Value.(entityRef); ok {
			return ref.id
		}
	case lua.LNumber:
		if f := float64(v); f >= 0 && f < 1<<64 && f == math.Trunc(f) {
			return host.EntityID(f)
		}
	}
	L.ArgError(n, "entity or entity id expected")
	return 0
}

func checkEntity(L *lua.LState) entityRef {
	ud := L.CheckUserData(1)
	ref, ok := ud.Value.(entityRef)
	if !ok {
		L.ArgError(1, "entity expected")
	}
	return ref
}

func checkToken(L *lua.LState) *control.Token {
	ud := L.CheckUserData(1)
	t, ok := ud.Value.(*control.Token)
	if !ok {
		L.ArgError(1, "token expected")
	}
	return t
}

// reason turns an outcome into the short string scripts see.
func reason(st task.Status, err error) lua.LString {
	if k := errors.KindOf(err); k != "" {
		return lua.LString(k)
	}
	if err != nil {
		return lua.LString(err.Error())
	}
	return lua.LString(st.String())
}

// outcome always returns two values so resumed callers never see stale
// registers in place of a missing second result.
func outcome(errOf func() error) func(task.Status) []lua.LValue {
	return func(st task.Status) []lua.LValue {
		if st == task.Done {
			return []lua.LValue{lua.LTrue, lua.LNil}
		}
		return []lua.LValue{lua.LFalse, reason(st, errOf())}
	}
}

// entity(id)
func (e *Environment) luaEntity(L *lua.LState) int {
	L.Push(e.newEntity(checkEntityID(L, 1)))
	return 1
}

func (e *Environment) entityID(L *lua.LState) int {
	L.Push(lua.LNumber(checkEntity(L).id))
	return 1
}

func (e *Environment) entityAlive(L *lua.LState) int {
	L.Push(lua.LBool(e.reg.svc.Host.Alive(checkEntity(L).id)))
	return 1
}

func (e *Environment) entityPosition(L *lua.LState) int {
	pos, ok := e.reg.svc.Host.Position(checkEntity(L).id)
	if !ok {
		L.Push(lua.LNil)
		return 1
	}
	L.Push(lua.LNumber(pos.X))
	L.Push(lua.LNumber(pos.Y))
	L.Push(lua.LNumber(pos.Z))
	return 3
}

func (e *Environment) entityFollowing(L *lua.LState) int {
	id, ok := e.reg.svc.Host.Following(checkEntity(L).id)
	if !ok {
		L.Push(lua.LNil)
		return 1
	}
	L.Push(e.newEntity(id))
	return 1
}

func (e *Environment) entityString(L *lua.LState) int {
	L.Push(lua.LString("entity(" + lua.LNumber(checkEntity(L).id).String() + ")"))
	return 1
}

func (e *Environment) entityEqual(L *lua.LState) int {
	a, aok := L.CheckUserData(1).Value.(entityRef)
	b, bok := L.CheckUserData(2).Value.(entityRef)
	L.Push(lua.LBool(aok && bok && a.id == b.id))
	return 1
}

// ent:acquire() blocks until control is granted. Returns a token, or nil and
// a reason.
func (e *Environment) entityAcquire(L *lua.LState) int {
	op := e.reg.svc.Controller.Acquire(e.owner.String(), checkEntity(L).id)
	th := e.threads[L]
	return e.block(L, op, func(st task.Status) []lua.LValue {
		if st == task.Done {
			if th != nil {
				th.adopt(op.Token())
			}
			return []lua.LValue{e.newToken(op.Token()), lua.LNil}
		}
		return []lua.LValue{lua.LNil, reason(st, op.Err())}
	})
}

// ent:<action>(...) acquires, issues, waits and releases.
func (e *Environment) scopedAction(build requestBuilder) lua.LGFunction {
	return func(L *lua.LState) int {
		ref := checkEntity(L)
		op := e.reg.svc.Dispatcher.Scoped(e.owner.String(), ref.id, build(L, 2))
		return e.block(L, op, outcome(op.Err))
	}
}

// tok:<action>(...) issues and waits for completion.
func (e *Environment) tokenAction(build requestBuilder) lua.LGFunction {
	return func(L *lua.LState) int {
		t := checkToken(L)
		op := e.reg.svc.Dispatcher.IssueAndWait(t, build(L, 2))
		return e.block(L, op, outcome(op.Err))
	}
}

// tok:<action>_async(...) issues without waiting.
func (e *Environment) tokenActionAsync(build requestBuilder) lua.LGFunction {
	return func(L *lua.LState) int {
		t := checkToken(L)
		if err := e.reg.svc.Dispatcher.Issue(t, build(L, 2)); err != nil {
			L.Push(lua.LFalse)
			L.Push(reason(task.Failed, err))
			return 2
		}
		L.Push(lua.LTrue)
		return 1
	}
}

func (e *Environment) tokenBusy(L *lua.LState) int {
	L.Push(lua.LBool(e.reg.svc.Dispatcher.InProgress(checkToken(L))))
	return 1
}

func (e *Environment) tokenState(L *lua.LState) int {
	L.Push(lua.LString(checkToken(L).State().String()))
	return 1
}

func (e *Environment) tokenEntity(L *lua.LState) int {
	L.Push(e.newEntity(checkToken(L).Entity()))
	return 1
}

func (e *Environment) tokenRelease(L *lua.LState) int {
	e.reg.svc.Controller.Release(checkToken(L))
	return 0
}

// yield() suspends until the next frame.
func (e *Environment) luaYield(L *lua.LState) int {
	return e.block(L, task.Frames(1), func(task.Status) []lua.LValue { return nil })
}

// sleep(n) suspends for n frames. Returns false if cancelled first.
func (e *Environment) luaSleep(L *lua.LState) int {
	return e.block(L, task.Frames(L.CheckInt(1)), func(st task.Status) []lua.LValue {
		return []lua.LValue{lua.LBool(st == task.Done)}
	})
}

// register_thread(name, region, ...) returns the slot index, or nil and a
// reason.
func (e *Environment) luaRegisterThread(L *lua.LState) int {
	name := L.CheckString(1)
	region := L.OptString(2, "")
	var args []any
	for i := 3; i <= L.GetTop(); i++ {
		args = append(args, e.argFromLua(L, i))
	}
	idx, err := e.slots.Register(name, args, region)
	if err != nil {
		L.Push(lua.LNil)
		L.Push(reason(task.Failed, err))
		return 2
	}
	L.Push(lua.LNumber(idx))
	return 1
}

func (e *Environment) luaGlobalGet(L *lua.LState) int {
	v, ok := e.reg.svc.Globals.Get(L.CheckString(1))
	if !ok {
		L.Push(lua.LNil)
		return 1
	}
	L.Push(fromGlobal(v))
	return 1
}

// global_set(k, v) stores a boolean, integer or string. A nil value deletes.
func (e *Environment) luaGlobalSet(L *lua.LState) int {
	key := L.CheckString(1)
	lv := L.Get(2)
	if lv == lua.LNil {
		e.reg.svc.Globals.Delete(key)
		return 0
	}
	v, ok := toGlobal(lv)
	if !ok {
		L.ArgError(2, "boolean, integer or string expected")
		return 0
	}
	e.reg.svc.Globals.Set(key, v)
	return 0
}

func (e *Environment) luaGlobalDel(L *lua.LState) int {
	L.Push(lua.LBool(e.reg.svc.Globals.Delete(L.CheckString(1))))
	return 1
}

func (e *Environment) luaLog(L *lua.LState) int {
	parts := make([]string, 0, L.GetTop())
	for i := 1; i <= L.GetTop(); i++ {
		parts = append(parts, L.ToStringMeta(L.Get(i)).String())
	}
	Logger().Info(strings.Join(parts, " "),
		zap.Stringer("owner", e.owner),
		zap.Uint64("frame", e.reg.svc.Clock.Frame()))
	return 0
}

func (e *Environment) luaFrame(L *lua.LState) int {
	L.Push(lua.LNumber(e.reg.svc.Clock.Frame()))
	return 1
}

func toGlobal(lv lua.LValue) (globals.Value, bool) {
	switch v := lv.(type) {
	case lua.LBool:
		return globals.Bool(bool(v)), true
	case lua.LNumber:
		f := float64(v)
		if f != math.Trunc(f) || f < math.MinInt64 || f >= math.MaxInt64 {
			return globals.Value{}, false
		}
		return globals.Int(int64(f)), true
	case lua.LString:
		return globals.String(string(v)), true
	}
	return globals.Value{}, false
}

func fromGlobal(v globals.Value) lua.LValue {
	switch x := v.Interface().(type) {
	case bool:
		return lua.LBool(x)
	case int64:
		return lua.LNumber(x)
	case string:
		return lua.LString(x)
	}
	return lua.LNil
}

// argFromLua converts a register_thread argument into a Go value slots can
// hold across frames.
func (e *Environment) argFromLua(L *lua.LState, n int) any {
	switch v := L.Get(n).(type) {
	case *lua.LNilType:
		return nil
	case lua.LBool:
		return bool(v)
	case lua.LNumber:
		return float64(v)
	case lua.LString:
		return string(v)
	case *lua.LUserData:
		if ref, ok := v.Value.(entityRef); ok {
			return ref.id
		}
	}
	L.ArgError(n, "nil, boolean, number, string or entity expected")
	return nil
}

func (e *Environment) argsToLua(args []any) []lua.LValue {
	out := make([]lua.LValue, 0, len(args))
	for _, a := range args {
		switch v := a.(type) {
		case bool:
			out = append(out, lua.LBool(v))
		case float64:
			out = append(out, lua.LNumber(v))
		case int64:
			out = append(out, lua.LNumber(v))
		case int:
			out = append(out, lua.LNumber(v))
		case string:
			out = append(out, lua.LString(v))
		case host.EntityID:
			out = append(out, e.newEntity(v))
		default:
			out = append(out, lua.LNil)
		}
	}
	return out
}
