package script

import (
	lua "github.com/yuin/gopher-lua"
)

// FieldTransfer is implemented by persistence contexts that let scripts read
// and write named fields. Other contexts are passed through opaquely.
type FieldTransfer interface {
	Saving() bool
	Get(key string) (string, bool)
	Set(key, value string)
}

func (e *Environment) newTransfer(ctx any) *lua.LUserData {
	ud := e.L.NewUserData()
	ud.Value = ctx
	e.L.SetMetatable(ud, e.L.GetTypeMetatable(transferTypeName))
	return ud
}

func checkTransfer(L *lua.LState) (FieldTransfer, bool) {
	ft, ok := L.CheckUserData(1).Value.(FieldTransfer)
	return ft, ok
}

// ctx:saving() is true while saving and false while loading.
func (e *Environment) transferSaving(L *lua.LState) int {
	ft, ok := checkTransfer(L)
	L.Push(lua.LBool(ok && ft.Saving()))
	return 1
}

// ctx:get(key) returns the stored string or nil.
func (e *Environment) transferGet(L *lua.LState) int {
	key := L.CheckString(2)
	ft, ok := checkTransfer(L)
	if !ok {
		L.Push(lua.LNil)
		return 1
	}
	v, ok := ft.Get(key)
	if !ok {
		L.Push(lua.LNil)
		return 1
	}
	L.Push(lua.LString(v))
	return 1
}

// ctx:set(key, value) stores tostring(value).
func (e *Environment) transferSet(L *lua.LState) int {
	key := L.CheckString(2)
	value := L.ToStringMeta(L.CheckAny(3)).String()
	if ft, ok := checkTransfer(L); ok {
		ft.Set(key, value)
	}
	return 0
}
