package config

import (
	lua "github.com/yuin/gopher-lua"
)

// luaLibs are the only standard libraries a hook config gets. package, os,
// io, channel and debug are never opened.
var luaLibs = []struct {
	name string
	open lua.LGFunction
}{
	{lua.BaseLibName, lua.OpenBase},
	{lua.TabLibName, lua.OpenTable},
	{lua.StringLibName, lua.OpenString},
	{lua.MathLibName, lua.OpenMath},
}

// blockedGlobals are base-library functions that load code or touch the
// runtime.
var blockedGlobals = []string{
	"require", "module",
	"dofile", "loadfile", "load", "loadstring",
	"collectgarbage", "getfenv", "setfenv",
}

// newSandboxedVM returns a Lua VM limited to pure data manipulation. Configs
// are small, so the call stack is kept shallow.
func newSandboxedVM() *lua.LState {
	L := lua.NewState(lua.Options{
		SkipOpenLibs:  true,
		CallStackSize: 64,
	})
	for _, lib := range luaLibs {
		L.Push(L.NewFunction(lib.open))
		L.Push(lua.LString(lib.name))
		L.Call(1, 0)
	}
	for _, name := range blockedGlobals {
		L.SetGlobal(name, lua.LNil)
	}
	return L
}
