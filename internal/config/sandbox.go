package config

import (
	lua "github.com/yuin/gopher-lua"
)

// sandboxedGlobals are removed from every config VM: system access
// (os, io), code loading (require, dofile, loadfile, load, loadstring)
// and debug, which could be used to escape the rest.
var sandboxedGlobals = []string{
	"os",
	"io",
	"require",
	"dofile",
	"loadfile",
	"load",
	"loadstring",
	"debug",
	"package",
	"collectgarbage",
}

// sandboxLuaVM restricts a Lua VM so a config can compute values but
// cannot reach the system. string, table and math remain available.
func sandboxLuaVM(L *lua.LState) {
	for _, name := range sandboxedGlobals {
		L.SetGlobal(name, lua.LNil)
	}
}

// newSandboxedVM creates a new Lua VM with sandboxing applied.
func newSandboxedVM() *lua.LState {
	L := lua.NewState()
	sandboxLuaVM(L)
	return L
}
