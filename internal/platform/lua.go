package platform

import (
	lua "github.com/yuin/gopher-lua"
)

// LuaGlobal is the name of the injected table.
const LuaGlobal = "platform"

// InjectPlatformTable exposes info to Lua as a read-only global table:
//
//	platform.os, .arch, .arch_raw, .kernel_arch
//	platform.is_linux, .is_macos, .is_windows, .is_amd64, .is_arm64
//	platform.distro        { id, family, version } on Linux, nil elsewhere
//	platform.update        update protocol values for this host, nil when
//	                       the platform has no mapping
//	platform.when(c, v)    v when c is true, nil otherwise
//
// Call it before loading any configuration code.
func InjectPlatformTable(L *lua.LState, info *Info) error {
	t := L.NewTable()

	setStrings(L, t, map[string]string{
		"os":          info.OS,
		"arch":        info.Arch,
		"arch_raw":    info.ArchRaw,
		"kernel_arch": info.KernelArch,
	})
	for name, v := range map[string]bool{
		"is_linux":   info.IsLinux(),
		"is_macos":   info.IsMacOS(),
		"is_windows": info.IsWindows(),
		"is_amd64":   info.IsAMD64(),
		"is_arm64":   info.IsARM64(),
	} {
		L.SetField(t, name, lua.LBool(v))
	}

	if info.IsLinux() && info.Platform != "" {
		distro := L.NewTable()
		setStrings(L, distro, map[string]string{
			"id":      info.Platform,
			"family":  info.Family,
			"version": info.Version,
		})
		L.SetField(t, "distro", makeReadOnly(L, distro))
	}

	if p, err := ParamsFor(info); err == nil {
		params := L.NewTable()
		setStrings(L, params, map[string]string{
			"os":          p.OS,
			"arch":        p.Arch,
			"os_arch":     p.OSArch,
			"nacl_arch":   p.NaClArch,
			"prod":        p.Product,
			"prodversion": p.ProdVersion,
		})
		L.SetField(t, "update", makeReadOnly(L, params))
	}

	L.SetField(t, "when", L.NewFunction(func(L *lua.LState) int {
		if L.CheckBool(1) {
			L.Push(L.Get(2))
		} else {
			L.Push(lua.LNil)
		}
		return 1
	}))

	L.SetGlobal(LuaGlobal, makeReadOnly(L, t))
	return nil
}

func setStrings(L *lua.LState, t *lua.LTable, fields map[string]string) {
	for k, v := range fields {
		L.SetField(t, k, lua.LString(v))
	}
}

// makeReadOnly returns a proxy that reads through to table and raises an
// error on assignment.
func makeReadOnly(L *lua.LState, table *lua.LTable) *lua.LTable {
	mt := L.NewTable()
	L.SetField(mt, "__index", table)
	L.SetField(mt, "__newindex", L.NewFunction(func(L *lua.LState) int {
		L.RaiseError("platform table is read-only")
		return 0
	}))
	L.SetField(mt, "__metatable", lua.LString("protected"))

	proxy := L.NewTable()
	L.SetMetatable(proxy, mt)
	return proxy
}
