package platform

import (
	"testing"

	lua "github.com/yuin/gopher-lua"
)

func evalString(t *testing.T, L *lua.LState, code string) lua.LValue {
	t.Helper()
	if err := L.DoString(code); err != nil {
		t.Fatalf("DoString(%q) failed: %v", code, err)
	}
	v := L.Get(-1)
	L.Pop(1)
	return v
}

func TestInjectPlatformTable_UpdateParams(t *testing.T) {
	L := lua.NewState()
	defer L.Close()

	info := &Info{OS: "darwin", Arch: "arm64", ArchRaw: "arm64", KernelArch: "arm64"}
	if err := InjectPlatformTable(L, info); err != nil {
		t.Fatal(err)
	}

	tests := map[string]lua.LValue{
		`return platform.update.os`:        lua.LString("mac"),
		`return platform.update.arch`:      lua.LString("arm64"),
		`return platform.update.nacl_arch`: lua.LString("arm"),
		`return platform.update.prod`:      lua.LString("chromecrx"),
		`return platform.distro`:           lua.LNil,
		`return platform.is_macos`:         lua.LTrue,
	}
	for code, want := range tests {
		if got := evalString(t, L, code); got != want {
			t.Errorf("%s = %v, want %v", code, got, want)
		}
	}

	if err := L.DoString(`platform.update.os = "linux"`); err == nil {
		t.Error("expected write to platform.update to fail")
	}
}

func TestInjectPlatformTable_UnmappedPlatform(t *testing.T) {
	L := lua.NewState()
	defer L.Close()

	info := &Info{OS: "freebsd", Arch: "amd64", ArchRaw: "amd64"}
	if err := InjectPlatformTable(L, info); err != nil {
		t.Fatal(err)
	}
	if got := evalString(t, L, `return platform.update`); got != lua.LNil {
		t.Errorf("platform.update = %v, want nil", got)
	}
	if got := evalString(t, L, `return platform.os`); got != lua.LString("freebsd") {
		t.Errorf("platform.os = %v", got)
	}
}

func TestInjectPlatformTable_ProtectedMetatable(t *testing.T) {
	L := lua.NewState()
	defer L.Close()

	if err := InjectPlatformTable(L, &Info{OS: "linux", Arch: "amd64", Platform: "arch", Family: FamilyArch}); err != nil {
		t.Fatal(err)
	}
	if got := evalString(t, L, `return getmetatable(platform)`); got != lua.LString("protected") {
		t.Errorf("getmetatable(platform) = %v", got)
	}
	if err := L.DoString(`platform.distro.id = "x"`); err == nil {
		t.Error("expected write to platform.distro to fail")
	}
	if err := L.DoString(`setmetatable(platform, nil)`); err == nil {
		t.Error("expected setmetatable on protected table to fail")
	}
}
