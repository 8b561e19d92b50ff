package platform

import "fmt"

// Params are the platform query parameters of an update request.
type Params struct {
	OS          string // os=
	Arch        string // arch=
	OSArch      string // os_arch=
	NaClArch    string // nacl_arch=
	Product     string // prod=
	ProdVersion string // prodversion=
}

// DefaultParams are the fixed values every request sends unless platform
// detection is enabled. The update service only serves these reliably.
var DefaultParams = Params{
	OS:          "win",
	Arch:        "x64",
	OSArch:      "x86_64",
	NaClArch:    "x86-64",
	Product:     "chromecrx",
	ProdVersion: "120.0.0.0",
}

// ParamsFor maps detected platform information onto update protocol values.
// Product and ProdVersion are always taken from DefaultParams.
func ParamsFor(info *Info) (Params, error) {
	if info == nil {
		return Params{}, fmt.Errorf("platform info is required")
	}

	p := DefaultParams

	osName, err := mapProtocolOS(info.OS)
	if err != nil {
		return Params{}, err
	}
	p.OS = osName

	arch, nacl, err := mapProtocolArch(info.Arch)
	if err != nil {
		return Params{}, err
	}
	p.Arch = arch
	p.NaClArch = nacl

	// os_arch describes the kernel, which may be wider than the build.
	kernel := info.Arch
	if info.KernelArch != "" {
		if normalized, err := normalizeArch(info.KernelArch); err == nil {
			kernel = normalized
		}
	}
	p.OSArch = mapProtocolOSArch(kernel)

	return p, nil
}

// mapProtocolOS maps Go GOOS values to update protocol OS names
func mapProtocolOS(goos string) (string, error) {
	switch goos {
	case "windows":
		return "win", nil
	case "darwin":
		return "mac", nil
	case "linux":
		return "linux", nil
	default:
		return "", fmt.Errorf("unsupported OS for update protocol: %s", goos)
	}
}

// mapProtocolArch maps normalized architectures to (arch, nacl_arch)
func mapProtocolArch(arch string) (string, string, error) {
	switch arch {
	case "amd64":
		return "x64", "x86-64", nil
	case "arm64":
		return "arm64", "arm", nil
	case "386":
		return "x86", "x86-32", nil
	default:
		return "", "", fmt.Errorf("unsupported architecture for update protocol: %s", arch)
	}
}

func mapProtocolOSArch(arch string) string {
	switch arch {
	case "arm64":
		return "arm64"
	case "386":
		return "x86"
	default:
		return "x86_64"
	}
}
