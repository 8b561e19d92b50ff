// Package platform detects the host platform and maps it onto the platform
// parameters the update protocol expects.
//
// Detection uses runtime.GOOS/GOARCH for the build target and gopsutil for
// the kernel architecture and Linux distribution details. Detection failures
// for the optional fields fall back gracefully to empty values.
package platform

import "context"

// Linux distribution family constants.
const (
	FamilyDebian  = "debian"  // Debian, Ubuntu, Linux Mint
	FamilyRHEL    = "rhel"    // RHEL, CentOS, Rocky Linux, AlmaLinux
	FamilyFedora  = "fedora"  // Fedora
	FamilySUSE    = "suse"    // openSUSE, SLES
	FamilyArch    = "arch"    // Arch Linux, Manjaro
	FamilyAlpine  = "alpine"  // Alpine Linux
	FamilyGentoo  = "gentoo"  // Gentoo
	FamilyUnknown = "unknown" // Unrecognized distributions
)

// Info contains platform detection information.
type Info struct {
	OS         string // "linux", "darwin", "windows"
	Arch       string // "amd64", "arm64", "386" (normalized)
	ArchRaw    string // original GOARCH
	KernelArch string // kernel machine name from gopsutil, e.g. "x86_64"
	Platform   string // distro ID (Linux only, e.g., "ubuntu")
	Family     string // canonical family (Linux only)
	Version    string // distro version (Linux only)
}

// IsLinux returns true if the platform is Linux.
func (i *Info) IsLinux() bool {
	return i.OS == "linux"
}

// IsMacOS returns true if the platform is macOS.
func (i *Info) IsMacOS() bool {
	return i.OS == "darwin"
}

// IsWindows returns true if the platform is Windows.
func (i *Info) IsWindows() bool {
	return i.OS == "windows"
}

// IsAMD64 returns true if the architecture is amd64.
func (i *Info) IsAMD64() bool {
	return i.Arch == "amd64"
}

// IsARM64 returns true if the architecture is arm64.
func (i *Info) IsARM64() bool {
	return i.Arch == "arm64"
}

// Detector is the interface for platform detection.
type Detector interface {
	Detect(ctx context.Context) (*Info, error)
}

// StaticDetector returns a fixed Info. Useful for tests and for hosts that
// already know their platform.
type StaticDetector struct {
	Info *Info
	Err  error
}

// Detect returns the configured values.
func (s StaticDetector) Detect(ctx context.Context) (*Info, error) {
	return s.Info, s.Err
}
