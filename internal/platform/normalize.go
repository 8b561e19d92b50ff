package platform

import (
	"fmt"
	"strings"
)

// familyMap folds distribution IDs and gopsutil family names onto the
// Family constants.
var familyMap = map[string]string{
	"debian":   FamilyDebian,
	"ubuntu":   FamilyDebian,
	"mint":     FamilyDebian,
	"rhel":     FamilyRHEL,
	"centos":   FamilyRHEL,
	"rocky":    FamilyRHEL,
	"alma":     FamilyRHEL,
	"fedora":   FamilyFedora,
	"suse":     FamilySUSE,
	"opensuse": FamilySUSE,
	"arch":     FamilyArch,
	"manjaro":  FamilyArch,
	"alpine":   FamilyAlpine,
	"gentoo":   FamilyGentoo,
}

// archAliases maps GOARCH values and kernel machine names to GOARCH-style
// names.
var archAliases = map[string]string{
	"amd64":   "amd64",
	"x86_64":  "amd64",
	"x64":     "amd64",
	"arm64":   "arm64",
	"aarch64": "arm64",
	"386":     "386",
	"i386":    "386",
	"i686":    "386",
	"x86":     "386",
}

func normalizeArch(arch string) (string, error) {
	if normalized, ok := archAliases[clean(arch)]; ok {
		return normalized, nil
	}
	return "", fmt.Errorf("unsupported architecture: %q", arch)
}

func clean(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// mapFamily returns the canonical family, FamilyUnknown when unrecognized.
func mapFamily(family string) string {
	if canonical, ok := familyMap[clean(family)]; ok {
		return canonical
	}
	return FamilyUnknown
}
