package install

import (
	"os"
	"path/filepath"
	"sort"
)

// CollectUserPackages finds side-loaded unpacked packages under root: root
// itself when it is a package directory, otherwise each immediate child
// directory that is one. A missing root yields no packages.
func CollectUserPackages(root string) ([]string, error) {
	if root == "" {
		return nil, nil
	}
	if IsPackageDir(root) {
		return []string{root}, nil
	}

	entries, err := os.ReadDir(root)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, wrap("read user packages", root, err)
	}

	var dirs []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		candidate := filepath.Join(root, e.Name())
		if IsPackageDir(candidate) {
			dirs = append(dirs, candidate)
		}
	}
	sort.Strings(dirs)
	return dirs, nil
}
