package install

import "os"

// EnsureClean removes dir and everything below it, then recreates it empty.
func EnsureClean(dir string) error {
	if err := os.RemoveAll(dir); err != nil {
		return wrap("clean", dir, err)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return wrap("mkdir", dir, err)
	}
	return nil
}
