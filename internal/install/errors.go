package install

import "fmt"

// InstallError reports a filesystem failure during installation.
type InstallError struct {
	Op   string
	Path string
	Err  error
}

func (e *InstallError) Error() string {
	return fmt.Sprintf("install %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *InstallError) Unwrap() error { return e.Err }

func wrap(op, path string, err error) error {
	if err == nil {
		return nil
	}
	return &InstallError{Op: op, Path: path, Err: err}
}
