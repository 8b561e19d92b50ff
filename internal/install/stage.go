package install

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/ZebulonRouseFrantzich/crxkeep/internal/crx"
)

const (
	stagingSuffix = ".staging"
	backupSuffix  = ".previous"
)

// Stage installs pkg into dir. The payload is extracted into a sibling
// staging directory and pinned to the package key there; only a complete
// staging tree is swapped into dir.
//
// lostLocal is true when dir held a previous copy that could be neither
// replaced nor restored. On every other failure dir is left as it was.
func (in *Installer) Stage(pkg *crx.Package, dir string) (lostLocal bool, err error) {
	if pkg == nil {
		return false, wrap("stage", dir, errors.New("nil package"))
	}

	dir = filepath.Clean(dir)
	staging := dir + stagingSuffix
	defer func() {
		if err != nil {
			os.RemoveAll(staging)
		}
	}()

	if err := EnsureClean(staging); err != nil {
		return false, err
	}
	if err := in.Extract(pkg.Payload, staging); err != nil {
		return false, err
	}
	if err := InjectIdentityKey(staging, pkg.PublicKey); err != nil {
		return false, err
	}

	return in.swap(staging, dir)
}

func (in *Installer) swap(staging, dir string) (bool, error) {
	backup := dir + backupSuffix
	if err := os.RemoveAll(backup); err != nil {
		return false, wrap("clean backup", backup, err)
	}

	_, statErr := os.Stat(dir)
	hadLocal := statErr == nil
	if hadLocal {
		if err := os.Rename(dir, backup); err != nil {
			return false, wrap("move previous", dir, err)
		}
	} else if err := os.MkdirAll(filepath.Dir(dir), 0755); err != nil {
		return false, wrap("mkdir", filepath.Dir(dir), err)
	}

	if err := os.Rename(staging, dir); err != nil {
		if hadLocal {
			if rerr := os.Rename(backup, dir); rerr != nil {
				in.log.Error("previous install could not be restored", "component", "install",
					"dir", dir, "error", rerr)
				return true, wrap("swap", dir, err)
			}
		}
		return false, wrap("swap", dir, err)
	}

	if hadLocal {
		if err := os.RemoveAll(backup); err != nil {
			in.log.Warn("failed to remove previous install", "component", "install",
				"dir", backup, "error", err)
		}
	}
	in.log.Info("package installed", "component", "install", "dir", dir, "replaced", hadLocal)
	return false, nil
}

// Recover repairs what an interrupted Stage may have left next to dir: the
// staging tree is removed and, when dir is missing but a backup of the
// previous copy exists, the backup is moved back into place.
func (in *Installer) Recover(dir string) (restored bool, err error) {
	dir = filepath.Clean(dir)
	if err := os.RemoveAll(dir + stagingSuffix); err != nil {
		return false, wrap("clean staging", dir+stagingSuffix, err)
	}

	backup := dir + backupSuffix
	if _, err := os.Stat(backup); err != nil {
		return false, nil
	}
	if _, err := os.Stat(dir); err == nil {
		if err := os.RemoveAll(backup); err != nil {
			return false, wrap("clean backup", backup, err)
		}
		return false, nil
	}

	if err := os.Rename(backup, dir); err != nil {
		return false, wrap("restore previous", dir, err)
	}
	in.log.Warn("restored previous install after interrupted update", "component", "install", "dir", dir)
	return true, nil
}
