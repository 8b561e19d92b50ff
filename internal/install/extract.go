package install

import (
	"archive/zip"
	"bytes"
	"errors"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/ZebulonRouseFrantzich/crxkeep/internal/logging"
)

// Installer extracts payloads and stages installs.
type Installer struct {
	log logging.Logger
}

// New creates an Installer. A nil logger discards output.
func New(log logging.Logger) *Installer {
	return &Installer{log: logging.OrNop(log)}
}

// Extract unpacks a zip payload into dir. Entries whose names do not resolve
// to a path enclosed by dir are skipped, as are symlinks.
func (in *Installer) Extract(payload []byte, dir string) error {
	reader, err := zip.NewReader(bytes.NewReader(payload), int64(len(payload)))
	if err != nil && !errors.Is(err, zip.ErrInsecurePath) {
		return wrap("open archive", dir, err)
	}

	root := filepath.Clean(dir)
	if err := os.MkdirAll(root, 0755); err != nil {
		return wrap("mkdir", root, err)
	}

	var skipped int
	for _, f := range reader.File {
		rel, ok := enclosedPath(f.Name)
		if !ok {
			in.log.Debug("skipping unsafe archive entry", "component", "install", "entry", f.Name)
			skipped++
			continue
		}

		target := filepath.Join(root, rel)
		// Second line of defence against anything enclosedPath missed.
		if !strings.HasPrefix(target, root+string(os.PathSeparator)) {
			in.log.Debug("skipping escaping archive entry", "component", "install", "entry", f.Name)
			skipped++
			continue
		}

		mode := f.Mode()
		switch {
		case mode&os.ModeSymlink != 0:
			in.log.Debug("skipping symlink entry", "component", "install", "entry", f.Name)
			skipped++
		case mode.IsDir() || strings.HasSuffix(f.Name, "/"):
			if err := os.MkdirAll(target, 0755); err != nil {
				return wrap("mkdir", target, err)
			}
		default:
			if err := writeEntry(f, target); err != nil {
				return err
			}
		}
	}

	in.log.Debug("payload extracted", "component", "install", "dir", root,
		"entries", len(reader.File), "skipped", skipped)
	return nil
}

func writeEntry(f *zip.File, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return wrap("mkdir", filepath.Dir(target), err)
	}

	rc, err := f.Open()
	if err != nil {
		return wrap("open entry", f.Name, err)
	}
	defer rc.Close()

	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return wrap("create", target, err)
	}

	if _, err := io.Copy(out, rc); err != nil {
		out.Close()
		return wrap("write", target, err)
	}
	if err := out.Close(); err != nil {
		return wrap("close", target, err)
	}
	return nil
}

// enclosedPath converts an archive entry name into a relative OS path that
// cannot leave the extraction root. It reports false for names that are
// absolute, carry a drive letter, contain backslashes or NUL bytes, or climb
// above the root.
func enclosedPath(name string) (string, bool) {
	if name == "" || strings.ContainsRune(name, 0) || strings.Contains(name, `\`) {
		return "", false
	}
	if strings.HasPrefix(name, "/") || filepath.IsAbs(name) || hasDriveLetter(name) {
		return "", false
	}

	cleaned := path.Clean(name)
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", false
	}
	return filepath.FromSlash(cleaned), true
}

func hasDriveLetter(name string) bool {
	if len(name) < 2 || name[1] != ':' {
		return false
	}
	c := name[0]
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}
