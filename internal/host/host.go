// Package host connects installed packages to an embedded browser.
//
// Every call that touches the browser runs on a single UI-affinity
// goroutine owned by a Dispatcher. Background work, such as the install
// orchestrator or the cookie schedule, hands calls over with
// Dispatcher.Call and waits for the answer.
package host

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ZebulonRouseFrantzich/crxkeep/internal/crx"
	"github.com/ZebulonRouseFrantzich/crxkeep/internal/install"
	"github.com/ZebulonRouseFrantzich/crxkeep/internal/session"
)

// DefaultScheme is the URL scheme under which packages are served.
const DefaultScheme = "chrome-extension"

// Host is the embedded browser as seen by the rest of the program.
type Host interface {
	session.CookieStore

	// RegisterPackage loads the unpacked package in dir and returns the
	// identity the browser assigned to it.
	RegisterPackage(ctx context.Context, dir string) (string, error)
	// Navigate shows url in the main page.
	Navigate(ctx context.Context, url string) error
}

// PackageURL builds the address of entryPath inside a registered package.
func PackageURL(scheme, runtimeID, entryPath string) string {
	if scheme == "" {
		scheme = DefaultScheme
	}
	return fmt.Sprintf("%s://%s/%s", scheme, runtimeID, strings.TrimPrefix(entryPath, "/"))
}

// RuntimeID predicts the identity a browser assigns to the unpacked package
// in dir: derived from the manifest key when present, otherwise from the
// absolute directory path.
func RuntimeID(dir string) (crx.Identity, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolve package dir: %w", err)
	}
	key, err := install.ReadManifestKey(abs)
	if err != nil {
		return "", err
	}
	if len(key) > 0 {
		return crx.IdentityFromPublicKey(key), nil
	}
	return crx.IdentityFromPath(abs), nil
}
