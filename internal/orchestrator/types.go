// Package orchestrator decides, once per run, whether the local package copy
// is kept, replaced by an update, or freshly installed, and reports the
// outcome to the host.
package orchestrator

import (
	"context"

	"github.com/ZebulonRouseFrantzich/crxkeep/internal/crx"
	"github.com/ZebulonRouseFrantzich/crxkeep/internal/install"
	"github.com/ZebulonRouseFrantzich/crxkeep/internal/update"
)

// Outcome is the terminal state of one orchestration run.
type Outcome int

const (
	// UsedLocal: the local copy is current and was left untouched.
	UsedLocal Outcome = iota + 1
	// Installed: no local copy existed and a fresh one was installed.
	Installed
	// InstalledAfterUpdate: an existing copy was replaced by a newer one.
	InstalledAfterUpdate
	// FailedKeptLocal: installing failed but the previous copy is usable.
	FailedKeptLocal
	// FailedNoLocal: installing failed and no usable copy exists.
	FailedNoLocal
)

// String returns the string representation of the outcome
func (o Outcome) String() string {
	switch o {
	case UsedLocal:
		return "used-local"
	case Installed:
		return "installed"
	case InstalledAfterUpdate:
		return "installed-after-update"
	case FailedKeptLocal:
		return "failed-kept-local"
	case FailedNoLocal:
		return "failed-no-local"
	default:
		return "unknown"
	}
}

// Result is what a run hands back to the host.
type Result struct {
	Outcome  Outcome
	Dir      string
	Identity crx.Identity
	// Version is the manifest version of the copy now on disk, if any.
	Version string
	// Err is set for both failure outcomes.
	Err   error
	Patch install.PatchReport
}

// Usable reports whether a package directory is ready for the host.
func (r Result) Usable() bool {
	return r.Outcome != FailedNoLocal
}

// Fatal reports whether the host must stop before its main UI is usable.
func (r Result) Fatal() bool {
	return r.Outcome == FailedNoLocal
}

// NeedsRestartPrompt reports whether an already loaded copy was replaced.
func (r Result) NeedsRestartPrompt() bool {
	return r.Outcome == InstalledAfterUpdate
}

// Updater is the subset of the update client the orchestrator needs.
type Updater interface {
	Check(ctx context.Context, url string) (update.CheckResult, error)
	Download(ctx context.Context, url string) ([]byte, error)
}
