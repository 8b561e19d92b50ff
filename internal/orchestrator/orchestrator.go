package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"golang.org/x/sync/singleflight"

	"github.com/ZebulonRouseFrantzich/crxkeep/internal/crx"
	"github.com/ZebulonRouseFrantzich/crxkeep/internal/install"
	"github.com/ZebulonRouseFrantzich/crxkeep/internal/logging"
	"github.com/ZebulonRouseFrantzich/crxkeep/internal/platform"
	"github.com/ZebulonRouseFrantzich/crxkeep/internal/retry"
	"github.com/ZebulonRouseFrantzich/crxkeep/internal/transaction"
	"github.com/ZebulonRouseFrantzich/crxkeep/internal/update"
)

// Config holds configuration for the orchestrator
type Config struct {
	// Dir is the package install directory.
	Dir string
	// Identity is the package to install.
	Identity crx.Identity
	// BaseURL of the update service (default: update.DefaultBaseURL)
	BaseURL string
	// Params are the platform query values (default: platform.DefaultParams)
	Params platform.Params
	Updater Updater
	// Retry governs downloads (default: retry.Default()).
	Retry retry.Policy
	// Patcher runs after every successful install (default: DefaultPatchRules).
	Patcher *install.Patcher
	// StateDir holds the install lock and journal (default: parent of Dir).
	StateDir string
	Logger   logging.Logger
}

// Orchestrator runs the install state machine for one package.
type Orchestrator struct {
	cfg       Config
	installer *install.Installer
	clock     retry.Clock
	log       logging.Logger
	group     singleflight.Group
}

// New creates an orchestrator
func New(cfg Config) (*Orchestrator, error) {
	if cfg.Dir == "" {
		return nil, fmt.Errorf("Dir is required")
	}
	if !cfg.Identity.Valid() {
		return nil, fmt.Errorf("invalid package identity %q", cfg.Identity)
	}
	if cfg.Updater == nil {
		return nil, fmt.Errorf("Updater is required")
	}

	if cfg.BaseURL == "" {
		cfg.BaseURL = update.DefaultBaseURL
	}
	if cfg.Params == (platform.Params{}) {
		cfg.Params = platform.DefaultParams
	}
	if cfg.Retry.MaxAttempts == 0 {
		clock := cfg.Retry.Clock
		cfg.Retry = retry.Default()
		if clock != nil {
			cfg.Retry.Clock = clock
		}
	}
	if cfg.Retry.Clock == nil {
		cfg.Retry.Clock = retry.RealClock{}
	}
	cfg.Dir = filepath.Clean(cfg.Dir)
	if cfg.StateDir == "" {
		cfg.StateDir = filepath.Dir(cfg.Dir)
	}

	log := logging.OrNop(cfg.Logger)
	if cfg.Patcher == nil {
		cfg.Patcher = install.NewPatcher(nil, log)
	}

	return &Orchestrator{
		cfg:       cfg,
		installer: install.New(log),
		clock:     cfg.Retry.Clock,
		log:       log,
	}, nil
}

// PrepareAndInstall makes sure a usable package copy exists in Dir,
// updating it when the update service has a newer one. Concurrent calls
// share one run; other processes are kept out by the install lock.
func (o *Orchestrator) PrepareAndInstall(ctx context.Context) Result {
	v, _, _ := o.group.Do(o.cfg.Identity.String(), func() (interface{}, error) {
		return o.locked(ctx), nil
	})
	return v.(Result)
}

func (o *Orchestrator) locked(ctx context.Context) Result {
	id := o.cfg.Identity.String()

	lock, err := transaction.AcquireLock(ctx, o.cfg.StateDir, id)
	if err != nil {
		return o.failure(install.IsPackageDir(o.cfg.Dir), "", fmt.Errorf("acquire install lock: %w", err))
	}
	defer func() {
		if err := lock.Release(); err != nil {
			o.log.Warn("failed to release install lock", "component", "orchestrator", "error", err)
		}
	}()

	if prev, err := transaction.Load(o.cfg.StateDir, id); err != nil {
		o.log.Warn("install journal unreadable", "component", "orchestrator", "error", err)
	} else if prev != nil && prev.Interrupted() {
		o.log.Warn("previous install run was interrupted", "component", "orchestrator",
			"run", prev.RunID, "started", prev.Started)
	}
	if _, err := o.installer.Recover(o.cfg.Dir); err != nil {
		o.log.Warn("failed to recover install directory", "component", "orchestrator", "error", err)
	}

	rec := transaction.NewRecord(id, o.cfg.Dir, o.clock.Now())
	o.saveRecord(rec)

	res := o.run(ctx)

	rec.Finish(res.Outcome.String(), res.Version, res.Err, o.clock.Now())
	o.saveRecord(rec)

	o.log.Info("install run finished", "component", "orchestrator", "run", rec.RunID,
		"outcome", res.Outcome.String(), "version", res.Version)
	return res
}

func (o *Orchestrator) saveRecord(rec *transaction.Record) {
	if err := rec.Save(o.cfg.StateDir); err != nil {
		o.log.Warn("failed to write install journal", "component", "orchestrator", "error", err)
	}
}

func (o *Orchestrator) run(ctx context.Context) Result {
	localPresent := install.IsPackageDir(o.cfg.Dir)
	var localVersion string
	if localPresent {
		v, _, err := install.ReadManifestVersion(o.cfg.Dir)
		if err != nil {
			o.log.Warn("local manifest unreadable", "component", "orchestrator", "error", err)
		}
		localVersion = v
	}

	o.log.Debug("install run starting", "component", "orchestrator",
		"dir", o.cfg.Dir, "local", localPresent, "version", localVersion)

	var payload []byte
	updated := false
	if localPresent {
		checkURL := update.BuildURL(o.cfg.BaseURL, o.cfg.Identity, localVersion, o.cfg.Params)
		res, err := o.cfg.Updater.Check(ctx, checkURL)
		switch {
		case err != nil:
			o.log.Warn("update check failed, downloading instead", "component", "orchestrator", "error", err)
			updated = true
		case res.Status == update.NoUpdate:
			o.log.Info("local package is current", "component", "orchestrator", "version", localVersion)
			return Result{Outcome: UsedLocal, Dir: o.cfg.Dir, Identity: o.cfg.Identity, Version: localVersion}
		default:
			payload = res.Payload
			updated = true
		}
	}

	if payload == nil {
		data, err := o.download(ctx)
		if err != nil {
			return o.failure(localPresent, localVersion, err)
		}
		payload = data
	}

	pkg, err := crx.Open(payload)
	if err != nil {
		return o.failure(localPresent, localVersion, fmt.Errorf("open package: %w", err))
	}
	if pkg.Identity != o.cfg.Identity {
		err := fmt.Errorf("%w: received package %s, want %s", crx.ErrTrust, pkg.Identity, o.cfg.Identity)
		return o.failure(localPresent, localVersion, err)
	}

	lost, err := o.installer.Stage(pkg, o.cfg.Dir)
	if err != nil {
		return o.failure(localPresent && !lost, localVersion, err)
	}

	report := o.cfg.Patcher.Patch(o.cfg.Dir)

	version, _, err := install.ReadManifestVersion(o.cfg.Dir)
	if err != nil {
		o.log.Warn("installed manifest unreadable", "component", "orchestrator", "error", err)
	}

	outcome := Installed
	if updated {
		outcome = InstalledAfterUpdate
	}
	return Result{
		Outcome:  outcome,
		Dir:      o.cfg.Dir,
		Identity: o.cfg.Identity,
		Version:  version,
		Patch:    report,
	}
}

// download fetches the current package under the retry policy. The URL
// carries no version so the service always answers with a package.
func (o *Orchestrator) download(ctx context.Context) ([]byte, error) {
	downloadURL := update.BuildURL(o.cfg.BaseURL, o.cfg.Identity, "", o.cfg.Params)

	policy := o.cfg.Retry
	next := policy.OnRetry
	policy.OnRetry = func(attempt int, err error) {
		o.log.Warn("download failed, retrying", "component", "orchestrator",
			"attempt", attempt, "max_attempts", policy.MaxAttempts, "delay", policy.Delay, "error", err)
		if next != nil {
			next(attempt, err)
		}
	}

	var data []byte
	err := policy.Do(ctx, func(ctx context.Context) error {
		b, err := o.cfg.Updater.Download(ctx, downloadURL)
		if err != nil {
			return err
		}
		data = b
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("download package: %w", err)
	}
	return data, nil
}

// failure maps an error onto the failure outcome matching what is left on
// disk.
func (o *Orchestrator) failure(keptLocal bool, version string, err error) Result {
	if keptLocal {
		o.log.Warn("install failed, keeping local copy", "component", "orchestrator", "error", err)
		return Result{Outcome: FailedKeptLocal, Dir: o.cfg.Dir, Identity: o.cfg.Identity, Version: version, Err: err}
	}
	o.log.Error("install failed, no usable local copy", "component", "orchestrator", "error", err)
	return Result{Outcome: FailedNoLocal, Dir: o.cfg.Dir, Identity: o.cfg.Identity, Err: err}
}

// IsLockContention reports whether a failed result was caused by another
// process holding the install lock.
func IsLockContention(r Result) bool {
	return errors.Is(r.Err, transaction.ErrLockExists)
}
