package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/ZebulonRouseFrantzich/crxkeep/internal/config"
	"github.com/ZebulonRouseFrantzich/crxkeep/internal/crx"
	"github.com/ZebulonRouseFrantzich/crxkeep/internal/install"
	"github.com/ZebulonRouseFrantzich/crxkeep/internal/logging"
	"github.com/ZebulonRouseFrantzich/crxkeep/internal/orchestrator"
	"github.com/ZebulonRouseFrantzich/crxkeep/internal/platform"
	"github.com/ZebulonRouseFrantzich/crxkeep/internal/retry"
	"github.com/ZebulonRouseFrantzich/crxkeep/internal/update"
)

// options holds the flags every subcommand accepts.
type options struct {
	configPath string
	verbose    bool
	help       bool
	force      bool
	args       []string
}

// parseOptions parses common flags; anything not starting with - is
// positional.
func parseOptions(command string, args []string) (options, error) {
	var opts options
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "--help" || arg == "-h":
			opts.help = true
		case arg == "--verbose" || arg == "-v":
			opts.verbose = true
		case arg == "--force" || arg == "-f":
			opts.force = true
		case arg == "--config" || arg == "-c":
			if i+1 >= len(args) {
				return opts, fmt.Errorf("%s requires a path\nRun 'crxkeep %s --help' for usage", arg, command)
			}
			i++
			opts.configPath = args[i]
		case strings.HasPrefix(arg, "--config="):
			opts.configPath = strings.TrimPrefix(arg, "--config=")
		case len(arg) > 0 && arg[0] != '-':
			opts.args = append(opts.args, arg)
		default:
			return opts, fmt.Errorf("unknown option: %s\nRun 'crxkeep %s --help' for usage", arg, command)
		}
	}
	return opts, nil
}

// app bundles the loaded configuration and logger for one command run.
type app struct {
	cfg      *config.Config
	layout   config.Layout
	log      logging.Logger
	closeLog func() error
}

// loadApp reads the config file, prepares the data directory and opens the
// logger.
func loadApp(ctx context.Context, opts options) (*app, error) {
	path, err := config.ConfigPath(opts.configPath)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}

	cfg, err := config.NewParser(platform.NewDetector()).ParseFile(ctx, path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("no config at %s\nRun 'crxkeep init <id>' to create one", path)
		}
		return nil, fmt.Errorf("load %s: %s", path, config.FormatError(err, opts.verbose))
	}

	layout := cfg.Layout()
	if err := layout.Ensure(); err != nil {
		return nil, err
	}

	logOpts := logging.Options{Level: cfg.Log.Level}
	if cfg.Log.File {
		logOpts.FilePath = layout.LogFile()
	}
	log, closeLog, err := logging.New(logOpts)
	if err != nil {
		return nil, fmt.Errorf("open log: %w", err)
	}
	log.Debug("config loaded", "component", "config", "path", path, "data_dir", layout.Root)

	return &app{cfg: cfg, layout: layout, log: log, closeLog: closeLog}, nil
}

func (a *app) Close() {
	if a.closeLog != nil {
		_ = a.closeLog()
	}
}

func (a *app) identity() crx.Identity {
	return crx.Identity(a.cfg.Package.ID)
}

// params returns the update protocol platform values. Detection failures
// fall back to the fixed values.
func (a *app) params(ctx context.Context) platform.Params {
	if a.cfg.Update.Platform != config.PlatformDetect {
		return platform.DefaultParams
	}
	info, err := platform.NewDetector().Detect(ctx)
	if err != nil {
		a.log.Warn("platform detection failed, using fixed parameters", "component", "platform", "error", err)
		return platform.DefaultParams
	}
	p, err := platform.ParamsFor(info)
	if err != nil {
		a.log.Warn("unsupported platform, using fixed parameters", "component", "platform", "error", err)
		return platform.DefaultParams
	}
	return p
}

func (a *app) updateClient() *update.Client {
	return update.NewClient(update.Options{
		CheckTimeout:    a.cfg.Update.CheckTimeout,
		DownloadTimeout: a.cfg.Update.DownloadTimeout,
		MaxRedirects:    a.cfg.Update.MaxRedirects,
		UserAgent:       "crxkeep/" + strings.TrimPrefix(Version, "v"),
		Logger:          a.log,
	})
}

func (a *app) orchestrator(ctx context.Context, updater orchestrator.Updater) (*orchestrator.Orchestrator, error) {
	return orchestrator.New(orchestrator.Config{
		Dir:      a.layout.MainPackage(),
		Identity: a.identity(),
		BaseURL:  a.cfg.Package.BaseURL,
		Params:   a.params(ctx),
		Updater:  updater,
		Retry: retry.Policy{
			MaxAttempts: a.cfg.Update.Attempts,
			Delay:       a.cfg.Update.Delay,
			Clock:       retry.RealClock{},
		},
		Patcher:  install.NewPatcher(a.cfg.Patches, a.log),
		StateDir: a.layout.State(),
		Logger:   a.log,
	})
}
