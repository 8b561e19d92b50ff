package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ZebulonRouseFrantzich/crxkeep/internal/host"
	"github.com/ZebulonRouseFrantzich/crxkeep/internal/install"
	"github.com/ZebulonRouseFrantzich/crxkeep/internal/logging"
	"github.com/ZebulonRouseFrantzich/crxkeep/internal/session"
)

const (
	dispatcherQueue = 16
	shutdownTimeout = 10 * time.Second
)

// runRun handles the `crxkeep run` subcommand: install, open the package in
// the browser and keep its session cookies alive until interrupted.
func runRun(args []string, out io.Writer) error {
	opts, err := parseOptions("run", args)
	if err != nil {
		return err
	}
	if opts.help {
		printRunHelp(out)
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := loadApp(ctx, opts)
	if err != nil {
		return err
	}
	defer a.Close()

	if reset, err := a.layout.ConsumeProfileReset(); err != nil {
		a.log.Warn("profile reset failed", "component", "host", "error", err)
	} else if reset {
		a.log.Info("browser profile removed", "component", "host", "dir", a.layout.Profile())
	}

	orch, err := a.orchestrator(ctx, a.updateClient())
	if err != nil {
		return fmt.Errorf("create orchestrator: %w", err)
	}
	res := orch.PrepareAndInstall(ctx)
	printResult(out, res)
	if res.Fatal() {
		return fmt.Errorf("no usable package: %w", res.Err)
	}

	userDirs, err := install.CollectUserPackages(a.layout.UserPackages())
	if err != nil {
		a.log.Warn("side-loaded packages skipped", "component", "host", "error", err)
	}

	disp := host.NewDispatcher(dispatcherQueue)
	rodHost := host.NewRodHost(host.RodConfig{
		Bin:         a.cfg.Browser.Bin,
		Headless:    a.cfg.Browser.Headless,
		RemoteURL:   a.cfg.Browser.RemoteURL,
		UserDataDir: a.layout.Profile(),
		Logger:      a.log,
	}, disp)

	sessions, err := session.NewManager(session.Config{
		Store:   rodHost,
		Origins: a.cfg.Session.Origins,
		TTL:     a.cfg.Session.TTL,
		Delays:  a.cfg.Session.Delays,
		Logger:  a.log,
	})
	if err != nil {
		return err
	}

	// The dispatcher outlives ctx so the browser can still be closed on it.
	runCtx, cancelRun := context.WithCancel(context.Background())
	defer cancelRun()

	errc := make(chan error, 1)
	go func() {
		defer cancelRun()
		r := &runner{
			host:      rodHost,
			sessions:  sessions,
			log:       a.log,
			scheme:    a.cfg.Package.Scheme,
			entryPath: a.cfg.Package.EntryPath,
			out:       out,
		}
		err := r.serve(ctx, res.Dir, userDirs)

		closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if cerr := rodHost.Close(closeCtx); cerr != nil {
			a.log.Warn("browser shutdown failed", "component", "host", "error", cerr)
		}
		errc <- err
	}()

	if err := disp.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return <-errc
}

// runner drives the host once a package is installed.
type runner struct {
	host      host.Host
	sessions  *session.Manager
	log       logging.Logger
	scheme    string
	entryPath string
	out       io.Writer
}

// serve registers the packages, opens the entry page and runs the cookie
// schedule, then waits for ctx to end. Side-loaded packages that fail to
// register are skipped.
func (r *runner) serve(ctx context.Context, mainDir string, userDirs []string) error {
	id, err := r.host.RegisterPackage(ctx, mainDir)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("register package: %w", err)
	}
	r.log.Info("package registered", "component", "host", "dir", mainDir, "runtime_id", id)

	for _, dir := range userDirs {
		userID, err := r.host.RegisterPackage(ctx, dir)
		if err != nil {
			r.log.Warn("side-loaded package skipped", "component", "host", "dir", dir, "error", err)
			continue
		}
		r.log.Info("side-loaded package registered", "component", "host", "dir", dir, "runtime_id", userID)
	}

	entry := host.PackageURL(r.scheme, id, r.entryPath)
	if err := r.host.Navigate(ctx, entry); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("open %s: %w", entry, err)
	}
	fmt.Fprintf(r.out, "Opened %s (Ctrl+C to quit)\n", entry)

	done := r.sessions.Schedule(ctx, "main")
	<-ctx.Done()
	<-done
	return nil
}

func printRunHelp(out io.Writer) {
	fmt.Fprintln(out, "Usage: crxkeep run [options]")
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Install or update the package, open it in the browser and keep its")
	fmt.Fprintln(out, "session cookies from expiring. Runs until interrupted.")
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Options:")
	fmt.Fprintln(out, "  --config <path>   Config file")
	fmt.Fprintln(out, "  --verbose, -v     Show full error details")
}
