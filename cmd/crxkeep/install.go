package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/ZebulonRouseFrantzich/crxkeep/internal/orchestrator"
)

// runInstall handles the `crxkeep install` subcommand
func runInstall(args []string, out io.Writer) error {
	opts, err := parseOptions("install", args)
	if err != nil {
		return err
	}
	if opts.help {
		printInstallHelp(out)
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := loadApp(ctx, opts)
	if err != nil {
		return err
	}
	defer a.Close()

	orch, err := a.orchestrator(ctx, a.updateClient())
	if err != nil {
		return fmt.Errorf("create orchestrator: %w", err)
	}

	res := orch.PrepareAndInstall(ctx)
	printResult(out, res)
	if res.Fatal() {
		return fmt.Errorf("no usable package: %w", res.Err)
	}
	return nil
}

// printResult describes an orchestrator result for the user.
func printResult(out io.Writer, res orchestrator.Result) {
	switch res.Outcome {
	case orchestrator.UsedLocal:
		fmt.Fprintf(out, "Package %s is up to date (version %s)\n", res.Identity, versionOrUnknown(res.Version))
	case orchestrator.Installed:
		fmt.Fprintf(out, "Installed %s version %s\n", res.Identity, versionOrUnknown(res.Version))
	case orchestrator.InstalledAfterUpdate:
		fmt.Fprintf(out, "Updated %s to version %s\n", res.Identity, versionOrUnknown(res.Version))
		fmt.Fprintln(out, "Restart any running crxkeep to load the new version.")
	case orchestrator.FailedKeptLocal:
		if orchestrator.IsLockContention(res) {
			fmt.Fprintln(out, "Another crxkeep process is installing this package; using the installed copy.")
		} else {
			fmt.Fprintf(out, "Update failed, keeping installed version %s: %v\n", versionOrUnknown(res.Version), res.Err)
		}
	case orchestrator.FailedNoLocal:
		fmt.Fprintf(out, "Install failed: %v\n", res.Err)
	}

	if n := len(res.Patch.Patched); n > 0 {
		fmt.Fprintf(out, "Patched %d file(s), %d replacement(s)\n", n, res.Patch.Replacements)
	}
}

func versionOrUnknown(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}

func printInstallHelp(out io.Writer) {
	fmt.Fprintln(out, "Usage: crxkeep install [options]")
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Install the configured package, or update the installed copy.")
	fmt.Fprintln(out, "Exits non-zero only when no usable copy is left.")
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Options:")
	fmt.Fprintln(out, "  --config <path>   Config file")
	fmt.Fprintln(out, "  --verbose, -v     Show full error details")
}
