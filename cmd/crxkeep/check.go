package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/ZebulonRouseFrantzich/crxkeep/internal/install"
	"github.com/ZebulonRouseFrantzich/crxkeep/internal/update"
)

// runCheck handles the `crxkeep check` subcommand
func runCheck(args []string, out io.Writer) error {
	opts, err := parseOptions("check", args)
	if err != nil {
		return err
	}
	if opts.help {
		printCheckHelp(out)
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	a, err := loadApp(ctx, opts)
	if err != nil {
		return err
	}
	defer a.Close()

	dir := a.layout.MainPackage()
	if !install.IsPackageDir(dir) {
		return fmt.Errorf("no installed package in %s\nRun 'crxkeep install' first", dir)
	}
	version, ok, err := install.ReadManifestVersion(dir)
	if err != nil {
		return err
	}
	if !ok {
		a.log.Warn("installed manifest has no version", "component", "update", "dir", dir)
	}

	checkURL := update.BuildURL(a.cfg.Package.BaseURL, a.identity(), version, a.params(ctx))
	res, err := a.updateClient().Check(ctx, checkURL)
	if err != nil {
		return fmt.Errorf("update check: %w", err)
	}

	fmt.Fprintf(out, "%s (installed version %s)\n", res.Status, versionOrUnknown(version))
	if res.Payload != nil {
		fmt.Fprintf(out, "Service sent the package inline (%d bytes)\n", len(res.Payload))
	}
	return nil
}

func printCheckHelp(out io.Writer) {
	fmt.Fprintln(out, "Usage: crxkeep check [options]")
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Ask the update service whether the installed copy is current.")
	fmt.Fprintln(out, "Prints no-update or update-available; nothing is downloaded or installed.")
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Options:")
	fmt.Fprintln(out, "  --config <path>   Config file")
}
