package main

import (
	"context"
	"fmt"
	"io"
	"time"
)

// runResetProfile handles the `crxkeep reset-profile` subcommand. The
// profile is removed by the next `crxkeep run`, before the browser starts.
func runResetProfile(args []string, out io.Writer) error {
	opts, err := parseOptions("reset-profile", args)
	if err != nil {
		return err
	}
	if opts.help {
		fmt.Fprintln(out, "Usage: crxkeep reset-profile [options]")
		fmt.Fprintln(out)
		fmt.Fprintln(out, "Wipe the browser profile (cookies, storage) on the next run.")
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	a, err := loadApp(ctx, opts)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.layout.RequestProfileReset(); err != nil {
		return err
	}
	a.log.Info("profile reset requested", "component", "host", "marker", a.layout.ResetMarker())
	fmt.Fprintf(out, "The browser profile in %s will be wiped on the next run.\n", a.layout.Profile())
	return nil
}
