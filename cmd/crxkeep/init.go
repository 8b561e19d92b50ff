package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/ZebulonRouseFrantzich/crxkeep/internal/config"
)

// runInit handles the `crxkeep init` subcommand
func runInit(args []string, out io.Writer) error {
	opts, err := parseOptions("init", args)
	if err != nil {
		return err
	}
	if opts.help {
		printInitHelp(out)
		return nil
	}
	if len(opts.args) != 1 {
		return fmt.Errorf("init requires exactly one package id\nRun 'crxkeep init --help' for usage")
	}

	path, err := config.ConfigPath(opts.configPath)
	if err != nil {
		return fmt.Errorf("resolve config path: %w", err)
	}
	if _, err := os.Stat(path); err == nil && !opts.force {
		return fmt.Errorf("config already exists at %s\nUse --force to overwrite it", path)
	}

	cfg := config.Defaults()
	cfg.Package.ID = opts.args[0]
	if dir := os.Getenv(config.EnvDataDir); dir != "" {
		cfg.Paths.DataDir = dir
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	code, err := config.NewGenerator().Generate(cfg)
	if err != nil {
		return fmt.Errorf("generate config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(code), 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	fmt.Fprintf(out, "Wrote %s\n", path)
	fmt.Fprintln(out, "Run 'crxkeep install' to fetch the package.")
	return nil
}

func printInitHelp(out io.Writer) {
	fmt.Fprintln(out, "Usage: crxkeep init <id> [options]")
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Write a starter crxkeep.lua for the package <id> (32 letters a-p).")
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Options:")
	fmt.Fprintln(out, "  --config <path>   Where to write the file")
	fmt.Fprintln(out, "  --force, -f       Overwrite an existing file")
}
