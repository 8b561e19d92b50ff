package main

import (
	"encoding/base64"
	"fmt"
	"io"
	"os"

	"github.com/ZebulonRouseFrantzich/crxkeep/internal/crx"
)

// runInspect handles the `crxkeep inspect` subcommand. It needs no config.
func runInspect(args []string, out io.Writer) error {
	opts, err := parseOptions("inspect", args)
	if err != nil {
		return err
	}
	if opts.help {
		printInspectHelp(out)
		return nil
	}
	if len(opts.args) != 1 {
		return fmt.Errorf("inspect requires exactly one file\nRun 'crxkeep inspect --help' for usage")
	}
	path := opts.args[0]

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read package: %w", err)
	}

	header, payload, err := crx.Parse(data)
	if err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	fmt.Fprintf(out, "File:        %s\n", path)
	fmt.Fprintf(out, "Size:        %d bytes\n", len(data))
	fmt.Fprintf(out, "Proofs:      %d RSA, %d ECDSA\n", len(header.SHA256WithRSA), len(header.SHA256WithECDSA))
	fmt.Fprintf(out, "Payload:     %d bytes\n", len(payload))
	if raw, err := header.DeclaredID(); err == nil {
		fmt.Fprintf(out, "Declared:    %s\n", crx.Canonicalize(raw))
	}

	key, id, err := crx.Verify(header)
	if err != nil {
		return fmt.Errorf("verify %s: %w", path, err)
	}

	fmt.Fprintf(out, "Identity:    %s\n", id)
	fmt.Fprintf(out, "Public key:  %d bytes\n", len(key))
	fmt.Fprintf(out, "Key:         %s\n", base64.StdEncoding.EncodeToString(key))
	return nil
}

func printInspectHelp(out io.Writer) {
	fmt.Fprintln(out, "Usage: crxkeep inspect <file.crx>")
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Parse a CRX3 file and check that one of its public keys owns the")
	fmt.Fprintln(out, "declared identity. The Key line is the value a manifest \"key\" field takes.")
}
