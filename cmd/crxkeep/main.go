package main

import (
	"fmt"
	"os"
)

// Version will be set at build time via -ldflags
var Version = "v0.1.0"

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "--version", "version":
			fmt.Printf("crxkeep %s\n", Version)
			return
		case "init":
			exitOnError(runInit(os.Args[2:], os.Stdout))
			return
		case "install":
			exitOnError(runInstall(os.Args[2:], os.Stdout))
			return
		case "check":
			exitOnError(runCheck(os.Args[2:], os.Stdout))
			return
		case "inspect":
			exitOnError(runInspect(os.Args[2:], os.Stdout))
			return
		case "run":
			exitOnError(runRun(os.Args[2:], os.Stdout))
			return
		case "reset-profile":
			exitOnError(runResetProfile(os.Args[2:], os.Stdout))
			return
		case "help", "--help", "-h":
			printUsage()
			return
		default:
			fmt.Fprintf(os.Stderr, "Error: unknown command: %s\n\n", os.Args[1])
			printUsage()
			os.Exit(2)
		}
	}

	printUsage()
}

func exitOnError(err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("crxkeep - keeps a browser extension package installed, current and logged in")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  crxkeep --version                 Show version information")
	fmt.Println("  crxkeep init <id> [options]       Write a starter crxkeep.lua")
	fmt.Println("  crxkeep install [options]         Install or update the package once")
	fmt.Println("  crxkeep check [options]           Ask the update service about the local copy")
	fmt.Println("  crxkeep inspect <file.crx>        Parse and verify a package file")
	fmt.Println("  crxkeep run [options]             Install, open the package and keep its session")
	fmt.Println("  crxkeep reset-profile [options]   Wipe the browser profile on the next run")
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  --config <path>    Config file (default: $CRXKEEP_CONFIG or <data dir>/crxkeep.lua)")
	fmt.Println("  --verbose, -v      Show full error details")
	fmt.Println()
	fmt.Println("Environment:")
	fmt.Println("  CRXKEEP_DATA_DIR   Data directory override")
	fmt.Println("  CRXKEEP_CONFIG     Config file path")
	fmt.Println("  CRXKEEP_LOG        Log level: error, warn, info, debug, verbose")
}
