package main

import (
	"fmt"
	"os"
)

// Exit codes
const (
	ExitSuccess           = 0
	ExitGeneralError      = 1
	ExitInvalidArgs       = 2
	ExitSourceNotAccess   = 3
	ExitRangeNotSupported = 4
	ExitOutputError       = 5
	ExitSourceChanged     = 6
	ExitIntegrityFailed   = 7
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) == 0 {
		printUsage()
		return ExitInvalidArgs
	}

	command := args[0]
	cmdArgs := args[1:]

	switch command {
	case "get":
		return runGet(cmdArgs)
	case "parts":
		return runParts(cmdArgs)
	case "stat":
		return runStat(cmdArgs)
	case "validate":
		return runValidate(cmdArgs)
	case "help", "-h", "--help":
		printUsage()
		return ExitSuccess
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
		return ExitInvalidArgs
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, `Usage: seqdl <command> [options] <source> [key]

Commands:
  get       Download an object in parallel parts and write it in order
  parts     Download an object in parallel parts, writing each at its offset
  stat      Print object metadata
  validate  Verify all shards of a sharded object exist with the right sizes

Sources are http(s):// URLs or bucket URLs (s3://, gs://, file://, mem://)
followed by the object key.

Run 'seqdl <command> -h' for command-specific help.`)
}
