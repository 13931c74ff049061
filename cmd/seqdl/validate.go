package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/ligustah/seqdl/internal/source"
)

// runValidate checks that every shard of a sharded object exists with the
// size its manifest declares.
func runValidate(args []string) int {
	fs := flag.NewFlagSet("validate", flag.ContinueOnError)
	cf := addCommonFlags(fs)

	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, `Usage: seqdl validate [options] <bucket> <key>

Verify all shards of a sharded object exist and their sizes match the
manifest. No shard data is read.

Options:`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return ExitInvalidArgs
	}
	*cf.manifest = true

	cfg, err := loadConfig(fs, cf, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		fs.Usage()
		return ExitInvalidArgs
	}

	ctx, cancel := signalContext()
	defer cancel()

	src, err := openSource(ctx, cfg, false)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening source: %v\n", err)
		return exitCode(err)
	}
	defer src.Close()

	m, ok := src.(*source.Manifest)
	if !ok {
		fmt.Fprintln(os.Stderr, "Error: validate needs a bucket source with a manifest")
		return ExitInvalidArgs
	}

	result, err := m.Validate(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return exitCode(err)
	}

	for _, p := range result.Problems {
		fmt.Fprintf(os.Stderr, "[seqdl] %s\n", p)
	}
	if !result.Valid {
		fmt.Fprintf(os.Stderr, "[seqdl] Invalid: %d missing, %d size mismatches out of %d shards\n",
			result.MissingShards, result.SizeMismatches, result.ShardCount)
		return ExitIntegrityFailed
	}

	fmt.Fprintf(os.Stderr, "[seqdl] Valid: %d shards\n", result.ShardCount)
	return ExitSuccess
}
