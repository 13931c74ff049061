package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/ligustah/seqdl/internal/downloader"
	"github.com/ligustah/seqdl/internal/progress"
	"github.com/ligustah/seqdl/internal/source"
	"github.com/ligustah/seqdl/pkg/body"
)

// runStat prints an object's metadata and how it would be split into parts.
func runStat(args []string) int {
	fs := flag.NewFlagSet("stat", flag.ContinueOnError)
	cf := addCommonFlags(fs)
	partSize := fs.String("part-size", "", "Part size used for the plan line (default 8MiB)")

	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, `Usage: seqdl stat [options] <source> [key]

Print object metadata.

Options:`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return ExitInvalidArgs
	}

	cfg, err := loadConfig(fs, cf, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		fs.Usage()
		return ExitInvalidArgs
	}
	if *partSize != "" {
		size, err := progress.ParseBytes(*partSize)
		if err != nil || size <= 0 {
			fmt.Fprintf(os.Stderr, "Invalid part size: %q\n", *partSize)
			return ExitInvalidArgs
		}
		cfg.PartSize = size
	}

	ctx, cancel := signalContext()
	defer cancel()

	src, err := openSource(ctx, cfg, false)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening source: %v\n", err)
		return exitCode(err)
	}
	defer src.Close()

	meta, err := src.Stat(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return exitCode(err)
	}

	printMeta(os.Stdout, meta, cfg.PartSize)
	if m, ok := src.(*source.Manifest); ok {
		sm := m.ShardManifest()
		fmt.Fprintf(os.Stdout, "Shards:       %d x %s\n", len(sm.Shards), progress.FormatBytes(sm.ShardSize))
	}
	return ExitSuccess
}

func printMeta(w io.Writer, meta *body.ObjectMeta, partSize int64) {
	fmt.Fprintf(w, "Key:          %s\n", meta.Key)
	fmt.Fprintf(w, "Size:         %d (%s)\n", meta.Size, progress.FormatBytes(meta.Size))
	if meta.ETag != "" {
		fmt.Fprintf(w, "ETag:         %s\n", meta.ETag)
	}
	if meta.ContentType != "" {
		fmt.Fprintf(w, "Content-Type: %s\n", meta.ContentType)
	}
	if !meta.ModTime.IsZero() {
		fmt.Fprintf(w, "Modified:     %s\n", meta.ModTime.UTC().Format(time.RFC3339))
	}
	fmt.Fprintf(w, "Parts:        %d x %s\n", len(downloader.Plan(meta.Size, partSize)), progress.FormatBytes(partSize))

	keys := make([]string, 0, len(meta.Metadata))
	for k := range meta.Metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(w, "Metadata:     %s=%s\n", k, meta.Metadata[k])
	}
}
