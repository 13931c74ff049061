package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/ligustah/seqdl/internal/config"
	"github.com/ligustah/seqdl/internal/downloader"
)

// runParts downloads an object into a file, writing each part at its offset
// as soon as it arrives.
func runParts(args []string) int {
	fs := flag.NewFlagSet("parts", flag.ContinueOnError)
	cf := addCommonFlags(fs)
	tf := addTransferFlags(fs)

	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, `Usage: seqdl parts -output <file> [options] <source> [key]

Download an object as parallel byte-range parts and write each part at its
offset in -output as it arrives. Nothing is buffered for ordering.

Options:`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return ExitInvalidArgs
	}
	*tf.unordered = true

	cfg, err := loadConfig(fs, cf, tf)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		fs.Usage()
		return ExitInvalidArgs
	}

	ctx, cancel := signalContext()
	defer cancel()

	return downloadParts(ctx, cfg)
}

func downloadParts(ctx context.Context, cfg config.Config) int {
	logger := newLogger(cfg)

	src, err := openSource(ctx, cfg, true)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening source: %v\n", err)
		return exitCode(err)
	}
	defer src.Close()

	reporter, stopProgress, err := startProgress(ctx, cfg, src)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error accessing source: %v\n", err)
		return exitCode(err)
	}
	defer stopProgress()

	f, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_RDWR|os.O_TRUNC, 0644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening output: %v\n", err)
		return ExitOutputError
	}

	n, err := downloader.DownloadParts(ctx, src, f, downloaderOptions(cfg, logger, reporter))
	if err == nil {
		if serr := f.Sync(); serr != nil {
			err = fmt.Errorf("%w: sync %s: %w", downloader.ErrWrite, cfg.Output, serr)
		}
	}
	if err = closeOutput(f, err); err != nil {
		if ctx.Err() != nil {
			fmt.Fprintln(os.Stderr, "[seqdl] Download interrupted")
		} else {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		return exitCode(err)
	}

	fmt.Fprintf(os.Stderr, "[seqdl] Downloaded %d bytes to %s\n", n, cfg.Output)
	return ExitSuccess
}
