package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/ligustah/seqdl/internal/config"
	"github.com/ligustah/seqdl/internal/downloader"
)

// runGet downloads an object and writes it to a file or stdout in order.
func runGet(args []string) int {
	fs := flag.NewFlagSet("get", flag.ContinueOnError)
	cf := addCommonFlags(fs)
	tf := addTransferFlags(fs)

	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, `Usage: seqdl get [options] <source> [key]

Download an object as parallel byte-range parts and write it in order to
-output, or to stdout when -output is empty or "-".

Options:`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return ExitInvalidArgs
	}

	cfg, err := loadConfig(fs, cf, tf)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		fs.Usage()
		return ExitInvalidArgs
	}

	ctx, cancel := signalContext()
	defer cancel()

	if cfg.Unordered {
		return downloadParts(ctx, cfg)
	}
	return download(ctx, cfg)
}

func download(ctx context.Context, cfg config.Config) int {
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

	var w io.Writer = os.Stdout
	var f *os.File
	toFile := cfg.Output != "" && cfg.Output != "-"
	if toFile {
		f, err = os.Create(cfg.Output)
		if err != nil {
			stopProgress()
			fmt.Fprintf(os.Stderr, "Error creating output: %v\n", err)
			return ExitOutputError
		}
		w = f
	}

	n, err := downloader.Download(ctx, src, w, downloaderOptions(cfg, logger, reporter))
	stopProgress()
	if toFile {
		err = closeOutput(f, err)
	}
	if err != nil {
		if ctx.Err() != nil {
			fmt.Fprintln(os.Stderr, "[seqdl] Download interrupted")
		} else {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		return exitCode(err)
	}

	if toFile {
		fmt.Fprintf(os.Stderr, "[seqdl] Downloaded %d bytes to %s\n", n, cfg.Output)
	}
	return ExitSuccess
}
