package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ligustah/seqdl/internal/config"
	"github.com/ligustah/seqdl/internal/downloader"
	seqhttp "github.com/ligustah/seqdl/internal/http"
	"github.com/ligustah/seqdl/internal/progress"
	"github.com/ligustah/seqdl/internal/source"
	"github.com/ligustah/seqdl/pkg/body"
)

// commonFlags are shared by every command. Zero values mean "not set" so
// they only override the config file and environment when given.
type commonFlags struct {
	configPath *string
	source     *string
	key        *string
	manifest   *bool
	verify     *bool
	logLevel   *string
}

func addCommonFlags(fs *flag.FlagSet) *commonFlags {
	return &commonFlags{
		configPath: fs.String("config", "", "Path to a YAML config file"),
		source:     fs.String("source", "", "Source URL (or first argument)"),
		key:        fs.String("key", "", "Object key within a bucket source (or second argument)"),
		manifest:   fs.Bool("manifest", false, "Read a sharded object through its manifest"),
		verify:     fs.Bool("verify", false, "Verify shard checksums (manifest sources)"),
		logLevel:   fs.String("log-level", "", "Log level: debug, info, warn, error"),
	}
}

// transferFlags configure the download pool.
type transferFlags struct {
	output          *string
	workers         *int
	partSize        *string
	window          *int
	progress        *bool
	allowGaps       *bool
	unordered       *bool
	retryAttempts   *int
	retryBackoff    *time.Duration
	retryMaxBackoff *time.Duration
}

func addTransferFlags(fs *flag.FlagSet) *transferFlags {
	return &transferFlags{
		output:          fs.String("output", "", "Output file path"),
		workers:         fs.Int("workers", 0, "Number of parallel part fetches (default 8)"),
		partSize:        fs.String("part-size", "", "Size of each part (default 8MiB)"),
		window:          fs.Int("window", 0, "Max parts in flight or buffered (default workers)"),
		progress:        fs.Bool("progress", false, "Show progress output"),
		allowGaps:       fs.Bool("allow-gaps", false, "Skip parts that never arrived instead of failing"),
		unordered:       fs.Bool("unordered", false, "Write parts at their offsets as they arrive (needs -output)"),
		retryAttempts:   fs.Int("retry-attempts", 0, "Retries per part (default 3)"),
		retryBackoff:    fs.Duration("retry-backoff", 0, "Initial retry backoff (default 1s)"),
		retryMaxBackoff: fs.Duration("retry-max-backoff", 0, "Max retry backoff (default 30s)"),
	}
}

// loadConfig layers defaults, the config file, SEQDL_ environment variables
// and flags, in that order.
func loadConfig(fs *flag.FlagSet, cf *commonFlags, tf *transferFlags) (config.Config, error) {
	cfg := config.Default()
	if *cf.configPath != "" {
		fileCfg, err := config.LoadFromFile(*cf.configPath)
		if err != nil {
			return cfg, err
		}
		cfg = fileCfg
	}
	if err := cfg.LoadFromEnv(); err != nil {
		return cfg, err
	}

	override := config.Config{
		Source:   *cf.source,
		Key:      *cf.key,
		Manifest: *cf.manifest,
		Verify:   *cf.verify,
		LogLevel: *cf.logLevel,
	}
	if override.Source == "" {
		override.Source = fs.Arg(0)
	}
	if override.Key == "" {
		override.Key = fs.Arg(1)
	}

	if tf != nil {
		override.Output = *tf.output
		override.Workers = *tf.workers
		override.Window = *tf.window
		override.Progress = *tf.progress
		override.AllowGaps = *tf.allowGaps
		override.Unordered = *tf.unordered
		override.Retry = config.RetryConfig{
			Attempts:   *tf.retryAttempts,
			Backoff:    *tf.retryBackoff,
			MaxBackoff: *tf.retryMaxBackoff,
		}
		if *tf.partSize != "" {
			size, err := progress.ParseBytes(*tf.partSize)
			if err != nil {
				return cfg, fmt.Errorf("invalid part size: %w", err)
			}
			override.PartSize = size
		}
	}

	cfg = cfg.Merge(override)
	return cfg, cfg.Validate()
}

// newLogger returns a text logger on stderr at the configured level.
func newLogger(cfg config.Config) *slog.Logger {
	level, err := cfg.Level()
	if err != nil {
		level = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// openSource opens the configured source with an HTTP client sized for the
// worker count.
func openSource(ctx context.Context, cfg config.Config, transfer bool) (source.Source, error) {
	return source.Open(ctx, cfg.Source, cfg.Key, source.Options{
		HTTP:           httpOptions(cfg, transfer),
		Manifest:       cfg.Manifest,
		VerifyChecksum: cfg.Verify,
	})
}

// httpOptions returns the HTTP client options for cfg. A transfer's Stat and
// parts are retried by the downloader, so its client makes one attempt per
// request.
func httpOptions(cfg config.Config, transfer bool) seqhttp.Options {
	opts := seqhttp.DefaultOptions()
	opts.MaxIdleConnsPerHost = cfg.Workers * 2
	opts.RetryAttempts = cfg.Retry.Attempts
	opts.RetryBackoff = cfg.Retry.Backoff
	opts.RetryMaxBackoff = cfg.Retry.MaxBackoff
	if transfer {
		opts.RetryAttempts = 0
	}
	return opts
}

// closeOutput closes f once a download into it has finished with err. A
// failed close is reported as a write error. The file is removed when either
// failed.
func closeOutput(f *os.File, err error) error {
	if cerr := f.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("%w: close %s: %w", downloader.ErrWrite, f.Name(), cerr)
	}
	if err != nil {
		os.Remove(f.Name())
	}
	return err
}

func downloaderOptions(cfg config.Config, logger *slog.Logger, reporter *progress.Reporter) downloader.Options {
	return downloader.Options{
		Workers:  cfg.Workers,
		PartSize: cfg.PartSize,
		Window:   cfg.Window,
		Retry: downloader.RetryOptions{
			Attempts:   cfg.Retry.Attempts,
			Backoff:    cfg.Retry.Backoff,
			MaxBackoff: cfg.Retry.MaxBackoff,
		},
		Progress:  reporter,
		Logger:    logger,
		AllowGaps: cfg.AllowGaps,
	}
}

// startProgress stats src and starts a reporter when progress is enabled.
// The returned stop function is always safe to call.
func startProgress(ctx context.Context, cfg config.Config, src source.Source) (*progress.Reporter, func(), error) {
	if !cfg.Progress {
		return nil, func() {}, nil
	}

	meta, err := src.Stat(ctx)
	if err != nil {
		return nil, nil, err
	}
	reporter := progress.NewReporter(progress.Options{
		TotalSize:      meta.Size,
		TotalParts:     len(downloader.Plan(meta.Size, cfg.PartSize)),
		Workers:        cfg.Workers,
		UpdateInterval: 5 * time.Second,
		Source:         cfg.Source,
		PartSize:       cfg.PartSize,
	})
	reporter.Start()
	return reporter, reporter.Stop, nil
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			fmt.Fprintln(os.Stderr, "\n[seqdl] Received interrupt, shutting down...")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()

	return ctx, cancel
}

// exitCode maps a transfer error to the process exit code.
func exitCode(err error) int {
	switch {
	case err == nil:
		return ExitSuccess
	case errors.Is(err, source.ErrNotFound),
		errors.Is(err, seqhttp.ErrForbidden),
		errors.Is(err, seqhttp.ErrUnauthorized):
		return ExitSourceNotAccess
	case errors.Is(err, source.ErrRangeNotSupported):
		return ExitRangeNotSupported
	case errors.Is(err, downloader.ErrWrite):
		return ExitOutputError
	case errors.Is(err, seqhttp.ErrPreconditionFailed):
		return ExitSourceChanged
	case errors.Is(err, source.ErrChecksumMismatch),
		errors.Is(err, body.ErrTruncated),
		errors.Is(err, downloader.ErrShortDownload),
		errors.Is(err, downloader.ErrShortPart):
		return ExitIntegrityFailed
	}
	return ExitGeneralError
}
