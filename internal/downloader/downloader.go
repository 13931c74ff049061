package downloader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	seqhttp "github.com/ligustah/seqdl/internal/http"
	"github.com/ligustah/seqdl/internal/progress"
	"github.com/ligustah/seqdl/internal/source"
	"github.com/ligustah/seqdl/pkg/body"
)

// ErrShortDownload is returned when fewer bytes reached the sink than the
// object's size.
var ErrShortDownload = errors.New("downloader: short download")

// ErrWrite wraps failures of the destination writer.
var ErrWrite = errors.New("downloader: write failed")

// ErrShortPart is returned when a source delivers fewer bytes than a part
// asked for.
var ErrShortPart = errors.New("downloader: short part")

// ErrOrderedTransfer is returned by Transfer.Unordered on a transfer started
// with Open. Its window is only released by the ordered Body.
var ErrOrderedTransfer = errors.New("downloader: transfer was opened for ordered reads")

// RetryOptions configures retries of the source's Stat and of each part.
type RetryOptions struct {
	// Attempts is the number of retries after the first try.
	Attempts int

	// Backoff is the initial backoff duration.
	Backoff time.Duration

	// MaxBackoff is the maximum backoff duration.
	MaxBackoff time.Duration
}

// Options configures the downloader.
type Options struct {
	// Workers is the number of parallel part fetches.
	Workers int

	// PartSize is the size of each part.
	PartSize int64

	// Window is the most parts that may be outstanding, i.e. dispatched but
	// not yet released to the consumer. Defaults to Workers. The reorder
	// buffer never holds more than Window-1 parts.
	Window int

	// Retry configures per-part retries.
	Retry RetryOptions

	// Progress is an optional progress reporter.
	Progress *progress.Reporter

	// Logger receives structured transfer logs. Defaults to slog.Default().
	Logger *slog.Logger

	// AllowGaps lets the ordered body skip a part that never arrived instead
	// of failing with body.ErrTruncated.
	AllowGaps bool
}

func (o *Options) applyDefaults() {
	if o.Workers <= 0 {
		o.Workers = 8
	}
	if o.PartSize <= 0 {
		o.PartSize = 8 * 1024 * 1024
	}
	if o.Window <= 0 {
		o.Window = o.Workers
	}
	if o.Retry.Attempts < 0 {
		o.Retry.Attempts = 0
	}
	if o.Retry.Backoff <= 0 {
		o.Retry.Backoff = time.Second
	}
	if o.Retry.MaxBackoff <= 0 {
		o.Retry.MaxBackoff = 30 * time.Second
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

// Transfer is a running download of one object.
type Transfer struct {
	ID    string
	Meta  *body.ObjectMeta
	Parts []Part

	opts   Options
	log    *slog.Logger
	src    source.Source
	body   *body.Body
	window *semaphore.Weighted
	cancel context.CancelFunc

	unordered bool

	done      chan struct{}
	err       error
	closeOnce sync.Once
}

// Open stats src, plans its parts and starts fetching them. The returned
// transfer's Body yields the object in order. The caller must Close the
// transfer.
func Open(ctx context.Context, src source.Source, opts Options) (*Transfer, error) {
	return start(ctx, src, opts, false)
}

// OpenUnordered is like Open, but the transfer is meant to be consumed
// through Unordered. Parts are not held back for ordering, so the dispatch
// window is released as soon as a part is handed to the channel.
func OpenUnordered(ctx context.Context, src source.Source, opts Options) (*Transfer, error) {
	return start(ctx, src, opts, true)
}

func start(ctx context.Context, src source.Source, opts Options, unordered bool) (*Transfer, error) {
	opts.applyDefaults()

	var meta *body.ObjectMeta
	err := retry(ctx, opts.Retry, func(attempt int, err error) {
		opts.Logger.Warn("retrying stat", "attempt", attempt, "error", err)
	}, func() error {
		var err error
		meta, err = src.Stat(ctx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("downloader: stat: %w", err)
	}

	t := &Transfer{
		ID:        uuid.NewString(),
		Meta:      meta,
		Parts:     Plan(meta.Size, opts.PartSize),
		opts:      opts,
		src:       src,
		window:    semaphore.NewWeighted(int64(opts.Window)),
		unordered: unordered,
		done:      make(chan struct{}),
	}
	t.log = opts.Logger.With("transfer_id", t.ID, "key", meta.Key)

	if len(t.Parts) == 0 {
		t.body = body.Empty()
		t.cancel = func() {}
		close(t.done)
		t.log.Info("transfer started", "size", meta.Size, "parts", 0)
		return t, nil
	}

	bodyOpts := []body.Option{
		body.WithOnRelease(func(uint64) { t.window.Release(1) }),
	}
	if opts.AllowGaps {
		bodyOpts = append(bodyOpts, body.WithAllowGaps())
	}

	ch := make(chan body.Result, opts.Workers)
	t.body = body.New(ch, bodyOpts...)

	poolCtx, cancel := context.WithCancel(ctx)
	t.cancel = cancel

	t.log.Info("transfer started",
		"size", meta.Size,
		"etag", meta.ETag,
		"parts", len(t.Parts),
		"part_size", opts.PartSize,
		"workers", opts.Workers,
	)

	go t.run(poolCtx, ch)
	return t, nil
}

// run dispatches parts to the workers and closes ch when every worker has
// exited.
func (t *Transfer) run(ctx context.Context, ch chan<- body.Result) {
	g, gctx := errgroup.WithContext(ctx)
	jobs := make(chan Part)

	g.Go(func() error {
		defer close(jobs)
		for _, p := range t.Parts {
			// Blocks while Window parts are outstanding.
			if err := t.window.Acquire(gctx, 1); err != nil {
				return nil
			}
			select {
			case jobs <- p:
			case <-gctx.Done():
				return nil
			}
		}
		return nil
	})

	for i := 0; i < t.opts.Workers; i++ {
		g.Go(func() error {
			for p := range jobs {
				data, err := t.fetch(gctx, p)
				if err != nil && gctx.Err() != nil {
					// Cancelled; the error that cancelled us is already out.
					return gctx.Err()
				}

				r := body.Ok(body.Chunk{Seq: p.Seq, Data: data, Meta: t.Meta})
				if err != nil {
					t.log.Error("part failed", "seq", p.Seq, "offset", p.Offset, "error", err)
					r = body.Fail(p.Seq, err)
				}

				select {
				case ch <- r:
				case <-gctx.Done():
					return gctx.Err()
				}

				if err != nil {
					// First terminal error stops the transfer.
					return &body.PartError{Seq: p.Seq, Err: err}
				}
				if t.unordered {
					t.window.Release(1)
				}
			}
			return nil
		})
	}

	t.err = g.Wait()
	close(ch)
	close(t.done)
}

// fetch reads one part, retrying with backoff.
func (t *Transfer) fetch(ctx context.Context, p Part) ([]byte, error) {
	var data []byte
	err := retry(ctx, t.opts.Retry, func(attempt int, err error) {
		t.log.Warn("retrying part", "seq", p.Seq, "attempt", attempt, "error", err)
	}, func() error {
		if t.opts.Progress != nil {
			t.opts.Progress.PartStarted()
		}
		var err error
		data, err = t.readPart(ctx, p)
		if err != nil {
			if t.opts.Progress != nil {
				t.opts.Progress.PartFailed()
			}
			return err
		}
		if t.opts.Progress != nil {
			t.opts.Progress.PartFetched(int64(len(data)))
		}
		t.log.Debug("part fetched", "seq", p.Seq, "bytes", len(data))
		return nil
	})
	return data, err
}

// retry calls fn until it succeeds, fails with an error that is not worth
// retrying, or runs out of attempts. onRetry runs before each backoff.
func retry(ctx context.Context, r RetryOptions, onRetry func(attempt int, err error), fn func() error) error {
	var lastErr error

	for attempt := 0; attempt <= r.Attempts; attempt++ {
		if attempt > 0 {
			onRetry(attempt, lastErr)
			if err := seqhttp.Backoff(ctx, attempt, r.Backoff, r.MaxBackoff); err != nil {
				return err
			}
		}

		err := fn()
		if err == nil {
			return nil
		}
		if !retryable(ctx, err) {
			return err
		}
		lastErr = err
	}

	return fmt.Errorf("after %d attempts: %w", r.Attempts+1, lastErr)
}

func (t *Transfer) readPart(ctx context.Context, p Part) ([]byte, error) {
	rc, err := t.src.ReadRange(ctx, p.Offset, p.Length)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	buf := make([]byte, p.Length)
	n, err := io.ReadFull(rc, buf)
	if err == io.ErrUnexpectedEOF || err == io.EOF {
		return nil, fmt.Errorf("%w: part %d: got %d of %d bytes", ErrShortPart, p.Seq, n, p.Length)
	}
	if err != nil {
		return nil, err
	}
	return buf, nil
}

// retryable reports whether a failed part fetch is worth another attempt.
func retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	switch {
	case errors.Is(err, context.Canceled),
		errors.Is(err, source.ErrNotFound),
		errors.Is(err, source.ErrRangeNotSupported),
		errors.Is(err, source.ErrOutOfRange),
		errors.Is(err, seqhttp.ErrPreconditionFailed),
		errors.Is(err, seqhttp.ErrForbidden),
		errors.Is(err, seqhttp.ErrUnauthorized):
		return false
	}
	return true
}

// Body returns the ordered stream of the object's data.
func (t *Transfer) Body() *body.Body {
	return t.body
}

// Unordered returns the arrival-order stream of a transfer started with
// OpenUnordered. The ordered Body is unusable afterwards. On a transfer
// started with Open it returns ErrOrderedTransfer and leaves the Body alone.
func (t *Transfer) Unordered() (*body.UnorderedBody, error) {
	if !t.unordered {
		return nil, ErrOrderedTransfer
	}
	return t.body.Unordered(), nil
}

// Wait blocks until every worker has exited and returns the pool's error,
// if any.
func (t *Transfer) Wait() error {
	<-t.done
	return t.err
}

// Close cancels outstanding fetches, drops buffered parts and waits for the
// workers to exit.
func (t *Transfer) Close() error {
	t.closeOnce.Do(func() {
		t.cancel()
		t.body.Close()
		<-t.done
	})
	return nil
}

// Download copies the object from src to w in order. It returns the number
// of bytes written.
func Download(ctx context.Context, src source.Source, w io.Writer, opts Options) (int64, error) {
	t, err := Open(ctx, src, opts)
	if err != nil {
		return 0, err
	}
	defer t.Close()

	started := time.Now()
	b := t.Body()
	var written int64
	for {
		data, err := b.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			return written, fmt.Errorf("downloader: %w", err)
		}

		n, err := w.Write(data)
		written += int64(n)
		if err != nil {
			return written, fmt.Errorf("%w: %w", ErrWrite, err)
		}
		if t.opts.Progress != nil {
			t.opts.Progress.PartWritten(int64(n))
		}
	}

	if written != t.Meta.Size {
		return written, fmt.Errorf("%w: wrote %d of %d bytes", ErrShortDownload, written, t.Meta.Size)
	}

	t.log.Info("transfer complete", "bytes", written, "duration", time.Since(started))
	return written, nil
}

// DownloadParts copies the object from src into w, writing each part at its
// offset as soon as it arrives. No reordering takes place.
func DownloadParts(ctx context.Context, src source.Source, w io.WriterAt, opts Options) (int64, error) {
	t, err := OpenUnordered(ctx, src, opts)
	if err != nil {
		return 0, err
	}
	defer t.Close()

	started := time.Now()
	u, err := t.Unordered()
	if err != nil {
		return 0, err
	}
	var written int64
	seen := 0
	for {
		c, err := u.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			return written, fmt.Errorf("downloader: %w", err)
		}

		p := t.Parts[c.Seq]
		n, err := w.WriteAt(c.Data, p.Offset)
		written += int64(n)
		if err != nil {
			return written, fmt.Errorf("%w: part %d: %w", ErrWrite, c.Seq, err)
		}
		if t.opts.Progress != nil {
			t.opts.Progress.PartWritten(int64(n))
		}
		seen++
	}

	if seen != len(t.Parts) || written != t.Meta.Size {
		return written, fmt.Errorf("%w: wrote %d of %d parts, %d of %d bytes",
			ErrShortDownload, seen, len(t.Parts), written, t.Meta.Size)
	}

	t.log.Info("transfer complete", "bytes", written, "duration", time.Since(started), "unordered", true)
	return written, nil
}
