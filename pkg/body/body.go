package body

import (
	"context"
	"io"
)

// Options configures a Body.
type Options struct {
	AllowGaps bool
	OnRelease func(seq uint64)
}

// Option is a functional option for configuring a Body.
type Option func(*Options)

// WithAllowGaps makes Next release the lowest buffered chunk after the
// channel closes even if an earlier sequence number never arrived. By
// default that situation is reported as a *TruncatedError.
func WithAllowGaps() Option {
	return func(o *Options) {
		o.AllowGaps = true
	}
}

// WithOnRelease registers fn to be called, on the consuming goroutine, after
// each chunk is released by Next. Producers use it to bound how many parts
// they keep outstanding.
func WithOnRelease(fn func(seq uint64)) Option {
	return func(o *Options) {
		o.OnRelease = fn
	}
}

// Body is a stream of object data assembled from concurrently fetched parts.
// Data returned from Next is always in sequence order.
//
// A Body is owned by a single consumer goroutine.
type Body struct {
	inner  *UnorderedBody
	seq    *Sequencer
	opts   Options
	meta   *ObjectMeta
	closed bool
}

// New creates a Body reading from ch. The producer signals end of data by
// closing ch.
func New(ch <-chan Result, options ...Option) *Body {
	var opts Options
	for _, opt := range options {
		opt(&opts)
	}
	return &Body{
		inner: newUnordered(ch),
		seq:   NewSequencer(),
		opts:  opts,
	}
}

// Empty returns a Body with no data. Next returns io.EOF straight away.
func Empty() *Body {
	return New(nil)
}

// Next returns the payload of the next chunk in sequence order.
//
// It returns io.EOF when all data has been delivered. An error sent by the
// producer is returned as soon as it is received, without waiting for its
// sequence turn; buffered chunks are kept. Callers should treat any error
// other than io.EOF as fatal for the transfer.
func (b *Body) Next(ctx context.Context) ([]byte, error) {
	if b.closed {
		return nil, ErrClosed
	}

	for !b.seq.Ready() {
		c, err := b.inner.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if b.meta == nil && c.Meta != nil {
			b.meta = c.Meta
		}
		b.seq.Push(c)
	}

	// The loop only stops early once the channel is closed, so a chunk that
	// isn't ready here means the expected one will never come.
	if !b.opts.AllowGaps && !b.seq.Ready() {
		if c, ok := b.seq.Peek(); ok {
			return nil, &TruncatedError{Expected: b.seq.Next(), Got: c.Seq}
		}
	}

	c, ok := b.seq.Pop()
	if !ok {
		return nil, io.EOF
	}
	b.seq.Advance()
	if b.opts.OnRelease != nil {
		b.opts.OnRelease(c.Seq)
	}
	return c.Data, nil
}

// Unordered converts the Body into a stream that yields chunks in arrival
// order. The Body must not be used afterwards. Chunks already buffered by
// earlier Next calls are dropped.
func (b *Body) Unordered() *UnorderedBody {
	inner := b.inner
	b.Close()
	return inner
}

// Buffered returns the number of chunks waiting for an earlier part.
func (b *Body) Buffered() int {
	return b.seq.Len()
}

// Meta returns the object metadata carried by the first chunk that had any,
// or nil.
func (b *Body) Meta() *ObjectMeta {
	return b.meta
}

// Close releases buffered chunks and detaches from the channel. Producers
// must watch their own context to stop fetching; Close does not drain the
// channel.
func (b *Body) Close() error {
	if b.closed {
		return nil
	}
	b.closed = true
	b.seq.reset()
	b.inner = newUnordered(nil)
	return nil
}

// Copy writes every chunk to w in order and returns the number of bytes
// written.
func (b *Body) Copy(ctx context.Context, w io.Writer) (int64, error) {
	var written int64
	for {
		data, err := b.Next(ctx)
		if err == io.EOF {
			return written, nil
		}
		if err != nil {
			return written, err
		}
		n, err := w.Write(data)
		written += int64(n)
		if err != nil {
			return written, err
		}
		if n != len(data) {
			return written, io.ErrShortWrite
		}
	}
}

// Reader adapts the Body to an io.Reader. ctx bounds every blocking read.
func (b *Body) Reader(ctx context.Context) io.Reader {
	return &reader{ctx: ctx, body: b}
}

type reader struct {
	ctx  context.Context
	body *Body
	buf  []byte
	err  error
}

func (r *reader) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	for len(r.buf) == 0 {
		if r.err != nil {
			return 0, r.err
		}
		r.buf, r.err = r.body.Next(r.ctx)
	}
	n := copy(p, r.buf)
	r.buf = r.buf[n:]
	return n, nil
}
