package body

import (
	"context"
	"io"
)

// UnorderedBody yields chunks in the order they arrive on the channel.
// Consumers are responsible for placing data using Chunk.Seq.
type UnorderedBody struct {
	ch <-chan Result
}

func newUnordered(ch <-chan Result) *UnorderedBody {
	return &UnorderedBody{ch: ch}
}

// Next blocks until a chunk or error arrives. It returns io.EOF once the
// channel is closed and drained, and on every call after that. A body
// created without a channel returns io.EOF immediately.
func (u *UnorderedBody) Next(ctx context.Context) (Chunk, error) {
	if u.ch == nil {
		return Chunk{}, io.EOF
	}

	select {
	case r, ok := <-u.ch:
		if !ok {
			// Drop the endpoint so later calls return without touching it.
			u.ch = nil
			return Chunk{}, io.EOF
		}
		if r.Err != nil {
			return Chunk{}, r.Err
		}
		return r.Chunk, nil
	case <-ctx.Done():
		return Chunk{}, ctx.Err()
	}
}

// closed reports whether the channel has been observed closed.
func (u *UnorderedBody) closed() bool {
	return u.ch == nil
}
