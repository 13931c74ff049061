// Package body reassembles an object fetched as many concurrent parts into a
// single in-order byte stream.
//
// A worker pool splits an object into parts numbered 0, 1, 2, ... and fetches
// them concurrently. Each finished part is sent as a [Result] on a bounded
// channel. Parts arrive in whatever order the fetches complete; [Body] buffers
// early arrivals and releases them strictly by sequence number.
//
// # Ordered
//
//	b := body.New(ch)
//	for {
//	    data, err := b.Next(ctx)
//	    if err == io.EOF {
//	        break
//	    }
//	    if err != nil {
//	        return err // terminal for the transfer
//	    }
//	    w.Write(data)
//	}
//
// Errors sent by the pool are returned as soon as they are received, not in
// sequence order. Chunks already buffered stay buffered.
//
// # Unordered
//
// Callers that handle chunks individually (for example positional writes
// into a file) can skip reordering with [Body.Unordered], which yields
// chunks in arrival order.
//
// # Gaps
//
// If the channel closes while the buffer holds a chunk that is not the next
// expected one, [Body.Next] returns a [*TruncatedError]. [WithAllowGaps]
// restores the permissive behaviour of releasing the lowest buffered chunk
// anyway.
//
// # Memory
//
// The buffer holds at most K-1 chunks when the producer never has more than
// K parts outstanding (dispatched but not yet released). [WithOnRelease]
// lets the producer learn when a part has left the buffer.
package body
