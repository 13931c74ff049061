package body

import (
	"errors"
	"fmt"
	"time"
)

// ObjectMeta describes the whole object a chunk belongs to.
type ObjectMeta struct {
	Key         string
	Size        int64
	ETag        string
	ContentType string
	ModTime     time.Time
	Metadata    map[string]string
}

// Chunk is one fetched part of an object.
// Data is owned by the receiver once the chunk has been sent.
type Chunk struct {
	Seq  uint64
	Data []byte
	Meta *ObjectMeta // optional
}

// Result is the element type of the channel feeding a Body.
// Exactly one of Chunk and Err is meaningful.
type Result struct {
	Chunk Chunk
	Err   error
}

// Ok wraps a successfully fetched chunk.
func Ok(c Chunk) Result {
	return Result{Chunk: c}
}

// Fail wraps a terminal error for the part at seq.
func Fail(seq uint64, err error) Result {
	return Result{Err: &PartError{Seq: seq, Err: err}}
}

// PartError reports that a part could not be fetched after all retries.
type PartError struct {
	Seq uint64
	Err error
}

func (e *PartError) Error() string {
	return fmt.Sprintf("part %d: %v", e.Seq, e.Err)
}

func (e *PartError) Unwrap() error {
	return e.Err
}

// ErrTruncated is matched by errors.Is for every *TruncatedError.
var ErrTruncated = errors.New("body: stream truncated")

// ErrClosed is returned by Body.Next after Close.
var ErrClosed = errors.New("body: closed")

// TruncatedError is returned when the channel closed while the next expected
// part was missing and later parts were buffered.
type TruncatedError struct {
	Expected uint64 // next sequence number the consumer needed
	Got      uint64 // lowest sequence number actually buffered
}

func (e *TruncatedError) Error() string {
	return fmt.Sprintf("body: stream truncated: expected part %d, lowest buffered is %d", e.Expected, e.Got)
}

func (e *TruncatedError) Is(target error) bool {
	return target == ErrTruncated
}
