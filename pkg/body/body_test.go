package body

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"sync"
	"testing"
	"time"
)

// feed returns a closed channel holding results in the given order.
func feed(results ...Result) <-chan Result {
	ch := make(chan Result, len(results))
	for _, r := range results {
		ch <- r
	}
	close(ch)
	return ch
}

func chunk(seq uint64) Result {
	return Ok(Chunk{Seq: seq, Data: []byte(fmt.Sprintf("part-%d", seq))})
}

func TestBodyEmpty(t *testing.T) {
	ctx := context.Background()
	b := Empty()

	for i := 0; i < 2; i++ {
		data, err := b.Next(ctx)
		if err != io.EOF {
			t.Fatalf("call %d: expected io.EOF, got data=%q err=%v", i, data, err)
		}
	}
}

func TestBodyReorders(t *testing.T) {
	ctx := context.Background()
	b := New(feed(chunk(2), chunk(0), chunk(3), chunk(1)))

	for i := 0; i < 4; i++ {
		data, err := b.Next(ctx)
		if err != nil {
			t.Fatalf("Next %d: %v", i, err)
		}
		if want := fmt.Sprintf("part-%d", i); string(data) != want {
			t.Fatalf("Next %d: got %q, want %q", i, data, want)
		}
	}

	for i := 0; i < 2; i++ {
		if _, err := b.Next(ctx); err != io.EOF {
			t.Fatalf("expected io.EOF after last part, got %v", err)
		}
	}
}

func TestBodyErrorIsImmediate(t *testing.T) {
	ctx := context.Background()
	fetchErr := errors.New("connection reset")
	b := New(feed(chunk(0), chunk(1), chunk(2), chunk(5), Fail(3, fetchErr)))

	for i := 0; i < 3; i++ {
		if _, err := b.Next(ctx); err != nil {
			t.Fatalf("Next %d: %v", i, err)
		}
	}

	_, err := b.Next(ctx)
	if !errors.Is(err, fetchErr) {
		t.Fatalf("expected fetch error, got %v", err)
	}
	var pe *PartError
	if !errors.As(err, &pe) || pe.Seq != 3 {
		t.Fatalf("expected *PartError for part 3, got %#v", err)
	}

	// Part 5 is still buffered; nothing was released.
	if b.Buffered() != 1 {
		t.Errorf("expected 1 buffered chunk, got %d", b.Buffered())
	}
	if b.seq.Next() != 3 {
		t.Errorf("expected cursor to stay at 3, got %d", b.seq.Next())
	}
}

func TestBodyErrorBeforeFirstChunk(t *testing.T) {
	ctx := context.Background()
	fetchErr := errors.New("boom")
	b := New(feed(chunk(1), Fail(0, fetchErr), chunk(0)))

	if _, err := b.Next(ctx); !errors.Is(err, fetchErr) {
		t.Fatalf("expected fetch error, got %v", err)
	}

	// The API keeps working if the caller insists on pulling.
	for i := 0; i < 2; i++ {
		data, err := b.Next(ctx)
		if err != nil {
			t.Fatalf("Next %d: %v", i, err)
		}
		if want := fmt.Sprintf("part-%d", i); string(data) != want {
			t.Fatalf("got %q, want %q", data, want)
		}
	}
}

func TestBodyGap(t *testing.T) {
	ctx := context.Background()

	t.Run("strict", func(t *testing.T) {
		b := New(feed(chunk(0), chunk(2), chunk(3)))

		if _, err := b.Next(ctx); err != nil {
			t.Fatalf("Next: %v", err)
		}

		_, err := b.Next(ctx)
		if !errors.Is(err, ErrTruncated) {
			t.Fatalf("expected ErrTruncated, got %v", err)
		}
		var te *TruncatedError
		if !errors.As(err, &te) {
			t.Fatalf("expected *TruncatedError, got %T", err)
		}
		if te.Expected != 1 || te.Got != 2 {
			t.Errorf("expected {1 2}, got {%d %d}", te.Expected, te.Got)
		}

		// Stays truncated.
		if _, err := b.Next(ctx); !errors.Is(err, ErrTruncated) {
			t.Errorf("expected ErrTruncated again, got %v", err)
		}
	})

	t.Run("allow gaps", func(t *testing.T) {
		b := New(feed(chunk(0), chunk(2), chunk(3)), WithAllowGaps())

		var got []string
		for {
			data, err := b.Next(ctx)
			if err == io.EOF {
				break
			}
			if err != nil {
				t.Fatalf("Next: %v", err)
			}
			got = append(got, string(data))
		}

		want := []string{"part-0", "part-2", "part-3"}
		if fmt.Sprint(got) != fmt.Sprint(want) {
			t.Errorf("got %v, want %v", got, want)
		}
	})
}

func TestBodyContextCancelled(t *testing.T) {
	ch := make(chan Result)
	b := New(ch)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, err := b.Next(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestBodyMeta(t *testing.T) {
	ctx := context.Background()
	meta := &ObjectMeta{Key: "obj", Size: 12, ETag: "abc"}
	b := New(feed(
		Ok(Chunk{Seq: 1, Data: []byte("world!"), Meta: meta}),
		Ok(Chunk{Seq: 0, Data: []byte("hello ")}),
	))

	if b.Meta() != nil {
		t.Fatal("expected no meta before first pull")
	}
	if _, err := b.Next(ctx); err != nil {
		t.Fatalf("Next: %v", err)
	}
	if b.Meta() != meta {
		t.Errorf("expected meta from part 1, got %+v", b.Meta())
	}
}

func TestBodyOnRelease(t *testing.T) {
	ctx := context.Background()
	var released []uint64
	b := New(feed(chunk(1), chunk(0), chunk(2)), WithOnRelease(func(seq uint64) {
		released = append(released, seq)
	}))

	for {
		if _, err := b.Next(ctx); err == io.EOF {
			break
		} else if err != nil {
			t.Fatalf("Next: %v", err)
		}
	}

	if fmt.Sprint(released) != "[0 1 2]" {
		t.Errorf("unexpected release order %v", released)
	}
}

func TestBodyClose(t *testing.T) {
	ctx := context.Background()
	b := New(feed(chunk(1), chunk(0)))

	if _, err := b.Next(ctx); err != nil {
		t.Fatalf("Next: %v", err)
	}
	if err := b.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if b.Buffered() != 0 {
		t.Errorf("expected empty buffer after close, got %d", b.Buffered())
	}
	if _, err := b.Next(ctx); err != ErrClosed {
		t.Errorf("expected ErrClosed, got %v", err)
	}
	if err := b.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}

func TestBodyReaderAndCopy(t *testing.T) {
	ctx := context.Background()
	want := []byte("part-0part-1part-2part-3")

	t.Run("reader", func(t *testing.T) {
		b := New(feed(chunk(3), chunk(1), chunk(0), chunk(2)))
		got, err := io.ReadAll(b.Reader(ctx))
		if err != nil {
			t.Fatalf("ReadAll: %v", err)
		}
		if !bytes.Equal(got, want) {
			t.Errorf("got %q, want %q", got, want)
		}
	})

	t.Run("copy", func(t *testing.T) {
		b := New(feed(chunk(2), chunk(3), chunk(0), chunk(1)))
		var buf bytes.Buffer
		n, err := b.Copy(ctx, &buf)
		if err != nil {
			t.Fatalf("Copy: %v", err)
		}
		if n != int64(len(want)) || !bytes.Equal(buf.Bytes(), want) {
			t.Errorf("got %d bytes %q, want %q", n, buf.Bytes(), want)
		}
	})

	t.Run("reader error", func(t *testing.T) {
		fetchErr := errors.New("gone")
		b := New(feed(chunk(0), Fail(1, fetchErr)))
		_, err := io.ReadAll(b.Reader(ctx))
		if !errors.Is(err, fetchErr) {
			t.Errorf("expected fetch error, got %v", err)
		}
	})
}

// TestBodyResidentBound runs producers that never keep more than k parts
// outstanding and checks the buffer never holds more than k-1 chunks.
func TestBodyResidentBound(t *testing.T) {
	const parts = 300
	ctx := context.Background()

	for _, k := range []int{1, 2, 4, 8, 16} {
		t.Run(fmt.Sprintf("k=%d", k), func(t *testing.T) {
			ch := make(chan Result, k)
			window := make(chan struct{}, k)

			var b *Body
			maxResident := 0
			b = New(ch, WithOnRelease(func(uint64) {
				if n := b.Buffered(); n > maxResident {
					maxResident = n
				}
				<-window
			}))

			go func() {
				var wg sync.WaitGroup
				for seq := 0; seq < parts; seq++ {
					window <- struct{}{}
					wg.Add(1)
					go func(seq uint64) {
						defer wg.Done()
						time.Sleep(time.Duration(rand.Intn(300)) * time.Microsecond)
						ch <- Ok(Chunk{Seq: seq, Data: []byte{byte(seq)}})
					}(uint64(seq))
				}
				wg.Wait()
				close(ch)
			}()

			for i := 0; i < parts; i++ {
				data, err := b.Next(ctx)
				if err != nil {
					t.Fatalf("Next %d: %v", i, err)
				}
				if len(data) != 1 || data[0] != byte(i) {
					t.Fatalf("Next %d: out of order data %v", i, data)
				}
				if n := b.Buffered(); n > maxResident {
					maxResident = n
				}
			}
			if _, err := b.Next(ctx); err != io.EOF {
				t.Fatalf("expected io.EOF, got %v", err)
			}

			if maxResident > k-1 {
				t.Errorf("resident chunks reached %d, want <= %d", maxResident, k-1)
			}
		})
	}
}
