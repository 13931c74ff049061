package body

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"
)

func TestUnorderedArrivalOrder(t *testing.T) {
	ctx := context.Background()
	fetchErr := errors.New("timeout")
	u := New(feed(chunk(2), Fail(1, fetchErr), chunk(0))).Unordered()

	c, err := u.Next(ctx)
	if err != nil || c.Seq != 2 {
		t.Fatalf("expected seq 2, got %d (err=%v)", c.Seq, err)
	}
	if _, err := u.Next(ctx); !errors.Is(err, fetchErr) {
		t.Fatalf("expected fetch error, got %v", err)
	}
	c, err = u.Next(ctx)
	if err != nil || c.Seq != 0 {
		t.Fatalf("expected seq 0, got %d (err=%v)", c.Seq, err)
	}

	for i := 0; i < 3; i++ {
		if _, err := u.Next(ctx); err != io.EOF {
			t.Fatalf("expected io.EOF, got %v", err)
		}
	}
}

func TestUnorderedNoChannel(t *testing.T) {
	u := newUnordered(nil)
	if _, err := u.Next(context.Background()); err != io.EOF {
		t.Fatalf("expected io.EOF, got %v", err)
	}
}

func TestUnorderedWaitsForProducer(t *testing.T) {
	ch := make(chan Result)
	u := newUnordered(ch)

	go func() {
		time.Sleep(10 * time.Millisecond)
		ch <- chunk(7)
		close(ch)
	}()

	ctx := context.Background()
	c, err := u.Next(ctx)
	if err != nil || c.Seq != 7 {
		t.Fatalf("expected seq 7, got %d (err=%v)", c.Seq, err)
	}
	if _, err := u.Next(ctx); err != io.EOF {
		t.Fatalf("expected io.EOF, got %v", err)
	}
}

func TestUnorderedAfterBodyClose(t *testing.T) {
	b := New(feed(chunk(0)))
	b.Close()
	if _, err := b.Next(context.Background()); err != ErrClosed {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}
