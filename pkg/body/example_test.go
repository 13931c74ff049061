package body_test

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/ligustah/seqdl/pkg/body"
)

func Example() {
	ctx := context.Background()

	// Parts complete out of order.
	ch := make(chan body.Result, 3)
	ch <- body.Ok(body.Chunk{Seq: 2, Data: []byte("world")})
	ch <- body.Ok(body.Chunk{Seq: 0, Data: []byte("hello")})
	ch <- body.Ok(body.Chunk{Seq: 1, Data: []byte(", ")})
	close(ch)

	b := body.New(ch)
	for {
		data, err := b.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			panic(err)
		}
		fmt.Printf("%q\n", data)
	}
	// Output:
	// "hello"
	// ", "
	// "world"
}

func ExampleWithAllowGaps() {
	ctx := context.Background()

	send := func() <-chan body.Result {
		ch := make(chan body.Result, 2)
		ch <- body.Ok(body.Chunk{Seq: 0, Data: []byte("a")})
		ch <- body.Ok(body.Chunk{Seq: 2, Data: []byte("c")})
		close(ch)
		return ch
	}

	strict := body.New(send())
	for {
		data, err := strict.Next(ctx)
		if errors.Is(err, body.ErrTruncated) {
			fmt.Println("strict:", err)
			break
		}
		fmt.Println("strict:", string(data))
	}

	lenient := body.New(send(), body.WithAllowGaps())
	for {
		data, err := lenient.Next(ctx)
		if err == io.EOF {
			break
		}
		fmt.Println("lenient:", string(data))
	}
	// Output:
	// strict: a
	// strict: body: stream truncated: expected part 1, lowest buffered is 2
	// lenient: a
	// lenient: c
}

func ExampleBody_Unordered() {
	ch := make(chan body.Result, 2)
	ch <- body.Ok(body.Chunk{Seq: 1, Data: []byte("second")})
	ch <- body.Ok(body.Chunk{Seq: 0, Data: []byte("first")})
	close(ch)

	u := body.New(ch).Unordered()
	for {
		c, err := u.Next(context.Background())
		if err == io.EOF {
			break
		}
		fmt.Println(c.Seq, string(c.Data))
	}
	// Output:
	// 1 second
	// 0 first
}

func ExampleEmpty() {
	_, err := body.Empty().Next(context.Background())
	fmt.Println(err == io.EOF)
	// Output: true
}
