// Package testutils provides shared test infrastructure: deterministic test
// data, an HTTP server with range support, and (behind the integration build
// tag) a minio container for S3 tests.
package testutils

import (
	"bytes"
	"crypto/rand"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

// TestFile defines a file served by the test HTTP server.
type TestFile struct {
	Name string
	Data []byte
	ETag string // defaults to the path
}

// GenerateTestData generates test data of the given size.
// For sizes <= 10MB, uses a deterministic pattern. For larger sizes, uses random data.
func GenerateTestData(t testing.TB, size int64) []byte {
	t.Helper()
	data := make([]byte, size)
	if size <= 10*1024*1024 {
		for i := range data {
			data[i] = byte(i % 251)
		}
	} else {
		if _, err := rand.Read(data); err != nil {
			t.Fatalf("generate random data: %v", err)
		}
	}
	return data
}

// ServerOptions tweaks how the range server behaves.
type ServerOptions struct {
	// NoRanges makes the server ignore Range headers and omit Accept-Ranges.
	NoRanges bool

	// Latency returns a delay applied before answering a range starting at
	// the given offset. Used to force out-of-order completion.
	Latency func(start int64) time.Duration

	// FailRange, when it returns true for a range start, answers 503.
	FailRange func(start int64) bool
}

// RangeServer is an httptest.Server that serves TestFiles with range
// support and counts requests.
type RangeServer struct {
	*httptest.Server
	Requests atomic.Int64
}

// StartRangeServer starts a server for files. It is closed on test cleanup.
func StartRangeServer(t testing.TB, files []TestFile, opts ServerOptions) *RangeServer {
	t.Helper()

	type entry struct {
		data []byte
		etag string
	}
	fileMap := make(map[string]entry)
	for _, f := range files {
		etag := f.ETag
		if etag == "" {
			etag = f.Name
		}
		fileMap["/"+f.Name] = entry{data: f.Data, etag: etag}
	}

	rs := &RangeServer{}
	rs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rs.Requests.Add(1)

		f, ok := fileMap[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		size := int64(len(f.data))
		quoted := fmt.Sprintf(`"%s"`, f.etag)

		if m := r.Header.Get("If-Match"); m != "" && m != quoted {
			w.WriteHeader(http.StatusPreconditionFailed)
			return
		}

		if r.Method == http.MethodHead {
			w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
			if !opts.NoRanges {
				w.Header().Set("Accept-Ranges", "bytes")
			}
			w.Header().Set("ETag", quoted)
			return
		}

		rangeHeader := r.Header.Get("Range")
		if rangeHeader == "" || opts.NoRanges {
			w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
			w.Header().Set("ETag", quoted)
			w.Write(f.data)
			return
		}

		// Parse range header: bytes=start-end
		rangeHeader = strings.TrimPrefix(rangeHeader, "bytes=")
		parts := strings.Split(rangeHeader, "-")
		start, _ := strconv.ParseInt(parts[0], 10, 64)
		end, _ := strconv.ParseInt(parts[1], 10, 64)
		if end >= size {
			end = size - 1
		}

		if opts.FailRange != nil && opts.FailRange(start) {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		if opts.Latency != nil {
			select {
			case <-time.After(opts.Latency(start)):
			case <-r.Context().Done():
				return
			}
		}

		w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, end, size))
		w.Header().Set("Content-Length", strconv.FormatInt(end-start+1, 10))
		w.Header().Set("ETag", quoted)
		w.WriteHeader(http.StatusPartialContent)
		w.Write(f.data[start : end+1])
	}))
	t.Cleanup(rs.Close)

	return rs
}

// FileURL returns the URL of the named file.
func (rs *RangeServer) FileURL(name string) string {
	return rs.URL + "/" + name
}

// CompareReaderToData compares reader output with expected data in chunks.
// This is memory-efficient for large files.
func CompareReaderToData(t testing.TB, reader io.Reader, expected []byte) {
	t.Helper()

	buf := make([]byte, 1024*1024)
	offset := 0

	for {
		n, err := reader.Read(buf)
		if n > 0 {
			if offset+n > len(expected) {
				t.Fatalf("read more data than expected: offset=%d, n=%d, expected len=%d",
					offset, n, len(expected))
			}
			if !bytes.Equal(buf[:n], expected[offset:offset+n]) {
				t.Fatalf("data mismatch at offset %d", offset)
			}
			offset += n
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("read error at offset %d: %v", offset, err)
		}
	}

	if offset != len(expected) {
		t.Fatalf("incomplete read: got %d bytes, want %d", offset, len(expected))
	}
}
