package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"

	seqhttp "github.com/ligustah/seqdl/internal/http"
	"github.com/ligustah/seqdl/pkg/body"
)

// Common errors.
var (
	ErrNotFound          = errors.New("source: object not found")
	ErrRangeNotSupported = errors.New("source: range requests not supported")
	ErrChecksumMismatch  = errors.New("source: checksum mismatch")
	ErrOutOfRange        = errors.New("source: range outside object")
)

// Source serves byte ranges of one object. ReadRange must be safe for
// concurrent use.
type Source interface {
	// Stat returns metadata for the object.
	Stat(ctx context.Context) (*body.ObjectMeta, error)

	// ReadRange returns a reader for length bytes starting at offset.
	ReadRange(ctx context.Context, offset, length int64) (io.ReadCloser, error)

	// Close releases resources held by the source.
	Close() error
}

// Options configures Open.
type Options struct {
	// HTTP configures the client used for http:// and https:// sources.
	HTTP seqhttp.Options

	// Manifest treats key as a sharded object described by
	// {key}.manifest.json rather than a single blob.
	Manifest bool

	// VerifyChecksum checks shard checksums for Manifest sources when a read
	// covers a whole shard.
	VerifyChecksum bool
}

// Open returns the Source for rawURL. HTTP(S) URLs name the object
// directly and key is ignored; anything else is a gocloud.dev/blob bucket URL
// and key names the object within it.
func Open(ctx context.Context, rawURL, key string, opts Options) (Source, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("source: parse url: %w", err)
	}

	switch u.Scheme {
	case "http", "https":
		httpOpts := opts.HTTP
		if httpOpts.MaxIdleConnsPerHost == 0 {
			httpOpts = seqhttp.DefaultOptions()
		}
		return NewHTTP(rawURL, httpOpts), nil
	case "":
		return nil, fmt.Errorf("source: missing scheme in %q", rawURL)
	}

	if key == "" {
		return nil, errors.New("source: object key is required for bucket sources")
	}
	if opts.Manifest {
		return OpenManifest(ctx, rawURL, key, opts.VerifyChecksum)
	}
	return OpenBucket(ctx, rawURL, key)
}
