package source

import (
	"context"
	"fmt"
	"io"
	"strings"

	"gocloud.dev/blob"
	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/gcsblob"
	_ "gocloud.dev/blob/memblob"
	_ "gocloud.dev/blob/s3blob"
	"gocloud.dev/gcerrors"

	"github.com/ligustah/seqdl/pkg/body"
)

// Bucket reads an object from a gocloud.dev/blob bucket.
type Bucket struct {
	bucket *blob.Bucket
	key    string
	owned  bool // close the bucket on Close
}

// OpenBucket opens bucketURL and returns a source for key. The bucket is
// closed when the source is closed.
func OpenBucket(ctx context.Context, bucketURL, key string) (*Bucket, error) {
	b, err := blob.OpenBucket(ctx, bucketURL)
	if err != nil {
		return nil, fmt.Errorf("source: open bucket: %w", err)
	}
	return &Bucket{bucket: b, key: key, owned: true}, nil
}

// NewBucket returns a source for key in an already open bucket. The caller
// keeps ownership of b.
func NewBucket(b *blob.Bucket, key string) *Bucket {
	return &Bucket{bucket: b, key: key}
}

// Stat implements Source.
func (s *Bucket) Stat(ctx context.Context) (*body.ObjectMeta, error) {
	attrs, err := s.bucket.Attributes(ctx, s.key)
	if err != nil {
		if isNotExist(err) {
			return nil, fmt.Errorf("%w: %s: %w", ErrNotFound, s.key, err)
		}
		return nil, fmt.Errorf("source: attributes %s: %w", s.key, err)
	}

	return &body.ObjectMeta{
		Key:         s.key,
		Size:        attrs.Size,
		ETag:        strings.Trim(attrs.ETag, `"`),
		ContentType: attrs.ContentType,
		ModTime:     attrs.ModTime,
		Metadata:    attrs.Metadata,
	}, nil
}

// ReadRange implements Source.
func (s *Bucket) ReadRange(ctx context.Context, offset, length int64) (io.ReadCloser, error) {
	r, err := s.bucket.NewRangeReader(ctx, s.key, offset, length, nil)
	if err != nil {
		if isNotExist(err) {
			return nil, fmt.Errorf("%w: %s: %w", ErrNotFound, s.key, err)
		}
		return nil, fmt.Errorf("source: read %s [%d+%d]: %w", s.key, offset, length, err)
	}
	return r, nil
}

// Close implements Source.
func (s *Bucket) Close() error {
	if s.owned {
		return s.bucket.Close()
	}
	return nil
}

// isNotExist returns true if the error indicates the object doesn't exist.
func isNotExist(err error) bool {
	return gcerrors.Code(err) == gcerrors.NotFound
}
