package source

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"hash"
	"io"
	"sort"
	"time"

	"gocloud.dev/blob"

	"github.com/ligustah/seqdl/pkg/body"
)

// ShardManifest describes an object stored as several shard blobs.
//
//	{
//	  "total_size": 1073741824,
//	  "shard_size": 268435456,
//	  "parts_prefix": "path/to/file.bin.shards/",
//	  "shards": [
//	    {"object": "shard-000000", "offset": 0, "size": 268435456, "checksum": "..."},
//	    ...
//	  ],
//	  "metadata": {"source_url": "...", "source_etag": "..."},
//	  "completed_at": "2025-01-15T10:30:00Z"
//	}
type ShardManifest struct {
	TotalSize   int64             `json:"total_size"`
	ShardSize   int64             `json:"shard_size"`
	PartsPrefix string            `json:"parts_prefix"`
	Shards      []ShardInfo       `json:"shards"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	CompletedAt time.Time         `json:"completed_at"`
}

// ShardInfo describes a single shard. The index is implicit from the array
// position.
type ShardInfo struct {
	Object   string `json:"object"`
	Offset   int64  `json:"offset"`
	Size     int64  `json:"size"`
	Checksum string `json:"checksum,omitempty"` // hex sha256
}

// ManifestPath returns the manifest object name for key.
func ManifestPath(key string) string {
	return key + ".manifest.json"
}

// Manifest reads a sharded object as if it were a single blob.
type Manifest struct {
	bucket   *blob.Bucket
	key      string
	manifest *ShardManifest
	verify   bool
	owned    bool
}

// OpenManifest opens bucketURL and loads the manifest for key.
func OpenManifest(ctx context.Context, bucketURL, key string, verify bool) (*Manifest, error) {
	b, err := blob.OpenBucket(ctx, bucketURL)
	if err != nil {
		return nil, fmt.Errorf("source: open bucket: %w", err)
	}

	m, err := NewManifest(ctx, b, key, verify)
	if err != nil {
		b.Close()
		return nil, err
	}
	m.owned = true
	return m, nil
}

// NewManifest loads the manifest for key from an open bucket. The caller
// keeps ownership of b.
func NewManifest(ctx context.Context, b *blob.Bucket, key string, verify bool) (*Manifest, error) {
	data, err := b.ReadAll(ctx, ManifestPath(key))
	if err != nil {
		if isNotExist(err) {
			return nil, fmt.Errorf("%w: %s: %w", ErrNotFound, ManifestPath(key), err)
		}
		return nil, fmt.Errorf("source: read manifest: %w", err)
	}

	var manifest ShardManifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("source: unmarshal manifest: %w", err)
	}
	if err := manifest.check(); err != nil {
		return nil, err
	}

	return &Manifest{
		bucket:   b,
		key:      key,
		manifest: &manifest,
		verify:   verify,
	}, nil
}

// check verifies the shards tile [0, TotalSize) without gaps.
func (m *ShardManifest) check() error {
	var next int64
	for i, s := range m.Shards {
		if s.Offset != next {
			return fmt.Errorf("source: manifest shard %d starts at %d, want %d", i, s.Offset, next)
		}
		if s.Size < 0 {
			return fmt.Errorf("source: manifest shard %d has negative size", i)
		}
		next += s.Size
	}
	if next != m.TotalSize {
		return fmt.Errorf("source: manifest shards cover %d bytes, total_size is %d", next, m.TotalSize)
	}
	return nil
}

// ShardManifest returns the loaded manifest.
func (s *Manifest) ShardManifest() *ShardManifest {
	return s.manifest
}

// Stat implements Source.
func (s *Manifest) Stat(ctx context.Context) (*body.ObjectMeta, error) {
	return &body.ObjectMeta{
		Key:      s.key,
		Size:     s.manifest.TotalSize,
		ETag:     s.manifest.Metadata["source_etag"],
		ModTime:  s.manifest.CompletedAt,
		Metadata: s.manifest.Metadata,
	}, nil
}

// ReadRange implements Source. The returned reader opens shard blobs lazily
// as it crosses shard boundaries.
func (s *Manifest) ReadRange(ctx context.Context, offset, length int64) (io.ReadCloser, error) {
	if offset < 0 || length < 0 || offset+length > s.manifest.TotalSize {
		return nil, fmt.Errorf("%w: [%d+%d] of %d", ErrOutOfRange, offset, length, s.manifest.TotalSize)
	}

	shards := s.manifest.Shards
	// First shard whose end lies past offset.
	first := sort.Search(len(shards), func(i int) bool {
		return shards[i].Offset+shards[i].Size > offset
	})

	var spans []shardSpan
	end := offset + length
	for i := first; i < len(shards) && offset < end; i++ {
		sh := shards[i]
		start := offset - sh.Offset
		n := min(sh.Size-start, end-offset)
		spans = append(spans, shardSpan{index: i, shard: sh, start: start, length: n})
		offset += n
	}

	return &shardRangeReader{ctx: ctx, src: s, spans: spans}, nil
}

// Close implements Source.
func (s *Manifest) Close() error {
	if s.owned {
		return s.bucket.Close()
	}
	return nil
}

// shardSpan is the part of one shard covered by a read.
type shardSpan struct {
	index  int
	shard  ShardInfo
	start  int64
	length int64
}

// whole reports whether the span covers the entire shard.
func (sp shardSpan) whole() bool {
	return sp.start == 0 && sp.length == sp.shard.Size
}

type shardRangeReader struct {
	ctx   context.Context
	src   *Manifest
	spans []shardSpan

	cur  io.ReadCloser
	span shardSpan
	hash hash.Hash // set when verifying the current span
}

func (r *shardRangeReader) Read(p []byte) (int, error) {
	for {
		if r.cur == nil {
			if len(r.spans) == 0 {
				return 0, io.EOF
			}
			if err := r.open(); err != nil {
				return 0, err
			}
		}

		n, err := r.cur.Read(p)
		if n > 0 && r.hash != nil {
			r.hash.Write(p[:n])
		}
		if err == io.EOF {
			if verr := r.finish(); verr != nil {
				return n, verr
			}
			if n > 0 {
				return n, nil
			}
			continue
		}
		return n, err
	}
}

func (r *shardRangeReader) open() error {
	r.span, r.spans = r.spans[0], r.spans[1:]
	path := r.src.manifest.PartsPrefix + r.span.shard.Object

	rd, err := r.src.bucket.NewRangeReader(r.ctx, path, r.span.start, r.span.length, nil)
	if err != nil {
		if isNotExist(err) {
			return fmt.Errorf("%w: shard %d: %w", ErrNotFound, r.span.index, err)
		}
		return fmt.Errorf("source: open shard %d: %w", r.span.index, err)
	}
	r.cur = rd

	r.hash = nil
	if r.src.verify && r.span.whole() && r.span.shard.Checksum != "" {
		r.hash = sha256.New()
	}
	return nil
}

// finish closes the current shard reader and checks its checksum.
func (r *shardRangeReader) finish() error {
	r.cur.Close()
	r.cur = nil

	if r.hash == nil {
		return nil
	}
	actual := hex.EncodeToString(r.hash.Sum(nil))
	r.hash = nil
	if actual != r.span.shard.Checksum {
		return fmt.Errorf("%w: shard %d: expected %s, got %s",
			ErrChecksumMismatch, r.span.index, r.span.shard.Checksum, actual)
	}
	return nil
}

func (r *shardRangeReader) Close() error {
	if r.cur != nil {
		err := r.cur.Close()
		r.cur = nil
		return err
	}
	return nil
}

// ValidationResult reports whether every shard a manifest names exists
// with the size it declares.
type ValidationResult struct {
	Valid          bool
	ShardCount     int
	MissingShards  int
	SizeMismatches int
	Problems       []string
}

// Validate checks shard attributes without reading shard data. Missing or
// mis-sized shards are reported in the result, not as an error.
func (s *Manifest) Validate(ctx context.Context) (*ValidationResult, error) {
	result := &ValidationResult{
		Valid:      true,
		ShardCount: len(s.manifest.Shards),
	}

	for i, sh := range s.manifest.Shards {
		path := s.manifest.PartsPrefix + sh.Object

		attrs, err := s.bucket.Attributes(ctx, path)
		if err != nil {
			if isNotExist(err) {
				result.Valid = false
				result.MissingShards++
				result.Problems = append(result.Problems, fmt.Sprintf("shard %d missing: %s", i, path))
				continue
			}
			return nil, fmt.Errorf("source: check shard %d: %w", i, err)
		}

		if attrs.Size != sh.Size {
			result.Valid = false
			result.SizeMismatches++
			result.Problems = append(result.Problems,
				fmt.Sprintf("shard %d size mismatch: expected %d, got %d", i, sh.Size, attrs.Size))
		}
	}

	return result, nil
}
