// Package source fetches byte ranges of a single remote object.
//
// A [Source] reports the object's metadata with Stat and serves arbitrary
// ranges with ReadRange; the downloader calls ReadRange once per part from
// many goroutines at once.
//
// Implementations:
//   - [Bucket]: any gocloud.dev/blob bucket (s3://, gs://, file://, mem://)
//   - [HTTP]: a plain HTTP(S) URL that supports range requests
//   - [Manifest]: a sharded object stored as {key}.manifest.json plus one
//     blob per shard; ranges may span shard boundaries
//
// Use [Open] to pick an implementation from a URL.
package source
