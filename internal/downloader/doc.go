// Package downloader fetches an object as parallel byte-range parts and
// hands them to a body.Body for in-order consumption.
//
// # Usage
//
// Download copies an object to a writer in order:
//
//	n, err := downloader.Download(ctx, src, os.Stdout, downloader.Options{
//	    Workers:  16,
//	    PartSize: 8 * 1024 * 1024,
//	    Progress: reporter,
//	})
//
// DownloadParts writes parts at their offsets as they arrive and skips the
// reorder buffer entirely.
//
// For finer control, Open returns a Transfer whose Body can be pulled
// directly.
//
// # Worker Pool
//
// A scheduler hands parts to a fixed set of workers in sequence order. It
// holds one permit from a window of Options.Window per dispatched part; the
// ordered body returns the permit when it releases that part. A part that
// arrives early therefore waits in the reorder buffer, and the buffer never
// holds more than Window-1 parts.
//
// Failed parts are retried with exponential backoff. Once a part exhausts
// its retries the error is delivered on the body in arrival order and the
// remaining fetches are cancelled.
package downloader
