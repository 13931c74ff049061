// Package http provides the range-request client used to fetch parts of an
// object served over plain HTTP(S).
//
// This package handles:
//   - Connection pooling sized for many concurrent part fetches
//   - HEAD requests for object size, ETag and range support
//   - Range requests pinned to one object version with If-Match, or
//     If-Unmodified-Since when the ETag is weak
//   - Checking that the returned Content-Range is the one requested
//   - Retry of transport errors and 5xx responses with exponential backoff
//
// # Usage
//
//	client := http.NewClient(http.DefaultOptions())
//
//	info, err := client.Head(ctx, url)
//	// info.Size, info.ETag, info.AcceptsRanges
//
//	resp, err := client.GetRange(ctx, url, startByte, endByte, info.Pin())
//	defer resp.Body.Close()
//
// [Backoff] is exported so the downloader can apply the same schedule to
// whole-part retries.
package http
