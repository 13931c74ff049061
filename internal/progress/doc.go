// Package progress provides progress reporting for downloads.
//
// Two numbers are tracked separately: bytes fetched by the worker pool (in
// any order) and bytes written to the sink (in order). The gap between them
// is data waiting in the reorder buffer for an earlier part.
//
// # Usage
//
//	reporter := progress.NewReporter(progress.Options{
//	    TotalSize:  totalBytes,
//	    TotalParts: numParts,
//	    Output:     os.Stderr,
//	})
//
//	reporter.Start()
//	defer reporter.Stop()
//
//	reporter.PartStarted()
//	reporter.PartFetched(n)  // worker finished a part
//	reporter.PartWritten(n)  // part released in order and written
//
// # Output Format
//
//	[seqdl] Downloading: s3://bucket/file.tar.gz
//	[seqdl] Total size: 2.5 GiB | Parts: 320 x 8.0 MiB | Workers: 16
//	[seqdl] Progress: 45.2% | 1.1 GiB / 2.5 GiB | Speed: 120 MiB/s | ETA: 12s
//	[seqdl] Parts: 140 written | 4 buffered | 16 in-flight | 160 pending
package progress
