package progress

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Options configures the progress reporter.
type Options struct {
	// TotalSize is the total size in bytes to download.
	TotalSize int64

	// TotalParts is the total number of parts.
	TotalParts int

	// Workers is the number of parallel workers.
	Workers int

	// Output is where to write progress output.
	// Default: os.Stderr
	Output io.Writer

	// UpdateInterval is how often to update the progress display.
	// Default: 500ms
	UpdateInterval time.Duration

	// Source is the object being downloaded (for display).
	Source string

	// PartSize is the size of each part (for display).
	PartSize int64
}

// Reporter outputs human-readable progress information.
type Reporter struct {
	opts Options

	mu           sync.Mutex
	fetchedBytes atomic.Int64
	fetchedParts atomic.Int32
	writtenBytes atomic.Int64
	writtenParts atomic.Int32
	inProgress   atomic.Int32
	startTime    time.Time
	lastUpdate   time.Time
	lastBytes    int64
	stopCh       chan struct{}
	doneCh       chan struct{}
	started      bool
	stopped      bool
}

// NewReporter creates a new progress reporter.
func NewReporter(opts Options) *Reporter {
	if opts.Output == nil {
		opts.Output = os.Stderr
	}
	if opts.UpdateInterval == 0 {
		opts.UpdateInterval = 500 * time.Millisecond
	}

	return &Reporter{
		opts:   opts,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// Start prints the header and begins periodic updates.
func (r *Reporter) Start() {
	r.mu.Lock()
	r.started = true
	r.startTime = time.Now()
	r.lastUpdate = r.startTime
	r.mu.Unlock()

	fmt.Fprintf(r.opts.Output, "[seqdl] Downloading: %s\n", r.opts.Source)
	fmt.Fprintf(r.opts.Output, "[seqdl] Total size: %s | Parts: %d x %s | Workers: %d\n",
		FormatBytes(r.opts.TotalSize),
		r.opts.TotalParts,
		FormatBytes(r.opts.PartSize),
		r.opts.Workers,
	)

	go r.updateLoop()
}

// Stop stops the reporter and prints the final status. Safe to call more
// than once.
func (r *Reporter) Stop() {
	r.mu.Lock()
	if r.stopped || !r.started {
		r.stopped = true
		r.mu.Unlock()
		return
	}
	r.stopped = true
	r.mu.Unlock()

	close(r.stopCh)
	<-r.doneCh
}

// PartStarted marks a part fetch as in flight.
func (r *Reporter) PartStarted() {
	r.inProgress.Add(1)
}

// PartFetched marks a part as fetched (not yet necessarily written).
func (r *Reporter) PartFetched(size int64) {
	r.fetchedBytes.Add(size)
	r.fetchedParts.Add(1)
	r.inProgress.Add(-1)
}

// PartFailed marks a part fetch attempt as failed.
func (r *Reporter) PartFailed() {
	r.inProgress.Add(-1)
}

// PartWritten records a part released in order and written to the sink.
func (r *Reporter) PartWritten(size int64) {
	r.writtenBytes.Add(size)
	r.writtenParts.Add(1)
}

// WrittenBytes returns the number of bytes written to the sink so far.
func (r *Reporter) WrittenBytes() int64 {
	return r.writtenBytes.Load()
}

// updateLoop periodically updates the progress display.
func (r *Reporter) updateLoop() {
	defer close(r.doneCh)

	ticker := time.NewTicker(r.opts.UpdateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stopCh:
			r.printFinalStatus()
			return
		case <-ticker.C:
			r.printProgress()
		}
	}
}

// printProgress outputs the current progress.
func (r *Reporter) printProgress() {
	now := time.Now()
	written := r.writtenBytes.Load()
	writtenParts := int(r.writtenParts.Load())
	fetchedParts := int(r.fetchedParts.Load())
	inProgress := int(r.inProgress.Load())

	elapsed := now.Sub(r.lastUpdate).Seconds()
	if elapsed < 0.1 {
		elapsed = 0.1
	}
	speed := float64(written-r.lastBytes) / elapsed

	r.lastUpdate = now
	r.lastBytes = written

	var percent float64
	eta := "-"
	if r.opts.TotalSize > 0 {
		percent = float64(written) / float64(r.opts.TotalSize) * 100
		if speed > 0 {
			remaining := float64(r.opts.TotalSize - written)
			eta = formatDuration(time.Duration(remaining / speed * float64(time.Second)))
		} else {
			eta = "calculating..."
		}
	}

	buffered := max(fetchedParts-writtenParts, 0)
	pending := max(r.opts.TotalParts-fetchedParts-inProgress, 0)

	fmt.Fprintf(r.opts.Output, "\r[seqdl] Progress: %.1f%% | %s / %s | Speed: %s/s | ETA: %s    ",
		percent,
		FormatBytes(written),
		FormatBytes(r.opts.TotalSize),
		FormatBytes(int64(speed)),
		eta,
	)
	fmt.Fprintf(r.opts.Output, "\n[seqdl] Parts: %d written | %d buffered | %d in-flight | %d pending    \033[A",
		writtenParts,
		buffered,
		inProgress,
		pending,
	)
}

// printFinalStatus outputs the final status.
func (r *Reporter) printFinalStatus() {
	written := r.writtenBytes.Load()
	writtenParts := int(r.writtenParts.Load())
	duration := time.Since(r.startTime)
	avgSpeed := float64(written) / max(duration.Seconds(), 0.001)

	fmt.Fprintf(r.opts.Output, "\r[seqdl] Progress: %s / %s | Parts: %d/%d written    \n",
		FormatBytes(written),
		FormatBytes(r.opts.TotalSize),
		writtenParts,
		r.opts.TotalParts,
	)
	fmt.Fprintf(r.opts.Output, "[seqdl] Total time: %s | Average speed: %s/s\n",
		formatDuration(duration),
		FormatBytes(int64(avgSpeed)),
	)
}

var iecUnits = []string{"KiB", "MiB", "GiB", "TiB", "PiB"}

// FormatBytes formats bytes as a human-readable IEC string ("1.5 KiB").
func FormatBytes(b int64) string {
	if b < 1024 {
		return fmt.Sprintf("%d B", b)
	}

	v := float64(b)
	unit := ""
	for _, u := range iecUnits {
		v /= 1024
		unit = u
		if v < 1024 {
			break
		}
	}

	if v >= 100 {
		return fmt.Sprintf("%.0f %s", v, unit)
	}
	return fmt.Sprintf("%.1f %s", v, unit)
}

// formatDuration formats a duration as a human-readable string.
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%.0fs", d.Seconds())
	}
	if d < time.Hour {
		m := int(d.Minutes())
		s := int(d.Seconds()) % 60
		return fmt.Sprintf("%dm %ds", m, s)
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%dh %dm %ds", h, m, s)
}

// byteSuffixes is ordered so longer suffixes match first.
var byteSuffixes = []struct {
	suffix     string
	multiplier float64
}{
	{"KiB", 1 << 10},
	{"MiB", 1 << 20},
	{"GiB", 1 << 30},
	{"TiB", 1 << 40},
	{"KB", 1e3},
	{"MB", 1e6},
	{"GB", 1e9},
	{"TB", 1e12},
	{"B", 1},
}

// ParseBytes parses a human-readable byte string. Binary suffixes (KiB, MiB,
// GiB, TiB) are powers of 1024, SI suffixes (KB, MB, GB, TB) powers of 1000.
func ParseBytes(s string) (int64, error) {
	s = strings.TrimSpace(s)
	multiplier := 1.0
	for _, bs := range byteSuffixes {
		if strings.HasSuffix(s, bs.suffix) {
			multiplier = bs.multiplier
			s = strings.TrimSpace(strings.TrimSuffix(s, bs.suffix))
			break
		}
	}

	value, err := strconv.ParseFloat(s, 64)
	if err != nil || value < 0 {
		return 0, fmt.Errorf("invalid byte string: %q", s)
	}

	return int64(value * multiplier), nil
}
