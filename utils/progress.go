package utils

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/cheggaaa/pb/v3"
)

// ProgressTracker displays how many files of a share have had their direct link resolved
type ProgressTracker struct {
	bar       *pb.ProgressBar
	quiet     bool
	out       io.Writer
	startTime time.Time
	total     int64
	current   int64
	partial   int64
	mutex     sync.Mutex
}

// ResolveSummary contains final resolution statistics
type ResolveSummary struct {
	Files     int64
	Partial   int64
	TotalTime time.Duration
}

// NewProgressTracker creates a tracker for total files, drawing on stderr unless quiet
func NewProgressTracker(total int64, quiet bool) *ProgressTracker {
	return NewProgressTrackerTo(total, quiet, os.Stderr)
}

// NewProgressTrackerTo is NewProgressTracker drawing on out
func NewProgressTrackerTo(total int64, quiet bool, out io.Writer) *ProgressTracker {
	tracker := &ProgressTracker{
		quiet:     quiet,
		out:       out,
		startTime: time.Now(),
		total:     total,
	}

	if !quiet {
		tmpl := `{{string . "prefix"}}{{counters . }} {{bar . }} {{percent . }} {{etime . }}`
		bar := pb.New64(total).
			SetTemplate(pb.ProgressBarTemplate(tmpl)).
			SetWriter(out)
		bar.Set("prefix", "Resolving: ")
		tracker.bar = bar.Start()
	}

	return tracker
}

// Update records that done files are finished
func (p *ProgressTracker) Update(done int64) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if done < p.current {
		return
	}
	p.current = done
	if p.bar != nil {
		p.bar.SetCurrent(done)
	}
}

// MarkPartial counts a file that fell back to its indirect link
func (p *ProgressTracker) MarkPartial() {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.partial++
}

// Abort stops the bar when resolution fails part way
func (p *ProgressTracker) Abort() {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if p.bar != nil {
		p.bar.SetCurrent(p.current)
		p.bar.Finish()
	}
	if !p.quiet {
		fmt.Fprintf(p.out, "Resolution failed after %d of %d file(s)\n", p.current, p.total)
	}
}

// Finish completes the progress bar and returns the summary
func (p *ProgressTracker) Finish() *ResolveSummary {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if p.bar != nil {
		p.bar.SetCurrent(p.current)
		p.bar.Finish()
	}

	summary := &ResolveSummary{
		Files:     p.current,
		Partial:   p.partial,
		TotalTime: time.Since(p.startTime),
	}

	if !p.quiet {
		fmt.Fprintf(p.out, "Resolved %d file(s) in %v", summary.Files, summary.TotalTime.Round(time.Millisecond))
		if summary.Partial > 0 {
			fmt.Fprintf(p.out, " (%d without direct link)", summary.Partial)
		}
		fmt.Fprintln(p.out)
	}

	return summary
}
