package worker

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
)

const barWidth = 24

// Progress draws a one-line status for a Run: tasks finished against tasks
// submitted, plus the items they produced, e.g.
//
//	[████████░░░░] 3/6 files · 12,480 facilities · 1 failed · 2,100/s
type Progress struct {
	mu      sync.Mutex
	out     io.Writer
	task    string
	item    string
	enabled bool
	start   time.Time
	now     func() time.Time
	stats   Stats
}

// NewProgress creates a progress line for total tasks. task and item name the
// task and item units, e.g. "files" and "facilities". Nothing is drawn when
// enabled is false, but Summary still works.
func NewProgress(total int, task, item string, enabled bool) *Progress {
	if task == "" {
		task = "tasks"
	}
	if item == "" {
		item = "items"
	}
	p := &Progress{
		out:     os.Stderr,
		task:    task,
		item:    item,
		enabled: enabled,
		now:     time.Now,
		stats:   Stats{Tasks: total},
	}
	p.start = p.now()
	return p
}

// Observe records s and redraws the line. It is a ProgressFunc.
func (p *Progress) Observe(s Stats) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stats = s
	if p.enabled {
		fmt.Fprint(p.out, "\r"+p.line()+"\033[K")
	}
}

// Stats returns the last observed tally.
func (p *Progress) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}

// Done ends the progress line.
func (p *Progress) Done() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.enabled {
		fmt.Fprintln(p.out, "\r"+p.line()+"\033[K")
	}
}

// Summary describes the finished run in one sentence for the log.
func (p *Progress) Summary() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := p.stats
	elapsed := p.now().Sub(p.start)
	return fmt.Sprintf("Imported %s %s from %d/%d %s in %s",
		humanize.Comma(int64(s.Items)), p.item, s.Done-s.Failed, s.Tasks, p.task, elapsed.Round(time.Millisecond))
}

// line renders the current state. Caller holds mu.
func (p *Progress) line() string {
	s := p.stats
	elapsed := p.now().Sub(p.start)

	filled := 0
	if s.Tasks > 0 {
		filled = min(s.Done*barWidth/s.Tasks, barWidth)
	}

	var b strings.Builder
	b.WriteString("[")
	b.WriteString(strings.Repeat("█", filled))
	b.WriteString(strings.Repeat("░", barWidth-filled))
	fmt.Fprintf(&b, "] %d/%d %s · %s %s", s.Done, s.Tasks, p.task, humanize.Comma(int64(s.Items)), p.item)
	if s.Failed > 0 {
		fmt.Fprintf(&b, " · %d failed", s.Failed)
	}
	if secs := elapsed.Seconds(); secs > 0 && s.Items > 0 {
		fmt.Fprintf(&b, " · %s/s", humanize.Comma(int64(float64(s.Items)/secs)))
	}
	if s.Remaining() > 0 && s.Done > 0 {
		eta := time.Duration(float64(elapsed) / float64(s.Done) * float64(s.Remaining()))
		fmt.Fprintf(&b, " · ETA %s", eta.Round(time.Second))
	}
	return b.String()
}
