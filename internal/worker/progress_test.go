package worker

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func clockedProgress(total int, enabled bool) (*Progress, *bytes.Buffer, *time.Time) {
	now := time.Date(2024, 9, 14, 9, 0, 0, 0, time.UTC)
	var buf bytes.Buffer
	p := NewProgress(total, "files", "facilities", enabled)
	p.out = &buf
	p.now = func() time.Time { return now }
	p.start = now
	return p, &buf, &now
}

func TestProgress_LineCountsFilesAndFacilities(t *testing.T) {
	p, buf, now := clockedProgress(4, true)

	*now = now.Add(2 * time.Second)
	p.Observe(Stats{Tasks: 4, Done: 2, Items: 12_480})

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "\r["))
	assert.Contains(t, out, "] 2/4 files · 12,480 facilities · 6,240/s · ETA 2s")
	assert.Equal(t, 12, strings.Count(out, "█"), "half the bar is filled")
	assert.NotContains(t, out, "failed")
}

func TestProgress_ReportsFailures(t *testing.T) {
	p, buf, now := clockedProgress(3, true)

	*now = now.Add(time.Second)
	p.Observe(Stats{Tasks: 3, Done: 3, Failed: 1, Items: 50})

	out := buf.String()
	assert.Contains(t, out, "3/3 files · 50 facilities · 1 failed")
	assert.NotContains(t, out, "ETA")
	assert.Equal(t, 24, strings.Count(out, "█"))
}

func TestProgress_NoRateBeforeItems(t *testing.T) {
	p, buf, _ := clockedProgress(2, true)

	p.Observe(Stats{Tasks: 2, Done: 1, Failed: 1})
	assert.NotContains(t, buf.String(), "/s")
}

func TestProgress_DisabledDrawsNothing(t *testing.T) {
	p, buf, _ := clockedProgress(1, false)

	p.Observe(Stats{Tasks: 1, Done: 1, Items: 7})
	p.Done()

	assert.Empty(t, buf.String())
	assert.Equal(t, Stats{Tasks: 1, Done: 1, Items: 7}, p.Stats())
}

func TestProgress_DoneEndsLine(t *testing.T) {
	p, buf, _ := clockedProgress(1, true)

	p.Observe(Stats{Tasks: 1, Done: 1, Items: 1})
	p.Done()
	assert.True(t, strings.HasSuffix(buf.String(), "\n"))
}

func TestProgress_Summary(t *testing.T) {
	p, _, now := clockedProgress(4, false)

	*now = now.Add(1500 * time.Millisecond)
	p.Observe(Stats{Tasks: 4, Done: 4, Failed: 1, Items: 3_021})

	assert.Equal(t, "Imported 3,021 facilities from 3/4 files in 1.5s", p.Summary())
}

func TestProgress_DefaultUnits(t *testing.T) {
	p := NewProgress(2, "", "", false)
	p.Observe(Stats{Tasks: 2, Done: 2, Items: 5})
	assert.Contains(t, p.Summary(), "5 items from 2/2 tasks")
}

func TestProgress_IsProgressFunc(t *testing.T) {
	p, _, _ := clockedProgress(1, false)
	var fn ProgressFunc = p.Observe
	fn(Stats{Tasks: 1, Done: 1, Items: 2})
	assert.Equal(t, 2, p.Stats().Items)
}
