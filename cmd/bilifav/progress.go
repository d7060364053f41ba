package main

import (
	"io"
	"sync"
	"time"

	"github.com/jedib0t/go-pretty/v6/progress"

	"bilifav/internal/download"
)

// progressRenderer bridges transfer callbacks onto an interactive progress
// writer. It is inert when output is not a terminal, so scripted runs see
// only the final report.
type progressRenderer struct {
	writer progress.Writer

	mu       sync.Mutex
	trackers map[string]*progress.Tracker
}

func newProgressRenderer(out io.Writer) *progressRenderer {
	if !isTerminal(out) {
		return &progressRenderer{}
	}
	writer := progress.NewWriter()
	writer.SetOutputWriter(out)
	writer.SetAutoStop(false)
	writer.SetMessageLength(36)
	writer.SetTrackerLength(20)
	writer.SetTrackerPosition(progress.PositionRight)
	writer.SetUpdateFrequency(100 * time.Millisecond)
	writer.Style().Visibility.ETA = false
	writer.Style().Visibility.Time = false
	return &progressRenderer{
		writer:   writer,
		trackers: make(map[string]*progress.Tracker),
	}
}

func (r *progressRenderer) start() {
	if r.writer == nil {
		return
	}
	go r.writer.Render()
}

// stop ends rendering and waits for the render goroutine, so the cursor is
// below the last bar before the report prints.
func (r *progressRenderer) stop() {
	if r.writer == nil {
		return
	}
	// Allow one more render pass to paint final tracker states.
	time.Sleep(150 * time.Millisecond)
	r.writer.Stop()
	for r.writer.IsRenderInProgress() {
		time.Sleep(10 * time.Millisecond)
	}
}

// observe is a download.ProgressFunc. One tracker is kept per label and
// phase, so a DASH part shows separate video and audio bars.
func (r *progressRenderer) observe(p download.Progress) {
	if r.writer == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	key := p.Label + "\x00" + p.Phase
	tracker, ok := r.trackers[key]
	if !ok {
		total := p.Total
		if total < 0 {
			total = 0
		}
		tracker = &progress.Tracker{
			Message: trackerMessage(p.Label, p.Phase),
			Total:   total,
			Units:   progress.UnitsBytes,
		}
		r.writer.AppendTracker(tracker)
		r.trackers[key] = tracker
	}
	if p.Done {
		tracker.UpdateTotal(p.Received)
		tracker.MarkAsDone()
		return
	}
	tracker.SetValue(p.Received)
}

func trackerMessage(label, phase string) string {
	if phase == "" {
		return label
	}
	return label + " [" + phase + "]"
}
