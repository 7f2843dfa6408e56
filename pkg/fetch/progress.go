package fetch

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/jedib0t/go-pretty/v6/progress"

	"github.com/Sumatoshi-tech/sprintstats/pkg/model"
)

const (
	percentTotal         = 100
	progressUpdateEvery  = 100 * time.Millisecond
	progressMessageWidth = 32
	progressStopTimeout  = 2 * time.Second
)

// Progress receives fetch progress for each repository. Transfer and Page may
// be called from different goroutines.
type Progress interface {
	Start(repo model.Repository)
	Transfer(repo model.Repository, percent int)
	Page(repo model.Repository, page int)
	Finish(repo model.Repository, err error)
}

// NopProgress discards all progress.
type NopProgress struct{}

// Start implements Progress.
func (NopProgress) Start(model.Repository) {}

// Transfer implements Progress.
func (NopProgress) Transfer(model.Repository, int) {}

// Page implements Progress.
func (NopProgress) Page(model.Repository, int) {}

// Finish implements Progress.
func (NopProgress) Finish(model.Repository, error) {}

type repoTrackers struct {
	sync  *progress.Tracker
	pulls *progress.Tracker
}

// TrackerProgress renders one transfer tracker and one pull request page
// tracker per repository with go-pretty.
type TrackerProgress struct {
	writer   progress.Writer
	rendered chan struct{}

	mu       sync.Mutex
	trackers map[string]repoTrackers
}

// NewTrackerProgress starts rendering to out. Call Stop when the run ends.
func NewTrackerProgress(out io.Writer) *TrackerProgress {
	pw := progress.NewWriter()
	pw.SetOutputWriter(out)
	pw.SetAutoStop(false)
	pw.SetMessageLength(progressMessageWidth)
	pw.SetTrackerPosition(progress.PositionRight)
	pw.SetUpdateFrequency(progressUpdateEvery)
	pw.SetStyle(progress.StyleDefault)
	pw.Style().Visibility.ETA = false
	pw.Style().Visibility.Speed = false

	p := &TrackerProgress{writer: pw, rendered: make(chan struct{}), trackers: make(map[string]repoTrackers)}

	go func() {
		defer close(p.rendered)

		pw.Render()
	}()

	return p
}

// Start implements Progress.
func (p *TrackerProgress) Start(repo model.Repository) {
	trackers := repoTrackers{
		sync:  &progress.Tracker{Message: fmt.Sprintf("%s sync", repo.Name), Total: percentTotal, Units: progress.UnitsDefault},
		pulls: &progress.Tracker{Message: fmt.Sprintf("%s pull pages", repo.Name), Units: progress.UnitsDefault},
	}

	p.mu.Lock()
	p.trackers[repo.Key()] = trackers
	p.mu.Unlock()

	p.writer.AppendTrackers([]*progress.Tracker{trackers.sync, trackers.pulls})
}

// Transfer implements Progress.
func (p *TrackerProgress) Transfer(repo model.Repository, percent int) {
	if trackers, ok := p.lookup(repo); ok {
		trackers.sync.SetValue(int64(percent))
	}
}

// Page implements Progress.
func (p *TrackerProgress) Page(repo model.Repository, page int) {
	if trackers, ok := p.lookup(repo); ok {
		trackers.pulls.SetValue(int64(page))
	}
}

// Finish implements Progress.
func (p *TrackerProgress) Finish(repo model.Repository, err error) {
	trackers, ok := p.lookup(repo)
	if !ok {
		return
	}

	if err != nil {
		trackers.sync.MarkAsErrored()
		trackers.pulls.MarkAsErrored()

		return
	}

	trackers.sync.MarkAsDone()
	trackers.pulls.MarkAsDone()
}

// Stop renders the final state and stops the writer. Trackers still active
// after a short grace period are abandoned.
func (p *TrackerProgress) Stop() {
	deadline := time.Now().Add(progressStopTimeout)

	for time.Now().Before(deadline) && p.writer.LengthActive() > 0 {
		time.Sleep(progressUpdateEvery)
	}

	// Stop is a no-op until Render has started, so it is repeated until the
	// render goroutine returns.
	for {
		p.writer.Stop()

		select {
		case <-p.rendered:
			return
		case <-time.After(progressUpdateEvery):
		}

		if time.Now().After(deadline) {
			return
		}
	}
}

func (p *TrackerProgress) lookup(repo model.Repository) (repoTrackers, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	trackers, ok := p.trackers[repo.Key()]

	return trackers, ok
}
