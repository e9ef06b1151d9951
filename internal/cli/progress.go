package cli

import (
	"os"
	"sync"
	"time"

	"github.com/fmueller/meetingagent/internal/pipeline"
	"github.com/schollz/progressbar/v3"
)

type stopFunc func()

func startSpinner(enabled bool, description string) stopFunc {
	if !enabled {
		return func() {}
	}

	bar := progressbar.NewOptions(
		-1,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionThrottle(80*time.Millisecond),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)

	stopCh := make(chan struct{})
	doneCh := make(chan struct{})

	go func() {
		defer close(doneCh)
		ticker := time.NewTicker(120 * time.Millisecond)
		defer ticker.Stop()

		for {
			select {
			case <-stopCh:
				_ = bar.Finish()
				return
			case <-ticker.C:
				_ = bar.Add(1)
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stopCh)
			<-doneCh
		})
	}
}

var stageDescriptions = map[pipeline.Status]string{
	pipeline.StatusTranscribing:      "Transcribing audio",
	pipeline.StatusResolvingSpeakers: "Identifying speakers",
	pipeline.StatusExtractingMinutes: "Extracting minutes",
	pipeline.StatusCreatingEvents:    "Creating calendar events",
}

// stageProgress shows one spinner per pipeline stage. It is driven by the
// orchestrator's OnStage hook and must be stopped once the run returns.
type stageProgress struct {
	enabled bool
	start   func(enabled bool, description string) stopFunc

	mu      sync.Mutex
	current stopFunc
	seen    []pipeline.Status
}

func newStageProgress(enabled bool) *stageProgress {
	return &stageProgress{enabled: enabled, start: startSpinner}
}

func (p *stageProgress) observe(_ string, status pipeline.Status) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.seen = append(p.seen, status)
	if p.current != nil {
		p.current()
		p.current = nil
	}
	if description, ok := stageDescriptions[status]; ok {
		p.current = p.start(p.enabled, description)
	}
}

func (p *stageProgress) stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.current != nil {
		p.current()
		p.current = nil
	}
}

func (p *stageProgress) statuses() []pipeline.Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]pipeline.Status(nil), p.seen...)
}
