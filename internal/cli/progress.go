package cli

import (
	"os"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"
)

type spinner struct {
	bar  *progressbar.ProgressBar
	stop func()
}

// describe updates the label shown next to the spinner.
func (s *spinner) describe(description string) {
	if s.bar == nil {
		return
	}
	s.bar.Describe(description)
}

func startSpinner(enabled bool, description string) *spinner {
	if !enabled {
		return &spinner{stop: func() {}}
	}

	bar := progressbar.NewOptions(
		-1,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionThrottle(80*time.Millisecond),
		progressbar.OptionSetElapsedTime(true),
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
	return &spinner{
		bar: bar,
		stop: func() {
			once.Do(func() {
				close(stopCh)
				<-doneCh
			})
		},
	}
}
