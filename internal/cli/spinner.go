package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-isatty"
)

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// spinner animates a status line on stderr while a layout or publish runs.
// It draws nothing when stderr is not a terminal and stops on its own when
// the parent context ends.
type spinner struct {
	message string
	w       io.Writer
	animate bool

	ctx      context.Context
	cancel   context.CancelFunc
	stopped  chan struct{}
	stopOnce sync.Once
	started  bool
	mu       sync.Mutex
}

func newSpinner(ctx context.Context, message string) *spinner {
	ctx, cancel := context.WithCancel(ctx)
	return &spinner{
		message: message,
		w:       os.Stderr,
		animate: isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd()),
		ctx:     ctx,
		cancel:  cancel,
		stopped: make(chan struct{}),
	}
}

// Start begins the animation.
func (s *spinner) Start() {
	s.mu.Lock()
	s.started = true
	s.mu.Unlock()

	go func() {
		defer close(s.stopped)
		ticker := time.NewTicker(80 * time.Millisecond)
		defer ticker.Stop()
		for i := 0; ; i++ {
			select {
			case <-s.ctx.Done():
				s.clear()
				return
			case <-ticker.C:
				if s.animate {
					s.mu.Lock()
					fmt.Fprintf(s.w, "\r%s %s", styleIconSpinner.Render(spinnerFrames[i%len(spinnerFrames)]), StyleDim.Render(s.message))
					s.mu.Unlock()
				}
			}
		}
	}()
}

// Stop ends the animation and clears the line. It is safe to call more
// than once.
func (s *spinner) Stop() {
	s.stopOnce.Do(func() {
		s.cancel()
		s.mu.Lock()
		started := s.started
		s.mu.Unlock()
		if started {
			<-s.stopped
		}
	})
}

func (s *spinner) clear() {
	if !s.animate {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.w, "\r%s\r", strings.Repeat(" ", len(s.message)+4))
}

// Fail stops the spinner and prints msg as an error.
func (s *spinner) Fail(msg string) {
	s.Stop()
	printError("%s", msg)
}

// Cancelled reports whether the spinner has ended, through Stop or its
// parent context.
func (s *spinner) Cancelled() bool {
	return s.ctx.Err() != nil
}
