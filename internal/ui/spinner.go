package ui

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
)

var SpinnerStyle = MutedStyle.Foreground(Primary)

// Spinner animates a one-line status until stopped, using the bubbles frame
// sets without running a bubbletea program.
type Spinner struct {
	out     io.Writer
	message string
	frames  spinner.Spinner

	done     chan struct{}
	finished chan struct{}
	stopOnce sync.Once
}

func NewSpinner(out io.Writer, message string) *Spinner {
	return &Spinner{
		out:      out,
		message:  message,
		frames:   spinner.Globe,
		done:     make(chan struct{}),
		finished: make(chan struct{}),
	}
}

func (s *Spinner) Start() {
	go func() {
		defer close(s.finished)
		ticker := time.NewTicker(s.frames.FPS)
		defer ticker.Stop()

		for i := 0; ; i++ {
			frame := SpinnerStyle.Render(s.frames.Frames[i%len(s.frames.Frames)])
			fmt.Fprintf(s.out, "\r%s %s", frame, s.message)
			select {
			case <-s.done:
				fmt.Fprint(s.out, "\r\033[K") // clear the line
				return
			case <-ticker.C:
			}
		}
	}()
}

// Stop clears the line and waits for the animation goroutine to exit.
func (s *Spinner) Stop() {
	s.stopOnce.Do(func() {
		close(s.done)
		<-s.finished
	})
}

// RunConnectionSpinner starts a spinner on stdout and returns its stop function.
func RunConnectionSpinner(message string) func() {
	sp := NewSpinner(os.Stdout, message)
	sp.Start()
	return sp.Stop
}
