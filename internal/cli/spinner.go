package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/mattn/go-isatty"
)

const spinnerInterval = 100 * time.Millisecond

var spinnerFrames = [...]string{"◐", "◓", "◑", "◒"}

// spinner animates a status line while a load or render runs. It stops on
// Stop or when its context ends, and draws nothing unless animate is set.
type spinner struct {
	w   io.Writer
	msg string

	mu    sync.Mutex
	drawn int // width of the last frame, for clearing

	stop    chan struct{}
	stopped chan struct{}
	once    sync.Once
}

// startSpinner animates msg on stderr when stderr is a terminal.
func startSpinner(ctx context.Context, msg string) *spinner {
	return runSpinner(ctx, os.Stderr, msg, isatty.IsTerminal(os.Stderr.Fd()))
}

func runSpinner(ctx context.Context, w io.Writer, msg string, animate bool) *spinner {
	s := &spinner{
		w:       w,
		msg:     msg,
		stop:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	if !animate {
		close(s.stopped)
		return s
	}
	go s.loop(ctx)
	return s
}

func (s *spinner) loop(ctx context.Context) {
	defer close(s.stopped)
	defer s.clear()

	ticker := time.NewTicker(spinnerInterval)
	defer ticker.Stop()
	for i := 0; ; i++ {
		select {
		case <-ctx.Done():
			return
		case <-s.stop:
			return
		case <-ticker.C:
			frame := spinnerFrames[i%len(spinnerFrames)]
			s.mu.Lock()
			fmt.Fprintf(s.w, "\r%s %s", styleIconSpinner.Render(frame), StyleDim.Render(s.msg))
			s.drawn = utf8.RuneCountInString(frame) + 1 + utf8.RuneCountInString(s.msg)
			s.mu.Unlock()
		}
	}
}

func (s *spinner) clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.drawn > 0 {
		fmt.Fprintf(s.w, "\r%s\r", strings.Repeat(" ", s.drawn))
		s.drawn = 0
	}
}

// Stop ends the animation and clears the line. It is safe to call more
// than once.
func (s *spinner) Stop() {
	s.once.Do(func() { close(s.stop) })
	<-s.stopped
}

// Fail stops the spinner and prints msg as an error line.
func (s *spinner) Fail(msg string) {
	s.Stop()
	printError("%s", msg)
}
