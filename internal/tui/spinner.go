package tui

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"
	"unicode/utf8"

	"golang.org/x/term"
)

// safeWriter serializes writes from the spinner goroutine and the caller.
type safeWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (sw *safeWriter) Write(p []byte) (int, error) {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	return sw.w.Write(p)
}

// flushWriter syncs w when it supports it so escape sequences reach the
// terminal immediately.
func flushWriter(w io.Writer) {
	type syncer interface {
		Sync() error
	}
	if s, ok := w.(syncer); ok {
		_ = s.Sync()
	}
}

//nolint:gochecknoglobals // Package-level constant for spinner animation
var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// SpinnerInterval is the animation frame interval.
const SpinnerInterval = 100 * time.Millisecond

// ElapsedTimeThreshold is the duration after which elapsed time is shown.
const ElapsedTimeThreshold = 10 * time.Second

// Spinner animates a single status line on w.
type Spinner struct {
	w       *safeWriter
	styles  *OutputStyles
	width   func() int
	message string
	started time.Time
	done    chan struct{}
	mu      sync.Mutex
	running bool
}

// NewSpinner creates a spinner that writes to w.
func NewSpinner(w io.Writer) *Spinner {
	return &Spinner{
		w:      &safeWriter{w: w},
		styles: NewOutputStyles(),
		width:  terminalWidth,
	}
}

// Writer returns the serialized writer shared with the animation goroutine.
func (s *Spinner) Writer() io.Writer { return s.w }

// Start begins the animation. Calling Start while running only updates the message.
func (s *Spinner) Start(ctx context.Context, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.message = message
	s.started = time.Now()
	if s.running {
		return
	}
	s.running = true
	s.done = make(chan struct{})
	go s.animate(ctx, s.done)
}

// Update changes the message without restarting the elapsed timer.
func (s *Spinner) Update(message string) {
	s.mu.Lock()
	s.message = message
	s.mu.Unlock()
}

// Running reports whether the animation is active.
func (s *Spinner) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Stop ends the animation and clears the line. It is idempotent.
func (s *Spinner) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	done := s.done
	s.mu.Unlock()

	close(done)
	_, _ = fmt.Fprint(s.w, "\r\033[K")
	flushWriter(s.w)
}

// Println prints line above the spinner; the next frame redraws below it.
func (s *Spinner) Println(line string) {
	_, _ = fmt.Fprint(s.w, "\r\033[K"+line+"\n")
	flushWriter(s.w)
}

func (s *Spinner) animate(ctx context.Context, done <-chan struct{}) {
	ticker := time.NewTicker(SpinnerInterval)
	defer ticker.Stop()

	frame := 0
	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			s.Stop()
			return
		case <-ticker.C:
			s.mu.Lock()
			if !s.running {
				s.mu.Unlock()
				return
			}
			msg := s.message
			if elapsed := time.Since(s.started); elapsed > ElapsedTimeThreshold {
				msg = fmt.Sprintf("%s (%ds)", msg, int(elapsed.Seconds()))
			}
			s.mu.Unlock()

			if maxLen := s.width() - 4; maxLen > 0 {
				msg = truncateToWidth(msg, maxLen)
			}
			glyph := s.styles.Info.Render(spinnerFrames[frame%len(spinnerFrames)])
			_, _ = fmt.Fprintf(s.w, "\r\033[K%s %s", glyph, msg)
			flushWriter(s.w)
			frame++
		}
	}
}

// terminalWidth returns the stderr width, or 80 when it is not a terminal.
func terminalWidth() int {
	width, _, err := term.GetSize(int(os.Stderr.Fd())) //nolint:gosec // G115: fd fits in int on supported platforms
	if err != nil || width <= 0 {
		return 80
	}
	return width
}

// truncateToWidth shortens s to maxWidth runes, ending in "...".
func truncateToWidth(s string, maxWidth int) string {
	if maxWidth <= 3 {
		return "..."
	}
	if utf8.RuneCountInString(s) <= maxWidth {
		return s
	}
	runes := []rune(s)
	return string(runes[:maxWidth-3]) + "..."
}

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd())) //nolint:gosec // G115: fd fits in int on supported platforms
}
