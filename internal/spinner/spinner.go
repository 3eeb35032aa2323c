// Package spinner shows progress on a terminal while a slow call runs.
package spinner

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-runewidth"
	"golang.org/x/term"
)

var frames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

const interval = 80 * time.Millisecond

// Start displays an animated spinner with the given message on w.
// Call the returned function to stop the spinner and clear the line.
func Start(w io.Writer, message string) (stop func()) {
	done := make(chan struct{})
	cleared := make(chan struct{})
	width := runewidth.StringWidth(message) + 2

	go func() {
		defer close(cleared)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for i := 0; ; i++ {
			select {
			case <-done:
				fmt.Fprintf(w, "\r%s\r", strings.Repeat(" ", width)) //nolint:errcheck
				return
			case <-ticker.C:
				fmt.Fprintf(w, "\r%s %s", frames[i%len(frames)], message) //nolint:errcheck
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() { close(done) })
		<-cleared
	}
}

// StartOnTerminal starts a spinner only when w is a terminal, so piped
// output stays clean. The returned stop function is always safe to call.
func StartOnTerminal(w io.Writer, message string) (stop func()) {
	if f, ok := w.(*os.File); !ok || !term.IsTerminal(int(f.Fd())) {
		return func() {}
	}
	return Start(w, message)
}
