// Package progress renders an upload session's event stream on the
// terminal: a percentage bar with the current status when stderr is a TTY,
// plain status lines otherwise.
package progress

import (
	"fmt"
	"io"
	"os"

	"github.com/schollz/progressbar/v3"
	"golang.org/x/term"

	"github.com/hamichlol/wikiup/internal/events"
)

// Renderer draws progress for one session.
type Renderer struct {
	out        io.Writer
	isTerminal bool
	quiet      bool
	bar        *progressbar.ProgressBar
	lastStatus string
}

// NewRenderer creates a renderer writing to out. A bar is drawn only when
// out is a terminal.
func NewRenderer(out io.Writer) *Renderer {
	r := &Renderer{out: out}
	if f, ok := out.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		enableANSI(f)
		r.isTerminal = true
	}
	return r
}

// NewQuietRenderer creates a renderer that only drains events.
// Used with --json so nothing but the result document is printed.
func NewQuietRenderer() *Renderer {
	return &Renderer{out: io.Discard, quiet: true}
}

// IsTerminal returns true if progress bars are drawn.
func (r *Renderer) IsTerminal() bool {
	return r.isTerminal
}

// Consume reads ch until a CompleteEvent arrives or ch is closed, rendering
// along the way. It returns the completion event, or nil if ch closed first.
func (r *Renderer) Consume(ch <-chan events.Event) *events.CompleteEvent {
	for ev := range ch {
		switch e := ev.(type) {
		case *events.StatusEvent:
			r.status(e.Message)
		case *events.ProgressEvent:
			r.progress(e.Percent)
		case *events.CompleteEvent:
			r.finish()
			return e
		}
	}
	r.finish()
	return nil
}

func (r *Renderer) status(msg string) {
	r.lastStatus = msg
	if r.quiet {
		return
	}
	if r.bar == nil && r.isTerminal {
		r.bar = r.newBar()
	}
	if r.bar != nil {
		r.bar.Describe(msg)
		return
	}
	fmt.Fprintln(r.out, msg)
}

func (r *Renderer) progress(percent int) {
	if r.quiet {
		return
	}
	if r.bar != nil {
		_ = r.bar.Set(percent)
		return
	}
	fmt.Fprintf(r.out, "[%3d%%]\n", percent)
}

func (r *Renderer) finish() {
	if r.bar == nil {
		return
	}
	_ = r.bar.Finish()
	// The description on the finished bar is the last status; keep it visible.
	fmt.Fprintln(r.out)
	r.bar = nil
}

// LastStatus returns the most recent status message seen.
func (r *Renderer) LastStatus() string {
	return r.lastStatus
}

func (r *Renderer) newBar() *progressbar.ProgressBar {
	return progressbar.NewOptions(100,
		progressbar.OptionSetWriter(r.out),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionThrottle(0),
		progressbar.OptionSetRenderBlankState(true),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerPadding: "░",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
}
