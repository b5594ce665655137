package progress

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/hamichlol/wikiup/internal/events"
)

func feed(evs ...events.Event) <-chan events.Event {
	ch := make(chan events.Event, len(evs))
	for _, ev := range evs {
		ch <- ev
	}
	close(ch)
	return ch
}

func status(msg string) *events.StatusEvent {
	return &events.StatusEvent{BaseEvent: events.BaseEvent{EventType: events.EventStatus, Time: time.Now()}, Message: msg}
}

func percent(p int) *events.ProgressEvent {
	return &events.ProgressEvent{BaseEvent: events.BaseEvent{EventType: events.EventProgress, Time: time.Now()}, Percent: p}
}

func complete() *events.CompleteEvent {
	return &events.CompleteEvent{
		BaseEvent: events.BaseEvent{EventType: events.EventComplete, Time: time.Now()},
		Results:   []events.FileOutcome{{Message: "File a.png uploaded successfully", Success: true}},
	}
}

func TestRendererPlainOutput(t *testing.T) {
	var buf bytes.Buffer
	r := NewRenderer(&buf)
	if r.IsTerminal() {
		t.Fatal("a buffer is not a terminal")
	}

	done := r.Consume(feed(
		status("Uploading file 1/2: a.png"),
		percent(50),
		status("Uploading file 2/2: b.png"),
		percent(100),
		status("Upload finished"),
		complete(),
	))

	if done == nil {
		t.Fatal("expected completion event")
	}
	if len(done.Results) != 1 {
		t.Errorf("expected 1 result, got %d", len(done.Results))
	}

	out := buf.String()
	for _, want := range []string{"Uploading file 1/2: a.png", "[ 50%]", "Uploading file 2/2: b.png", "[100%]", "Upload finished"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Index(out, "1/2") > strings.Index(out, "2/2") {
		t.Error("status lines out of order")
	}
	if r.LastStatus() != "Upload finished" {
		t.Errorf("LastStatus = %q", r.LastStatus())
	}
}

func TestRendererStopsAtComplete(t *testing.T) {
	var buf bytes.Buffer
	r := NewRenderer(&buf)

	ch := make(chan events.Event, 3)
	ch <- status("Connecting...")
	ch <- complete()
	ch <- status("late")

	if r.Consume(ch) == nil {
		t.Fatal("expected completion event")
	}
	if strings.Contains(buf.String(), "late") {
		t.Error("renderer read past the completion event")
	}
	if len(ch) != 1 {
		t.Errorf("expected the late event to stay queued, %d left", len(ch))
	}
}

func TestRendererClosedChannel(t *testing.T) {
	r := NewRenderer(&bytes.Buffer{})
	if got := r.Consume(feed(status("Connecting..."))); got != nil {
		t.Errorf("expected nil when the channel closes early, got %+v", got)
	}
}

func TestQuietRenderer(t *testing.T) {
	r := NewQuietRenderer()
	done := r.Consume(feed(status("Uploading file 1/1: a.png"), percent(100), complete()))
	if done == nil {
		t.Fatal("expected completion event")
	}
	if r.LastStatus() != "Uploading file 1/1: a.png" {
		t.Errorf("LastStatus = %q", r.LastStatus())
	}
}
