package upload

import (
	"time"

	"github.com/hamichlol/wikiup/internal/events"
)

// Observer receives what a session reports while it runs. Calls come from
// the session's goroutine, in order: any number of Status and Progress
// calls, then exactly one Complete.
type Observer interface {
	Progress(percent int)
	Status(message string)
	Complete(results []Result)
}

// ObserverFuncs adapts plain functions to Observer. Nil fields are skipped.
type ObserverFuncs struct {
	OnProgress func(percent int)
	OnStatus   func(message string)
	OnComplete func(results []Result)
}

func (f ObserverFuncs) Progress(percent int) {
	if f.OnProgress != nil {
		f.OnProgress(percent)
	}
}

func (f ObserverFuncs) Status(message string) {
	if f.OnStatus != nil {
		f.OnStatus(message)
	}
}

func (f ObserverFuncs) Complete(results []Result) {
	if f.OnComplete != nil {
		f.OnComplete(results)
	}
}

// BusObserver publishes session reports on an event bus.
type BusObserver struct {
	bus       *events.EventBus
	sessionID string
	started   time.Time
	done      int
	total     int
}

// NewBusObserver creates an observer publishing under sessionID.
// total is the number of files, carried on progress events.
func NewBusObserver(bus *events.EventBus, sessionID string, total int) *BusObserver {
	return &BusObserver{
		bus:       bus,
		sessionID: sessionID,
		started:   time.Now(),
		total:     total,
	}
}

func (o *BusObserver) Progress(percent int) {
	o.done++
	o.bus.PublishProgress(o.sessionID, percent, o.done, o.total)
}

func (o *BusObserver) Status(message string) {
	o.bus.PublishStatus(o.sessionID, message)
}

func (o *BusObserver) Complete(results []Result) {
	fatal := false
	outcomes := make([]events.FileOutcome, len(results))
	for i, r := range results {
		if r.General {
			fatal = true
		}
		outcomes[i] = events.FileOutcome{
			Path:    r.Path,
			Target:  r.Target,
			Success: r.Success,
			Message: r.Message,
		}
	}
	o.bus.PublishComplete(o.sessionID, fatal, outcomes, time.Since(o.started))
}
