package upload

import (
	"context"

	"github.com/hamichlol/wikiup/internal/events"
)

// Start runs s in its own goroutine, publishing its reports on bus, and
// returns a channel that receives the results once and is then closed.
//
// The bus is not closed. Only one session should publish on a bus at a time,
// otherwise consumers see interleaved reports.
func Start(ctx context.Context, s *Session, req Request, creds Credentials, bus *events.EventBus) <-chan []Result {
	done := make(chan []Result, 1)
	obs := NewBusObserver(bus, s.ID(), len(req.Paths))

	go func() {
		defer close(done)
		results, err := s.Run(ctx, req, creds, obs)
		if err != nil {
			s.log.Debug().Err(err).Msg("Session ended early")
		}
		done <- results
	}()

	return done
}
