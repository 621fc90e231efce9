package app

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"liveroom/internal/core"
	"liveroom/internal/domain"
)

// auditWriter drains the engine-wide event stream into the audit sink.
// Delivery is at-least-once: a retried append may duplicate, and the sink
// de-duplicates on (room, seq).
type auditWriter struct {
	sink core.AuditSink
	done chan struct{}
}

func newAuditWriter(sink core.AuditSink) *auditWriter {
	return &auditWriter{sink: sink, done: make(chan struct{})}
}

func (w *auditWriter) run(ctx context.Context, events <-chan domain.StateChangeEvent) {
	defer close(w.done)
	for {
		select {
		case ev := <-events:
			w.append(ctx, ev)
		case <-ctx.Done():
			// Flush whatever is already buffered before exiting.
			for {
				select {
				case ev := <-events:
					w.append(context.Background(), ev)
				default:
					return
				}
			}
		}
	}
}

func (w *auditWriter) append(ctx context.Context, ev domain.StateChangeEvent) {
	var err error
	for attempt := 0; attempt < 3; attempt++ {
		if attempt > 0 {
			time.Sleep(time.Duration(attempt) * 100 * time.Millisecond)
		}
		if err = w.sink.Append(ctx, ev); err == nil {
			return
		}
	}
	log.Error().Str("module", "app.audit").Str("room", string(ev.RoomID)).
		Uint64("seq", ev.Seq).Err(err).Msg("audit append failed")
}
