package events

import (
	"context"
	"time"

	"github.com/clipdeck/kick-clips-go/internal/download"
	"go.uber.org/zap"
)

const publishTimeout = 10 * time.Second

// EventPublisher publishes one event.
type EventPublisher interface {
	Publish(ctx context.Context, ev download.Event) error
}

// Relay decouples the download manager from the broker. Handle never blocks;
// Run publishes buffered events one at a time. Progress events are not relayed.
type Relay struct {
	publisher EventPublisher
	logger    *zap.Logger
	events    chan download.Event
}

// NewRelay creates a Relay holding up to buffer pending events.
func NewRelay(publisher EventPublisher, buffer int, logger *zap.Logger) *Relay {
	if buffer < 1 {
		buffer = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Relay{
		publisher: publisher,
		logger:    logger,
		events:    make(chan download.Event, buffer),
	}
}

// Handle queues ev for publication. It drops the event when the buffer is full.
func (r *Relay) Handle(ev download.Event) {
	if ev.Kind == download.EventProgress {
		return
	}

	select {
	case r.events <- ev:
	default:
		r.logger.Warn("event buffer full, dropping download event",
			zap.String("kind", string(ev.Kind)),
			zap.String("clipId", ev.ClipID),
		)
	}
}

// Run publishes queued events until ctx is done.
func (r *Relay) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-r.events:
			r.publish(ctx, ev)
		}
	}
}

func (r *Relay) publish(ctx context.Context, ev download.Event) {
	pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	if err := r.publisher.Publish(pubCtx, ev); err != nil {
		r.logger.Error("failed to publish download event",
			zap.String("kind", string(ev.Kind)),
			zap.String("clipId", ev.ClipID),
			zap.Error(err),
		)
	}
}
