package events

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/clipdeck/kick-clips-go/internal/download"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap/zaptest"
)

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(ctx context.Context, ev download.Event) error {
	return m.Called(ev.Kind, ev.ClipID).Error(0)
}

func TestRoutingKey(t *testing.T) {
	assert.Equal(t, "download.completed", RoutingKey(download.EventCompleted))
	assert.Equal(t, "download.removed", RoutingKey(download.EventRemoved))
}

func TestRelay_PublishesNonProgressEvents(t *testing.T) {
	published := make(chan struct{}, 2)
	signal := func(mock.Arguments) { published <- struct{}{} }

	pub := new(mockPublisher)
	pub.On("Publish", download.EventQueued, "1").Return(nil).Run(signal).Once()
	pub.On("Publish", download.EventCompleted, "1").Return(errors.New("broker down")).Run(signal).Once()

	relay := NewRelay(pub, 8, zaptest.NewLogger(t))
	relay.Handle(download.Event{ID: uuid.New(), Kind: download.EventQueued, ClipID: "1"})
	relay.Handle(download.Event{ID: uuid.New(), Kind: download.EventProgress, ClipID: "1"})
	relay.Handle(download.Event{ID: uuid.New(), Kind: download.EventCompleted, ClipID: "1"})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		relay.Run(ctx)
		close(done)
	}()

	for i := 0; i < 2; i++ {
		select {
		case <-published:
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for publish")
		}
	}

	cancel()
	<-done
	pub.AssertExpectations(t)
}

func TestRelay_DropsWhenFull(t *testing.T) {
	pub := new(mockPublisher)
	relay := NewRelay(pub, 1, zaptest.NewLogger(t))

	relay.Handle(download.Event{Kind: download.EventQueued, ClipID: "1"})
	relay.Handle(download.Event{Kind: download.EventQueued, ClipID: "2"})

	assert.Len(t, relay.events, 1)
	ev := <-relay.events
	assert.Equal(t, "1", ev.ClipID)
}
