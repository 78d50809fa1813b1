package eventbus_test

import (
	"context"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldline/slaflow/pkg/channels/gochannel"
	"github.com/fieldline/slaflow/pkg/eventbus"
	"github.com/fieldline/slaflow/pkg/events"
)

func TestWatermillEventBus_PublishSubscribe(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pub, sub, err := gochannel.CreateTestChannel(watermill.NopLogger{})
	require.NoError(t, err)

	bus := eventbus.NewWatermillEventBus(pub, sub)
	defer func() { _ = bus.Close() }()

	received := make(chan *events.ExecutionCompleted, 1)

	bus.Handle(events.ExecutionCompletedEvent, func(_ context.Context, event any) error {
		completed, ok := event.(*events.ExecutionCompleted)
		require.True(t, ok)
		received <- completed

		return nil
	})

	require.NoError(t, bus.Subscribe(ctx))

	event := events.ExecutionCompleted{
		BaseEvent: events.BaseEvent{
			ID:         bus.GenerateID(),
			Type:       events.ExecutionCompletedEvent,
			Timestamp:  time.Now().UTC(),
			TenantID:   "tn1",
			WorkflowID: "w1",
		},
		ExecutionID:     "e1",
		ExecutedActions: []string{"a1"},
	}

	require.NoError(t, bus.Publish(ctx, "w1", event))

	select {
	case completed := <-received:
		assert.Equal(t, "e1", completed.ExecutionID)
		assert.Equal(t, []string{"a1"}, completed.ExecutedActions)
		assert.Equal(t, "tn1", completed.TenantID)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestWatermillEventBus_UnhandledEventIsAcked(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pub, sub, err := gochannel.CreateTestChannel(watermill.NopLogger{})
	require.NoError(t, err)

	bus := eventbus.NewWatermillEventBus(pub, sub)
	defer func() { _ = bus.Close() }()

	require.NoError(t, bus.Subscribe(ctx))

	// No handler registered: publishing must not block or error.
	err = bus.Publish(ctx, "w1", events.ExecutionStarted{
		BaseEvent: events.BaseEvent{
			ID:         bus.GenerateID(),
			Type:       events.ExecutionStartedEvent,
			Timestamp:  time.Now().UTC(),
			TenantID:   "tn1",
			WorkflowID: "w1",
		},
		ExecutionID: "e1",
	})
	require.NoError(t, err)
}
