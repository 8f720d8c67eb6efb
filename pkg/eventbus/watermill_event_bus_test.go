package eventbus

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ccxxllhl2/ai-workflow/pkg/events"
)

func TestGoChannelEventBus_PublishAndHandle(t *testing.T) {
	bus := NewGoChannelEventBus()

	defer func() {
		_ = bus.Close()
	}()

	received := make(chan any, 1)

	err := bus.Handle(events.ExecutionCompletedEvent, func(_ context.Context, event any) error {
		received <- event

		return nil
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, bus.Subscribe(ctx))

	event := events.ExecutionCompleted{
		BaseEvent: events.NewBaseEvent(events.ExecutionCompletedEvent, "wf-1", "exec-1"),
	}
	require.NoError(t, bus.Publish(ctx, "exec-1", event))

	select {
	case got := <-received:
		completed, ok := got.(*events.ExecutionCompleted)
		require.True(t, ok)
		assert.Equal(t, "exec-1", completed.ExecutionID)
		assert.Equal(t, "wf-1", completed.WorkflowID)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestGoChannelEventBus_UnhandledEventIsAcked(t *testing.T) {
	bus := NewGoChannelEventBus()

	defer func() {
		_ = bus.Close()
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, bus.Subscribe(ctx))

	event := events.ExecutionStarted{
		BaseEvent: events.NewBaseEvent(events.ExecutionStartedEvent, "wf-1", "exec-1"),
	}
	assert.NoError(t, bus.Publish(ctx, "exec-1", event))
}

func TestGenerateID(t *testing.T) {
	bus := NewGoChannelEventBus()

	defer func() {
		_ = bus.Close()
	}()

	assert.NotEmpty(t, bus.GenerateID())
	assert.NotEqual(t, bus.GenerateID(), bus.GenerateID())
}
