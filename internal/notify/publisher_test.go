package notify

import (
	"context"
	"testing"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"trpc.group/trpc-go/trpc-a2a-go/protocol"

	"github.com/agentcore-dev/agentcore/go/internal/models"
)

func TestPublishReachesSubscribers(t *testing.T) {
	notifier := NewChannelNotifier(logr.Discard())
	first := notifier.Subscribe("s1")
	second := notifier.Subscribe("s1")
	other := notifier.Subscribe("s2")

	notifier.PublishCompletion(context.Background(), models.CompletionEvent{
		SessionID: "s1", TurnID: "t1", Success: true,
	})

	event := <-first
	assert.Equal(t, "t1", event.TurnID)
	event = <-second
	assert.True(t, event.Success)

	select {
	case <-other:
		t.Fatal("event leaked to another session's subscriber")
	default:
	}
}

func TestPublishWithoutSubscribersIsNoOp(t *testing.T) {
	notifier := NewChannelNotifier(logr.Discard())
	notifier.PublishCompletion(context.Background(), models.CompletionEvent{SessionID: "s1"})
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	notifier := NewChannelNotifier(logr.Discard())
	ch := notifier.Subscribe("s1")
	notifier.Unsubscribe("s1", ch)

	_, open := <-ch
	require.False(t, open)

	// publishing after unsubscribe must not panic
	notifier.PublishCompletion(context.Background(), models.CompletionEvent{SessionID: "s1"})
}

func TestSlowSubscriberIsSkipped(t *testing.T) {
	notifier := NewChannelNotifier(logr.Discard())
	ch := notifier.Subscribe("s1")

	for i := 0; i < 32; i++ {
		notifier.PublishCompletion(context.Background(), models.CompletionEvent{
			SessionID: "s1", TurnID: "t1",
		})
	}
	// buffered capacity only; the rest were dropped, nothing blocked
	assert.Equal(t, 16, len(ch))
}

func TestTaskStateMapping(t *testing.T) {
	assert.Equal(t, protocol.TaskStateWorking, TaskStateFor(models.StatusProcessing))
	assert.Equal(t, protocol.TaskStateWorking, TaskStateFor(models.StatusAwaitingAction))
	assert.Equal(t, protocol.TaskStateInputRequired, TaskStateFor(models.StatusAwaitingUserConfirmation))
	assert.Equal(t, protocol.TaskStateFailed, TaskStateFor(models.StatusFailed))
	assert.Equal(t, protocol.TaskStateCompleted, TaskStateFor(models.StatusIdle))
}
