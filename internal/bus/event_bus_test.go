package bus

import (
	"testing"
	"time"

	"github.com/riverpatch/uistream/internal/domain/model"
	"github.com/stretchr/testify/require"
)

func TestPublish_OrderPreservedPerSubscriber(t *testing.T) {
	b := NewEventBus(8)
	sub := b.Subscribe()

	for i := int64(0); i < 5; i++ {
		b.Publish(model.NewEventWithOffset(model.NewDoneEvent("x"), i))
	}

	for i := int64(0); i < 5; i++ {
		select {
		case ev := <-sub.Events():
			require.Equal(t, i, ev.GetOffset())
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for event")
		}
	}
}

func TestPublish_DropsSlowSubscriberInsteadOfBlocking(t *testing.T) {
	b := NewEventBus(1)
	sub := b.Subscribe()

	// Fill the buffer.
	b.Publish(model.NewEventWithOffset(model.NewDoneEvent("x"), 0))
	// This publish must not block even though sub never reads.
	done := make(chan struct{})
	go func() {
		b.Publish(model.NewEventWithOffset(model.NewDoneEvent("y"), 1))
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a slow subscriber")
	}

	// The dropped subscriber observes end-of-stream.
	<-sub.Events()
	_, ok := <-sub.Events()
	require.False(t, ok)
}

func TestClose_AllSubscribersObserveEndOfStream(t *testing.T) {
	b := NewEventBus(8)
	s1 := b.Subscribe()
	s2 := b.Subscribe()

	b.Close()

	_, ok := <-s1.Events()
	require.False(t, ok)
	_, ok = <-s2.Events()
	require.False(t, ok)

	// Subscribing after close yields an immediately-closed channel.
	s3 := b.Subscribe()
	_, ok = <-s3.Events()
	require.False(t, ok)
}

func TestUnsubscribe_RemovesFromBroadcast(t *testing.T) {
	b := NewEventBus(8)
	sub := b.Subscribe()
	b.Unsubscribe(sub.ID())

	b.Publish(model.NewEventWithOffset(model.NewDoneEvent("x"), 0))

	_, ok := <-sub.Events()
	require.False(t, ok)
	require.Equal(t, 0, b.SubscriberCount())
}
