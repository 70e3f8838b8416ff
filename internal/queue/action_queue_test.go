package queue

import (
	"context"
	"testing"
	"time"

	"github.com/riverpatch/uistream/internal/domain/model"
	"github.com/stretchr/testify/require"
)

func TestTakeBatch_CoalescesBufferedActions(t *testing.T) {
	q := NewActionQueue()

	require.True(t, q.Offer(model.NewPrompt("add a header", "", nil)))
	require.True(t, q.Offer(model.NewUiAction("increment", nil, "")))
	require.True(t, q.Offer(model.NewPrompt("make it blue", "", nil)))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	batch, ok := q.TakeBatch(ctx, 10)
	require.True(t, ok)
	require.Len(t, batch, 3)
	require.Equal(t, "add a header", batch[0].Text)
	require.Equal(t, "increment", batch[1].Name)
	require.Equal(t, "make it blue", batch[2].Text)
}

func TestTakeBatch_RespectsMax(t *testing.T) {
	q := NewActionQueue()
	for i := 0; i < 5; i++ {
		require.True(t, q.Offer(model.NewUiAction("tick", nil, "")))
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	batch, ok := q.TakeBatch(ctx, 2)
	require.True(t, ok)
	require.Len(t, batch, 2)
}

func TestTakeBatch_BlocksUntilAvailable(t *testing.T) {
	q := NewActionQueue()

	done := make(chan struct{})
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		batch, ok := q.TakeBatch(ctx, 10)
		require.True(t, ok)
		require.Len(t, batch, 1)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	require.True(t, q.Offer(model.NewPrompt("hi", "", nil)))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("TakeBatch did not unblock")
	}
}

func TestTakeBatch_ClosedQueueReturnsFalse(t *testing.T) {
	q := NewActionQueue()
	q.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, ok := q.TakeBatch(ctx, 10)
	require.False(t, ok)
}

func TestTakeBatch_ContextCancelled(t *testing.T) {
	q := NewActionQueue()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, ok := q.TakeBatch(ctx, 10)
	require.False(t, ok)
}
