package composer

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/riverpatch/uistream/internal/domain/model"
	"github.com/riverpatch/uistream/internal/generator"
	"github.com/riverpatch/uistream/internal/registry"
	"github.com/riverpatch/uistream/internal/store"
)

func newTestLog(t *testing.T) store.EventLog {
	t.Helper()
	log, err := store.NewBoltEventLog(filepath.Join(t.TempDir(), "events.db"), 16)
	require.NoError(t, err)
	t.Cleanup(func() { _ = log.Close() })
	return log
}

func drain(t *testing.T, ch <-chan *model.EventWithOffset, n int) []*model.EventWithOffset {
	t.Helper()
	var out []*model.EventWithOffset
	for i := 0; i < n; i++ {
		select {
		case ev, ok := <-ch:
			if !ok {
				t.Fatalf("channel closed after %d/%d events", len(out), n)
			}
			out = append(out, ev)
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out after %d/%d events", len(out), n)
		}
	}
	return out
}

func TestSubscribe_FromBeginning_ReplaysThenFollowsLive(t *testing.T) {
	log := newTestLog(t)
	reg := registry.New(log, generator.NewMockGenerator())
	defer reg.Shutdown()
	c := New(reg, log)

	// Seed two durable rows before any subscriber attaches.
	require.NoError(t, log.Append("s", 0, model.NewFullEvent("<div id=\"root\"></div>")))
	require.NoError(t, log.Append("s", 1, model.NewDoneEvent("<div id=\"root\"></div>")))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sub, err := c.Subscribe(ctx, "s", -1)
	require.NoError(t, err)
	defer sub.Close()

	replayed := drain(t, sub.Events, 2)
	require.Equal(t, int64(0), replayed[0].GetOffset())
	require.Equal(t, int64(1), replayed[1].GetOffset())

	// A live event published after subscribe must arrive on the same
	// stream, never duplicated against the replay.
	proc, err := reg.GetOrCreate("s")
	require.NoError(t, err)
	require.True(t, proc.Enqueue(model.NewPrompt("go", "", nil)))

	// The mock generator has no script, so the processor emits an empty
	// stream's stats+done pair at offsets 2,3.
	live := drain(t, sub.Events, 2)
	require.Equal(t, int64(2), live[0].GetOffset())
	require.Equal(t, int64(3), live[1].GetOffset())
}

func TestSubscribe_FromMidpoint_SkipsAlreadySeenOffsets(t *testing.T) {
	log := newTestLog(t)
	reg := registry.New(log, generator.NewMockGenerator())
	defer reg.Shutdown()
	c := New(reg, log)

	for i := int64(0); i < 3; i++ {
		require.NoError(t, log.Append("s", i, model.NewDoneEvent("seed")))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sub, err := c.Subscribe(ctx, "s", 1)
	require.NoError(t, err)
	defer sub.Close()

	replayed := drain(t, sub.Events, 1)
	require.Equal(t, int64(2), replayed[0].GetOffset())
}

func TestSubscribe_CancelledContext_ClosesEventsChannel(t *testing.T) {
	log := newTestLog(t)
	reg := registry.New(log, generator.NewMockGenerator())
	defer reg.Shutdown()
	c := New(reg, log)

	ctx, cancel := context.WithCancel(context.Background())

	sub, err := c.Subscribe(ctx, "s", -1)
	require.NoError(t, err)
	defer sub.Close()

	cancel()

	select {
	case _, ok := <-sub.Events:
		require.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("expected channel to close after context cancellation")
	}
}
