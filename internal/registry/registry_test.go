package registry

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/riverpatch/uistream/internal/generator"
	"github.com/riverpatch/uistream/internal/store"
)

func newTestLog(t *testing.T) store.EventLog {
	t.Helper()
	log, err := store.NewBoltEventLog(filepath.Join(t.TempDir(), "events.db"), 16)
	require.NoError(t, err)
	t.Cleanup(func() { _ = log.Close() })
	return log
}

func TestGetOrCreate_ReturnsSameProcessorForSameSession(t *testing.T) {
	r := New(newTestLog(t), generator.NewMockGenerator())
	defer r.Shutdown()

	p1, err := r.GetOrCreate("s")
	require.NoError(t, err)
	p2, err := r.GetOrCreate("s")
	require.NoError(t, err)
	require.Same(t, p1, p2)
}

func TestGetOrCreate_DistinctSessionsGetDistinctProcessors(t *testing.T) {
	r := New(newTestLog(t), generator.NewMockGenerator())
	defer r.Shutdown()

	p1, err := r.GetOrCreate("a")
	require.NoError(t, err)
	p2, err := r.GetOrCreate("b")
	require.NoError(t, err)
	require.NotSame(t, p1, p2)
}

func TestLookup_MissingSessionReturnsFalse(t *testing.T) {
	r := New(newTestLog(t), generator.NewMockGenerator())
	defer r.Shutdown()

	_, ok := r.Lookup("nope")
	require.False(t, ok)
}

func TestPerformEviction_ReapsOnlyIdleProcessorsWithNoSubscribers(t *testing.T) {
	r := New(newTestLog(t), generator.NewMockGenerator(), WithIdleTTL(0))
	defer r.Shutdown()

	idle, err := r.GetOrCreate("idle")
	require.NoError(t, err)

	active, err := r.GetOrCreate("active")
	require.NoError(t, err)
	sub := active.Subscribe()
	defer active.Unsubscribe(sub.ID())

	r.performEviction(context.Background())

	_, idleStillThere := r.Lookup("idle")
	require.False(t, idleStillThere)

	_, activeStillThere := r.Lookup("active")
	require.True(t, activeStillThere)

	// The reaped processor's bus must be closed: a subscribe made after
	// eviction observes end-of-stream immediately.
	reapedSub := idle.Subscribe()
	select {
	case _, open := <-reapedSub.Events():
		require.False(t, open)
	case <-time.After(time.Second):
		t.Fatal("expected immediate end-of-stream on a post-eviction subscribe")
	}
}

func TestSnapshot_ReportsOneEntryPerLiveSession(t *testing.T) {
	r := New(newTestLog(t), generator.NewMockGenerator())
	defer r.Shutdown()

	_, err := r.GetOrCreate("a")
	require.NoError(t, err)
	_, err = r.GetOrCreate("b")
	require.NoError(t, err)

	snap := r.Snapshot()
	require.Len(t, snap, 2)
}
