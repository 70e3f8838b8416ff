package service

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/riverpatch/uistream/internal/composer"
	"github.com/riverpatch/uistream/internal/domain/model"
	"github.com/riverpatch/uistream/internal/generator"
	"github.com/riverpatch/uistream/internal/registry"
	"github.com/riverpatch/uistream/internal/store"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestLog(t *testing.T) store.EventLog {
	t.Helper()
	log, err := store.NewBoltEventLog(filepath.Join(t.TempDir(), "events.db"), 16)
	require.NoError(t, err)
	t.Cleanup(func() { _ = log.Close() })
	return log
}

func TestDeliveryService_SubmitThenSubscribe_SeesEmittedEvents(t *testing.T) {
	log := newTestLog(t)
	reg := registry.New(log, generator.NewMockGenerator())
	defer reg.Shutdown()
	comp := composer.New(reg, log)
	svc := NewDeliveryService(comp, reg)

	require.NoError(t, svc.Submit("s", model.NewPrompt("hi", "", nil)))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sub, err := svc.Subscribe(ctx, "s", -1)
	require.NoError(t, err)
	defer sub.Close()

	select {
	case ev, ok := <-sub.Events:
		require.True(t, ok)
		require.Equal(t, int64(0), ev.GetOffset())
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for an event")
	}
}

func TestDelivererMiddleware_PassesThroughSuccessfulResults(t *testing.T) {
	log := newTestLog(t)
	reg := registry.New(log, generator.NewMockGenerator())
	defer reg.Shutdown()
	comp := composer.New(reg, log)

	wrapped := &delivererMiddleware{next: NewDeliveryService(comp, reg), logger: testLogger()}

	require.NoError(t, wrapped.Submit("s", model.NewPrompt("hi", "", nil)))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sub, err := wrapped.Subscribe(ctx, "s", -1)
	require.NoError(t, err)
	defer sub.Close()
}
