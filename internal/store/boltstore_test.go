package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/riverpatch/uistream/internal/domain/model"
	"github.com/stretchr/testify/require"
)

func newTestLog(t *testing.T) *BoltEventLog {
	t.Helper()
	path := filepath.Join(t.TempDir(), "events.db")
	log, err := NewBoltEventLog(path, 16)
	require.NoError(t, err)
	t.Cleanup(func() { _ = log.Close() })
	return log
}

func TestAppendAndReadFrom_OrderedAndFiltered(t *testing.T) {
	log := newTestLog(t)

	require.NoError(t, log.Append("s1", 0, model.NewSessionEvent("s1")))
	require.NoError(t, log.Append("s1", 1, model.NewPatchesEvent([]model.Patch{{Selector: "#root", Op: model.OpSetText, Text: "hi"}})))
	require.NoError(t, log.Append("s1", 2, model.NewDoneEvent("<div>hi</div>")))

	rows, err := log.ReadFrom("s1", -1)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	require.Equal(t, int64(0), rows[0].Offset)
	require.Equal(t, int64(1), rows[1].Offset)
	require.Equal(t, int64(2), rows[2].Offset)

	rows, err = log.ReadFrom("s1", 0)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, int64(1), rows[0].Offset)
}

func TestAppend_DuplicateOffsetFails(t *testing.T) {
	log := newTestLog(t)
	require.NoError(t, log.Append("s1", 0, model.NewSessionEvent("s1")))
	err := log.Append("s1", 0, model.NewSessionEvent("s1"))
	require.Error(t, err)
}

func TestGetLatestOffset_DefaultsToNegativeOne(t *testing.T) {
	log := newTestLog(t)
	offset, err := log.GetLatestOffset("missing")
	require.NoError(t, err)
	require.Equal(t, int64(-1), offset)

	require.NoError(t, log.Append("s1", 5, model.NewDoneEvent("x")))
	offset, err = log.GetLatestOffset("s1")
	require.NoError(t, err)
	require.Equal(t, int64(5), offset)
}

func TestGetLastFullEvent_PrefersMostRecentFullOrDone(t *testing.T) {
	log := newTestLog(t)
	require.NoError(t, log.Append("s1", 0, model.NewFullEvent("<div>v1</div>")))
	require.NoError(t, log.Append("s1", 1, model.NewPatchesEvent(nil)))
	require.NoError(t, log.Append("s1", 2, model.NewDoneEvent("<div>v2</div>")))

	row, err := log.GetLastFullEvent("s1")
	require.NoError(t, err)
	require.NotNil(t, row)
	require.Equal(t, int64(2), row.Offset)
	require.Equal(t, model.EventKindDone, row.Type)
}

func TestCleanup_RemovesOldRowsOnly(t *testing.T) {
	log := newTestLog(t)
	require.NoError(t, log.Append("s1", 0, model.NewSessionEvent("s1")))
	time.Sleep(5 * time.Millisecond)
	threshold := time.Now()
	time.Sleep(5 * time.Millisecond)
	require.NoError(t, log.Append("s1", 1, model.NewDoneEvent("x")))

	removed, err := log.Cleanup(threshold)
	require.NoError(t, err)
	require.Equal(t, 1, removed)

	rows, err := log.ReadFrom("s1", -1)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, int64(1), rows[0].Offset)
}
