// Package store implements the durable Event Log: append-only persistence
// of offset-tagged stream events per session, with ordered range reads and
// latest-offset/last-full-event lookups, backed by an embedded bbolt
// database with a bucket-per-concern layout.
package store

import (
	"time"

	"github.com/riverpatch/uistream/internal/domain/model"
)

// EventLog is the durable log's storage contract.
type EventLog interface {
	// Append writes one row. After it returns nil, the row must be durably
	// readable by ReadFrom. Re-appending an existing (sessionID, offset)
	// key is a programmer error and must fail.
	Append(sessionID string, offset int64, ev model.StreamEvent) error

	// ReadFrom returns rows with offset > fromOffsetExclusive, ordered
	// ascending by offset.
	ReadFrom(sessionID string, fromOffsetExclusive int64) ([]model.LogRow, error)

	// GetLatestOffset returns the greatest stored offset for sessionID, or
	// -1 if none exists.
	GetLatestOffset(sessionID string) (int64, error)

	// GetLastFullEvent returns the most recent row whose event type is
	// Full or Done, used to reconstruct current HTML on restart. Returns
	// nil, nil if no such row exists.
	GetLastFullEvent(sessionID string) (*model.LogRow, error)

	// Cleanup removes rows older than olderThan, returning the count
	// removed. Safe to call concurrently with Append/ReadFrom.
	Cleanup(olderThan time.Time) (int, error)

	Close() error
}
