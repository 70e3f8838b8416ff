package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	bolt "go.etcd.io/bbolt"

	"github.com/riverpatch/uistream/internal/domain/model"
)

var (
	bucketEvents    = []byte("events")
	bucketMeta      = []byte("meta")       // sessionID -> big-endian latest offset
	bucketLastFull  = []byte("last_full")  // sessionID -> events-bucket key of the last Full/Done row
	bucketByCreated = []byte("by_created") // createdAtMillis||eventKey -> eventKey, for Cleanup
)

// storedRow is the on-disk envelope for one LogRow; it carries the raw
// JSON-serialized StreamEvent alongside the bookkeeping a LogRow requires.
type storedRow struct {
	SessionID       string              `json:"session_id"`
	Offset          int64               `json:"offset"`
	Type            model.StreamEventKind `json:"type"`
	Data            json.RawMessage     `json:"data"`
	CreatedAtMillis int64               `json:"created_at_millis"`
}

// BoltEventLog is the bbolt-backed EventLog implementation.
type BoltEventLog struct {
	db *bolt.DB

	// fullEventCache fast-paths GetLastFullEvent, which runs on every
	// Processor construction.
	fullEventCache *lru.Cache[string, model.LogRow]
}

var _ EventLog = (*BoltEventLog)(nil)

// NewBoltEventLog opens (creating if absent) a bbolt database at path and
// ensures the buckets this package needs exist.
func NewBoltEventLog(path string, cacheSize int) (*BoltEventLog, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("store: open bolt db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, b := range [][]byte{bucketEvents, bucketMeta, bucketLastFull, bucketByCreated} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("store: create bucket %s: %w", b, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	if cacheSize <= 0 {
		cacheSize = 1024
	}
	cache, err := lru.New[string, model.LogRow](cacheSize)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("store: create lru cache: %w", err)
	}

	return &BoltEventLog{db: db, fullEventCache: cache}, nil
}

func (s *BoltEventLog) Append(sessionID string, offset int64, ev model.StreamEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("store: marshal event: %w", err)
	}

	row := storedRow{
		SessionID:       sessionID,
		Offset:          offset,
		Type:            ev.Kind,
		Data:            data,
		CreatedAtMillis: time.Now().UnixMilli(),
	}
	rowBytes, err := json.Marshal(row)
	if err != nil {
		return fmt.Errorf("store: marshal row: %w", err)
	}

	eventKey := encodeEventKey(sessionID, offset)

	err = s.db.Update(func(tx *bolt.Tx) error {
		events := tx.Bucket(bucketEvents)
		if events.Get(eventKey) != nil {
			return fmt.Errorf("store: offset %d already recorded for session %s", offset, sessionID)
		}
		if err := events.Put(eventKey, rowBytes); err != nil {
			return err
		}

		meta := tx.Bucket(bucketMeta)
		if err := meta.Put([]byte(sessionID), encodeOffset(offset)); err != nil {
			return err
		}

		if ev.Kind == model.EventKindFull || ev.Kind == model.EventKindDone {
			if err := tx.Bucket(bucketLastFull).Put([]byte(sessionID), eventKey); err != nil {
				return err
			}
		}

		return tx.Bucket(bucketByCreated).Put(encodeCreatedKey(row.CreatedAtMillis, eventKey), eventKey)
	})
	if err != nil {
		return &model.StorePersistError{SessionID: sessionID, Offset: offset, Cause: err}
	}

	if ev.Kind == model.EventKindFull || ev.Kind == model.EventKindDone {
		s.fullEventCache.Add(sessionID, logRowFromStored(row))
	}

	return nil
}

func (s *BoltEventLog) ReadFrom(sessionID string, fromOffsetExclusive int64) ([]model.LogRow, error) {
	prefix := sessionPrefix(sessionID)
	start := encodeEventKey(sessionID, fromOffsetExclusive+1)

	var rows []model.LogRow
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketEvents).Cursor()
		for k, v := c.Seek(start); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			var sr storedRow
			if err := json.Unmarshal(v, &sr); err != nil {
				return fmt.Errorf("store: decode row at %x: %w", k, err)
			}
			rows = append(rows, logRowFromStored(sr))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *BoltEventLog) GetLatestOffset(sessionID string) (int64, error) {
	var offset int64 = -1
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketMeta).Get([]byte(sessionID))
		if v == nil {
			return nil
		}
		offset = decodeOffset(v)
		return nil
	})
	return offset, err
}

func (s *BoltEventLog) GetLastFullEvent(sessionID string) (*model.LogRow, error) {
	if row, ok := s.fullEventCache.Get(sessionID); ok {
		r := row
		return &r, nil
	}

	var found *model.LogRow
	err := s.db.View(func(tx *bolt.Tx) error {
		key := tx.Bucket(bucketLastFull).Get([]byte(sessionID))
		if key == nil {
			return nil
		}
		v := tx.Bucket(bucketEvents).Get(key)
		if v == nil {
			return nil
		}
		var sr storedRow
		if err := json.Unmarshal(v, &sr); err != nil {
			return fmt.Errorf("store: decode last full row: %w", err)
		}
		row := logRowFromStored(sr)
		found = &row
		return nil
	})
	if err != nil {
		return nil, err
	}
	if found != nil {
		s.fullEventCache.Add(sessionID, *found)
	}
	return found, nil
}

func (s *BoltEventLog) Cleanup(olderThan time.Time) (int, error) {
	threshold := olderThan.UnixMilli()
	removed := 0

	err := s.db.Update(func(tx *bolt.Tx) error {
		byCreated := tx.Bucket(bucketByCreated)
		events := tx.Bucket(bucketEvents)
		c := byCreated.Cursor()

		var toDelete [][]byte
		for k, v := c.First(); k != nil; k, v = c.Next() {
			if decodeCreatedKeyMillis(k) >= threshold {
				break // keys are ordered ascending by createdAt; nothing older remains
			}
			toDelete = append(toDelete, append([]byte(nil), k...))
			_ = v
		}

		for _, k := range toDelete {
			eventKey := k[8:]
			if err := events.Delete(eventKey); err != nil {
				return err
			}
			if err := byCreated.Delete(k); err != nil {
				return err
			}
			removed++
		}
		return nil
	})

	return removed, err
}

func (s *BoltEventLog) Close() error {
	return s.db.Close()
}

func logRowFromStored(sr storedRow) model.LogRow {
	return model.LogRow{
		SessionID:       sr.SessionID,
		Offset:          sr.Offset,
		Type:            sr.Type,
		Data:            sr.Data,
		CreatedAtMillis: sr.CreatedAtMillis,
	}
}
