package model

// LogRow is the durable, on-disk representation of one EventWithOffset.
// Primary ordering is (SessionID, Offset); CreatedAtMillis serves the
// Event Log's age-based cleanup sweep.
type LogRow struct {
	SessionID       string
	Offset          int64
	Type            StreamEventKind
	Data            []byte // JSON-serialized StreamEvent
	CreatedAtMillis int64
}

// IsFullOrDone reports whether this row can reconstruct the session's
// current HTML on its own, per getLastFullEvent's contract.
func (r LogRow) IsFullOrDone() bool {
	return r.Type == EventKindFull || r.Type == EventKindDone
}
