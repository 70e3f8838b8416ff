// Package model holds the data types shared by every layer of the stream
// service: sessions, actions, stream events, patches and the offset log row
// persisted by internal/store.
package model

// SessionID identifies a logical, long-lived conversation between a client
// and the generative service. It is opaque to this package; callers are
// free to use any stable string (a UUID, a slug, ...).
type SessionID string

func (s SessionID) String() string { return string(s) }
