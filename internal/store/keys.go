package store

import "encoding/binary"

// Keys in the events bucket are sessionID + 0x00 + big-endian uint64(offset)
// so that a cursor seeking the session's prefix walks rows in ascending
// offset order, mirroring cuemby-warren's prefix-scan idiom but keyed for
// ordered range reads instead of plain id lookup.
const keySeparator = 0x00

func encodeEventKey(sessionID string, offset int64) []byte {
	key := make([]byte, 0, len(sessionID)+1+8)
	key = append(key, sessionID...)
	key = append(key, keySeparator)
	var offsetBuf [8]byte
	binary.BigEndian.PutUint64(offsetBuf[:], uint64(offset))
	return append(key, offsetBuf[:]...)
}

func sessionPrefix(sessionID string) []byte {
	key := make([]byte, 0, len(sessionID)+1)
	key = append(key, sessionID...)
	return append(key, keySeparator)
}

func encodeCreatedKey(createdAtMillis int64, eventKey []byte) []byte {
	key := make([]byte, 0, 8+len(eventKey))
	var millisBuf [8]byte
	binary.BigEndian.PutUint64(millisBuf[:], uint64(createdAtMillis))
	key = append(key, millisBuf[:]...)
	return append(key, eventKey...)
}

func decodeCreatedKeyMillis(k []byte) int64 {
	if len(k) < 8 {
		return 0
	}
	return int64(binary.BigEndian.Uint64(k[:8]))
}

func encodeOffset(offset int64) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(offset))
	return buf[:]
}

func decodeOffset(b []byte) int64 {
	return int64(binary.BigEndian.Uint64(b))
}
