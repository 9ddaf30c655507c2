package badger

import (
	"encoding/binary"
	"time"
)

// Key prefixes for different data types
const (
	vectorRowPrefix = "vecrow:"
	vectorDimKey    = "vecmeta:dim"
	jobPrefix       = "job:"
	jobStartPrefix  = "jobts:"
)

// makeVectorRowKey generates a key for an index row by arena position.
// Format: prefix + position (BigEndian, so keys sort by position)
func makeVectorRowKey(position uint64) []byte {
	buf := make([]byte, len(vectorRowPrefix)+8)
	offset := copy(buf, vectorRowPrefix)
	binary.BigEndian.PutUint64(buf[offset:], position)
	return buf
}

// makeJobKey generates a key for a job by ID.
func makeJobKey(id string) []byte {
	return []byte(jobPrefix + id)
}

// makeJobStartKey generates a composite key for the start-time index.
// Format: prefix + startedAt (BigEndian micros) + id
func makeJobStartKey(startedAt time.Time, id string) []byte {
	buf := make([]byte, len(jobStartPrefix)+8+len(id))
	offset := copy(buf, jobStartPrefix)
	binary.BigEndian.PutUint64(buf[offset:], uint64(startedAt.UnixMicro()))
	offset += 8
	copy(buf[offset:], id)
	return buf
}
