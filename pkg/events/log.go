package events

import (
	"time"

	"github.com/google/uuid"
)

// Log is the in-memory notification log. Appends happen inside host calls,
// which serializes them; the log participates in host rollback so that a
// failed call leaves no notifications behind.
type Log struct {
	entries []Event
	nextSeq uint64

	now func() time.Time
}

// NewLog creates an empty notification log.
func NewLog() *Log {
	return &Log{nextSeq: 1, now: time.Now}
}

// Emit appends a notification to the log.
func (l *Log) Emit(kind Kind, payload any) {
	l.entries = append(l.entries, Event{
		Seq:       l.nextSeq,
		ID:        uuid.NewString(),
		Kind:      kind,
		Timestamp: l.now().UTC(),
		Payload:   payload,
	})
	l.nextSeq++
}

// All returns every event in append order.
func (l *Log) All() []Event {
	out := make([]Event, len(l.entries))
	copy(out, l.entries)
	return out
}

// Since returns events with Seq greater than the given sequence number, in
// append order. Indexers use it to resume from their last persisted position.
func (l *Log) Since(seq uint64) []Event {
	var out []Event
	for _, ev := range l.entries {
		if ev.Seq > seq {
			out = append(out, ev)
		}
	}
	return out
}

// Len returns the number of events in the log.
func (l *Log) Len() int {
	return len(l.entries)
}

type logSnapshot struct {
	length  int
	nextSeq uint64
}

// Snapshot captures the log position for host-level rollback. The log is
// append-only, so remembering the length is sufficient.
func (l *Log) Snapshot() any {
	return logSnapshot{length: len(l.entries), nextSeq: l.nextSeq}
}

// Restore truncates the log back to a previously captured position.
func (l *Log) Restore(v any) {
	snap := v.(logSnapshot)
	l.entries = l.entries[:snap.length]
	l.nextSeq = snap.nextSeq
}
