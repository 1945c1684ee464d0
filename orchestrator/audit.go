package orchestrator

import (
	"sync"
	"time"

	"goscrow/logger"
	"goscrow/types"

	"github.com/google/uuid"
)

// AuditSink receives a copy of every audit entry, e.g. the redis mirror.
type AuditSink interface {
	PushAudit(entry types.AuditEntry) error
}

// Trail is a bounded, most-recent-first log of attempted write actions.
// It is advisory: nothing reads it back to make decisions.
type Trail struct {
	mu      sync.RWMutex
	cap     int
	entries []types.AuditEntry
	sink    AuditSink
}

func NewTrail(capacity int) *Trail {
	if capacity < 1 {
		capacity = 1
	}
	return &Trail{cap: capacity}
}

func (t *Trail) SetSink(sink AuditSink) {
	t.sink = sink
}

func (t *Trail) Record(entry types.AuditEntry) types.AuditEntry {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.At.IsZero() {
		entry.At = time.Now().UTC()
	}

	t.mu.Lock()
	n := len(t.entries) + 1
	if n > t.cap {
		n = t.cap
	}
	next := make([]types.AuditEntry, 0, n)
	next = append(next, entry)
	next = append(next, t.entries[:n-1]...)
	t.entries = next
	t.mu.Unlock()

	if t.sink != nil {
		if err := t.sink.PushAudit(entry); err != nil {
			logger.Logger.Warnf("Error mirroring audit entry: %s", err.Error())
		}
	}
	return entry
}

// Entries returns up to limit entries, newest first; limit <= 0 means all.
func (t *Trail) Entries(limit int) []types.AuditEntry {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if limit <= 0 || limit > len(t.entries) {
		limit = len(t.entries)
	}
	return append([]types.AuditEntry(nil), t.entries[:limit]...)
}

func (t *Trail) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}
