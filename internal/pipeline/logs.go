package pipeline

import (
	"sync"
	"time"

	"modelmarket/internal/domain"
)

// Accumulator is the append-only, insertion-ordered log of one run.
type Accumulator struct {
	mu      sync.RWMutex
	entries []domain.LogEntry
	now     func() time.Time
}

func NewAccumulator(now func() time.Time) *Accumulator {
	if now == nil {
		now = time.Now
	}
	return &Accumulator{now: now}
}

// Add timestamps and appends a message.
func (a *Accumulator) Add(typ domain.LogType, message string) domain.LogEntry {
	e := domain.LogEntry{Message: message, Type: typ, Timestamp: a.now()}
	a.mu.Lock()
	a.entries = append(a.entries, e)
	a.mu.Unlock()
	return e
}

// Entries returns a copy of all entries in insertion order.
func (a *Accumulator) Entries() []domain.LogEntry {
	return a.Since(0)
}

// Since returns a copy of the entries from offset on. Offsets past the end yield an empty slice.
func (a *Accumulator) Since(offset int) []domain.LogEntry {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if offset < 0 {
		offset = 0
	}
	if offset >= len(a.entries) {
		return []domain.LogEntry{}
	}
	out := make([]domain.LogEntry, len(a.entries)-offset)
	copy(out, a.entries[offset:])
	return out
}

func (a *Accumulator) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.entries)
}
