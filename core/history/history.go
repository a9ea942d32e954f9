// Package history records executed statements for later inspection.
package history

import (
	"context"
	"sync"
	"time"
)

// Entry is one executed statement, successful or not.
type Entry struct {
	ConnectionID   string    `json:"connection_id"`
	ConnectionName string    `json:"connection_name"`
	SQL            string    `json:"sql"`
	Success        bool      `json:"success"`
	Error          string    `json:"error,omitempty"`
	RowsAffected   *int64    `json:"rows_affected,omitempty"`
	ExecutedAt     time.Time `json:"executed_at"`
}

// Sink receives entries as statements finish.
type Sink interface {
	Record(ctx context.Context, entry Entry) error
}

// Memory keeps the most recent entries in a bounded in-process buffer.
type Memory struct {
	mu      sync.Mutex
	entries []Entry
	limit   int
}

// NewMemory creates a buffer holding at most limit entries; older entries are
// discarded as new ones arrive. A limit of zero or less disables the cap.
func NewMemory(limit int) *Memory {
	return &Memory{limit: limit}
}

func (m *Memory) Record(ctx context.Context, entry Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entry)
	if m.limit > 0 && len(m.entries) > m.limit {
		m.entries = m.entries[len(m.entries)-m.limit:]
	}
	return nil
}

// List returns the recorded entries, newest first.
func (m *Memory) List() []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Entry, len(m.entries))
	for i, e := range m.entries {
		out[len(m.entries)-1-i] = e
	}
	return out
}
