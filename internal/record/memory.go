package record

import (
	"sync"
	"time"
)

// Memory is a record that is never persisted.
type Memory struct {
	mu     sync.RWMutex
	stamps map[string]time.Time
}

func NewMemory() *Memory {
	return &Memory{stamps: map[string]time.Time{}}
}

func (m *Memory) Lookup(path string) (time.Time, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.stamps[path]
	return t, ok
}

func (m *Memory) Set(path string, t time.Time) error {
	m.mu.Lock()
	m.stamps[path] = t
	m.mu.Unlock()
	return nil
}
