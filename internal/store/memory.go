package store

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore keeps logs in process memory
type MemoryStore struct {
	mu     sync.RWMutex
	logs   []MetricLog
	nextID int64
	closed bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{nextID: 1}
}

func (s *MemoryStore) SaveBatch(_ context.Context, logs []MetricLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	for _, l := range logs {
		l.ID = s.nextID
		l.Timestamp = l.Timestamp.UTC()
		s.nextID++
		s.logs = append(s.logs, l)
	}
	return nil
}

func (s *MemoryStore) Recent(_ context.Context, limit int) ([]MetricLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}

	sorted := make([]MetricLog, len(s.logs))
	copy(sorted, s.logs)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Timestamp.Equal(sorted[j].Timestamp) {
			return sorted[i].ID < sorted[j].ID
		}
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	limit = normalizeLimit(limit)
	if len(sorted) > limit {
		sorted = sorted[len(sorted)-limit:]
	}
	return sorted, nil
}

func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

var _ Store = (*MemoryStore)(nil)
