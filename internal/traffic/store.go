package traffic

import (
	"sort"
	"sync"

	"secdash/internal/model"
)

// Store is the traffic working set. Records are immutable facts from the
// analysis collaborator; the store only accumulates and snapshots them.
type Store struct {
	mu    sync.RWMutex
	seen  map[string]struct{}
	list  []model.TrafficRecord
	limit int
}

func NewStore(limit int) *Store {
	if limit <= 0 {
		limit = 10000
	}
	return &Store{
		seen:  make(map[string]struct{}),
		limit: limit,
	}
}

// Add inserts a record keeping the set ordered newest first. Duplicate ids
// and records beyond the retention limit are dropped.
func (s *Store) Add(record model.TrafficRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.seen[record.ID]; ok {
		return
	}
	pos := sort.Search(len(s.list), func(i int) bool {
		return s.list[i].Timestamp.Before(record.Timestamp)
	})
	s.list = append(s.list, model.TrafficRecord{})
	copy(s.list[pos+1:], s.list[pos:])
	s.list[pos] = record
	s.seen[record.ID] = struct{}{}
	if len(s.list) > s.limit {
		evicted := s.list[len(s.list)-1]
		delete(s.seen, evicted.ID)
		s.list = s.list[:len(s.list)-1]
	}
}

// List returns a snapshot of the working set, newest first.
func (s *Store) List() []model.TrafficRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.TrafficRecord, len(s.list))
	copy(out, s.list)
	return out
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.list)
}

func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seen = make(map[string]struct{})
	s.list = nil
}
