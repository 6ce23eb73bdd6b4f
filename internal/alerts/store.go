package alerts

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"secdash/internal/model"
)

var (
	ErrNotFound        = errors.New("alert not found")
	ErrAlreadyResolved = errors.New("alert already resolved")
)

// Persister records resolutions durably when snapshot storage is configured.
type Persister interface {
	SaveAlert(ctx context.Context, alert model.Alert) error
}

// Store is the alert working set. Records arrive from the detection
// collaborator and are never deleted; Resolve is the only mutator.
type Store struct {
	mu      sync.RWMutex
	byID    map[string]int
	list    []model.Alert
	persist Persister
	now     func() time.Time
}

func NewStore(persist Persister) *Store {
	return &Store{
		byID:    make(map[string]int),
		persist: persist,
		now:     time.Now,
	}
}

// Add inserts or replaces an alert, keeping the working set ordered newest
// first so unfiltered queries preserve descending recency.
func (s *Store) Add(alert model.Alert) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if idx, ok := s.byID[alert.ID]; ok {
		s.list[idx] = alert
		return
	}
	pos := sort.Search(len(s.list), func(i int) bool {
		return s.list[i].CreatedAt.Before(alert.CreatedAt)
	})
	s.list = append(s.list, model.Alert{})
	copy(s.list[pos+1:], s.list[pos:])
	s.list[pos] = alert
	for id, idx := range s.byID {
		if idx >= pos {
			s.byID[id] = idx + 1
		}
	}
	s.byID[alert.ID] = pos
}

// List returns a snapshot of the working set, newest first.
func (s *Store) List() []model.Alert {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Alert, len(s.list))
	copy(out, s.list)
	return out
}

func (s *Store) Get(id string) (model.Alert, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx, ok := s.byID[id]
	if !ok {
		return model.Alert{}, false
	}
	return s.list[idx], true
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.list)
}

// Resolve marks an alert resolved. A second resolve of the same alert fails
// with ErrAlreadyResolved and leaves the alert untouched; there is no
// unresolve. When persistence fails the working set is left unchanged.
func (s *Store) Resolve(ctx context.Context, id, resolvedBy, notes string) (model.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx, ok := s.byID[id]
	if !ok {
		return model.Alert{}, ErrNotFound
	}
	if s.list[idx].IsResolved {
		return model.Alert{}, ErrAlreadyResolved
	}
	updated := s.list[idx]
	resolvedAt := s.now().UTC()
	updated.IsResolved = true
	updated.ResolvedAt = &resolvedAt
	updated.ResolvedBy = resolvedBy
	updated.ResolutionNotes = strings.TrimSpace(notes)
	if s.persist != nil {
		if err := s.persist.SaveAlert(ctx, updated); err != nil {
			return model.Alert{}, err
		}
	}
	s.list[idx] = updated
	return updated, nil
}

func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID = make(map[string]int)
	s.list = nil
}
