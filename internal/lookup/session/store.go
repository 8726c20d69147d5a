package session

import (
	"sync"
	"time"

	"asset-lookup-bot/internal/common/metrics"
)

// Store is the process-wide operator → state table. Reads and writes hold the lock only
// for the map access, so turns for different operators never wait on each other.
// Concurrent turns for one operator resolve as last write wins.
type Store struct {
	mu      sync.RWMutex
	entries map[int64]State
	now     func() time.Time
}

func NewStore() *Store {
	return &Store{
		entries: make(map[int64]State),
		now:     time.Now,
	}
}

// Get returns the operator's state, or Initial when none exists.
func (s *Store) Get(operatorID int64) State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if st, ok := s.entries[operatorID]; ok {
		return st
	}
	return Initial()
}

// Exists reports whether the operator has a stored entry.
func (s *Store) Exists(operatorID int64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.entries[operatorID]
	return ok
}

func (s *Store) Put(operatorID int64, st State) {
	st.UpdatedAt = s.now()
	s.mu.Lock()
	s.entries[operatorID] = st
	n := len(s.entries)
	s.mu.Unlock()
	metrics.ActiveSessions.Set(float64(n))
}

func (s *Store) Delete(operatorID int64) {
	s.mu.Lock()
	delete(s.entries, operatorID)
	n := len(s.entries)
	s.mu.Unlock()
	metrics.ActiveSessions.Set(float64(n))
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
