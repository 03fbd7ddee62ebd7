package core

import (
	"sync"
)

// Selection holds the set of task ids the operator has marked for a targeted
// send. It is independent of the task list: ids stay selected across refreshes
// even when their status changes, and ids that dropped out of the latest list
// remain in the set without effect until they reappear.
type Selection struct {
	mu  sync.Mutex
	ids map[int64]struct{}
}

func NewSelection() *Selection {
	return &Selection{ids: make(map[int64]struct{})}
}

// Toggle flips membership for id. Applying it twice restores the set.
func (s *Selection) Toggle(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.ids[id]; ok {
		delete(s.ids, id)
	} else {
		s.ids[id] = struct{}{}
	}
}

func (s *Selection) Has(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.ids[id]
	return ok
}

func (s *Selection) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ids)
}

// IDs returns a snapshot of the current selection. Iteration order is
// arbitrary and not stable across calls.
func (s *Selection) IDs() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]int64, 0, len(s.ids))
	for id := range s.ids {
		ids = append(ids, id)
	}
	return ids
}

// Clear empties the set. Called only after a successful send-selected.
func (s *Selection) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ids = make(map[int64]struct{})
}
