// Package memstore is a key-by-id record store held in process memory. It
// backs the memory storage driver and the repository tests.
package memstore

import (
	"sort"
	"sync"
)

// Store keeps records of type T keyed by an auto-incremented int64 id.
// Records are stored and returned by value; callers never share memory with
// the store.
type Store[T any] struct {
	mu     sync.RWMutex
	nextID int64
	items  map[int64]T
	setID  func(*T, int64)
	clone  func(T) T
}

// New builds a Store. setID stamps the assigned id on inserted records. clone
// deep-copies records that hold slices or maps; nil means plain value copy.
func New[T any](setID func(*T, int64), clone func(T) T) *Store[T] {
	if clone == nil {
		clone = func(v T) T { return v }
	}
	return &Store[T]{nextID: 1, items: make(map[int64]T), setID: setID, clone: clone}
}

// Get returns the record with id.
func (s *Store[T]) Get(id int64) (T, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.items[id]
	if !ok {
		var zero T
		return zero, false
	}
	return s.clone(v), true
}

// Insert assigns the next id to v and stores it.
func (s *Store[T]) Insert(v T) T {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.setID(&v, id)
	s.items[id] = s.clone(v)
	return v
}

// Replace overwrites the record with id. It reports false when id is unknown.
func (s *Store[T]) Replace(id int64, v T) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[id]; !ok {
		return false
	}
	s.setID(&v, id)
	s.items[id] = s.clone(v)
	return true
}

// Delete removes the record with id. It reports false when id is unknown.
func (s *Store[T]) Delete(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[id]; !ok {
		return false
	}
	delete(s.items, id)
	return true
}

// List returns every record accepted by keep, ordered by id. A nil keep
// returns everything.
func (s *Store[T]) List(keep func(T) bool) []T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]int64, 0, len(s.items))
	for id, v := range s.items {
		if keep == nil || keep(v) {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := make([]T, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.clone(s.items[id]))
	}
	return out
}

// Len reports the number of stored records.
func (s *Store[T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}
