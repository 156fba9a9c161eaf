package timeentries

import (
	"context"

	"github.com/shiftdesk/shiftdesk/internal/platform/memstore"
)

// MemoryRepository keeps time entries in process memory.
type MemoryRepository struct {
	store *memstore.Store[TimeEntry]
}

// NewMemoryRepository builds an empty MemoryRepository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{store: memstore.New(func(e *TimeEntry, id int64) { e.ID = id }, TimeEntry.clone)}
}

func (r *MemoryRepository) Get(_ context.Context, id int64) (TimeEntry, error) {
	e, ok := r.store.Get(id)
	if !ok {
		return TimeEntry{}, ErrNotFound
	}
	return e, nil
}

func (r *MemoryRepository) List(_ context.Context, f Filter) ([]TimeEntry, error) {
	return r.store.List(f.match), nil
}

func (r *MemoryRepository) Create(_ context.Context, e TimeEntry) (TimeEntry, error) {
	return r.store.Insert(e), nil
}

func (r *MemoryRepository) Update(_ context.Context, e TimeEntry) (TimeEntry, error) {
	if !r.store.Replace(e.ID, e) {
		return TimeEntry{}, ErrNotFound
	}
	return e.clone(), nil
}

func (r *MemoryRepository) Delete(_ context.Context, id int64) error {
	if !r.store.Delete(id) {
		return ErrNotFound
	}
	return nil
}

var _ Repository = (*MemoryRepository)(nil)
