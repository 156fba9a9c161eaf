package shifts

import (
	"context"

	"github.com/shiftdesk/shiftdesk/internal/platform/memstore"
)

// MemoryRepository keeps shifts in process memory.
type MemoryRepository struct {
	store *memstore.Store[Shift]
}

// NewMemoryRepository builds an empty MemoryRepository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{store: memstore.New[Shift](func(s *Shift, id int64) { s.ID = id }, nil)}
}

func (r *MemoryRepository) Get(_ context.Context, id int64) (Shift, error) {
	s, ok := r.store.Get(id)
	if !ok {
		return Shift{}, ErrNotFound
	}
	return s, nil
}

func (r *MemoryRepository) List(_ context.Context, f Filter) ([]Shift, error) {
	return r.store.List(f.match), nil
}

func (r *MemoryRepository) Create(_ context.Context, s Shift) (Shift, error) {
	return r.store.Insert(s), nil
}

func (r *MemoryRepository) Update(_ context.Context, s Shift) (Shift, error) {
	if !r.store.Replace(s.ID, s) {
		return Shift{}, ErrNotFound
	}
	return s, nil
}

func (r *MemoryRepository) Delete(_ context.Context, id int64) error {
	if !r.store.Delete(id) {
		return ErrNotFound
	}
	return nil
}

var _ Repository = (*MemoryRepository)(nil)
