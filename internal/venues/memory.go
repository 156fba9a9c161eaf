package venues

import (
	"context"

	"github.com/shiftdesk/shiftdesk/internal/platform/memstore"
)

// MemoryRepository keeps venues in process memory.
type MemoryRepository struct {
	store *memstore.Store[Venue]
}

// NewMemoryRepository builds an empty MemoryRepository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{store: memstore.New[Venue](func(v *Venue, id int64) { v.ID = id }, nil)}
}

func (r *MemoryRepository) Get(_ context.Context, id int64) (Venue, error) {
	v, ok := r.store.Get(id)
	if !ok {
		return Venue{}, ErrNotFound
	}
	return v, nil
}

func (r *MemoryRepository) List(context.Context) ([]Venue, error) {
	return r.store.List(nil), nil
}

func (r *MemoryRepository) Create(_ context.Context, v Venue) (Venue, error) {
	return r.store.Insert(v), nil
}

func (r *MemoryRepository) Update(_ context.Context, v Venue) (Venue, error) {
	if !r.store.Replace(v.ID, v) {
		return Venue{}, ErrNotFound
	}
	return v, nil
}

func (r *MemoryRepository) Delete(_ context.Context, id int64) error {
	if !r.store.Delete(id) {
		return ErrNotFound
	}
	return nil
}

var _ Repository = (*MemoryRepository)(nil)
