package tills

import (
	"context"

	"github.com/shiftdesk/shiftdesk/internal/platform/memstore"
)

// MemoryRepository keeps till verifications in process memory.
type MemoryRepository struct {
	store *memstore.Store[Verification]
}

// NewMemoryRepository builds an empty MemoryRepository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{store: memstore.New(func(v *Verification, id int64) { v.ID = id }, Verification.clone)}
}

func (r *MemoryRepository) Get(_ context.Context, id int64) (Verification, error) {
	v, ok := r.store.Get(id)
	if !ok {
		return Verification{}, ErrNotFound
	}
	return v, nil
}

func (r *MemoryRepository) List(_ context.Context, f Filter) ([]Verification, error) {
	return r.store.List(f.match), nil
}

func (r *MemoryRepository) Create(_ context.Context, v Verification) (Verification, error) {
	return r.store.Insert(v), nil
}

func (r *MemoryRepository) Update(_ context.Context, v Verification) (Verification, error) {
	if !r.store.Replace(v.ID, v) {
		return Verification{}, ErrNotFound
	}
	return v.clone(), nil
}

func (r *MemoryRepository) Delete(_ context.Context, id int64) error {
	if !r.store.Delete(id) {
		return ErrNotFound
	}
	return nil
}

var _ Repository = (*MemoryRepository)(nil)
