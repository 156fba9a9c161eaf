package messages

import (
	"context"

	"github.com/shiftdesk/shiftdesk/internal/platform/memstore"
)

// MemoryRepository keeps messages in process memory.
type MemoryRepository struct {
	store *memstore.Store[Message]
}

// NewMemoryRepository builds an empty MemoryRepository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{store: memstore.New(func(m *Message, id int64) { m.ID = id }, Message.clone)}
}

func (r *MemoryRepository) Get(_ context.Context, id int64) (Message, error) {
	m, ok := r.store.Get(id)
	if !ok {
		return Message{}, ErrNotFound
	}
	return m, nil
}

func (r *MemoryRepository) List(_ context.Context, f Filter) ([]Message, error) {
	return r.store.List(f.match), nil
}

func (r *MemoryRepository) Create(_ context.Context, m Message) (Message, error) {
	return r.store.Insert(m), nil
}

func (r *MemoryRepository) MarkRead(_ context.Context, m Message) (Message, error) {
	stored, ok := r.store.Get(m.ID)
	if !ok {
		return Message{}, ErrNotFound
	}
	stored.ReadAt = m.ReadAt
	r.store.Replace(m.ID, stored)
	return stored.clone(), nil
}

func (r *MemoryRepository) Delete(_ context.Context, id int64) error {
	if !r.store.Delete(id) {
		return ErrNotFound
	}
	return nil
}

var _ Repository = (*MemoryRepository)(nil)
