package users

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/shiftdesk/shiftdesk/internal/platform/httpx"
	"github.com/shiftdesk/shiftdesk/internal/platform/memstore"
)

// MemoryRepository keeps users in process memory.
type MemoryRepository struct {
	// writes serialises the email uniqueness check with the write.
	writes sync.Mutex
	store  *memstore.Store[User]
}

// NewMemoryRepository builds an empty MemoryRepository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{store: memstore.New(func(u *User, id int64) { u.ID = id }, User.clone)}
}

// Get fetches a user by id.
func (r *MemoryRepository) Get(_ context.Context, id int64) (User, error) {
	u, ok := r.store.Get(id)
	if !ok {
		return User{}, ErrNotFound
	}
	return u, nil
}

// FindByEmail fetches a user by email, case-insensitively.
func (r *MemoryRepository) FindByEmail(_ context.Context, email string) (User, error) {
	email = strings.TrimSpace(email)
	found := r.store.List(func(u User) bool { return strings.EqualFold(u.Email, email) })
	if len(found) == 0 {
		return User{}, ErrNotFound
	}
	return found[0], nil
}

// List returns all users ordered by id.
func (r *MemoryRepository) List(context.Context) ([]User, error) {
	return r.store.List(nil), nil
}

// Create inserts a user.
func (r *MemoryRepository) Create(_ context.Context, u User) (User, error) {
	r.writes.Lock()
	defer r.writes.Unlock()
	if r.emailTaken(u.Email, 0) {
		return User{}, fmt.Errorf("email already registered: %w", httpx.ErrDuplicate)
	}
	return r.store.Insert(u), nil
}

// Update replaces a stored user.
func (r *MemoryRepository) Update(_ context.Context, u User) (User, error) {
	r.writes.Lock()
	defer r.writes.Unlock()
	if r.emailTaken(u.Email, u.ID) {
		return User{}, fmt.Errorf("email already registered: %w", httpx.ErrDuplicate)
	}
	if !r.store.Replace(u.ID, u) {
		return User{}, ErrNotFound
	}
	return u.clone(), nil
}

// Delete removes a user.
func (r *MemoryRepository) Delete(_ context.Context, id int64) error {
	if !r.store.Delete(id) {
		return ErrNotFound
	}
	return nil
}

func (r *MemoryRepository) emailTaken(email string, exceptID int64) bool {
	return len(r.store.List(func(u User) bool {
		return u.ID != exceptID && strings.EqualFold(u.Email, email)
	})) > 0
}

var _ Repository = (*MemoryRepository)(nil)
