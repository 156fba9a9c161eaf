package users

import (
	"time"

	"github.com/shiftdesk/shiftdesk/internal/authz"
)

// User represents a staff account together with its authorization data.
type User struct {
	ID             int64              `json:"id"`
	Email          string             `json:"email"`
	Name           string             `json:"name"`
	PasswordHash   string             `json:"-"`
	Role           authz.Role         `json:"role"`
	Permissions    []authz.Permission `json:"permissions"`
	AssignedVenues []int64            `json:"assignedVenues"`
	IsActive       bool               `json:"isActive"`
	CreatedAt      time.Time          `json:"createdAt"`
	UpdatedAt      time.Time          `json:"updatedAt"`
}

// Subject returns the authorization snapshot of the user.
func (u User) Subject() authz.Subject {
	return authz.Subject{
		ID:             u.ID,
		Role:           u.Role,
		Permissions:    append([]authz.Permission(nil), u.Permissions...),
		AssignedVenues: append([]int64(nil), u.AssignedVenues...),
	}
}

func (u User) clone() User {
	u.Permissions = append([]authz.Permission(nil), u.Permissions...)
	u.AssignedVenues = append([]int64(nil), u.AssignedVenues...)
	return u
}

// CreateUserRequest is the payload for creating a user.
type CreateUserRequest struct {
	Email          string             `json:"email" validate:"required,email"`
	Name           string             `json:"name" validate:"required,max=200"`
	Password       string             `json:"password" validate:"required,min=8"`
	Role           authz.Role         `json:"role" validate:"required"`
	Permissions    []authz.Permission `json:"permissions"`
	AssignedVenues []int64            `json:"assignedVenues" validate:"dive,gt=0"`
}

// UpdateUserRequest is a partial update. Nil fields are left unchanged.
type UpdateUserRequest struct {
	Email          *string             `json:"email" validate:"omitempty,email"`
	Name           *string             `json:"name" validate:"omitempty,max=200"`
	Password       *string             `json:"password" validate:"omitempty,min=8"`
	Role           *authz.Role         `json:"role"`
	Permissions    *[]authz.Permission `json:"permissions"`
	AssignedVenues *[]int64            `json:"assignedVenues"`
	IsActive       *bool               `json:"isActive"`
}

func (r UpdateUserRequest) touchesAccess() bool {
	return r.Permissions != nil || r.AssignedVenues != nil || r.IsActive != nil
}

// EffectivePermissions describes what a user can do and where.
type EffectivePermissions struct {
	UserID         int64              `json:"userId"`
	Role           authz.Role         `json:"role"`
	FromRole       []authz.Permission `json:"fromRole"`
	Granted        []authz.Permission `json:"granted"`
	AllVenues      bool               `json:"allVenues"`
	AssignedVenues []int64            `json:"assignedVenues"`
}
