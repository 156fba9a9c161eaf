package authz

import (
	"errors"

	"github.com/shiftdesk/shiftdesk/internal/platform/httpx"
)

// Rejection messages returned to clients.
const (
	MsgAuthRequired       = "Authentication required"
	MsgNoPermission       = "You don't have permission to perform this action"
	MsgNoVenueAccess      = "You don't have access to this venue"
	MsgAdminRequired      = "Admin access required"
	MsgSuperAdminRequired = "Super admin access required"
	MsgNotSelf            = "You can only access your own records without additional permission"
)

// Denied is a terminal authorization outcome. Kind is one of
// httpx.ErrUnauthorized, httpx.ErrForbidden or httpx.ErrNotFound so that
// errors.Is and httpx.RespondError classify it.
type Denied struct {
	Kind   error
	Reason string
	// Missing names the capability that was lacking, for logs and metrics.
	Missing string
}

func (d *Denied) Error() string { return d.Reason }

func (d *Denied) Unwrap() error { return d.Kind }

// Unauthenticated returns the rejection used when no user is attached.
func Unauthenticated() *Denied {
	return &Denied{Kind: httpx.ErrUnauthorized, Reason: MsgAuthRequired, Missing: "session"}
}

// Forbidden builds a 403 rejection.
func Forbidden(reason, missing string) *Denied {
	return &Denied{Kind: httpx.ErrForbidden, Reason: reason, Missing: missing}
}

// MissingPermission builds the standard rejection for a lacking permission.
func MissingPermission(p Permission) *Denied {
	return Forbidden(MsgNoPermission, string(p))
}

// MissingVenue builds the standard rejection for venue scoping.
func MissingVenue() *Denied {
	return Forbidden(MsgNoVenueAccess, "venue access")
}

// NotFound reports that the resource needed for a decision does not exist.
func NotFound(what string) *Denied {
	return &Denied{Kind: httpx.ErrNotFound, Reason: what + " not found", Missing: "resource"}
}

// IsDenied reports whether err carries an authorization rejection.
func IsDenied(err error) bool {
	var d *Denied
	return errors.As(err, &d)
}
