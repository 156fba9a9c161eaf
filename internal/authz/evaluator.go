package authz

import (
	"fmt"

	"github.com/shiftdesk/shiftdesk/internal/platform/httpx"
)

// Subject is the snapshot of the acting user that every decision is made on.
type Subject struct {
	ID             int64
	Role           Role
	Permissions    []Permission
	AssignedVenues []int64
}

// Scope locates a resource for authorization: who owns it and which venue it
// belongs to. VenueID is zero when the resource has no venue.
type Scope struct {
	OwnerID int64
	VenueID int64
}

// Rule names the permissions guarding one resource type.
//
// Global grants access everywhere, Venue grants access only inside venues the
// subject can reach. AllowOwner lets the owner write their own record.
type Rule struct {
	Global     Permission
	Venue      Permission
	AllowOwner bool
}

// Evaluator answers authorization questions against an injected registry.
// It holds no mutable state and is safe for concurrent use.
type Evaluator struct {
	registry *Registry
}

// NewEvaluator wires an Evaluator to reg.
func NewEvaluator(reg *Registry) *Evaluator {
	return &Evaluator{registry: reg}
}

// Registry exposes the registry the evaluator was built with.
func (e *Evaluator) Registry() *Registry {
	return e.registry
}

// HasPermission reports whether s holds p through super admin status, the
// role registry or an explicit grant.
func (e *Evaluator) HasPermission(s Subject, p Permission) bool {
	if s.Role == RoleSuperAdmin {
		return true
	}
	if e.registry.Grants(s.Role, p) {
		return true
	}
	for _, granted := range s.Permissions {
		if granted == p {
			return true
		}
	}
	return false
}

// HasVenueAccess reports whether s may see data of venueID.
func (e *Evaluator) HasVenueAccess(s Subject, venueID int64) bool {
	if IsAdmin(s) {
		return true
	}
	for _, id := range s.AssignedVenues {
		if id == venueID {
			return true
		}
	}
	return false
}

// IsAdmin reports whether s belongs to a role with unrestricted venue visibility.
func IsAdmin(s Subject) bool {
	switch s.Role {
	case RoleSuperAdmin, RoleAdmin, RoleIT:
		return true
	}
	return false
}

// IsSuperAdmin reports whether s is a super admin.
func IsSuperAdmin(s Subject) bool {
	return s.Role == RoleSuperAdmin
}

// OwnsResource reports whether s is the owner recorded on scope.
func OwnsResource(s Subject, scope Scope) bool {
	return s.ID != 0 && scope.OwnerID == s.ID
}

// HasGlobalOrVenuePermission reports whether s holds global, or holds venue
// and can reach venueID.
func (e *Evaluator) HasGlobalOrVenuePermission(s Subject, global, venue Permission, venueID int64) bool {
	if global != "" && e.HasPermission(s, global) {
		return true
	}
	if venue == "" || venueID == 0 {
		return false
	}
	return e.HasPermission(s, venue) && e.HasVenueAccess(s, venueID)
}

// CanRead applies the read disjunction: owner, global permission, or venue
// permission within an accessible venue.
func (e *Evaluator) CanRead(s Subject, scope Scope, rule Rule) bool {
	if OwnsResource(s, scope) {
		return true
	}
	return e.HasGlobalOrVenuePermission(s, rule.Global, rule.Venue, scope.VenueID)
}

// CanWrite is CanRead without the owner branch unless the rule allows it.
func (e *Evaluator) CanWrite(s Subject, scope Scope, rule Rule) bool {
	if rule.AllowOwner && OwnsResource(s, scope) {
		return true
	}
	return e.HasGlobalOrVenuePermission(s, rule.Global, rule.Venue, scope.VenueID)
}

// CanAssignRole checks whether actor may move a user currently holding
// current (empty for a new user) to next. It returns nil when allowed.
func (e *Evaluator) CanAssignRole(actor Subject, targetID int64, current, next Role) error {
	if !next.Valid() {
		return fmt.Errorf("%w: unknown role %q", httpx.ErrValidation, next)
	}
	if current == next {
		return nil
	}
	if targetID != 0 && targetID == actor.ID {
		return Forbidden("You cannot change your own role", "self role change")
	}
	if !e.HasPermission(actor, PermManageUsers) {
		return MissingPermission(PermManageUsers)
	}
	if (next == RoleSuperAdmin || current == RoleSuperAdmin) && !IsSuperAdmin(actor) {
		return Forbidden(MsgSuperAdminRequired, string(RoleSuperAdmin))
	}
	return nil
}

// CanVerifyTill reports whether s may mark a till as verified. Ownership never
// qualifies.
func (e *Evaluator) CanVerifyTill(s Subject, scope Scope) bool {
	return e.HasGlobalOrVenuePermission(s, PermManageAllTills, PermManageVenueTills, scope.VenueID)
}

// Require turns a boolean decision into a rejection carrying p.
func Require(ok bool, p Permission) error {
	if ok {
		return nil
	}
	return MissingPermission(p)
}
