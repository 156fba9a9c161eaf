package authz

import "sort"

// Role is the closed set of user categories.
type Role string

// Known roles.
const (
	RoleSuperAdmin Role = "super_admin"
	RoleAdmin      Role = "admin"
	RoleIT         Role = "it"
	RoleManager    Role = "manager"
	RoleSupervisor Role = "supervisor"
	RoleEmployee   Role = "employee"
)

// Roles lists every known role, most privileged first.
func Roles() []Role {
	return []Role{RoleSuperAdmin, RoleAdmin, RoleIT, RoleManager, RoleSupervisor, RoleEmployee}
}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleSuperAdmin, RoleAdmin, RoleIT, RoleManager, RoleSupervisor, RoleEmployee:
		return true
	}
	return false
}

// Permission names a single capability. The same vocabulary is used by the
// registry and by per-user grants.
type Permission string

// User permissions.
const (
	PermViewAllUsers Permission = "VIEW_ALL_USERS"
	PermManageUsers  Permission = "MANAGE_USERS"
)

// Venue permissions.
const (
	PermViewAllVenues Permission = "VIEW_ALL_VENUES"
	PermManageVenues  Permission = "MANAGE_VENUES"
)

// Shift permissions.
const (
	PermViewAllShifts     Permission = "VIEW_ALL_SHIFTS"
	PermManageAllShifts   Permission = "MANAGE_ALL_SHIFTS"
	PermManageVenueShifts Permission = "MANAGE_VENUE_SHIFTS"
)

// Time tracking permissions.
const (
	PermViewAllTimeEntries     Permission = "VIEW_ALL_TIME_ENTRIES"
	PermManageAllTimeEntries   Permission = "MANAGE_ALL_TIME_ENTRIES"
	PermManageVenueTimeEntries Permission = "MANAGE_VENUE_TIME_ENTRIES"
)

// Messaging permissions.
const (
	PermSendMessages        Permission = "SEND_MESSAGES"
	PermViewAllMessages     Permission = "VIEW_ALL_MESSAGES"
	PermManageVenueMessages Permission = "MANAGE_VENUE_MESSAGES"
)

// Till reconciliation permissions.
const (
	PermViewAllTills     Permission = "VIEW_ALL_TILLS"
	PermManageAllTills   Permission = "MANAGE_ALL_TILLS"
	PermManageVenueTills Permission = "MANAGE_VENUE_TILLS"
)

var allPermissions = []Permission{
	PermViewAllUsers,
	PermManageUsers,
	PermViewAllVenues,
	PermManageVenues,
	PermViewAllShifts,
	PermManageAllShifts,
	PermManageVenueShifts,
	PermViewAllTimeEntries,
	PermManageAllTimeEntries,
	PermManageVenueTimeEntries,
	PermSendMessages,
	PermViewAllMessages,
	PermManageVenueMessages,
	PermViewAllTills,
	PermManageAllTills,
	PermManageVenueTills,
}

// AllPermissions returns the full permission vocabulary.
func AllPermissions() []Permission {
	out := make([]Permission, len(allPermissions))
	copy(out, allPermissions)
	return out
}

// Valid reports whether p belongs to the vocabulary.
func (p Permission) Valid() bool {
	for _, known := range allPermissions {
		if p == known {
			return true
		}
	}
	return false
}

type permissionSet map[Permission]struct{}

// Registry maps roles to their default permission sets. It is built once and
// has no mutation path; share it by pointer.
type Registry struct {
	grants map[Role]permissionSet
}

// NewRegistry copies grants into a new Registry. Later changes to the input
// map do not affect the registry.
func NewRegistry(grants map[Role][]Permission) *Registry {
	reg := &Registry{grants: make(map[Role]permissionSet, len(grants))}
	for role, perms := range grants {
		set := make(permissionSet, len(perms))
		for _, p := range perms {
			set[p] = struct{}{}
		}
		reg.grants[role] = set
	}
	return reg
}

// DefaultRegistry returns the deployed role grants. super_admin is absent on
// purpose: the evaluator lets it through before consulting the registry.
func DefaultRegistry() *Registry {
	return NewRegistry(map[Role][]Permission{
		RoleAdmin: AllPermissions(),
		RoleIT: {
			PermViewAllUsers,
			PermManageUsers,
			PermViewAllVenues,
			PermViewAllShifts,
			PermViewAllTimeEntries,
			PermSendMessages,
		},
		RoleManager: {
			PermManageVenueShifts,
			PermManageVenueTimeEntries,
			PermManageVenueTills,
			PermManageVenueMessages,
			PermSendMessages,
		},
		RoleSupervisor: {
			PermManageVenueTimeEntries,
			PermManageVenueTills,
			PermSendMessages,
		},
		RoleEmployee: {
			PermSendMessages,
		},
	})
}

// Grants reports whether role carries perm by default.
func (r *Registry) Grants(role Role, perm Permission) bool {
	if r == nil {
		return false
	}
	_, ok := r.grants[role][perm]
	return ok
}

// Permissions returns a sorted copy of the role's default permissions. Unknown
// roles yield an empty slice.
func (r *Registry) Permissions(role Role) []Permission {
	if r == nil {
		return []Permission{}
	}
	set := r.grants[role]
	out := make([]Permission, 0, len(set))
	for p := range set {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
