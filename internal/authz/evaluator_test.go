package authz

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shiftdesk/shiftdesk/internal/platform/httpx"
)

func newTestEvaluator() *Evaluator {
	return NewEvaluator(DefaultRegistry())
}

func TestSuperAdminBypassesEverything(t *testing.T) {
	e := NewEvaluator(NewRegistry(nil))
	s := Subject{ID: 1, Role: RoleSuperAdmin}

	for _, p := range AllPermissions() {
		assert.True(t, e.HasPermission(s, p), p)
	}
	assert.True(t, e.HasPermission(s, Permission("NOT_IN_VOCABULARY")))
	assert.True(t, e.HasVenueAccess(s, 42))
}

func TestRoleGrantsAreAFloor(t *testing.T) {
	e := newTestEvaluator()
	s := Subject{ID: 2, Role: RoleManager, Permissions: nil}

	assert.True(t, e.HasPermission(s, PermManageVenueShifts))
	s.Permissions = []Permission{PermSendMessages}
	assert.True(t, e.HasPermission(s, PermManageVenueShifts))
}

func TestExplicitGrantsAreAdditive(t *testing.T) {
	e := newTestEvaluator()
	s := Subject{ID: 3, Role: RoleEmployee}

	assert.False(t, e.HasPermission(s, PermViewAllShifts))
	s.Permissions = []Permission{PermViewAllShifts}
	assert.True(t, e.HasPermission(s, PermViewAllShifts))
	assert.False(t, e.HasPermission(s, PermManageAllShifts))
}

func TestVenueScoping(t *testing.T) {
	e := newTestEvaluator()
	s := Subject{ID: 4, Role: RoleEmployee, AssignedVenues: []int64{1, 2}}

	assert.True(t, e.HasVenueAccess(s, 1))
	assert.True(t, e.HasVenueAccess(s, 2))
	assert.False(t, e.HasVenueAccess(s, 3))
}

func TestAdminRolesBypassVenueScoping(t *testing.T) {
	e := newTestEvaluator()
	for _, role := range []Role{RoleSuperAdmin, RoleAdmin, RoleIT} {
		s := Subject{ID: 5, Role: role}
		assert.True(t, e.HasVenueAccess(s, 99), role)
		assert.True(t, IsAdmin(s), role)
	}
	for _, role := range []Role{RoleManager, RoleSupervisor, RoleEmployee} {
		s := Subject{ID: 5, Role: role}
		assert.False(t, e.HasVenueAccess(s, 99), role)
		assert.False(t, IsAdmin(s), role)
	}
}

func TestEmployeeWithSingleVenue(t *testing.T) {
	e := newTestEvaluator()
	s := Subject{ID: 6, Role: RoleEmployee, AssignedVenues: []int64{1}}

	assert.False(t, e.HasPermission(s, PermViewAllShifts))
	assert.True(t, e.HasVenueAccess(s, 1))
	assert.False(t, e.HasVenueAccess(s, 2))
}

func TestCanReadAndWrite(t *testing.T) {
	e := newTestEvaluator()
	rule := Rule{Global: PermManageAllShifts, Venue: PermManageVenueShifts}
	manager := Subject{ID: 10, Role: RoleManager, AssignedVenues: []int64{1}}
	owner := Subject{ID: 11, Role: RoleEmployee, AssignedVenues: []int64{1}}

	inVenue := Scope{OwnerID: 11, VenueID: 1}
	elsewhere := Scope{OwnerID: 11, VenueID: 2}

	assert.True(t, e.CanWrite(manager, inVenue, rule))
	assert.False(t, e.CanWrite(manager, elsewhere, rule))

	assert.True(t, e.CanRead(owner, elsewhere, rule))
	assert.False(t, e.CanWrite(owner, elsewhere, rule))
	rule.AllowOwner = true
	assert.True(t, e.CanWrite(owner, elsewhere, rule))

	stranger := Subject{ID: 12, Role: RoleEmployee, AssignedVenues: []int64{1}}
	assert.False(t, e.CanRead(stranger, inVenue, rule))
}

func TestHasGlobalOrVenuePermissionNeedsVenue(t *testing.T) {
	e := newTestEvaluator()
	manager := Subject{ID: 10, Role: RoleManager, AssignedVenues: []int64{1}}

	assert.False(t, e.HasGlobalOrVenuePermission(manager, PermManageAllShifts, PermManageVenueShifts, 0))
	assert.False(t, e.HasGlobalOrVenuePermission(manager, PermManageAllShifts, "", 1))
	assert.True(t, e.HasGlobalOrVenuePermission(manager, PermManageAllShifts, PermManageVenueShifts, 1))
}

func TestOwnsResourceIgnoresZeroSubject(t *testing.T) {
	assert.False(t, OwnsResource(Subject{}, Scope{}))
	assert.True(t, OwnsResource(Subject{ID: 3}, Scope{OwnerID: 3}))
}

func TestCanAssignRole(t *testing.T) {
	e := newTestEvaluator()
	admin := Subject{ID: 1, Role: RoleAdmin}
	super := Subject{ID: 2, Role: RoleSuperAdmin}
	employee := Subject{ID: 3, Role: RoleEmployee}

	require.NoError(t, e.CanAssignRole(admin, 9, RoleEmployee, RoleManager))
	require.NoError(t, e.CanAssignRole(super, 9, RoleEmployee, RoleSuperAdmin))
	require.NoError(t, e.CanAssignRole(employee, 9, RoleEmployee, RoleEmployee))

	err := e.CanAssignRole(admin, 9, RoleEmployee, RoleSuperAdmin)
	require.Error(t, err)
	assert.True(t, errors.Is(err, httpx.ErrForbidden))
	assert.EqualError(t, err, MsgSuperAdminRequired)

	err = e.CanAssignRole(admin, 9, RoleSuperAdmin, RoleAdmin)
	assert.True(t, errors.Is(err, httpx.ErrForbidden))

	err = e.CanAssignRole(admin, admin.ID, RoleAdmin, RoleManager)
	assert.True(t, errors.Is(err, httpx.ErrForbidden))

	err = e.CanAssignRole(employee, 9, RoleEmployee, RoleManager)
	assert.True(t, errors.Is(err, httpx.ErrForbidden))

	err = e.CanAssignRole(admin, 9, RoleEmployee, Role("owner"))
	assert.True(t, errors.Is(err, httpx.ErrValidation))
}

func TestCanVerifyTillIgnoresOwnership(t *testing.T) {
	e := newTestEvaluator()
	scope := Scope{OwnerID: 7, VenueID: 1}

	assert.False(t, e.CanVerifyTill(Subject{ID: 7, Role: RoleEmployee, AssignedVenues: []int64{1}}, scope))
	assert.True(t, e.CanVerifyTill(Subject{ID: 8, Role: RoleSupervisor, AssignedVenues: []int64{1}}, scope))
	assert.False(t, e.CanVerifyTill(Subject{ID: 8, Role: RoleSupervisor, AssignedVenues: []int64{2}}, scope))
	assert.True(t, e.CanVerifyTill(Subject{ID: 9, Role: RoleAdmin}, scope))
}

func TestRequire(t *testing.T) {
	require.NoError(t, Require(true, PermManageUsers))

	err := Require(false, PermManageUsers)
	var denied *Denied
	require.ErrorAs(t, err, &denied)
	assert.Equal(t, string(PermManageUsers), denied.Missing)
	assert.Equal(t, MsgNoPermission, denied.Error())
}
