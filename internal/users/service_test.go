package users

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/shiftdesk/shiftdesk/internal/authz"
	"github.com/shiftdesk/shiftdesk/internal/platform/httpx"
	"github.com/shiftdesk/shiftdesk/internal/shared"
)

type auditSink struct {
	mu      sync.Mutex
	entries []shared.AuditLog
}

func (a *auditSink) Record(_ context.Context, log shared.AuditLog) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, log)
	return nil
}

func (a *auditSink) actions() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, 0, len(a.entries))
	for _, e := range a.entries {
		out = append(out, e.Action)
	}
	return out
}

type fixture struct {
	service  *Service
	repo     *MemoryRepository
	audit    *auditSink
	super    User
	admin    User
	manager  User
	employee User
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	repo := NewMemoryRepository()
	audit := &auditSink{}
	f := fixture{
		service: NewService(repo, authz.NewEvaluator(authz.DefaultRegistry()), audit),
		repo:    repo,
		audit:   audit,
	}
	seed := func(email string, role authz.Role, venues ...int64) User {
		u, err := repo.Create(context.Background(), User{Email: email, Name: email, Role: role, AssignedVenues: venues, IsActive: true})
		require.NoError(t, err)
		return u
	}
	f.super = seed("root@example.com", authz.RoleSuperAdmin)
	f.admin = seed("admin@example.com", authz.RoleAdmin)
	f.manager = seed("manager@example.com", authz.RoleManager, 1)
	f.employee = seed("employee@example.com", authz.RoleEmployee, 1)
	return f
}

func rolePtr(r authz.Role) *authz.Role { return &r }

func TestCreateRequiresManageUsers(t *testing.T) {
	f := newFixture(t)
	req := CreateUserRequest{Email: "new@example.com", Name: "New", Password: "password1", Role: authz.RoleEmployee}

	_, err := f.service.Create(context.Background(), f.manager.Subject(), req)
	assert.True(t, errors.Is(err, httpx.ErrForbidden))

	created, err := f.service.Create(context.Background(), f.admin.Subject(), req)
	require.NoError(t, err)
	assert.True(t, created.IsActive)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(created.PasswordHash), []byte("password1")))
	assert.Equal(t, []string{shared.AuditUserCreated}, f.audit.actions())
}

func TestCreateNormalizesGrantsAndVenues(t *testing.T) {
	f := newFixture(t)
	created, err := f.service.Create(context.Background(), f.admin.Subject(), CreateUserRequest{
		Email:          "grants@example.com",
		Name:           "Grants",
		Password:       "password1",
		Role:           authz.RoleEmployee,
		Permissions:    []authz.Permission{"view_all_shifts", authz.PermSendMessages, authz.PermViewAllShifts},
		AssignedVenues: []int64{3, 1, 3},
	})
	require.NoError(t, err)
	assert.Equal(t, []authz.Permission{authz.PermSendMessages, authz.PermViewAllShifts}, created.Permissions)
	assert.Equal(t, []int64{1, 3}, created.AssignedVenues)

	_, err = f.service.Create(context.Background(), f.admin.Subject(), CreateUserRequest{
		Email: "bad@example.com", Name: "Bad", Password: "password1", Role: authz.RoleEmployee,
		Permissions: []authz.Permission{"FLY"},
	})
	assert.True(t, errors.Is(err, httpx.ErrValidation))
}

func TestOnlySuperAdminCreatesSuperAdmins(t *testing.T) {
	f := newFixture(t)
	req := CreateUserRequest{Email: "boss@example.com", Name: "Boss", Password: "password1", Role: authz.RoleSuperAdmin}

	_, err := f.service.Create(context.Background(), f.admin.Subject(), req)
	assert.True(t, errors.Is(err, httpx.ErrForbidden))

	_, err = f.service.Create(context.Background(), f.super.Subject(), req)
	require.NoError(t, err)
}

func TestRoleEscalationLockout(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.Update(context.Background(), f.admin.Subject(), f.employee.ID, UpdateUserRequest{Role: rolePtr(authz.RoleSuperAdmin)})
	require.Error(t, err)
	assert.True(t, errors.Is(err, httpx.ErrForbidden))

	stored, err := f.repo.Get(context.Background(), f.employee.ID)
	require.NoError(t, err)
	assert.Equal(t, authz.RoleEmployee, stored.Role)

	granted := f.manager.Subject()
	granted.Permissions = []authz.Permission{authz.PermManageUsers}
	_, err = f.service.Update(context.Background(), granted, f.employee.ID, UpdateUserRequest{Role: rolePtr(authz.RoleSuperAdmin)})
	assert.True(t, errors.Is(err, httpx.ErrForbidden))

	updated, err := f.service.Update(context.Background(), f.super.Subject(), f.employee.ID, UpdateUserRequest{Role: rolePtr(authz.RoleSuperAdmin)})
	require.NoError(t, err)
	assert.Equal(t, authz.RoleSuperAdmin, updated.Role)
	assert.Equal(t, []string{shared.AuditRoleChanged}, f.audit.actions())
}

func TestSuperAdminAccountsAreProtected(t *testing.T) {
	f := newFixture(t)
	name := "Renamed"

	_, err := f.service.Update(context.Background(), f.admin.Subject(), f.super.ID, UpdateUserRequest{Name: &name})
	assert.True(t, errors.Is(err, httpx.ErrForbidden))

	err = f.service.Delete(context.Background(), f.admin.Subject(), f.super.ID)
	assert.True(t, errors.Is(err, httpx.ErrForbidden))
}

func TestSelfEditRules(t *testing.T) {
	f := newFixture(t)
	actor := f.employee.Subject()
	name := "Employee Renamed"

	updated, err := f.service.Update(context.Background(), actor, f.employee.ID, UpdateUserRequest{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, name, updated.Name)

	venues := []int64{1, 2}
	_, err = f.service.Update(context.Background(), actor, f.employee.ID, UpdateUserRequest{AssignedVenues: &venues})
	assert.True(t, errors.Is(err, httpx.ErrForbidden))

	_, err = f.service.Update(context.Background(), actor, f.employee.ID, UpdateUserRequest{Role: rolePtr(authz.RoleManager)})
	assert.True(t, errors.Is(err, httpx.ErrForbidden))

	_, err = f.service.Update(context.Background(), actor, f.manager.ID, UpdateUserRequest{Name: &name})
	assert.True(t, errors.Is(err, httpx.ErrForbidden))

	perms := []authz.Permission{authz.PermManageUsers}
	_, err = f.service.Update(context.Background(), f.admin.Subject(), f.admin.ID, UpdateUserRequest{Permissions: &perms})
	assert.True(t, errors.Is(err, httpx.ErrForbidden))
}

func TestManagerOfUsersChangesAccess(t *testing.T) {
	f := newFixture(t)
	perms := []authz.Permission{authz.PermViewAllShifts}
	venues := []int64{2, 1}
	inactive := false

	updated, err := f.service.Update(context.Background(), f.admin.Subject(), f.employee.ID, UpdateUserRequest{
		Permissions:    &perms,
		AssignedVenues: &venues,
		IsActive:       &inactive,
	})
	require.NoError(t, err)
	assert.Equal(t, perms, updated.Permissions)
	assert.Equal(t, []int64{1, 2}, updated.AssignedVenues)
	assert.False(t, updated.IsActive)
	assert.ElementsMatch(t, []string{shared.AuditGrantsChanged, shared.AuditVenuesChanged}, f.audit.actions())

	_, err = f.service.LoadSubject(context.Background(), f.employee.ID)
	assert.True(t, errors.Is(err, httpx.ErrNotFound))
}

func TestGetAndList(t *testing.T) {
	f := newFixture(t)

	u, err := f.service.Get(context.Background(), f.employee.Subject(), f.employee.ID)
	require.NoError(t, err)
	assert.Equal(t, f.employee.Email, u.Email)

	_, err = f.service.Get(context.Background(), f.employee.Subject(), f.manager.ID)
	assert.True(t, errors.Is(err, httpx.ErrForbidden))

	_, err = f.service.List(context.Background(), f.employee.Subject())
	assert.True(t, errors.Is(err, httpx.ErrForbidden))

	all, err := f.service.List(context.Background(), f.admin.Subject())
	require.NoError(t, err)
	assert.Len(t, all, 4)
}

func TestEffectivePermissions(t *testing.T) {
	f := newFixture(t)

	eff, err := f.service.Effective(context.Background(), f.manager.Subject(), f.manager.ID)
	require.NoError(t, err)
	assert.Contains(t, eff.FromRole, authz.PermManageVenueShifts)
	assert.False(t, eff.AllVenues)
	assert.Equal(t, []int64{1}, eff.AssignedVenues)

	eff, err = f.service.Effective(context.Background(), f.super.Subject(), f.super.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, authz.AllPermissions(), eff.FromRole)
	assert.True(t, eff.AllVenues)
}

func TestDelete(t *testing.T) {
	f := newFixture(t)

	err := f.service.Delete(context.Background(), f.admin.Subject(), f.admin.ID)
	assert.True(t, errors.Is(err, httpx.ErrForbidden))

	require.NoError(t, f.service.Delete(context.Background(), f.admin.Subject(), f.employee.ID))
	assert.True(t, errors.Is(f.service.Exists(context.Background(), f.employee.ID), httpx.ErrNotFound))

	err = f.service.Delete(context.Background(), f.admin.Subject(), f.employee.ID)
	assert.True(t, errors.Is(err, httpx.ErrNotFound))
}

func TestEnsureBootstrapAdmin(t *testing.T) {
	repo := NewMemoryRepository()
	service := NewService(repo, authz.NewEvaluator(authz.DefaultRegistry()), nil)

	created, err := service.EnsureBootstrapAdmin(context.Background(), "root@example.com", "password1")
	require.NoError(t, err)
	assert.True(t, created)

	created, err = service.EnsureBootstrapAdmin(context.Background(), "root@example.com", "password1")
	require.NoError(t, err)
	assert.False(t, created)

	u, err := repo.FindByEmail(context.Background(), "ROOT@example.com")
	require.NoError(t, err)
	assert.Equal(t, authz.RoleSuperAdmin, u.Role)

	created, err = service.EnsureBootstrapAdmin(context.Background(), "", "")
	require.NoError(t, err)
	assert.False(t, created)
}
