package venues

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shiftdesk/shiftdesk/internal/authz"
	"github.com/shiftdesk/shiftdesk/internal/platform/httpx"
)

var (
	admin    = authz.Subject{ID: 1, Role: authz.RoleAdmin}
	manager  = authz.Subject{ID: 2, Role: authz.RoleManager, AssignedVenues: []int64{1}}
	it       = authz.Subject{ID: 3, Role: authz.RoleIT}
	employee = authz.Subject{ID: 4, Role: authz.RoleEmployee, AssignedVenues: []int64{2}}
)

func newService(t *testing.T, names ...string) *Service {
	t.Helper()
	svc := NewService(NewMemoryRepository(), authz.NewEvaluator(authz.DefaultRegistry()))
	for _, name := range names {
		_, err := svc.Create(context.Background(), admin, CreateVenueRequest{Name: name})
		require.NoError(t, err)
	}
	return svc
}

func TestCreateNeedsManageVenues(t *testing.T) {
	svc := newService(t)

	_, err := svc.Create(context.Background(), manager, CreateVenueRequest{Name: "Harbour"})
	assert.True(t, errors.Is(err, httpx.ErrForbidden))

	v, err := svc.Create(context.Background(), admin, CreateVenueRequest{Name: " Harbour ", Address: "1 Quay"})
	require.NoError(t, err)
	assert.Equal(t, "Harbour", v.Name)
	assert.Equal(t, "UTC", v.Timezone)
	assert.True(t, v.IsActive)
}

func TestListIsScopedToAssignedVenues(t *testing.T) {
	svc := newService(t, "North", "South", "East")

	list, err := svc.List(context.Background(), manager)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "North", list[0].Name)

	list, err = svc.List(context.Background(), it)
	require.NoError(t, err)
	assert.Len(t, list, 3)

	viewer := manager
	viewer.Permissions = []authz.Permission{authz.PermViewAllVenues}
	list, err = svc.List(context.Background(), viewer)
	require.NoError(t, err)
	assert.Len(t, list, 3)
}

func TestGet(t *testing.T) {
	svc := newService(t, "North", "South")

	_, err := svc.Get(context.Background(), employee, 2)
	require.NoError(t, err)

	_, err = svc.Get(context.Background(), employee, 1)
	require.Error(t, err)
	assert.EqualError(t, err, authz.MsgNoVenueAccess)

	_, err = svc.Get(context.Background(), employee, 9)
	assert.True(t, errors.Is(err, httpx.ErrNotFound))
}

func TestUpdateAndDelete(t *testing.T) {
	svc := newService(t, "North", "South")
	name := "North Side"

	_, err := svc.Update(context.Background(), manager, 1, UpdateVenueRequest{Name: &name})
	assert.True(t, errors.Is(err, httpx.ErrForbidden))

	granted := manager
	granted.Permissions = []authz.Permission{authz.PermManageVenues}
	updated, err := svc.Update(context.Background(), granted, 1, UpdateVenueRequest{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, name, updated.Name)

	err = svc.Delete(context.Background(), granted, 2)
	require.Error(t, err)
	assert.EqualError(t, err, authz.MsgNoVenueAccess)

	require.NoError(t, svc.Delete(context.Background(), admin, 2))
	assert.True(t, errors.Is(svc.Exists(context.Background(), 2), httpx.ErrNotFound))
	assert.True(t, errors.Is(svc.Delete(context.Background(), admin, 2), httpx.ErrNotFound))
}
