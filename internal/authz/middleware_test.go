package authz

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shiftdesk/shiftdesk/internal/platform/httpx"
	"github.com/shiftdesk/shiftdesk/internal/shared"
)

type stubSubjects map[int64]Subject

func (s stubSubjects) LoadSubject(_ context.Context, id int64) (Subject, error) {
	subject, ok := s[id]
	if !ok {
		return Subject{}, fmt.Errorf("user %w", httpx.ErrNotFound)
	}
	return subject, nil
}

type denialLog struct {
	mu      sync.Mutex
	entries []string
}

func (d *denialLog) RecordDenial(guard, reason string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.entries = append(d.entries, guard+":"+reason)
}

func newTestMiddleware(subjects stubSubjects) (*Middleware, *denialLog) {
	denials := &denialLog{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewMiddleware(newTestEvaluator(), subjects, logger, denials), denials
}

func ok(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// asUser attaches a session carrying userID, the way the session middleware does.
func asUser(r *http.Request, userID int64) *http.Request {
	sess := &shared.Session{ID: "test"}
	sess.SetUser(strconv.FormatInt(userID, 10))
	return r.WithContext(shared.ContextWithSession(r.Context(), sess))
}

func serve(t *testing.T, h http.Handler, req *http.Request) (*httptest.ResponseRecorder, httpx.ProblemDetail) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	var problem httpx.ProblemDetail
	if rec.Code >= http.StatusBadRequest {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &problem))
	}
	return rec, problem
}

func TestSelfOrPermissionAllowsSelf(t *testing.T) {
	m, denials := newTestMiddleware(stubSubjects{
		4: {ID: 4, Role: RoleEmployee},
	})
	r := chi.NewRouter()
	r.Use(m.Authenticate)
	r.With(m.RequireSelfOrPermission("id", PermViewAllUsers)).Get("/users/{id}", ok)

	rec, _ := serve(t, r, asUser(httptest.NewRequest(http.MethodGet, "/users/4", nil), 4))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, problem := serve(t, r, asUser(httptest.NewRequest(http.MethodGet, "/users/5", nil), 4))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, MsgNotSelf, problem.Detail)
	assert.Equal(t, []string{"self_or_permission:forbidden"}, denials.entries)
}

func TestSelfOrPermissionAllowsPermissionHolder(t *testing.T) {
	m, _ := newTestMiddleware(stubSubjects{
		1: {ID: 1, Role: RoleIT},
	})
	r := chi.NewRouter()
	r.Use(m.Authenticate)
	r.With(m.RequireSelfOrPermission("", PermViewAllUsers)).Get("/users/{userId}", ok)

	rec, _ := serve(t, r, asUser(httptest.NewRequest(http.MethodGet, "/users/5", nil), 1))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestUnauthenticatedRequestsGetGenericRejection(t *testing.T) {
	m, denials := newTestMiddleware(stubSubjects{})
	resolve := func(context.Context, int64) (Scope, error) { return Scope{}, nil }

	guards := map[string]func(http.Handler) http.Handler{
		"auth":               m.RequireAuth(),
		"permission":         m.RequirePermission(PermManageUsers),
		"venue":              m.RequireVenueAccess(""),
		"admin":              m.RequireAdmin(),
		"super_admin":        m.RequireSuperAdmin(),
		"self_or_permission": m.RequireSelfOrPermission("", PermManageUsers),
		"scoped":             m.RequireScoped("id", resolve, Rule{Global: PermManageAllShifts}, true),
	}
	for name, guard := range guards {
		t.Run(name, func(t *testing.T) {
			r := chi.NewRouter()
			r.Use(m.Authenticate)
			r.With(guard).Get("/r/{id}", ok)

			rec, problem := serve(t, r, httptest.NewRequest(http.MethodGet, "/r/1", nil))
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Equal(t, MsgAuthRequired, problem.Detail)
		})
	}
	assert.Len(t, denials.entries, len(guards))
}

func TestAuthenticateIgnoresUnknownUsers(t *testing.T) {
	m, _ := newTestMiddleware(stubSubjects{})
	r := chi.NewRouter()
	r.Use(m.Authenticate)
	r.With(m.RequireAuth()).Get("/me", ok)

	rec, _ := serve(t, r, asUser(httptest.NewRequest(http.MethodGet, "/me", nil), 77))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

// gatedSubjects holds the first load open until release is closed or the
// load context ends.
type gatedSubjects struct {
	started chan struct{}
	release chan struct{}
	calls   atomic.Int32
}

func (g *gatedSubjects) LoadSubject(ctx context.Context, id int64) (Subject, error) {
	if g.calls.Add(1) == 1 {
		close(g.started)
		select {
		case <-g.release:
		case <-ctx.Done():
			return Subject{}, ctx.Err()
		}
	}
	return Subject{ID: id, Role: RoleEmployee}, nil
}

func TestCancelledRequestDoesNotFailSharedSubjectLoad(t *testing.T) {
	loader := &gatedSubjects{started: make(chan struct{}), release: make(chan struct{})}
	m := NewMiddleware(newTestEvaluator(), loader, slog.New(slog.NewTextHandler(io.Discard, nil)), nil)
	h := m.Authenticate(m.RequireAuth()(http.HandlerFunc(ok)))

	run := func(ctx context.Context) <-chan int {
		done := make(chan int, 1)
		req := asUser(httptest.NewRequest(http.MethodGet, "/", nil).WithContext(ctx), 7)
		go func() {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			done <- rec.Code
		}()
		return done
	}

	ctxA, cancelA := context.WithCancel(context.Background())
	doneA := run(ctxA)
	<-loader.started
	doneB := run(context.Background())
	time.Sleep(20 * time.Millisecond)

	cancelA()
	select {
	case code := <-doneA:
		assert.NotEqual(t, http.StatusOK, code)
	case <-time.After(2 * time.Second):
		t.Fatal("cancelled request kept waiting")
	}

	close(loader.release)
	select {
	case code := <-doneB:
		assert.Equal(t, http.StatusOK, code)
	case <-time.After(2 * time.Second):
		t.Fatal("request never completed")
	}
}

func TestRequirePermission(t *testing.T) {
	m, _ := newTestMiddleware(stubSubjects{
		1: {ID: 1, Role: RoleEmployee},
		2: {ID: 2, Role: RoleEmployee, Permissions: []Permission{PermManageUsers}},
	})
	r := chi.NewRouter()
	r.Use(m.Authenticate)
	r.With(m.RequirePermission(PermManageUsers)).Post("/users", ok)

	rec, problem := serve(t, r, asUser(httptest.NewRequest(http.MethodPost, "/users", nil), 1))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, MsgNoPermission, problem.Detail)

	rec, _ = serve(t, r, asUser(httptest.NewRequest(http.MethodPost, "/users", nil), 2))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequireVenueAccess(t *testing.T) {
	m, _ := newTestMiddleware(stubSubjects{
		1: {ID: 1, Role: RoleEmployee, AssignedVenues: []int64{1}},
		2: {ID: 2, Role: RoleAdmin},
	})
	r := chi.NewRouter()
	r.Use(m.Authenticate)
	r.With(m.RequireVenueAccess("")).Post("/shifts", ok)
	r.With(m.RequireVenueAccess("")).Get("/venues/{venueId}", ok)

	cases := []struct {
		name   string
		req    *http.Request
		status int
	}{
		{"body venue allowed", asUser(httptest.NewRequest(http.MethodPost, "/shifts", strings.NewReader(`{"venueId":1}`)), 1), http.StatusOK},
		{"body venue denied", asUser(httptest.NewRequest(http.MethodPost, "/shifts", strings.NewReader(`{"venueId":2}`)), 1), http.StatusForbidden},
		{"query venue denied", asUser(httptest.NewRequest(http.MethodPost, "/shifts?venueId=2", nil), 1), http.StatusForbidden},
		{"path venue denied", asUser(httptest.NewRequest(http.MethodGet, "/venues/2", nil), 1), http.StatusForbidden},
		{"no venue passes", asUser(httptest.NewRequest(http.MethodPost, "/shifts", strings.NewReader(`{}`)), 1), http.StatusOK},
		{"admin bypasses", asUser(httptest.NewRequest(http.MethodGet, "/venues/9", nil), 2), http.StatusOK},
		{"malformed venue", asUser(httptest.NewRequest(http.MethodGet, "/venues/abc", nil), 1), http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec, _ := serve(t, r, tc.req)
			assert.Equal(t, tc.status, rec.Code)
		})
	}
}

func TestRequireVenueAccessLeavesBodyForHandler(t *testing.T) {
	m, _ := newTestMiddleware(stubSubjects{1: {ID: 1, Role: RoleManager, AssignedVenues: []int64{1}}})
	r := chi.NewRouter()
	r.Use(m.Authenticate)
	r.With(m.RequireVenueAccess("")).Post("/shifts", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			VenueID int64  `json:"venueId"`
			Role    string `json:"role"`
		}
		require.NoError(t, httpx.DecodeJSON(r, &body))
		httpx.JSON(w, http.StatusCreated, body)
	})

	req := asUser(httptest.NewRequest(http.MethodPost, "/shifts", strings.NewReader(`{"venueId":1,"role":"bar"}`)), 1)
	rec, _ := serve(t, r, req)
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.JSONEq(t, `{"venueId":1,"role":"bar"}`, rec.Body.String())
}

func TestRequireAdminAndSuperAdmin(t *testing.T) {
	m, _ := newTestMiddleware(stubSubjects{
		1: {ID: 1, Role: RoleIT},
		2: {ID: 2, Role: RoleManager},
		3: {ID: 3, Role: RoleSuperAdmin},
	})
	r := chi.NewRouter()
	r.Use(m.Authenticate)
	r.With(m.RequireAdmin()).Get("/admin", ok)
	r.With(m.RequireSuperAdmin()).Get("/root", ok)

	rec, _ := serve(t, r, asUser(httptest.NewRequest(http.MethodGet, "/admin", nil), 1))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, problem := serve(t, r, asUser(httptest.NewRequest(http.MethodGet, "/admin", nil), 2))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, MsgAdminRequired, problem.Detail)

	rec, problem = serve(t, r, asUser(httptest.NewRequest(http.MethodGet, "/root", nil), 1))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, MsgSuperAdminRequired, problem.Detail)

	rec, _ = serve(t, r, asUser(httptest.NewRequest(http.MethodGet, "/root", nil), 3))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequireScoped(t *testing.T) {
	m, denials := newTestMiddleware(stubSubjects{
		1: {ID: 1, Role: RoleManager, AssignedVenues: []int64{1}},
		2: {ID: 2, Role: RoleEmployee, AssignedVenues: []int64{1}},
	})
	scopes := map[int64]Scope{
		10: {OwnerID: 2, VenueID: 1},
		20: {OwnerID: 3, VenueID: 2},
	}
	resolve := func(_ context.Context, id int64) (Scope, error) {
		scope, found := scopes[id]
		if !found {
			return Scope{}, fmt.Errorf("shift %w", httpx.ErrNotFound)
		}
		return scope, nil
	}
	rule := Rule{Global: PermManageAllShifts, Venue: PermManageVenueShifts}

	r := chi.NewRouter()
	r.Use(m.Authenticate)
	r.With(m.RequireScoped("shiftId", resolve, rule, false)).Get("/shifts/{shiftId}", ok)
	r.With(m.RequireScoped("shiftId", resolve, rule, true)).Patch("/shifts/{shiftId}", ok)

	cases := []struct {
		name   string
		method string
		path   string
		user   int64
		status int
	}{
		{"manager writes in venue", http.MethodPatch, "/shifts/10", 1, http.StatusOK},
		{"manager blocked outside venue", http.MethodPatch, "/shifts/20", 1, http.StatusForbidden},
		{"owner reads", http.MethodGet, "/shifts/10", 2, http.StatusOK},
		{"owner cannot write", http.MethodPatch, "/shifts/10", 2, http.StatusForbidden},
		{"missing resource", http.MethodPatch, "/shifts/99", 2, http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec, _ := serve(t, r, asUser(httptest.NewRequest(tc.method, tc.path, nil), tc.user))
			assert.Equal(t, tc.status, rec.Code)
		})
	}
	assert.Contains(t, denials.entries, "scoped:not_found")
}

func TestRequireScopedSurfacesResolverFailures(t *testing.T) {
	m, _ := newTestMiddleware(stubSubjects{1: {ID: 1, Role: RoleAdmin}})
	resolve := func(context.Context, int64) (Scope, error) { return Scope{}, errors.New("db down") }

	r := chi.NewRouter()
	r.Use(m.Authenticate)
	r.With(m.RequireScoped("id", resolve, Rule{Global: PermManageAllShifts}, false)).Get("/x/{id}", ok)

	rec, _ := serve(t, r, asUser(httptest.NewRequest(http.MethodGet, "/x/1", nil), 1))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestRejectPassesThroughDomainErrors(t *testing.T) {
	m, denials := newTestMiddleware(stubSubjects{})

	rec := httptest.NewRecorder()
	m.Reject(rec, httptest.NewRequest(http.MethodGet, "/", nil), "shifts", fmt.Errorf("%w: bad", httpx.ErrValidation))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, denials.entries)
}
