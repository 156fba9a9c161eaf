package users

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/shiftdesk/shiftdesk/internal/authz"
	"github.com/shiftdesk/shiftdesk/internal/platform/httpx"
	"github.com/shiftdesk/shiftdesk/internal/shared"
)

// Service handles user business logic and the authorization rules around
// accounts, roles and grants.
type Service struct {
	repo      Repository
	evaluator *authz.Evaluator
	audit     shared.AuditRecorder
	now       func() time.Time
}

// NewService builds Service instance.
func NewService(repo Repository, evaluator *authz.Evaluator, audit shared.AuditRecorder) *Service {
	return &Service{
		repo:      repo,
		evaluator: evaluator,
		audit:     audit,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// LoadSubject implements authz.SubjectLoader. Inactive accounts are reported
// as not found so they cannot act.
func (s *Service) LoadSubject(ctx context.Context, userID int64) (authz.Subject, error) {
	u, err := s.repo.Get(ctx, userID)
	if err != nil {
		return authz.Subject{}, err
	}
	if !u.IsActive {
		return authz.Subject{}, ErrNotFound
	}
	return u.Subject(), nil
}

// FindByEmail looks a user up for authentication.
func (s *Service) FindByEmail(ctx context.Context, email string) (User, error) {
	return s.repo.FindByEmail(ctx, email)
}

// Exists reports a missing user as ErrNotFound.
func (s *Service) Exists(ctx context.Context, id int64) error {
	_, err := s.repo.Get(ctx, id)
	return err
}

// Get returns a user visible to actor.
func (s *Service) Get(ctx context.Context, actor authz.Subject, id int64) (User, error) {
	if actor.ID != id && !s.evaluator.HasPermission(actor, authz.PermViewAllUsers) {
		return User{}, authz.Forbidden(authz.MsgNotSelf, string(authz.PermViewAllUsers))
	}
	return s.repo.Get(ctx, id)
}

// List returns all users.
func (s *Service) List(ctx context.Context, actor authz.Subject) ([]User, error) {
	if err := authz.Require(s.evaluator.HasPermission(actor, authz.PermViewAllUsers), authz.PermViewAllUsers); err != nil {
		return nil, err
	}
	return s.repo.List(ctx)
}

// Effective describes the permissions user id ends up with.
func (s *Service) Effective(ctx context.Context, actor authz.Subject, id int64) (EffectivePermissions, error) {
	u, err := s.Get(ctx, actor, id)
	if err != nil {
		return EffectivePermissions{}, err
	}
	subject := u.Subject()
	fromRole := s.evaluator.Registry().Permissions(u.Role)
	if u.Role == authz.RoleSuperAdmin {
		fromRole = authz.AllPermissions()
	}
	return EffectivePermissions{
		UserID:         u.ID,
		Role:           u.Role,
		FromRole:       fromRole,
		Granted:        append([]authz.Permission{}, u.Permissions...),
		AllVenues:      authz.IsAdmin(subject),
		AssignedVenues: append([]int64{}, u.AssignedVenues...),
	}, nil
}

// Create registers a new user on behalf of actor.
func (s *Service) Create(ctx context.Context, actor authz.Subject, req CreateUserRequest) (User, error) {
	if err := authz.Require(s.evaluator.HasPermission(actor, authz.PermManageUsers), authz.PermManageUsers); err != nil {
		return User{}, err
	}
	if err := s.evaluator.CanAssignRole(actor, 0, "", req.Role); err != nil {
		return User{}, err
	}
	perms, err := normalizePermissions(req.Permissions)
	if err != nil {
		return User{}, err
	}
	hash, err := hashPassword(req.Password)
	if err != nil {
		return User{}, err
	}
	now := s.now()
	created, err := s.repo.Create(ctx, User{
		Email:          strings.TrimSpace(req.Email),
		Name:           strings.TrimSpace(req.Name),
		PasswordHash:   hash,
		Role:           req.Role,
		Permissions:    perms,
		AssignedVenues: normalizeVenues(req.AssignedVenues),
		IsActive:       true,
		CreatedAt:      now,
		UpdatedAt:      now,
	})
	if err != nil {
		return User{}, err
	}
	s.record(ctx, actor, shared.AuditUserCreated, created.ID, map[string]any{"role": created.Role})
	return created, nil
}

// Update applies a partial update to user id.
//
// Everyone may edit their own name, email and password. Editing anyone else,
// or anything that changes access (grants, venues, activation), requires
// MANAGE_USERS. Roles follow Evaluator.CanAssignRole. Super admin accounts
// are only editable by super admins.
func (s *Service) Update(ctx context.Context, actor authz.Subject, id int64, req UpdateUserRequest) (User, error) {
	target, err := s.repo.Get(ctx, id)
	if err != nil {
		return User{}, err
	}
	self := actor.ID == id
	canManage := s.evaluator.HasPermission(actor, authz.PermManageUsers)
	if !self && !canManage {
		return User{}, authz.MissingPermission(authz.PermManageUsers)
	}
	if !self && target.Role == authz.RoleSuperAdmin && !authz.IsSuperAdmin(actor) {
		return User{}, authz.Forbidden(authz.MsgSuperAdminRequired, string(authz.RoleSuperAdmin))
	}
	if req.touchesAccess() {
		if !canManage {
			return User{}, authz.MissingPermission(authz.PermManageUsers)
		}
		if self && !authz.IsSuperAdmin(actor) {
			return User{}, authz.Forbidden("You cannot change your own access", "self access change")
		}
	}

	updated := target.clone()
	var events []auditEvent
	if req.Role != nil && *req.Role != target.Role {
		if err := s.evaluator.CanAssignRole(actor, id, target.Role, *req.Role); err != nil {
			return User{}, err
		}
		updated.Role = *req.Role
		events = append(events, auditEvent{shared.AuditRoleChanged, map[string]any{"from": target.Role, "to": updated.Role}})
	}
	if req.Permissions != nil {
		perms, err := normalizePermissions(*req.Permissions)
		if err != nil {
			return User{}, err
		}
		updated.Permissions = perms
		events = append(events, auditEvent{shared.AuditGrantsChanged, map[string]any{"from": target.Permissions, "to": perms}})
	}
	if req.AssignedVenues != nil {
		updated.AssignedVenues = normalizeVenues(*req.AssignedVenues)
		events = append(events, auditEvent{shared.AuditVenuesChanged, map[string]any{"from": target.AssignedVenues, "to": updated.AssignedVenues}})
	}
	if req.IsActive != nil {
		updated.IsActive = *req.IsActive
	}
	if req.Email != nil {
		updated.Email = strings.TrimSpace(*req.Email)
	}
	if req.Name != nil {
		updated.Name = strings.TrimSpace(*req.Name)
	}
	if req.Password != nil {
		hash, err := hashPassword(*req.Password)
		if err != nil {
			return User{}, err
		}
		updated.PasswordHash = hash
	}
	updated.UpdatedAt = s.now()

	saved, err := s.repo.Update(ctx, updated)
	if err != nil {
		return User{}, err
	}
	for _, ev := range events {
		s.record(ctx, actor, ev.action, id, ev.meta)
	}
	return saved, nil
}

// Delete removes user id.
func (s *Service) Delete(ctx context.Context, actor authz.Subject, id int64) error {
	if err := authz.Require(s.evaluator.HasPermission(actor, authz.PermManageUsers), authz.PermManageUsers); err != nil {
		return err
	}
	if actor.ID == id {
		return authz.Forbidden("You cannot delete your own account", "self delete")
	}
	target, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if target.Role == authz.RoleSuperAdmin && !authz.IsSuperAdmin(actor) {
		return authz.Forbidden(authz.MsgSuperAdminRequired, string(authz.RoleSuperAdmin))
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.record(ctx, actor, shared.AuditUserDeleted, id, map[string]any{"email": target.Email})
	return nil
}

// EnsureBootstrapAdmin creates the initial super admin when no account with
// email exists yet.
func (s *Service) EnsureBootstrapAdmin(ctx context.Context, email, password string) (bool, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return false, nil
	}
	if _, err := s.repo.FindByEmail(ctx, email); err == nil {
		return false, nil
	} else if !errors.Is(err, httpx.ErrNotFound) {
		return false, err
	}
	hash, err := hashPassword(password)
	if err != nil {
		return false, err
	}
	now := s.now()
	_, err = s.repo.Create(ctx, User{
		Email:        email,
		Name:         "Administrator",
		PasswordHash: hash,
		Role:         authz.RoleSuperAdmin,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	return err == nil, err
}

type auditEvent struct {
	action string
	meta   map[string]any
}

func (s *Service) record(ctx context.Context, actor authz.Subject, action string, userID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	// Audit failures never undo an applied change.
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actor.ID,
		Action:   action,
		Entity:   "user",
		EntityID: strconv.FormatInt(userID, 10),
		Meta:     meta,
		At:       s.now(),
	})
}

func hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

func normalizePermissions(perms []authz.Permission) ([]authz.Permission, error) {
	seen := make(map[authz.Permission]struct{}, len(perms))
	out := make([]authz.Permission, 0, len(perms))
	for _, p := range perms {
		p = authz.Permission(strings.ToUpper(strings.TrimSpace(string(p))))
		if !p.Valid() {
			return nil, fmt.Errorf("%w: unknown permission %q", httpx.ErrValidation, p)
		}
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

func normalizeVenues(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup || id <= 0 {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
