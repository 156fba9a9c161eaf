package authz

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/shiftdesk/shiftdesk/internal/platform/httpx"
	"github.com/shiftdesk/shiftdesk/internal/shared"
)

const subjectLoadTimeout = 5 * time.Second

// SubjectLoader fetches the current snapshot of a user. Missing or inactive
// users are reported as httpx.ErrNotFound.
type SubjectLoader interface {
	LoadSubject(ctx context.Context, userID int64) (Subject, error)
}

// DenialRecorder counts rejected requests.
type DenialRecorder interface {
	RecordDenial(guard, reason string)
}

// ScopeResolver loads the scope of the resource identified by id. It returns
// an error wrapping httpx.ErrNotFound when the resource does not exist.
type ScopeResolver func(ctx context.Context, id int64) (Scope, error)

// Middleware wires authentication and access-control guards for HTTP handlers.
type Middleware struct {
	Evaluator *Evaluator
	Subjects  SubjectLoader
	Logger    *slog.Logger
	Denials   DenialRecorder

	loads singleflight.Group
}

// NewMiddleware builds a Middleware.
func NewMiddleware(evaluator *Evaluator, subjects SubjectLoader, logger *slog.Logger, denials DenialRecorder) *Middleware {
	return &Middleware{Evaluator: evaluator, Subjects: subjects, Logger: logger, Denials: denials}
}

// Authenticate attaches the session user to the request context. It never
// rejects; requests without a usable session simply carry no subject.
func (m *Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, ok := m.sessionUserID(r)
		if !ok {
			next.ServeHTTP(w, r)
			return
		}
		subject, err := m.loadSubject(r.Context(), userID)
		if err != nil {
			if errors.Is(err, httpx.ErrNotFound) {
				next.ServeHTTP(w, r)
				return
			}
			m.logError("authz load subject", err)
			httpx.RespondError(w, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(ContextWithSubject(r.Context(), subject)))
	})
}

// RequireAuth rejects requests without an authenticated subject.
func (m *Middleware) RequireAuth() func(http.Handler) http.Handler {
	return m.guard("auth", func(*http.Request, Subject) error { return nil })
}

// RequirePermission rejects subjects lacking perm.
func (m *Middleware) RequirePermission(perm Permission) func(http.Handler) http.Handler {
	return m.guard("permission", func(_ *http.Request, s Subject) error {
		return Require(m.Evaluator.HasPermission(s, perm), perm)
	})
}

// RequireVenueAccess rejects subjects that cannot reach the venue named by
// param. Requests carrying no venue pass through.
func (m *Middleware) RequireVenueAccess(param string) func(http.Handler) http.Handler {
	if param == "" {
		param = DefaultVenueParam
	}
	return m.guard("venue", func(r *http.Request, s Subject) error {
		venueID, ok, err := LookupParam(r, param)
		if err != nil || !ok {
			return err
		}
		if !m.Evaluator.HasVenueAccess(s, venueID) {
			return MissingVenue()
		}
		return nil
	})
}

// RequireAdmin rejects subjects outside super_admin, admin and it.
func (m *Middleware) RequireAdmin() func(http.Handler) http.Handler {
	return m.guard("admin", func(_ *http.Request, s Subject) error {
		if !IsAdmin(s) {
			return Forbidden(MsgAdminRequired, "admin role")
		}
		return nil
	})
}

// RequireSuperAdmin rejects everyone but super admins.
func (m *Middleware) RequireSuperAdmin() func(http.Handler) http.Handler {
	return m.guard("super_admin", func(_ *http.Request, s Subject) error {
		if !IsSuperAdmin(s) {
			return Forbidden(MsgSuperAdminRequired, string(RoleSuperAdmin))
		}
		return nil
	})
}

// RequireSelfOrPermission lets subjects act on their own user id and requires
// perm for anyone else's. Requests carrying no user id pass through.
func (m *Middleware) RequireSelfOrPermission(param string, perm Permission) func(http.Handler) http.Handler {
	if param == "" {
		param = DefaultUserParam
	}
	return m.guard("self_or_permission", func(r *http.Request, s Subject) error {
		userID, ok, err := LookupParam(r, param)
		if err != nil || !ok {
			return err
		}
		if userID == s.ID || m.Evaluator.HasPermission(s, perm) {
			return nil
		}
		return Forbidden(MsgNotSelf, string(perm))
	})
}

// RequireScoped resolves the stored resource named by param and applies rule
// to it. A missing resource is reported before any permission reasoning.
func (m *Middleware) RequireScoped(param string, resolve ScopeResolver, rule Rule, write bool) func(http.Handler) http.Handler {
	return m.guard("scoped", func(r *http.Request, s Subject) error {
		id, ok, err := LookupParam(r, param)
		if err != nil {
			return err
		}
		if !ok {
			return NotFound("resource")
		}
		scope, err := resolve(r.Context(), id)
		if err != nil {
			if errors.Is(err, httpx.ErrNotFound) {
				return NotFound("resource")
			}
			return err
		}
		allowed := m.Evaluator.CanRead(s, scope, rule)
		if write {
			allowed = m.Evaluator.CanWrite(s, scope, rule)
		}
		if !allowed {
			return MissingPermission(rule.Global)
		}
		return nil
	})
}

// Reject writes err as a terminal response. Denials are logged and counted;
// handlers use it for errors raised after the guards passed.
func (m *Middleware) Reject(w http.ResponseWriter, r *http.Request, guard string, err error) {
	var denied *Denied
	if errors.As(err, &denied) {
		if m.Logger != nil {
			attrs := []any{
				slog.String("guard", guard),
				slog.String("missing", denied.Missing),
				slog.String("path", r.URL.Path),
			}
			if s, ok := SubjectFromContext(r.Context()); ok {
				attrs = append(attrs, slog.Int64("user_id", s.ID), slog.String("role", string(s.Role)))
			}
			m.Logger.Warn("authz denied", attrs...)
		}
		if m.Denials != nil {
			m.Denials.RecordDenial(guard, denialReason(denied))
		}
		httpx.RespondError(w, denied)
		return
	}
	if httpx.StatusOf(err) >= http.StatusInternalServerError && m.Logger != nil {
		m.Logger.Error("request failed", slog.String("stage", guard), slog.String("path", r.URL.Path), slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

func (m *Middleware) guard(name string, check func(*http.Request, Subject) error) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			subject, ok := SubjectFromContext(r.Context())
			if !ok {
				m.Reject(w, r, name, Unauthenticated())
				return
			}
			if err := check(r, subject); err != nil {
				m.Reject(w, r, name, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// loadSubject shares concurrent loads of the same user. The shared load is
// detached from any single caller; each caller stops waiting when its own
// context ends.
func (m *Middleware) loadSubject(ctx context.Context, userID int64) (Subject, error) {
	ch := m.loads.DoChan(strconv.FormatInt(userID, 10), func() (interface{}, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), subjectLoadTimeout)
		defer cancel()
		return m.Subjects.LoadSubject(loadCtx, userID)
	})
	select {
	case <-ctx.Done():
		return Subject{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return Subject{}, res.Err
		}
		return res.Val.(Subject), nil
	}
}

func (m *Middleware) sessionUserID(r *http.Request) (int64, bool) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		return 0, false
	}
	raw := strings.TrimSpace(sess.User())
	if raw == "" {
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		if m.Logger != nil {
			m.Logger.Error("authz parse user id", slog.String("value", raw))
		}
		return 0, false
	}
	return id, true
}

func (m *Middleware) logError(msg string, err error) {
	if m.Logger != nil {
		m.Logger.Error(msg, slog.Any("error", err))
	}
}

func denialReason(d *Denied) string {
	switch {
	case errors.Is(d, httpx.ErrUnauthorized):
		return "unauthenticated"
	case errors.Is(d, httpx.ErrNotFound):
		return "not_found"
	default:
		return "forbidden"
	}
}
