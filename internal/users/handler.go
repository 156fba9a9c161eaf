package users

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/shiftdesk/shiftdesk/internal/authz"
	"github.com/shiftdesk/shiftdesk/internal/platform/httpx"
	"github.com/shiftdesk/shiftdesk/internal/shared"
)

// Handler manages user management endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	authz     *authz.Middleware
	validator *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, guards *authz.Middleware) *Handler {
	return &Handler{logger: logger, service: service, authz: guards, validator: validator.New()}
}

// MountRoutes registers user routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.authz.RequireAuth())
		r.Get("/me", h.me)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.authz.RequirePermission(authz.PermViewAllUsers))
		r.Get("/", h.listUsers)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.authz.RequirePermission(authz.PermManageUsers))
		r.Post("/", h.createUser)
		r.Delete("/{userId}", h.deleteUser)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.authz.RequireSelfOrPermission(authz.DefaultUserParam, authz.PermViewAllUsers))
		r.Get("/{userId}", h.showUser)
		r.Get("/{userId}/permissions", h.showPermissions)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.authz.RequireSelfOrPermission(authz.DefaultUserParam, authz.PermManageUsers))
		r.Patch("/{userId}", h.updateUser)
	})
}

type listResponse struct {
	Users      []User            `json:"users"`
	Pagination shared.Pagination `json:"pagination"`
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	actor, err := authz.CurrentSubject(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	u, err := h.service.Get(r.Context(), actor, actor.ID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, u)
}

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	actor, err := authz.CurrentSubject(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	all, err := h.service.List(r.Context(), actor)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	page := shared.PaginationFromQuery(r.URL.Query(), len(all))
	start, end := page.Window()
	httpx.JSON(w, http.StatusOK, listResponse{Users: append([]User{}, all[start:end]...), Pagination: page})
}

func (h *Handler) showUser(w http.ResponseWriter, r *http.Request) {
	actor, id, err := h.actorAndID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	u, err := h.service.Get(r.Context(), actor, id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, u)
}

func (h *Handler) showPermissions(w http.ResponseWriter, r *http.Request) {
	actor, id, err := h.actorAndID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	eff, err := h.service.Effective(r.Context(), actor, id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, eff)
}

func (h *Handler) createUser(w http.ResponseWriter, r *http.Request) {
	actor, err := authz.CurrentSubject(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req CreateUserRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		h.fail(w, r, httpx.ValidationError(err))
		return
	}
	u, err := h.service.Create(r.Context(), actor, req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, u)
}

func (h *Handler) updateUser(w http.ResponseWriter, r *http.Request) {
	actor, id, err := h.actorAndID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req UpdateUserRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		h.fail(w, r, httpx.ValidationError(err))
		return
	}
	u, err := h.service.Update(r.Context(), actor, id, req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, u)
}

func (h *Handler) deleteUser(w http.ResponseWriter, r *http.Request) {
	actor, id, err := h.actorAndID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.service.Delete(r.Context(), actor, id); err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) actorAndID(r *http.Request) (authz.Subject, int64, error) {
	actor, err := authz.CurrentSubject(r.Context())
	if err != nil {
		return authz.Subject{}, 0, err
	}
	id, err := httpx.PathID(r, authz.DefaultUserParam)
	return actor, id, err
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	h.authz.Reject(w, r, "users", err)
}
