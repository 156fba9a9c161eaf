package tills

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/shiftdesk/shiftdesk/internal/authz"
	"github.com/shiftdesk/shiftdesk/internal/platform/httpx"
)

// Handler manages till verification endpoints.
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

// MountRoutes registers till routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.authz.RequireAuth())
		r.Get("/", h.listTills)
		r.Post("/", h.createTill)
		r.Get("/{tillId}", h.showTill)
		r.Patch("/{tillId}", h.updateTill)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.authz.RequireScoped("tillId", h.service.Scope, manageRule, true))
		r.Post("/{tillId}/verify", h.verifyTill)
		r.Delete("/{tillId}", h.deleteTill)
	})
}

func (h *Handler) listTills(w http.ResponseWriter, r *http.Request) {
	actor, err := authz.CurrentSubject(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var f Filter
	for name, dst := range map[string]*int64{"employeeId": &f.EmployeeID, "venueId": &f.VenueID, "shiftId": &f.ShiftID} {
		id, ok, err := httpx.QueryID(r, name)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		if ok {
			*dst = id
		}
	}
	list, err := h.service.List(r.Context(), actor, f)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if list == nil {
		list = []Verification{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"tills": list})
}

func (h *Handler) showTill(w http.ResponseWriter, r *http.Request) {
	actor, id, err := h.actorAndID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	v, err := h.service.Get(r.Context(), actor, id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, v)
}

func (h *Handler) createTill(w http.ResponseWriter, r *http.Request) {
	actor, err := authz.CurrentSubject(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req CreateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		h.fail(w, r, httpx.ValidationError(err))
		return
	}
	v, err := h.service.Create(r.Context(), actor, req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, v)
}

func (h *Handler) updateTill(w http.ResponseWriter, r *http.Request) {
	actor, id, err := h.actorAndID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req UpdateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		h.fail(w, r, httpx.ValidationError(err))
		return
	}
	v, err := h.service.Update(r.Context(), actor, id, req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, v)
}

func (h *Handler) verifyTill(w http.ResponseWriter, r *http.Request) {
	actor, id, err := h.actorAndID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	v, err := h.service.Verify(r.Context(), actor, id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, v)
}

func (h *Handler) deleteTill(w http.ResponseWriter, r *http.Request) {
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
	id, err := httpx.PathID(r, "tillId")
	return actor, id, err
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	h.authz.Reject(w, r, "tills", err)
}
