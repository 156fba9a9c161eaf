package shifts

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/shiftdesk/shiftdesk/internal/authz"
	"github.com/shiftdesk/shiftdesk/internal/platform/httpx"
)

// Handler manages shift endpoints.
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

// MountRoutes registers shift routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.authz.RequireAuth())
		r.Get("/", h.listShifts)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.authz.RequireVenueAccess(authz.DefaultVenueParam))
		r.Post("/", h.createShift)
	})
	r.With(h.authz.RequireScoped("shiftId", h.service.Scope, readRule, false)).Get("/{shiftId}", h.showShift)
	r.Group(func(r chi.Router) {
		r.Use(h.authz.RequireScoped("shiftId", h.service.Scope, writeRule, true))
		r.Patch("/{shiftId}", h.updateShift)
		r.Delete("/{shiftId}", h.deleteShift)
	})
}

func (h *Handler) listShifts(w http.ResponseWriter, r *http.Request) {
	actor, err := authz.CurrentSubject(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	f, err := filterFromQuery(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	list, err := h.service.List(r.Context(), actor, f)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if list == nil {
		list = []Shift{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"shifts": list})
}

func (h *Handler) showShift(w http.ResponseWriter, r *http.Request) {
	actor, id, err := h.actorAndID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	sh, err := h.service.Get(r.Context(), actor, id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, sh)
}

func (h *Handler) createShift(w http.ResponseWriter, r *http.Request) {
	actor, err := authz.CurrentSubject(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req CreateShiftRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		h.fail(w, r, httpx.ValidationError(err))
		return
	}
	sh, err := h.service.Create(r.Context(), actor, req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, sh)
}

func (h *Handler) updateShift(w http.ResponseWriter, r *http.Request) {
	actor, id, err := h.actorAndID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req UpdateShiftRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		h.fail(w, r, httpx.ValidationError(err))
		return
	}
	sh, err := h.service.Update(r.Context(), actor, id, req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, sh)
}

func (h *Handler) deleteShift(w http.ResponseWriter, r *http.Request) {
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
	id, err := httpx.PathID(r, "shiftId")
	return actor, id, err
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	h.authz.Reject(w, r, "shifts", err)
}

func filterFromQuery(r *http.Request) (Filter, error) {
	var f Filter
	for name, dst := range map[string]*int64{"employeeId": &f.EmployeeID, "venueId": &f.VenueID} {
		id, ok, err := httpx.QueryID(r, name)
		if err != nil {
			return Filter{}, err
		}
		if ok {
			*dst = id
		}
	}
	var err error
	if f.From, err = httpx.QueryTime(r, "from"); err != nil {
		return Filter{}, err
	}
	if f.To, err = httpx.QueryTime(r, "to"); err != nil {
		return Filter{}, err
	}
	return f, nil
}
