package timeentries

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/shiftdesk/shiftdesk/internal/authz"
	"github.com/shiftdesk/shiftdesk/internal/platform/httpx"
)

// Handler manages time entry endpoints.
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

// MountRoutes registers time entry routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.authz.RequireAuth())
		r.Get("/", h.listEntries)
		r.Post("/", h.clockIn)
		r.Patch("/{entryId}", h.updateEntry)
	})
	r.With(h.authz.RequireScoped("entryId", h.service.Scope, readRule, false)).Get("/{entryId}", h.showEntry)
	r.Group(func(r chi.Router) {
		r.Use(h.authz.RequireScoped("entryId", h.service.Scope, manageRule, true))
		r.Post("/{entryId}/approve", h.approveEntry)
		r.Delete("/{entryId}", h.deleteEntry)
	})
}

func (h *Handler) listEntries(w http.ResponseWriter, r *http.Request) {
	actor, err := authz.CurrentSubject(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var f Filter
	if id, ok, err := httpx.QueryID(r, "employeeId"); err != nil {
		h.fail(w, r, err)
		return
	} else if ok {
		f.EmployeeID = id
	}
	if id, ok, err := httpx.QueryID(r, "shiftId"); err != nil {
		h.fail(w, r, err)
		return
	} else if ok {
		f.ShiftID = id
	}
	list, err := h.service.List(r.Context(), actor, f)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if list == nil {
		list = []TimeEntry{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"timeEntries": list})
}

func (h *Handler) showEntry(w http.ResponseWriter, r *http.Request) {
	actor, id, err := h.actorAndID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	e, err := h.service.Get(r.Context(), actor, id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, e)
}

func (h *Handler) clockIn(w http.ResponseWriter, r *http.Request) {
	actor, err := authz.CurrentSubject(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req ClockInRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		h.fail(w, r, httpx.ValidationError(err))
		return
	}
	e, err := h.service.ClockIn(r.Context(), actor, req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, e)
}

func (h *Handler) updateEntry(w http.ResponseWriter, r *http.Request) {
	actor, id, err := h.actorAndID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req UpdateTimeEntryRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		h.fail(w, r, httpx.ValidationError(err))
		return
	}
	e, err := h.service.Update(r.Context(), actor, id, req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, e)
}

func (h *Handler) approveEntry(w http.ResponseWriter, r *http.Request) {
	actor, id, err := h.actorAndID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	e, err := h.service.Approve(r.Context(), actor, id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, e)
}

func (h *Handler) deleteEntry(w http.ResponseWriter, r *http.Request) {
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
	id, err := httpx.PathID(r, "entryId")
	return actor, id, err
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	h.authz.Reject(w, r, "time_entries", err)
}
