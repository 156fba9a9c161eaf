package messages

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/shiftdesk/shiftdesk/internal/authz"
	"github.com/shiftdesk/shiftdesk/internal/platform/httpx"
)

// Handler manages messaging endpoints.
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

// MountRoutes registers messaging routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.authz.RequireAuth())
		r.Get("/", h.listMessages)
		r.Get("/{messageId}", h.showMessage)
		r.Post("/{messageId}/read", h.markRead)
		r.Delete("/{messageId}", h.deleteMessage)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.authz.RequirePermission(authz.PermSendMessages))
		r.Use(h.authz.RequireVenueAccess(authz.DefaultVenueParam))
		r.Post("/", h.sendMessage)
	})
}

func (h *Handler) listMessages(w http.ResponseWriter, r *http.Request) {
	actor, err := authz.CurrentSubject(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	list, err := h.service.List(r.Context(), actor, Box(r.URL.Query().Get("box")))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if list == nil {
		list = []Message{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"messages": list})
}

func (h *Handler) showMessage(w http.ResponseWriter, r *http.Request) {
	actor, id, err := h.actorAndID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	m, err := h.service.Get(r.Context(), actor, id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, m)
}

func (h *Handler) sendMessage(w http.ResponseWriter, r *http.Request) {
	actor, err := authz.CurrentSubject(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req SendMessageRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		h.fail(w, r, httpx.ValidationError(err))
		return
	}
	m, err := h.service.Send(r.Context(), actor, req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, m)
}

func (h *Handler) markRead(w http.ResponseWriter, r *http.Request) {
	actor, id, err := h.actorAndID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	m, err := h.service.MarkRead(r.Context(), actor, id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, m)
}

func (h *Handler) deleteMessage(w http.ResponseWriter, r *http.Request) {
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
	id, err := httpx.PathID(r, "messageId")
	return actor, id, err
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	h.authz.Reject(w, r, "messages", err)
}
