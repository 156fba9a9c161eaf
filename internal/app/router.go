package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/shiftdesk/shiftdesk/internal/auth"
	"github.com/shiftdesk/shiftdesk/internal/authz"
	"github.com/shiftdesk/shiftdesk/internal/messages"
	"github.com/shiftdesk/shiftdesk/internal/observability"
	"github.com/shiftdesk/shiftdesk/internal/shared"
	"github.com/shiftdesk/shiftdesk/internal/shifts"
	"github.com/shiftdesk/shiftdesk/internal/tills"
	"github.com/shiftdesk/shiftdesk/internal/timeentries"
	"github.com/shiftdesk/shiftdesk/internal/users"
	"github.com/shiftdesk/shiftdesk/internal/venues"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger             *slog.Logger
	Config             *Config
	SessionManager     *shared.SessionManager
	CSRFManager        *shared.CSRFManager
	Guards             *authz.Middleware
	AuthHandler        *auth.Handler
	UsersHandler       *users.Handler
	VenuesHandler      *venues.Handler
	ShiftsHandler      *shifts.Handler
	TimeEntriesHandler *timeentries.Handler
	MessagesHandler    *messages.Handler
	TillsHandler       *tills.Handler
	Metrics            *observability.Metrics
}

// NewRouter constructs the chi.Router with shiftdesk defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		CSRFManager:    params.CSRFManager,
		Metrics:        params.Metrics,
	}) {
		r.Use(mw)
	}

	if !InTestMode() {
		r.Use(chimw.Logger)
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(params.Guards.Authenticate)

		r.Route("/auth", params.AuthHandler.MountRoutes)
		r.Route("/users", params.UsersHandler.MountRoutes)
		r.Route("/venues", params.VenuesHandler.MountRoutes)
		r.Route("/shifts", params.ShiftsHandler.MountRoutes)
		r.Route("/time-entries", params.TimeEntriesHandler.MountRoutes)
		r.Route("/messages", params.MessagesHandler.MountRoutes)
		r.Route("/tills", params.TillsHandler.MountRoutes)
	})

	return r
}
