package app

import (
	"log/slog"
	"net/http"

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

// Deps are the process-level dependencies the application is built from.
type Deps struct {
	Logger         *slog.Logger
	Config         *Config
	Stores         Stores
	Registry       *authz.Registry
	SessionManager *shared.SessionManager
	CSRFManager    *shared.CSRFManager
	Metrics        *observability.Metrics
}

// Application is the wired service graph plus its HTTP entry point.
type Application struct {
	Evaluator *authz.Evaluator
	Users     *users.Service
	Venues    *venues.Service
	Shifts    *shifts.Service
	Router    http.Handler
}

// New wires services, guards and handlers. A nil registry means the default
// role grants.
func New(deps Deps) *Application {
	registry := deps.Registry
	if registry == nil {
		registry = authz.DefaultRegistry()
	}
	evaluator := authz.NewEvaluator(registry)

	usersService := users.NewService(deps.Stores.Users, evaluator, deps.Stores.Audit)
	venuesService := venues.NewService(deps.Stores.Venues, evaluator)
	shiftsService := shifts.NewService(deps.Stores.Shifts, evaluator, venuesService, usersService)
	timeEntriesService := timeentries.NewService(deps.Stores.TimeEntries, shiftsService, evaluator, deps.Stores.Audit)
	messagesService := messages.NewService(deps.Stores.Messages, evaluator, venuesService, usersService)
	tillsService := tills.NewService(deps.Stores.Tills, shiftsService, evaluator, deps.Stores.Audit)
	authService := auth.NewService(usersService)

	guards := authz.NewMiddleware(evaluator, usersService, deps.Logger, deps.Metrics)

	router := NewRouter(RouterParams{
		Logger:             deps.Logger,
		Config:             deps.Config,
		SessionManager:     deps.SessionManager,
		CSRFManager:        deps.CSRFManager,
		Guards:             guards,
		AuthHandler:        auth.NewHandler(deps.Logger, authService, deps.SessionManager, deps.CSRFManager, deps.Metrics),
		UsersHandler:       users.NewHandler(deps.Logger, usersService, guards),
		VenuesHandler:      venues.NewHandler(deps.Logger, venuesService, guards),
		ShiftsHandler:      shifts.NewHandler(deps.Logger, shiftsService, guards),
		TimeEntriesHandler: timeentries.NewHandler(deps.Logger, timeEntriesService, guards),
		MessagesHandler:    messages.NewHandler(deps.Logger, messagesService, guards),
		TillsHandler:       tills.NewHandler(deps.Logger, tillsService, guards),
		Metrics:            deps.Metrics,
	})

	return &Application{
		Evaluator: evaluator,
		Users:     usersService,
		Venues:    venuesService,
		Shifts:    shiftsService,
		Router:    router,
	}
}
