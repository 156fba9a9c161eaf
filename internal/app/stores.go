package app

import (
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shiftdesk/shiftdesk/internal/messages"
	"github.com/shiftdesk/shiftdesk/internal/shared"
	"github.com/shiftdesk/shiftdesk/internal/shifts"
	"github.com/shiftdesk/shiftdesk/internal/tills"
	"github.com/shiftdesk/shiftdesk/internal/timeentries"
	"github.com/shiftdesk/shiftdesk/internal/users"
	"github.com/shiftdesk/shiftdesk/internal/venues"
)

// Stores groups the repositories of one storage driver.
type Stores struct {
	Users       users.Repository
	Venues      venues.Repository
	Shifts      shifts.Repository
	TimeEntries timeentries.Repository
	Messages    messages.Repository
	Tills       tills.Repository
	Audit       shared.AuditRecorder
}

// MemoryStores returns process-local repositories. Audit records go to logger.
func MemoryStores(logger *slog.Logger) Stores {
	return Stores{
		Users:       users.NewMemoryRepository(),
		Venues:      venues.NewMemoryRepository(),
		Shifts:      shifts.NewMemoryRepository(),
		TimeEntries: timeentries.NewMemoryRepository(),
		Messages:    messages.NewMemoryRepository(),
		Tills:       tills.NewMemoryRepository(),
		Audit:       shared.SlogAuditRecorder{Logger: logger},
	}
}

// PostgresStores returns repositories backed by pool.
func PostgresStores(pool *pgxpool.Pool) Stores {
	return Stores{
		Users:       users.NewRepository(pool),
		Venues:      venues.NewRepository(pool),
		Shifts:      shifts.NewRepository(pool),
		TimeEntries: timeentries.NewRepository(pool),
		Messages:    messages.NewRepository(pool),
		Tills:       tills.NewRepository(pool),
		Audit:       shared.NewAuditLogger(pool),
	}
}
