package shifts

import (
	"time"

	"github.com/shiftdesk/shiftdesk/internal/authz"
)

// Shift is one scheduled work period of an employee at a venue.
type Shift struct {
	ID         int64     `json:"id"`
	EmployeeID int64     `json:"employeeId"`
	VenueID    int64     `json:"venueId"`
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
	Role       string    `json:"role"`
	Notes      string    `json:"notes"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// Scope locates the shift for authorization.
func (s Shift) Scope() authz.Scope {
	return authz.Scope{OwnerID: s.EmployeeID, VenueID: s.VenueID}
}

// Filter narrows shift listings. Zero fields do not filter.
type Filter struct {
	EmployeeID int64
	VenueID    int64
	From       time.Time
	To         time.Time
}

func (f Filter) match(s Shift) bool {
	if f.EmployeeID != 0 && s.EmployeeID != f.EmployeeID {
		return false
	}
	if f.VenueID != 0 && s.VenueID != f.VenueID {
		return false
	}
	if !f.From.IsZero() && s.End.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && s.Start.After(f.To) {
		return false
	}
	return true
}

// CreateShiftRequest is the payload for scheduling a shift.
type CreateShiftRequest struct {
	EmployeeID int64     `json:"employeeId" validate:"required,gt=0"`
	VenueID    int64     `json:"venueId" validate:"required,gt=0"`
	Start      time.Time `json:"start" validate:"required"`
	End        time.Time `json:"end" validate:"required,gtfield=Start"`
	Role       string    `json:"role" validate:"max=100"`
	Notes      string    `json:"notes" validate:"max=2000"`
}

// UpdateShiftRequest is a partial update.
type UpdateShiftRequest struct {
	EmployeeID *int64     `json:"employeeId" validate:"omitempty,gt=0"`
	VenueID    *int64     `json:"venueId" validate:"omitempty,gt=0"`
	Start      *time.Time `json:"start"`
	End        *time.Time `json:"end"`
	Role       *string    `json:"role" validate:"omitempty,max=100"`
	Notes      *string    `json:"notes" validate:"omitempty,max=2000"`
}

// Read access: owner, VIEW_ALL_SHIFTS, or MANAGE_VENUE_SHIFTS in the venue.
// Writes drop the owner branch.
var (
	readRule  = authz.Rule{Global: authz.PermViewAllShifts, Venue: authz.PermManageVenueShifts}
	writeRule = authz.Rule{Global: authz.PermManageAllShifts, Venue: authz.PermManageVenueShifts}
)

