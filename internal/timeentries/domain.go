package timeentries

import (
	"slices"
	"time"

	"github.com/shiftdesk/shiftdesk/internal/authz"
)

// TimeEntry records the hours an employee actually worked on a shift.
type TimeEntry struct {
	ID           int64      `json:"id"`
	EmployeeID   int64      `json:"employeeId"`
	ShiftID      int64      `json:"shiftId"`
	ClockIn      time.Time  `json:"clockIn"`
	ClockOut     *time.Time `json:"clockOut"`
	BreakMinutes int        `json:"breakMinutes"`
	Notes        string     `json:"notes"`
	ApprovedBy   *int64     `json:"approvedBy"`
	ApprovedAt   *time.Time `json:"approvedAt"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

// Approved reports whether a manager signed the entry off.
func (e TimeEntry) Approved() bool {
	return e.ApprovedAt != nil
}

// Worked returns the paid duration, or zero while clocked in.
func (e TimeEntry) Worked() time.Duration {
	if e.ClockOut == nil {
		return 0
	}
	d := e.ClockOut.Sub(e.ClockIn) - time.Duration(e.BreakMinutes)*time.Minute
	if d < 0 {
		return 0
	}
	return d
}

func (e TimeEntry) clone() TimeEntry {
	if e.ClockOut != nil {
		t := *e.ClockOut
		e.ClockOut = &t
	}
	if e.ApprovedBy != nil {
		id := *e.ApprovedBy
		e.ApprovedBy = &id
	}
	if e.ApprovedAt != nil {
		t := *e.ApprovedAt
		e.ApprovedAt = &t
	}
	return e
}

// Filter narrows time entry listings. Zero fields do not filter.
type Filter struct {
	EmployeeID int64
	ShiftID    int64
	// ShiftIDs restricts to entries of these shifts when non-nil. An empty,
	// non-nil slice matches nothing.
	ShiftIDs []int64
}

func (f Filter) match(e TimeEntry) bool {
	if f.EmployeeID != 0 && e.EmployeeID != f.EmployeeID {
		return false
	}
	if f.ShiftID != 0 && e.ShiftID != f.ShiftID {
		return false
	}
	if f.ShiftIDs != nil && !slices.Contains(f.ShiftIDs, e.ShiftID) {
		return false
	}
	return true
}

// ClockInRequest opens a time entry. ClockIn defaults to now.
type ClockInRequest struct {
	ShiftID      int64      `json:"shiftId" validate:"required,gt=0"`
	ClockIn      *time.Time `json:"clockIn"`
	ClockOut     *time.Time `json:"clockOut"`
	BreakMinutes int        `json:"breakMinutes" validate:"gte=0,lte=1440"`
	Notes        string     `json:"notes" validate:"max=2000"`
}

// UpdateTimeEntryRequest is a partial update.
type UpdateTimeEntryRequest struct {
	ClockIn      *time.Time `json:"clockIn"`
	ClockOut     *time.Time `json:"clockOut"`
	BreakMinutes *int       `json:"breakMinutes" validate:"omitempty,gte=0,lte=1440"`
	Notes        *string    `json:"notes" validate:"omitempty,max=2000"`
}

var (
	readRule   = authz.Rule{Global: authz.PermViewAllTimeEntries, Venue: authz.PermManageVenueTimeEntries}
	manageRule = authz.Rule{Global: authz.PermManageAllTimeEntries, Venue: authz.PermManageVenueTimeEntries}
)
