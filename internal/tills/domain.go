package tills

import (
	"time"

	"github.com/shiftdesk/shiftdesk/internal/authz"
)

// Verification is the end-of-shift cash count of a till. Verifying it is a
// manager action separate from recording the count.
type Verification struct {
	ID            int64      `json:"id"`
	EmployeeID    int64      `json:"employeeId"`
	ShiftID       int64      `json:"shiftId"`
	VenueID       int64      `json:"venueId"`
	ExpectedCents int64      `json:"expectedCents"`
	CountedCents  int64      `json:"countedCents"`
	Notes         string     `json:"notes"`
	VerifiedBy    *int64     `json:"verifiedBy"`
	VerifiedAt    *time.Time `json:"verifiedAt"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

// Verified reports whether a manager signed the count off.
func (v Verification) Verified() bool {
	return v.VerifiedAt != nil
}

// DiscrepancyCents is counted minus expected.
func (v Verification) DiscrepancyCents() int64 {
	return v.CountedCents - v.ExpectedCents
}

// Scope locates the verification for authorization.
func (v Verification) Scope() authz.Scope {
	return authz.Scope{OwnerID: v.EmployeeID, VenueID: v.VenueID}
}

func (v Verification) clone() Verification {
	if v.VerifiedBy != nil {
		id := *v.VerifiedBy
		v.VerifiedBy = &id
	}
	if v.VerifiedAt != nil {
		t := *v.VerifiedAt
		v.VerifiedAt = &t
	}
	return v
}

// Filter narrows listings. Zero fields do not filter.
type Filter struct {
	EmployeeID int64
	VenueID    int64
	ShiftID    int64
}

func (f Filter) match(v Verification) bool {
	if f.EmployeeID != 0 && v.EmployeeID != f.EmployeeID {
		return false
	}
	if f.VenueID != 0 && v.VenueID != f.VenueID {
		return false
	}
	if f.ShiftID != 0 && v.ShiftID != f.ShiftID {
		return false
	}
	return true
}

// CreateRequest records a till count for a shift.
type CreateRequest struct {
	ShiftID       int64      `json:"shiftId" validate:"required,gt=0"`
	ExpectedCents int64      `json:"expectedCents" validate:"gte=0"`
	CountedCents  int64      `json:"countedCents" validate:"gte=0"`
	Notes         string     `json:"notes" validate:"max=2000"`
	VerifiedBy    *int64     `json:"verifiedBy" validate:"omitempty,gt=0"`
	VerifiedAt    *time.Time `json:"verifiedAt"`
}

// UpdateRequest is a partial update.
type UpdateRequest struct {
	ExpectedCents *int64     `json:"expectedCents" validate:"omitempty,gte=0"`
	CountedCents  *int64     `json:"countedCents" validate:"omitempty,gte=0"`
	Notes         *string    `json:"notes" validate:"omitempty,max=2000"`
	VerifiedBy    *int64     `json:"verifiedBy" validate:"omitempty,gt=0"`
	VerifiedAt    *time.Time `json:"verifiedAt"`
}

func (r UpdateRequest) setsVerification() bool {
	return r.VerifiedBy != nil || r.VerifiedAt != nil
}

var (
	readRule   = authz.Rule{Global: authz.PermViewAllTills, Venue: authz.PermManageVenueTills}
	manageRule = authz.Rule{Global: authz.PermManageAllTills, Venue: authz.PermManageVenueTills}
)
