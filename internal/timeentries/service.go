package timeentries

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shiftdesk/shiftdesk/internal/authz"
	"github.com/shiftdesk/shiftdesk/internal/platform/httpx"
	"github.com/shiftdesk/shiftdesk/internal/shared"
	"github.com/shiftdesk/shiftdesk/internal/shifts"
)

// ShiftLocator resolves the shifts entries are recorded against.
type ShiftLocator interface {
	Locate(ctx context.Context, id int64) (shifts.Shift, error)
	Find(ctx context.Context, f shifts.Filter) ([]shifts.Shift, error)
}

// Service handles clocking and approval of time entries.
type Service struct {
	repo      Repository
	shifts    ShiftLocator
	evaluator *authz.Evaluator
	audit     shared.AuditRecorder
	now       func() time.Time
}

// NewService builds Service instance.
func NewService(repo Repository, shiftLocator ShiftLocator, evaluator *authz.Evaluator, audit shared.AuditRecorder) *Service {
	return &Service{
		repo:      repo,
		shifts:    shiftLocator,
		evaluator: evaluator,
		audit:     audit,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Scope resolves entry id to its owner and the venue of its shift.
func (s *Service) Scope(ctx context.Context, id int64) (authz.Scope, error) {
	_, scope, err := s.load(ctx, id)
	return scope, err
}

func (s *Service) load(ctx context.Context, id int64) (TimeEntry, authz.Scope, error) {
	e, err := s.repo.Get(ctx, id)
	if err != nil {
		return TimeEntry{}, authz.Scope{}, err
	}
	sh, err := s.shifts.Locate(ctx, e.ShiftID)
	if err != nil {
		return TimeEntry{}, authz.Scope{}, err
	}
	return e, authz.Scope{OwnerID: e.EmployeeID, VenueID: sh.VenueID}, nil
}

// List returns the entries matching f that actor may read.
func (s *Service) List(ctx context.Context, actor authz.Subject, f Filter) ([]TimeEntry, error) {
	return authz.CollectVisible(ctx, s.evaluator, actor, readRule, authz.Listing[TimeEntry]{
		All: func(ctx context.Context) ([]TimeEntry, error) {
			return s.repo.List(ctx, f)
		},
		Owned: func(ctx context.Context, ownerID int64) ([]TimeEntry, error) {
			if f.EmployeeID != 0 && f.EmployeeID != ownerID {
				return nil, nil
			}
			owned := f
			owned.EmployeeID = ownerID
			return s.repo.List(ctx, owned)
		},
		InVenue: func(ctx context.Context, venueID int64) ([]TimeEntry, error) {
			venueShifts, err := s.shifts.Find(ctx, shifts.Filter{VenueID: venueID})
			if err != nil {
				return nil, err
			}
			scoped := f
			scoped.ShiftIDs = make([]int64, 0, len(venueShifts))
			for _, sh := range venueShifts {
				scoped.ShiftIDs = append(scoped.ShiftIDs, sh.ID)
			}
			return s.repo.List(ctx, scoped)
		},
		ID: func(e TimeEntry) int64 { return e.ID },
	})
}

// Get returns entry id when actor may read it.
func (s *Service) Get(ctx context.Context, actor authz.Subject, id int64) (TimeEntry, error) {
	e, scope, err := s.load(ctx, id)
	if err != nil {
		return TimeEntry{}, err
	}
	if !s.evaluator.CanRead(actor, scope, readRule) {
		return TimeEntry{}, authz.MissingPermission(authz.PermViewAllTimeEntries)
	}
	return e, nil
}

// ClockIn opens an entry on a shift. Employees clock in for their own
// shifts; managers may record entries for shifts they manage.
func (s *Service) ClockIn(ctx context.Context, actor authz.Subject, req ClockInRequest) (TimeEntry, error) {
	sh, err := s.shifts.Locate(ctx, req.ShiftID)
	if err != nil {
		return TimeEntry{}, err
	}
	scope := sh.Scope()
	if !authz.OwnsResource(actor, scope) && !s.evaluator.CanWrite(actor, scope, manageRule) {
		return TimeEntry{}, authz.Forbidden("You can only clock in for your own shifts", string(authz.PermManageVenueTimeEntries))
	}
	now := s.now()
	e := TimeEntry{
		EmployeeID:   sh.EmployeeID,
		ShiftID:      sh.ID,
		ClockIn:      now,
		BreakMinutes: req.BreakMinutes,
		Notes:        strings.TrimSpace(req.Notes),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if req.ClockIn != nil {
		e.ClockIn = req.ClockIn.UTC()
	}
	if req.ClockOut != nil {
		out := req.ClockOut.UTC()
		e.ClockOut = &out
	}
	if err := validateTimes(e); err != nil {
		return TimeEntry{}, err
	}
	return s.repo.Create(ctx, e)
}

// Update applies a partial update. Managers may edit any field; the owner may
// clock out, record breaks and edit notes until the entry is approved.
func (s *Service) Update(ctx context.Context, actor authz.Subject, id int64, req UpdateTimeEntryRequest) (TimeEntry, error) {
	e, scope, err := s.load(ctx, id)
	if err != nil {
		return TimeEntry{}, err
	}
	if !s.evaluator.CanWrite(actor, scope, manageRule) {
		if !authz.OwnsResource(actor, scope) {
			return TimeEntry{}, authz.MissingPermission(authz.PermManageAllTimeEntries)
		}
		if e.Approved() {
			return TimeEntry{}, authz.Forbidden("Approved time entries can no longer be edited", string(authz.PermManageVenueTimeEntries))
		}
		if req.ClockIn != nil && !req.ClockIn.Equal(e.ClockIn) {
			return TimeEntry{}, authz.Forbidden("Only managers can change the clock-in time", string(authz.PermManageVenueTimeEntries))
		}
	}
	if req.ClockIn != nil {
		e.ClockIn = req.ClockIn.UTC()
	}
	if req.ClockOut != nil {
		out := req.ClockOut.UTC()
		e.ClockOut = &out
	}
	if req.BreakMinutes != nil {
		e.BreakMinutes = *req.BreakMinutes
	}
	if req.Notes != nil {
		e.Notes = strings.TrimSpace(*req.Notes)
	}
	if err := validateTimes(e); err != nil {
		return TimeEntry{}, err
	}
	e.UpdatedAt = s.now()
	return s.repo.Update(ctx, e)
}

// Approve signs off a completed entry. Owning the entry never qualifies.
func (s *Service) Approve(ctx context.Context, actor authz.Subject, id int64) (TimeEntry, error) {
	e, scope, err := s.load(ctx, id)
	if err != nil {
		return TimeEntry{}, err
	}
	if !s.evaluator.CanWrite(actor, authz.Scope{VenueID: scope.VenueID}, manageRule) {
		return TimeEntry{}, authz.MissingPermission(authz.PermManageAllTimeEntries)
	}
	if e.ClockOut == nil {
		return TimeEntry{}, fmt.Errorf("%w: entry is still clocked in", httpx.ErrValidation)
	}
	if e.Approved() {
		return e, nil
	}
	now := s.now()
	approver := actor.ID
	e.ApprovedBy = &approver
	e.ApprovedAt = &now
	e.UpdatedAt = now
	saved, err := s.repo.Update(ctx, e)
	if err != nil {
		return TimeEntry{}, err
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  actor.ID,
			Action:   shared.AuditTimeEntryApproved,
			Entity:   "time_entry",
			EntityID: strconv.FormatInt(id, 10),
			Meta:     map[string]any{"employee_id": e.EmployeeID, "minutes": int(e.Worked().Minutes())},
			At:       now,
		})
	}
	return saved, nil
}

// Delete removes entry id.
func (s *Service) Delete(ctx context.Context, actor authz.Subject, id int64) error {
	_, scope, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if !s.evaluator.CanWrite(actor, scope, manageRule) {
		return authz.MissingPermission(authz.PermManageAllTimeEntries)
	}
	return s.repo.Delete(ctx, id)
}

var errClockOrder = errors.New("clock out must be after clock in")

func validateTimes(e TimeEntry) error {
	if e.ClockOut != nil && !e.ClockOut.After(e.ClockIn) {
		return fmt.Errorf("%w: %w", httpx.ErrValidation, errClockOrder)
	}
	if e.ClockOut != nil && time.Duration(e.BreakMinutes)*time.Minute >= e.ClockOut.Sub(e.ClockIn) {
		return fmt.Errorf("%w: break exceeds worked time", httpx.ErrValidation)
	}
	return nil
}
