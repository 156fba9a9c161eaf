package shifts

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shiftdesk/shiftdesk/internal/authz"
	"github.com/shiftdesk/shiftdesk/internal/platform/httpx"
)

// Directory confirms that a referenced record exists. It reports a missing
// record with an error wrapping httpx.ErrNotFound.
type Directory interface {
	Exists(ctx context.Context, id int64) error
}

// Service handles shift scheduling and its access rules.
type Service struct {
	repo      Repository
	evaluator *authz.Evaluator
	venues    Directory
	users     Directory
	now       func() time.Time
}

// NewService builds Service instance.
func NewService(repo Repository, evaluator *authz.Evaluator, venues, users Directory) *Service {
	return &Service{
		repo:      repo,
		evaluator: evaluator,
		venues:    venues,
		users:     users,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Locate fetches a shift without access checks. Dependent resources use it
// to derive their venue.
func (s *Service) Locate(ctx context.Context, id int64) (Shift, error) {
	return s.repo.Get(ctx, id)
}

// Find lists shifts matching f without access checks.
func (s *Service) Find(ctx context.Context, f Filter) ([]Shift, error) {
	return s.repo.List(ctx, f)
}

// Scope resolves the authorization scope of shift id.
func (s *Service) Scope(ctx context.Context, id int64) (authz.Scope, error) {
	sh, err := s.repo.Get(ctx, id)
	if err != nil {
		return authz.Scope{}, err
	}
	return sh.Scope(), nil
}

// List returns the shifts matching f that actor may read.
func (s *Service) List(ctx context.Context, actor authz.Subject, f Filter) ([]Shift, error) {
	return authz.CollectVisible(ctx, s.evaluator, actor, readRule, authz.Listing[Shift]{
		All: func(ctx context.Context) ([]Shift, error) {
			return s.repo.List(ctx, f)
		},
		Owned: func(ctx context.Context, ownerID int64) ([]Shift, error) {
			if f.EmployeeID != 0 && f.EmployeeID != ownerID {
				return nil, nil
			}
			owned := f
			owned.EmployeeID = ownerID
			return s.repo.List(ctx, owned)
		},
		InVenue: func(ctx context.Context, venueID int64) ([]Shift, error) {
			if f.VenueID != 0 && f.VenueID != venueID {
				return nil, nil
			}
			scoped := f
			scoped.VenueID = venueID
			return s.repo.List(ctx, scoped)
		},
		ID: func(sh Shift) int64 { return sh.ID },
	})
}

// Get returns shift id when actor may read it.
func (s *Service) Get(ctx context.Context, actor authz.Subject, id int64) (Shift, error) {
	sh, err := s.repo.Get(ctx, id)
	if err != nil {
		return Shift{}, err
	}
	if !s.evaluator.CanRead(actor, sh.Scope(), readRule) {
		return Shift{}, authz.MissingPermission(authz.PermViewAllShifts)
	}
	return sh, nil
}

// Create schedules a shift at a venue actor manages.
func (s *Service) Create(ctx context.Context, actor authz.Subject, req CreateShiftRequest) (Shift, error) {
	if err := s.venues.Exists(ctx, req.VenueID); err != nil {
		return Shift{}, err
	}
	if err := s.checkWrite(actor, authz.Scope{VenueID: req.VenueID}); err != nil {
		return Shift{}, err
	}
	if err := s.users.Exists(ctx, req.EmployeeID); err != nil {
		return Shift{}, err
	}
	if !req.End.After(req.Start) {
		return Shift{}, fmt.Errorf("%w: end must be after start", httpx.ErrValidation)
	}
	now := s.now()
	return s.repo.Create(ctx, Shift{
		EmployeeID: req.EmployeeID,
		VenueID:    req.VenueID,
		Start:      req.Start.UTC(),
		End:        req.End.UTC(),
		Role:       strings.TrimSpace(req.Role),
		Notes:      strings.TrimSpace(req.Notes),
		CreatedAt:  now,
		UpdatedAt:  now,
	})
}

// Update applies a partial update. Access is checked against the stored
// shift, and again against the destination venue when the shift moves.
func (s *Service) Update(ctx context.Context, actor authz.Subject, id int64, req UpdateShiftRequest) (Shift, error) {
	sh, err := s.repo.Get(ctx, id)
	if err != nil {
		return Shift{}, err
	}
	if err := s.checkWrite(actor, sh.Scope()); err != nil {
		return Shift{}, err
	}
	if req.VenueID != nil && *req.VenueID != sh.VenueID {
		if err := s.venues.Exists(ctx, *req.VenueID); err != nil {
			return Shift{}, err
		}
		if err := s.checkWrite(actor, authz.Scope{VenueID: *req.VenueID}); err != nil {
			return Shift{}, err
		}
		sh.VenueID = *req.VenueID
	}
	if req.EmployeeID != nil && *req.EmployeeID != sh.EmployeeID {
		if err := s.users.Exists(ctx, *req.EmployeeID); err != nil {
			return Shift{}, err
		}
		sh.EmployeeID = *req.EmployeeID
	}
	if req.Start != nil {
		sh.Start = req.Start.UTC()
	}
	if req.End != nil {
		sh.End = req.End.UTC()
	}
	if req.Role != nil {
		sh.Role = strings.TrimSpace(*req.Role)
	}
	if req.Notes != nil {
		sh.Notes = strings.TrimSpace(*req.Notes)
	}
	if !sh.End.After(sh.Start) {
		return Shift{}, fmt.Errorf("%w: end must be after start", httpx.ErrValidation)
	}
	sh.UpdatedAt = s.now()
	return s.repo.Update(ctx, sh)
}

// Delete removes shift id.
func (s *Service) Delete(ctx context.Context, actor authz.Subject, id int64) error {
	sh, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.checkWrite(actor, sh.Scope()); err != nil {
		return err
	}
	return s.repo.Delete(ctx, id)
}

func (s *Service) checkWrite(actor authz.Subject, scope authz.Scope) error {
	if s.evaluator.CanWrite(actor, scope, writeRule) {
		return nil
	}
	if s.evaluator.HasPermission(actor, writeRule.Venue) && !s.evaluator.HasVenueAccess(actor, scope.VenueID) {
		return authz.MissingVenue()
	}
	return authz.MissingPermission(authz.PermManageAllShifts)
}
