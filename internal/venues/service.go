package venues

import (
	"context"
	"strings"
	"time"

	"github.com/shiftdesk/shiftdesk/internal/authz"
)

// Service handles venue business logic.
type Service struct {
	repo      Repository
	evaluator *authz.Evaluator
	now       func() time.Time
}

// NewService builds Service instance.
func NewService(repo Repository, evaluator *authz.Evaluator) *Service {
	return &Service{repo: repo, evaluator: evaluator, now: func() time.Time { return time.Now().UTC() }}
}

func (s *Service) canSeeAll(actor authz.Subject) bool {
	return authz.IsAdmin(actor) || s.evaluator.HasPermission(actor, authz.PermViewAllVenues)
}

// List returns the venues actor can see: all of them for administrative
// roles and VIEW_ALL_VENUES holders, otherwise the assigned ones.
func (s *Service) List(ctx context.Context, actor authz.Subject) ([]Venue, error) {
	all, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	if s.canSeeAll(actor) {
		return all, nil
	}
	visible := make([]Venue, 0, len(actor.AssignedVenues))
	for _, v := range all {
		if s.evaluator.HasVenueAccess(actor, v.ID) {
			visible = append(visible, v)
		}
	}
	return visible, nil
}

// Get returns venue id if actor can see it.
func (s *Service) Get(ctx context.Context, actor authz.Subject, id int64) (Venue, error) {
	v, err := s.repo.Get(ctx, id)
	if err != nil {
		return Venue{}, err
	}
	if !s.canSeeAll(actor) && !s.evaluator.HasVenueAccess(actor, id) {
		return Venue{}, authz.MissingVenue()
	}
	return v, nil
}

// Exists reports a missing venue as ErrNotFound. Other packages use it to
// validate venue references.
func (s *Service) Exists(ctx context.Context, id int64) error {
	_, err := s.repo.Get(ctx, id)
	return err
}

// Create adds a venue.
func (s *Service) Create(ctx context.Context, actor authz.Subject, req CreateVenueRequest) (Venue, error) {
	if err := authz.Require(s.evaluator.HasPermission(actor, authz.PermManageVenues), authz.PermManageVenues); err != nil {
		return Venue{}, err
	}
	now := s.now()
	tz := strings.TrimSpace(req.Timezone)
	if tz == "" {
		tz = "UTC"
	}
	return s.repo.Create(ctx, Venue{
		Name:      strings.TrimSpace(req.Name),
		Address:   strings.TrimSpace(req.Address),
		Timezone:  tz,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	})
}

// Update applies a partial update to venue id.
func (s *Service) Update(ctx context.Context, actor authz.Subject, id int64, req UpdateVenueRequest) (Venue, error) {
	v, err := s.repo.Get(ctx, id)
	if err != nil {
		return Venue{}, err
	}
	if err := s.checkManage(actor, id); err != nil {
		return Venue{}, err
	}
	if req.Name != nil {
		v.Name = strings.TrimSpace(*req.Name)
	}
	if req.Address != nil {
		v.Address = strings.TrimSpace(*req.Address)
	}
	if req.Timezone != nil {
		v.Timezone = *req.Timezone
	}
	if req.IsActive != nil {
		v.IsActive = *req.IsActive
	}
	v.UpdatedAt = s.now()
	return s.repo.Update(ctx, v)
}

// Delete removes venue id.
func (s *Service) Delete(ctx context.Context, actor authz.Subject, id int64) error {
	if _, err := s.repo.Get(ctx, id); err != nil {
		return err
	}
	if err := s.checkManage(actor, id); err != nil {
		return err
	}
	return s.repo.Delete(ctx, id)
}

func (s *Service) checkManage(actor authz.Subject, id int64) error {
	if !s.evaluator.HasPermission(actor, authz.PermManageVenues) {
		return authz.MissingPermission(authz.PermManageVenues)
	}
	if !s.evaluator.HasVenueAccess(actor, id) {
		return authz.MissingVenue()
	}
	return nil
}
