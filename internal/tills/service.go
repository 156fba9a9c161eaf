package tills

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/shiftdesk/shiftdesk/internal/authz"
	"github.com/shiftdesk/shiftdesk/internal/shared"
	"github.com/shiftdesk/shiftdesk/internal/shifts"
)

// ShiftLocator resolves the shift a count is recorded for.
type ShiftLocator interface {
	Locate(ctx context.Context, id int64) (shifts.Shift, error)
}

// Service handles till counts and their verification.
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

// Scope resolves the authorization scope of verification id.
func (s *Service) Scope(ctx context.Context, id int64) (authz.Scope, error) {
	v, err := s.repo.Get(ctx, id)
	if err != nil {
		return authz.Scope{}, err
	}
	return v.Scope(), nil
}

func (s *Service) seesAll(actor authz.Subject) bool {
	return s.evaluator.HasPermission(actor, authz.PermViewAllTills) || s.evaluator.HasPermission(actor, authz.PermManageAllTills)
}

// List returns every verification actor may read. Holders of a global till
// permission get the complete set from one query; everyone else gets their
// own counts plus those of the venues they manage.
func (s *Service) List(ctx context.Context, actor authz.Subject, f Filter) ([]Verification, error) {
	if s.seesAll(actor) {
		return s.repo.List(ctx, f)
	}
	return authz.CollectVisible(ctx, s.evaluator, actor, readRule, authz.Listing[Verification]{
		All: func(ctx context.Context) ([]Verification, error) {
			return s.repo.List(ctx, f)
		},
		Owned: func(ctx context.Context, ownerID int64) ([]Verification, error) {
			if f.EmployeeID != 0 && f.EmployeeID != ownerID {
				return nil, nil
			}
			owned := f
			owned.EmployeeID = ownerID
			return s.repo.List(ctx, owned)
		},
		InVenue: func(ctx context.Context, venueID int64) ([]Verification, error) {
			if f.VenueID != 0 && f.VenueID != venueID {
				return nil, nil
			}
			scoped := f
			scoped.VenueID = venueID
			return s.repo.List(ctx, scoped)
		},
		ID: func(v Verification) int64 { return v.ID },
	})
}

// Get returns verification id when actor may read it.
func (s *Service) Get(ctx context.Context, actor authz.Subject, id int64) (Verification, error) {
	v, err := s.repo.Get(ctx, id)
	if err != nil {
		return Verification{}, err
	}
	if !s.seesAll(actor) && !s.evaluator.CanRead(actor, v.Scope(), readRule) {
		return Verification{}, authz.MissingPermission(authz.PermViewAllTills)
	}
	return v, nil
}

// Create records a till count. Employees count their own shifts; managers may
// record counts for shifts in venues they manage. Only those allowed to
// verify may create an already verified record.
func (s *Service) Create(ctx context.Context, actor authz.Subject, req CreateRequest) (Verification, error) {
	sh, err := s.shifts.Locate(ctx, req.ShiftID)
	if err != nil {
		return Verification{}, err
	}
	scope := sh.Scope()
	manager := s.evaluator.CanWrite(actor, authz.Scope{VenueID: scope.VenueID}, manageRule)
	if !manager && !authz.OwnsResource(actor, scope) {
		return Verification{}, authz.Forbidden("You can only record tills for your own shifts", string(authz.PermManageVenueTills))
	}
	now := s.now()
	v := Verification{
		EmployeeID:    sh.EmployeeID,
		ShiftID:       sh.ID,
		VenueID:       sh.VenueID,
		ExpectedCents: req.ExpectedCents,
		CountedCents:  req.CountedCents,
		Notes:         strings.TrimSpace(req.Notes),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	verifying := req.VerifiedBy != nil || req.VerifiedAt != nil
	if verifying {
		if !s.evaluator.CanVerifyTill(actor, v.Scope()) {
			return Verification{}, authz.MissingPermission(authz.PermManageVenueTills)
		}
		if err := s.stampVerification(&v, actor, req.VerifiedBy, req.VerifiedAt); err != nil {
			return Verification{}, err
		}
	}
	created, err := s.repo.Create(ctx, v)
	if err != nil {
		return Verification{}, err
	}
	if verifying {
		s.recordVerified(ctx, actor, created)
	}
	return created, nil
}

// Update applies a partial update.
//
// Till managers may change every field. The employee who owns the count may
// edit notes and the counted amount while it is unverified, and only notes
// once it is verified. Nobody without verify rights touches the verification
// stamp.
func (s *Service) Update(ctx context.Context, actor authz.Subject, id int64, req UpdateRequest) (Verification, error) {
	v, err := s.repo.Get(ctx, id)
	if err != nil {
		return Verification{}, err
	}
	scope := v.Scope()
	manager := s.evaluator.CanVerifyTill(actor, scope)
	if !manager {
		if !authz.OwnsResource(actor, scope) {
			return Verification{}, authz.MissingPermission(authz.PermManageAllTills)
		}
		if err := ownerMayApply(v, req); err != nil {
			return Verification{}, err
		}
	}

	wasVerified := v.Verified()
	if req.ExpectedCents != nil {
		v.ExpectedCents = *req.ExpectedCents
	}
	if req.CountedCents != nil {
		v.CountedCents = *req.CountedCents
	}
	if req.Notes != nil {
		v.Notes = strings.TrimSpace(*req.Notes)
	}
	if req.setsVerification() {
		if err := s.stampVerification(&v, actor, req.VerifiedBy, req.VerifiedAt); err != nil {
			return Verification{}, err
		}
	}
	v.UpdatedAt = s.now()
	saved, err := s.repo.Update(ctx, v)
	if err != nil {
		return Verification{}, err
	}
	if !wasVerified && saved.Verified() {
		s.recordVerified(ctx, actor, saved)
	}
	return saved, nil
}

func ownerMayApply(v Verification, req UpdateRequest) error {
	if req.setsVerification() {
		return authz.Forbidden("Only managers can verify tills", string(authz.PermManageVenueTills))
	}
	if req.ExpectedCents != nil && *req.ExpectedCents != v.ExpectedCents {
		return authz.Forbidden("Only managers can change the expected amount", string(authz.PermManageVenueTills))
	}
	if v.Verified() && req.CountedCents != nil && *req.CountedCents != v.CountedCents {
		return authz.Forbidden("Verified tills only accept note changes", string(authz.PermManageVenueTills))
	}
	return nil
}

// Verify stamps verification id as verified by actor. Owning the record never
// qualifies.
func (s *Service) Verify(ctx context.Context, actor authz.Subject, id int64) (Verification, error) {
	v, err := s.repo.Get(ctx, id)
	if err != nil {
		return Verification{}, err
	}
	if !s.evaluator.CanVerifyTill(actor, v.Scope()) {
		return Verification{}, authz.MissingPermission(authz.PermManageVenueTills)
	}
	if v.Verified() {
		return v, nil
	}
	if err := s.stampVerification(&v, actor, nil, nil); err != nil {
		return Verification{}, err
	}
	v.UpdatedAt = s.now()
	saved, err := s.repo.Update(ctx, v)
	if err != nil {
		return Verification{}, err
	}
	s.recordVerified(ctx, actor, saved)
	return saved, nil
}

// Delete removes verification id.
func (s *Service) Delete(ctx context.Context, actor authz.Subject, id int64) error {
	v, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if !s.evaluator.CanWrite(actor, authz.Scope{VenueID: v.VenueID}, manageRule) {
		return authz.MissingPermission(authz.PermManageAllTills)
	}
	return s.repo.Delete(ctx, id)
}

// stampVerification marks v verified. The verifier is the actor; only super
// admins may record a verification on someone else's behalf.
func (s *Service) stampVerification(v *Verification, actor authz.Subject, by *int64, at *time.Time) error {
	verifier := actor.ID
	if by != nil && *by != actor.ID {
		if !authz.IsSuperAdmin(actor) {
			return authz.Forbidden("You can only verify tills as yourself", string(authz.RoleSuperAdmin))
		}
		verifier = *by
	}
	when := s.now()
	if at != nil {
		when = at.UTC()
	}
	v.VerifiedBy = &verifier
	v.VerifiedAt = &when
	return nil
}

func (s *Service) recordVerified(ctx context.Context, actor authz.Subject, v Verification) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actor.ID,
		Action:   shared.AuditTillVerified,
		Entity:   "till_verification",
		EntityID: strconv.FormatInt(v.ID, 10),
		Meta: map[string]any{
			"venue_id":          v.VenueID,
			"employee_id":       v.EmployeeID,
			"discrepancy_cents": v.DiscrepancyCents(),
		},
		At: s.now(),
	})
}
