package messages

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/shiftdesk/shiftdesk/internal/authz"
	"github.com/shiftdesk/shiftdesk/internal/platform/httpx"
)

// Directory confirms that a referenced record exists.
type Directory interface {
	Exists(ctx context.Context, id int64) error
}

// Service handles messaging between staff.
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

// Send delivers a direct message or a venue broadcast from actor.
func (s *Service) Send(ctx context.Context, actor authz.Subject, req SendMessageRequest) (Message, error) {
	if err := authz.Require(s.evaluator.HasPermission(actor, authz.PermSendMessages), authz.PermSendMessages); err != nil {
		return Message{}, err
	}
	if (req.RecipientID == nil) == (req.VenueID == nil) {
		return Message{}, fmt.Errorf("%w: exactly one of recipientId and venueId is required", httpx.ErrValidation)
	}
	m := Message{
		SenderID:  actor.ID,
		Body:      strings.TrimSpace(req.Body),
		CreatedAt: s.now(),
	}
	if m.Body == "" {
		return Message{}, fmt.Errorf("%w: body is empty", httpx.ErrValidation)
	}
	if req.RecipientID != nil {
		if err := s.users.Exists(ctx, *req.RecipientID); err != nil {
			return Message{}, err
		}
		id := *req.RecipientID
		m.RecipientID = &id
	} else {
		venueID := *req.VenueID
		if err := s.venues.Exists(ctx, venueID); err != nil {
			return Message{}, err
		}
		if !s.evaluator.HasPermission(actor, authz.PermManageVenueMessages) {
			return Message{}, authz.MissingPermission(authz.PermManageVenueMessages)
		}
		if !s.evaluator.HasVenueAccess(actor, venueID) {
			return Message{}, authz.MissingVenue()
		}
		m.VenueID = &venueID
	}
	return s.repo.Create(ctx, m)
}

// Get returns message id when actor may read it.
func (s *Service) Get(ctx context.Context, actor authz.Subject, id int64) (Message, error) {
	m, err := s.repo.Get(ctx, id)
	if err != nil {
		return Message{}, err
	}
	if !s.canRead(actor, m) {
		return Message{}, authz.MissingPermission(authz.PermViewAllMessages)
	}
	return m, nil
}

// List returns the messages in box for actor, newest last.
func (s *Service) List(ctx context.Context, actor authz.Subject, box Box) ([]Message, error) {
	switch box {
	case BoxSent:
		return s.repo.List(ctx, Filter{SenderID: actor.ID})
	case BoxInbox, "":
		return s.inbox(ctx, actor)
	case BoxAll:
		if s.evaluator.HasPermission(actor, authz.PermViewAllMessages) {
			return s.repo.List(ctx, Filter{})
		}
		inbox, err := s.inbox(ctx, actor)
		if err != nil {
			return nil, err
		}
		sent, err := s.repo.List(ctx, Filter{SenderID: actor.ID})
		if err != nil {
			return nil, err
		}
		return merge(inbox, sent), nil
	default:
		return nil, fmt.Errorf("%w: unknown box %q", httpx.ErrValidation, box)
	}
}

// inbox collects direct messages to actor and broadcasts to every venue the
// actor can reach.
func (s *Service) inbox(ctx context.Context, actor authz.Subject) ([]Message, error) {
	if authz.IsAdmin(actor) {
		direct, err := s.repo.List(ctx, Filter{RecipientID: actor.ID})
		if err != nil {
			return nil, err
		}
		broadcasts, err := s.repo.List(ctx, Filter{BroadcastsOnly: true})
		if err != nil {
			return nil, err
		}
		return merge(direct, broadcasts), nil
	}

	batches := make([][]Message, len(actor.AssignedVenues)+1)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		direct, err := s.repo.List(gctx, Filter{RecipientID: actor.ID})
		batches[0] = direct
		return err
	})
	for i, venueID := range actor.AssignedVenues {
		g.Go(func() error {
			broadcasts, err := s.repo.List(gctx, Filter{VenueID: venueID, BroadcastsOnly: true})
			batches[i+1] = broadcasts
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return merge(batches...), nil
}

// MarkRead flags a direct message as read by its recipient.
func (s *Service) MarkRead(ctx context.Context, actor authz.Subject, id int64) (Message, error) {
	m, err := s.repo.Get(ctx, id)
	if err != nil {
		return Message{}, err
	}
	if m.RecipientID == nil || *m.RecipientID != actor.ID {
		return Message{}, authz.Forbidden("Only the recipient can mark a message as read", "recipient")
	}
	if m.ReadAt != nil {
		return m, nil
	}
	now := s.now()
	m.ReadAt = &now
	return s.repo.MarkRead(ctx, m)
}

// Delete removes message id. Senders delete their own messages; holders of
// VIEW_ALL_MESSAGES moderate any message.
func (s *Service) Delete(ctx context.Context, actor authz.Subject, id int64) error {
	m, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if !authz.OwnsResource(actor, authz.Scope{OwnerID: m.SenderID}) && !s.evaluator.HasPermission(actor, authz.PermViewAllMessages) {
		return authz.MissingPermission(authz.PermViewAllMessages)
	}
	return s.repo.Delete(ctx, id)
}

func (s *Service) canRead(actor authz.Subject, m Message) bool {
	if authz.OwnsResource(actor, authz.Scope{OwnerID: m.SenderID}) {
		return true
	}
	if m.RecipientID != nil && *m.RecipientID == actor.ID {
		return true
	}
	if s.evaluator.HasPermission(actor, authz.PermViewAllMessages) {
		return true
	}
	return m.VenueID != nil && s.evaluator.HasVenueAccess(actor, *m.VenueID)
}

func merge(batches ...[]Message) []Message {
	seen := make(map[int64]struct{})
	var out []Message
	for _, batch := range batches {
		for _, m := range batch {
			if _, dup := seen[m.ID]; dup {
				continue
			}
			seen[m.ID] = struct{}{}
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
