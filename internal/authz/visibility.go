package authz

import (
	"context"
	"sort"

	"golang.org/x/sync/errgroup"
)

// VenueReach reports where s may use venue-scoped permission p: everywhere
// (all=true), in the listed venues, or nowhere (all=false, no ids).
func (e *Evaluator) VenueReach(s Subject, p Permission) (all bool, venues []int64) {
	if p == "" || !e.HasPermission(s, p) {
		return false, nil
	}
	if IsAdmin(s) {
		return true, nil
	}
	return false, append([]int64(nil), s.AssignedVenues...)
}

// Listing is the storage side of a visibility-filtered listing.
type Listing[T any] struct {
	All     func(ctx context.Context) ([]T, error)
	Owned   func(ctx context.Context, ownerID int64) ([]T, error)
	InVenue func(ctx context.Context, venueID int64) ([]T, error)
	ID      func(T) int64
}

// CollectVisible returns every record s may read under rule: everything for
// global holders, otherwise the subject's own records plus the records of
// each venue reachable with rule.Venue. Venue reads run concurrently. The
// result is complete, deduplicated and ordered by id.
func CollectVisible[T any](ctx context.Context, e *Evaluator, s Subject, rule Rule, src Listing[T]) ([]T, error) {
	if rule.Global != "" && e.HasPermission(s, rule.Global) {
		return src.All(ctx)
	}
	allVenues, venues := e.VenueReach(s, rule.Venue)
	if allVenues {
		return src.All(ctx)
	}

	batches := make([][]T, len(venues)+1)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		owned, err := src.Owned(gctx, s.ID)
		batches[0] = owned
		return err
	})
	for i, venueID := range venues {
		g.Go(func() error {
			items, err := src.InVenue(gctx, venueID)
			batches[i+1] = items
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	seen := make(map[int64]struct{})
	var out []T
	for _, batch := range batches {
		for _, item := range batch {
			id := src.ID(item)
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, item)
		}
	}
	sort.Slice(out, func(i, j int) bool { return src.ID(out[i]) < src.ID(out[j]) })
	return out, nil
}
