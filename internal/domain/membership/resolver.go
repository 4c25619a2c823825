package membership

import (
	"context"
	"time"

	"github.com/go-faster/errors"

	"github.com/xenking/checkout-pricing/internal/domain/catalog"
	"github.com/xenking/checkout-pricing/internal/domain/profile"
)

// Resolver determines whether a profile holds a valid membership in a store.
type Resolver struct {
	repo Repository
	now  func() time.Time
}

// NewResolver creates a Resolver backed by the given Repository.
func NewResolver(repo Repository) *Resolver {
	return &Resolver{repo: repo, now: time.Now}
}

// Resolve returns the first enrolled program valid now. Anonymous profiles
// never hold memberships.
func (r *Resolver) Resolve(ctx context.Context, store *catalog.Store, p profile.Profile) (Resolution, error) {
	if p.IsAnonymous() {
		return Resolution{Status: StatusNotFound}, nil
	}

	programs, err := r.repo.FindEnrolled(ctx, store.ID, p.ID)
	if err != nil {
		return Resolution{}, errors.Wrap(err, "find enrolled memberships")
	}
	if len(programs) == 0 {
		return Resolution{Status: StatusNotFound}, nil
	}

	now := r.now()
	for i := range programs {
		if programs[i].IsValidAt(now) {
			return Resolution{Status: StatusValid, Program: &programs[i]}, nil
		}
	}
	return Resolution{Status: StatusInvalid, Program: &programs[0]}, nil
}
