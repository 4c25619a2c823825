// Package membership resolves a profile's membership in a store and the
// discount programs it grants.
package membership

import (
	"context"
	"time"

	"github.com/go-faster/errors"

	"github.com/xenking/checkout-pricing/internal/domain/discount"
)

// Type distinguishes time-boxed memberships from perpetual ones.
type Type string

const (
	TypeDateBased Type = "date_based"
	TypePerpetual Type = "perpetual"
)

var (
	// ErrMembershipInvalid is returned by Resolution.Require when the profile
	// is enrolled but no enrolled program is currently valid.
	ErrMembershipInvalid = errors.New("membership is not valid")
	// ErrMembershipNotFound is returned by Resolution.Require when the
	// profile has no membership in the store.
	ErrMembershipNotFound = errors.New("membership not found")
)

// Program is a store's membership program and the discount programs bound
// to it, in application order.
type Program struct {
	ID        string
	StoreID   string
	Title     string
	Type      Type
	StartDate *time.Time
	EndDate   *time.Time
	Programs  []discount.Program
}

// IsValidAt reports whether the membership grants benefits at t. Date-based
// programs are valid on [StartDate, EndDate); a missing bound is open.
func (p Program) IsValidAt(t time.Time) bool {
	if p.Type == TypePerpetual {
		return true
	}
	if p.StartDate != nil && t.Before(*p.StartDate) {
		return false
	}
	if p.EndDate != nil && !t.Before(*p.EndDate) {
		return false
	}
	return true
}

// Repository reads membership enrollments.
type Repository interface {
	// FindEnrolled returns the store's membership programs the profile is
	// enrolled in, oldest enrollment first. No enrollment is an empty slice.
	FindEnrolled(ctx context.Context, storeID, profileID string) ([]Program, error)
}

// Status is the membership validity of a profile.
type Status string

const (
	StatusValid    Status = "valid"
	StatusInvalid  Status = "invalid"
	StatusNotFound Status = "not_found"
)

// Resolution is the outcome of resolving a profile's membership. Program is
// the valid program, or for StatusInvalid the first enrolled one.
type Resolution struct {
	Status  Status
	Program *Program
}

// Valid reports whether membership discounts apply.
func (r Resolution) Valid() bool { return r.Status == StatusValid }

// Require converts a non-valid resolution into an error for flows that must
// reject purchases without a valid membership.
func (r Resolution) Require() error {
	switch r.Status {
	case StatusValid:
		return nil
	case StatusInvalid:
		return ErrMembershipInvalid
	default:
		return ErrMembershipNotFound
	}
}
