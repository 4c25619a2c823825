// Package coupon resolves coupon codes to usable discount programs.
package coupon

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"

	"github.com/xenking/checkout-pricing/internal/domain/catalog"
	"github.com/xenking/checkout-pricing/internal/domain/profile"
)

// Status is the outcome of validating a coupon code.
type Status string

// Validation outcomes, in check order.
const (
	StatusNotApplied Status = "not_applied"
	StatusNotFound   Status = "not_found"
	StatusInactive   Status = "inactive"
	StatusNotStarted Status = "not_started"
	StatusExpired    Status = "expired"
	StatusUsed       Status = "used"
	StatusApplied    Status = "applied"
)

var messages = map[Status]string{
	StatusNotApplied: "no coupon applied",
	StatusNotFound:   "no coupon found with that code",
	StatusInactive:   "coupon is not active anymore",
	StatusNotStarted: "coupon from future is not supported",
	StatusExpired:    "coupon already expired",
	StatusUsed:       "this coupon has already been used",
	StatusApplied:    "coupon applied successfully",
}

// Message returns the human-readable message for the status.
func (s Status) Message() string { return messages[s] }

// Verdict is the result of validating a code. Coupon is set only when
// Status is StatusApplied.
type Verdict struct {
	Code    string
	Status  Status
	Coupon  *Coupon
	Message string
}

// Valid reports whether the coupon can be applied.
func (v Verdict) Valid() bool { return v.Status == StatusApplied }

func verdict(code string, s Status, c *Coupon) Verdict {
	return Verdict{Code: code, Status: s, Coupon: c, Message: s.Message()}
}

// Validator checks a coupon code against its store, validity window and the
// profile's prior usage. It never records usage.
type Validator struct {
	repo Repository
	now  func() time.Time
}

// NewValidator creates a Validator backed by the given Repository.
func NewValidator(repo Repository) *Validator {
	return &Validator{repo: repo, now: time.Now}
}

// Validate runs the checks in order and stops at the first failure. Window
// checks run before usage checks, so an expired coupon that was also used
// reports expiry. Only repository failures are returned as errors.
func (v *Validator) Validate(ctx context.Context, store *catalog.Store, code string, p profile.Profile) (Verdict, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return verdict(code, StatusNotApplied, nil), nil
	}

	c, err := v.repo.FindByCode(ctx, store.ID, code)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return verdict(code, StatusNotFound, nil), nil
		}
		return Verdict{}, errors.Wrap(err, "lookup coupon")
	}

	if !c.Active {
		return verdict(code, StatusInactive, nil), nil
	}

	now := v.now()
	if c.StartDate != nil && now.Before(*c.StartDate) {
		return verdict(code, StatusNotStarted, nil), nil
	}
	// The window is half-open: [StartDate, EndDate).
	if c.EndDate != nil && !now.Before(*c.EndDate) {
		return verdict(code, StatusExpired, nil), nil
	}

	if !p.IsAnonymous() {
		used, err := v.repo.CountUsage(ctx, p.ID, c.ID)
		if err != nil {
			return Verdict{}, errors.Wrap(err, "count coupon usage")
		}
		if used >= c.UsageLimit() {
			return verdict(code, StatusUsed, nil), nil
		}
	}

	return verdict(code, StatusApplied, c), nil
}
