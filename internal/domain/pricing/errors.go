package pricing

import (
	"github.com/go-faster/errors"
)

// Input errors. They describe a request that cannot be priced.
var (
	ErrEmptyCart    = errors.New("cart has no items")
	ErrUnknownStore = errors.New("unknown store")
	ErrNoProducts   = errors.New("no requested product could be resolved")
)

// InvariantError wraps a violated domain invariant, such as a rule with an
// out-of-range percentage or a product whose payload does not match its
// type. It signals bad data rather than a bad request.
type InvariantError struct {
	Err error
}

func (e *InvariantError) Error() string {
	return "pricing invariant violated: " + e.Err.Error()
}

func (e *InvariantError) Unwrap() error { return e.Err }

func invariant(err error) error {
	if err == nil {
		return nil
	}
	return &InvariantError{Err: err}
}

// IsInvariant reports whether err carries an InvariantError.
func IsInvariant(err error) bool {
	var ie *InvariantError
	return errors.As(err, &ie)
}
