package catalog

import (
	"fmt"

	"github.com/go-faster/errors"
)

var (
	// ErrRelatedDepth is returned when a related item is itself the parent
	// of another related item.
	ErrRelatedDepth = errors.New("related item cannot have related items")
	// ErrInvalidQuantity is returned for quantities below one.
	ErrInvalidQuantity = errors.New("quantity must be at least 1")
)

// CartDetail is one entry of the flat checkout payload. Related entries
// point at their primary through RelatedTo.
type CartDetail struct {
	ProductID    string
	Quantity     int
	StudentEmail string
	IsRelated    bool
	RelatedTo    string
}

// ItemRequest is a primary product requested for pricing together with its
// related add-ons.
type ItemRequest struct {
	ProductID    string
	Quantity     int
	StudentEmail string
	Related      []RelatedRequest
}

// RelatedRequest is an add-on requested alongside a primary product. It has
// no related list of its own.
type RelatedRequest struct {
	ProductID    string
	Quantity     int
	StudentEmail string
}

// GroupCartDetails turns the flat payload into primary items with their
// related items attached, preserving payload order. Related entries whose
// primary is absent from the payload are dropped.
func GroupCartDetails(details []CartDetail) ([]ItemRequest, error) {
	primaries := make(map[string]bool, len(details))
	related := make(map[string]bool, len(details))
	for _, d := range details {
		if d.Quantity < 1 {
			return nil, &QuantityError{ProductID: d.ProductID, Quantity: d.Quantity}
		}
		if d.IsRelated {
			related[d.ProductID] = true
		} else {
			primaries[d.ProductID] = true
		}
	}

	items := make([]ItemRequest, 0, len(primaries))
	for _, d := range details {
		if d.IsRelated {
			if related[d.RelatedTo] && !primaries[d.RelatedTo] {
				return nil, errors.Wrapf(ErrRelatedDepth, "product %s is related to related product %s", d.ProductID, d.RelatedTo)
			}
			continue
		}
		items = append(items, ItemRequest{
			ProductID:    d.ProductID,
			Quantity:     d.Quantity,
			StudentEmail: d.StudentEmail,
		})
	}

	for i := range items {
		for _, d := range details {
			if d.IsRelated && d.RelatedTo == items[i].ProductID {
				items[i].Related = append(items[i].Related, RelatedRequest{
					ProductID:    d.ProductID,
					Quantity:     d.Quantity,
					StudentEmail: d.StudentEmail,
				})
			}
		}
	}
	return items, nil
}

// QuantityError reports a cart entry with a quantity below one.
type QuantityError struct {
	ProductID string
	Quantity  int
}

func (e *QuantityError) Error() string {
	return fmt.Sprintf("quantity %d for product %s: %s", e.Quantity, e.ProductID, ErrInvalidQuantity)
}

// Unwrap allows errors.Is(err, ErrInvalidQuantity).
func (e *QuantityError) Unwrap() error { return ErrInvalidQuantity }
