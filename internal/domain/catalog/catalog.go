// Package catalog defines the priced, typed products a store sells and the
// lookup contract the pricing engine consumes.
package catalog

import (
	"context"
	"time"

	"github.com/go-faster/errors"

	"github.com/xenking/checkout-pricing/internal/domain/money"
)

// ProductType tags which payload a Product carries.
type ProductType string

const (
	// TypeCourseSection is a seat in a scheduled course section.
	TypeCourseSection ProductType = "course_section"
	// TypeCertificate is a certificate program.
	TypeCertificate ProductType = "certificate"
	// TypeMembership is a store membership.
	TypeMembership ProductType = "membership"
)

// Valid reports whether t is a known product type.
func (t ProductType) Valid() bool {
	switch t {
	case TypeCourseSection, TypeCertificate, TypeMembership:
		return true
	default:
		return false
	}
}

var (
	// ErrProductNotFound is returned when a product id does not resolve.
	ErrProductNotFound = errors.New("product not found")
	// ErrStoreNotFound is returned when a store slug or product owner does not resolve.
	ErrStoreNotFound = errors.New("store not found")
	// ErrVariantMismatch indicates a product whose payload does not match its type tag.
	ErrVariantMismatch = errors.New("product payload does not match product type")
)

// Store is the seller that owns products, coupons and membership programs.
type Store struct {
	ID                 string
	Slug               string
	Name               string
	TaxEnabled         bool
	ShipFromPostalCode string
	TaxCompanyCode     string
}

// CourseSection is the payload of a TypeCourseSection product.
type CourseSection struct {
	CourseTitle   string
	SectionName   string
	StartDate     *time.Time
	EndDate       *time.Time
	ExecutionMode string
}

// Certificate is the payload of a TypeCertificate product.
type Certificate struct {
	Title string
	Slug  string
}

// Membership is the payload of a TypeMembership product.
type Membership struct {
	ProgramID string
}

// Product is a priced catalog entry. Exactly one of the payload pointers is
// set, matching Type.
type Product struct {
	ID         string
	StoreID    string
	Title      string
	Type       ProductType
	Fee        money.Money
	MinimumFee money.Money
	TaxCode    string

	CourseSection *CourseSection `json:",omitempty"`
	Certificate   *Certificate   `json:",omitempty"`
	Membership    *Membership    `json:",omitempty"`
}

// Validate checks that the payload matches the type tag.
func (p *Product) Validate() error {
	set := 0
	var ok bool
	if p.CourseSection != nil {
		set++
		ok = p.Type == TypeCourseSection
	}
	if p.Certificate != nil {
		set++
		ok = p.Type == TypeCertificate
	}
	if p.Membership != nil {
		set++
		ok = p.Type == TypeMembership
	}
	if set != 1 || !ok {
		return errors.Wrapf(ErrVariantMismatch, "product %s (%s)", p.ID, p.Type)
	}
	return nil
}

// Repository resolves products and stores.
type Repository interface {
	GetProduct(ctx context.Context, id string) (*Product, error)
	GetStoreForProduct(ctx context.Context, productID string) (*Store, error)
	GetStoreBySlug(ctx context.Context, slug string) (*Store, error)
}
