package repository

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/checkout-pricing/internal/domain/catalog"
)

const (
	storeColumns = `s.id, s.slug, s.name, s.tax_enabled, s.ship_from_postal_code, s.tax_company_code`

	getProductSQL = `SELECT id, store_id, title, product_type, fee, minimum_fee, tax_code,
		course_title, section_name, start_date, end_date, execution_mode,
		certificate_title, certificate_slug, membership_program_id
		FROM products WHERE id = $1`

	getStoreBySlugSQL = `SELECT ` + storeColumns + ` FROM stores s WHERE s.slug = $1`

	getStoreForProductSQL = `SELECT ` + storeColumns + ` FROM stores s
		JOIN products p ON p.store_id = s.id WHERE p.id = $1`
)

var _ catalog.Repository = (*CatalogRepository)(nil)

// CatalogRepository implements catalog.Repository backed by PostgreSQL.
type CatalogRepository struct {
	pool *pgxpool.Pool
}

// NewCatalogRepository returns a CatalogRepository that uses the given pool.
func NewCatalogRepository(pool *pgxpool.Pool) *CatalogRepository {
	return &CatalogRepository{pool: pool}
}

// GetProduct returns the product with its typed payload, or
// catalog.ErrProductNotFound.
func (r *CatalogRepository) GetProduct(ctx context.Context, id string) (*catalog.Product, error) {
	rows, err := r.pool.Query(ctx, getProductSQL, id)
	if err != nil {
		return nil, errors.Wrapf(err, "get product %q", id)
	}
	p, err := pgx.CollectExactlyOneRow(rows, scanProduct)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, catalog.ErrProductNotFound
		}
		return nil, errors.Wrapf(err, "get product %q", id)
	}
	return p, nil
}

// GetStoreBySlug returns the store or catalog.ErrStoreNotFound.
func (r *CatalogRepository) GetStoreBySlug(ctx context.Context, slug string) (*catalog.Store, error) {
	return r.getStore(ctx, getStoreBySlugSQL, slug)
}

// GetStoreForProduct returns the store owning the product or
// catalog.ErrStoreNotFound.
func (r *CatalogRepository) GetStoreForProduct(ctx context.Context, productID string) (*catalog.Store, error) {
	return r.getStore(ctx, getStoreForProductSQL, productID)
}

func (r *CatalogRepository) getStore(ctx context.Context, query, arg string) (*catalog.Store, error) {
	var s catalog.Store
	err := r.pool.QueryRow(ctx, query, arg).Scan(
		&s.ID, &s.Slug, &s.Name, &s.TaxEnabled, &s.ShipFromPostalCode, &s.TaxCompanyCode,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, catalog.ErrStoreNotFound
		}
		return nil, errors.Wrapf(err, "get store %q", arg)
	}
	return &s, nil
}

func scanProduct(row pgx.CollectableRow) (*catalog.Product, error) {
	var (
		p                  catalog.Product
		productType        string
		fee, minimumFee    decimal.Decimal
		courseTitle        *string
		sectionName        *string
		startDate, endDate *time.Time
		executionMode      *string
		certTitle          *string
		certSlug           *string
		membershipProgram  *string
	)
	if err := row.Scan(
		&p.ID, &p.StoreID, &p.Title, &productType, &fee, &minimumFee, &p.TaxCode,
		&courseTitle, &sectionName, &startDate, &endDate, &executionMode,
		&certTitle, &certSlug, &membershipProgram,
	); err != nil {
		return nil, err
	}

	p.Type = catalog.ProductType(productType)
	var err error
	if p.Fee, err = toMoney(fee); err != nil {
		return nil, err
	}
	if p.MinimumFee, err = toMoney(minimumFee); err != nil {
		return nil, err
	}

	// Only the payload matching the type tag is attached.
	switch p.Type {
	case catalog.TypeCourseSection:
		p.CourseSection = &catalog.CourseSection{
			CourseTitle:   deref(courseTitle),
			SectionName:   deref(sectionName),
			StartDate:     startDate,
			EndDate:       endDate,
			ExecutionMode: deref(executionMode),
		}
	case catalog.TypeCertificate:
		p.Certificate = &catalog.Certificate{Title: deref(certTitle), Slug: deref(certSlug)}
	case catalog.TypeMembership:
		p.Membership = &catalog.Membership{ProgramID: deref(membershipProgram)}
	}
	return &p, nil
}
