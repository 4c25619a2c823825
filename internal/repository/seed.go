package repository

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/checkout-pricing/internal/domain/catalog"
	"github.com/xenking/checkout-pricing/internal/domain/coupon"
	"github.com/xenking/checkout-pricing/internal/domain/discount"
	"github.com/xenking/checkout-pricing/internal/domain/membership"
)

const (
	upsertStoreSQL = `INSERT INTO stores (id, slug, name, tax_enabled, ship_from_postal_code, tax_company_code)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET slug = EXCLUDED.slug, name = EXCLUDED.name,
		tax_enabled = EXCLUDED.tax_enabled, ship_from_postal_code = EXCLUDED.ship_from_postal_code,
		tax_company_code = EXCLUDED.tax_company_code`

	upsertProductSQL = `INSERT INTO products (id, store_id, title, product_type, fee, minimum_fee, tax_code,
		course_title, section_name, start_date, end_date, execution_mode,
		certificate_title, certificate_slug, membership_program_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (id) DO UPDATE SET store_id = EXCLUDED.store_id, title = EXCLUDED.title,
		product_type = EXCLUDED.product_type, fee = EXCLUDED.fee, minimum_fee = EXCLUDED.minimum_fee,
		tax_code = EXCLUDED.tax_code, course_title = EXCLUDED.course_title,
		section_name = EXCLUDED.section_name, start_date = EXCLUDED.start_date,
		end_date = EXCLUDED.end_date, execution_mode = EXCLUDED.execution_mode,
		certificate_title = EXCLUDED.certificate_title, certificate_slug = EXCLUDED.certificate_slug,
		membership_program_id = EXCLUDED.membership_program_id`

	upsertProgramSQL = `INSERT INTO discount_programs (id, store_id, title) VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET store_id = EXCLUDED.store_id, title = EXCLUDED.title`

	deleteRulesSQL = `DELETE FROM discount_rules WHERE program_id = $1`

	insertRuleSQL = `INSERT INTO discount_rules (id, program_id, position, scope, product_id, product_type,
		kind, amount, percentage, max_limit)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), NULLIF($6, ''), $7, $8, $9, $10)`

	upsertCouponSQL = `INSERT INTO coupons (id, store_id, code, program_id, active, start_date, end_date, max_uses_per_profile)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (store_id, code) DO UPDATE SET program_id = EXCLUDED.program_id,
		active = EXCLUDED.active, start_date = EXCLUDED.start_date, end_date = EXCLUDED.end_date,
		max_uses_per_profile = EXCLUDED.max_uses_per_profile`

	upsertMembershipSQL = `INSERT INTO membership_programs (id, store_id, title, membership_type, start_date, end_date)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET store_id = EXCLUDED.store_id, title = EXCLUDED.title,
		membership_type = EXCLUDED.membership_type, start_date = EXCLUDED.start_date,
		end_date = EXCLUDED.end_date`

	deleteMembershipDiscountsSQL = `DELETE FROM membership_program_discount_programs WHERE membership_program_id = $1`

	insertMembershipDiscountSQL = `INSERT INTO membership_program_discount_programs
		(membership_program_id, discount_program_id, position) VALUES ($1, $2, $3)`

	enrollSQL = `INSERT INTO membership_enrollments (membership_program_id, profile_id)
		VALUES ($1, $2) ON CONFLICT DO NOTHING`
)

// Seeder writes catalog, discount, coupon and membership data. It backs the
// seed and coupon import tools; the pricing path is read-only.
type Seeder struct {
	pool *pgxpool.Pool
}

// NewSeeder returns a Seeder that uses the given pool.
func NewSeeder(pool *pgxpool.Pool) *Seeder {
	return &Seeder{pool: pool}
}

// UpsertStore creates or updates a store.
func (s *Seeder) UpsertStore(ctx context.Context, st *catalog.Store) error {
	_, err := s.pool.Exec(ctx, upsertStoreSQL,
		st.ID, st.Slug, st.Name, st.TaxEnabled, st.ShipFromPostalCode, st.TaxCompanyCode,
	)
	if err != nil {
		return errors.Wrapf(err, "upsert store %q", st.Slug)
	}
	return nil
}

// UpsertProduct validates and stores a product with its typed payload.
func (s *Seeder) UpsertProduct(ctx context.Context, p *catalog.Product) error {
	if err := p.Validate(); err != nil {
		return err
	}

	args := []any{
		p.ID, p.StoreID, p.Title, string(p.Type), p.Fee.Decimal(), p.MinimumFee.Decimal(), p.TaxCode,
		nil, nil, nil, nil, nil, nil, nil, nil,
	}
	switch {
	case p.CourseSection != nil:
		cs := p.CourseSection
		args[7], args[8], args[9], args[10], args[11] = cs.CourseTitle, cs.SectionName, cs.StartDate, cs.EndDate, cs.ExecutionMode
	case p.Certificate != nil:
		args[12], args[13] = p.Certificate.Title, p.Certificate.Slug
	case p.Membership != nil:
		args[14] = p.Membership.ProgramID
	}

	if _, err := s.pool.Exec(ctx, upsertProductSQL, args...); err != nil {
		return errors.Wrapf(err, "upsert product %q", p.ID)
	}
	return nil
}

// UpsertProgram stores a discount program, replacing its rules. Rule
// positions follow slice order.
func (s *Seeder) UpsertProgram(ctx context.Context, storeID string, p discount.Program) error {
	if err := p.Validate(); err != nil {
		return err
	}
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, upsertProgramSQL, p.ID, storeID, p.Title); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, deleteRulesSQL, p.ID); err != nil {
			return err
		}
		b := &pgx.Batch{}
		for i, r := range p.Rules {
			b.Queue(insertRuleSQL,
				r.ID, p.ID, i, string(r.Scope), r.ProductID, string(r.ProductType),
				string(r.Kind), r.Amount.Decimal(), r.Percentage, nullMoney(r.MaxLimit),
			)
		}
		return tx.SendBatch(ctx, b).Close()
	})
	if err != nil {
		return errors.Wrapf(err, "upsert discount program %q", p.ID)
	}
	return nil
}

// UpsertCoupons stores coupons keyed by (store, code). The referenced
// programs must already exist.
func (s *Seeder) UpsertCoupons(ctx context.Context, coupons []*coupon.Coupon) error {
	if len(coupons) == 0 {
		return nil
	}
	b := &pgx.Batch{}
	for _, c := range coupons {
		b.Queue(upsertCouponSQL,
			c.ID, c.StoreID, c.Code, c.Program.ID, c.Active, c.StartDate, c.EndDate, c.MaxUsesPerProfile,
		)
	}
	if err := s.pool.SendBatch(ctx, b).Close(); err != nil {
		return errors.Wrapf(err, "upsert %d coupons", len(coupons))
	}
	return nil
}

// UpsertMembership stores a membership program and its bound discount
// programs in order. The discount programs must already exist.
func (s *Seeder) UpsertMembership(ctx context.Context, m *membership.Program) error {
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, upsertMembershipSQL,
			m.ID, m.StoreID, m.Title, string(m.Type), m.StartDate, m.EndDate,
		); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, deleteMembershipDiscountsSQL, m.ID); err != nil {
			return err
		}
		b := &pgx.Batch{}
		for i, p := range m.Programs {
			b.Queue(insertMembershipDiscountSQL, m.ID, p.ID, i)
		}
		return tx.SendBatch(ctx, b).Close()
	})
	if err != nil {
		return errors.Wrapf(err, "upsert membership %q", m.ID)
	}
	return nil
}

// Enroll enrolls a profile in a membership program.
func (s *Seeder) Enroll(ctx context.Context, membershipID, profileID string) error {
	if _, err := s.pool.Exec(ctx, enrollSQL, membershipID, profileID); err != nil {
		return errors.Wrapf(err, "enroll %q in %q", profileID, membershipID)
	}
	return nil
}
