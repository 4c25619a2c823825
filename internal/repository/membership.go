package repository

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/checkout-pricing/internal/domain/membership"
)

const (
	findEnrolledSQL = `SELECT m.id, m.store_id, m.title, m.membership_type, m.start_date, m.end_date
		FROM membership_programs m
		JOIN membership_enrollments e ON e.membership_program_id = m.id
		WHERE m.store_id = $1 AND e.profile_id = $2
		ORDER BY e.enrolled_at, m.id`

	membershipDiscountsSQL = `SELECT membership_program_id, discount_program_id
		FROM membership_program_discount_programs
		WHERE membership_program_id = ANY($1)
		ORDER BY membership_program_id, position`
)

var _ membership.Repository = (*MembershipRepository)(nil)

// MembershipRepository implements membership.Repository backed by PostgreSQL.
type MembershipRepository struct {
	pool *pgxpool.Pool
}

// NewMembershipRepository returns a MembershipRepository that uses the given pool.
func NewMembershipRepository(pool *pgxpool.Pool) *MembershipRepository {
	return &MembershipRepository{pool: pool}
}

// FindEnrolled returns the store's membership programs the profile is
// enrolled in, with their bound discount programs in position order.
func (r *MembershipRepository) FindEnrolled(ctx context.Context, storeID, profileID string) ([]membership.Program, error) {
	rows, err := r.pool.Query(ctx, findEnrolledSQL, storeID, profileID)
	if err != nil {
		return nil, errors.Wrap(err, "find enrollments")
	}
	var (
		programs []membership.Program
		ids      []string
	)
	for rows.Next() {
		var (
			p          membership.Program
			kind       string
			start, end *time.Time
		)
		if err := rows.Scan(&p.ID, &p.StoreID, &p.Title, &kind, &start, &end); err != nil {
			rows.Close()
			return nil, errors.Wrap(err, "scan membership program")
		}
		p.Type = membership.Type(kind)
		p.StartDate, p.EndDate = start, end
		programs = append(programs, p)
		ids = append(ids, p.ID)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate enrollments")
	}
	if len(programs) == 0 {
		return programs, nil
	}

	bound, err := r.boundPrograms(ctx, ids)
	if err != nil {
		return nil, err
	}
	var discountIDs []string
	for _, ds := range bound {
		discountIDs = append(discountIDs, ds...)
	}
	discounts, err := loadPrograms(ctx, r.pool, discountIDs)
	if err != nil {
		return nil, err
	}

	for i := range programs {
		for _, id := range bound[programs[i].ID] {
			d, ok := discounts[id]
			if !ok {
				return nil, errors.Errorf("membership %s: discount program %s missing", programs[i].ID, id)
			}
			programs[i].Programs = append(programs[i].Programs, d)
		}
	}
	return programs, nil
}

func (r *MembershipRepository) boundPrograms(ctx context.Context, membershipIDs []string) (map[string][]string, error) {
	rows, err := r.pool.Query(ctx, membershipDiscountsSQL, membershipIDs)
	if err != nil {
		return nil, errors.Wrap(err, "find membership discounts")
	}
	defer rows.Close()

	out := make(map[string][]string, len(membershipIDs))
	for rows.Next() {
		var mid, did string
		if err := rows.Scan(&mid, &did); err != nil {
			return nil, errors.Wrap(err, "scan membership discount")
		}
		out[mid] = append(out[mid], did)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate membership discounts")
	}
	return out, nil
}
