package main

import (
	"encoding/json"
	"os"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/checkout-pricing/internal/domain/catalog"
	"github.com/xenking/checkout-pricing/internal/domain/coupon"
	"github.com/xenking/checkout-pricing/internal/domain/discount"
	"github.com/xenking/checkout-pricing/internal/domain/membership"
	"github.com/xenking/checkout-pricing/internal/domain/money"
)

// seedFile is the JSON layout read by seed-db.
type seedFile struct {
	Stores []storeJSON `json:"stores"`
}

type storeJSON struct {
	ID                 string           `json:"id"`
	Slug               string           `json:"slug"`
	Name               string           `json:"name"`
	TaxEnabled         bool             `json:"tax_enabled"`
	ShipFromPostalCode string           `json:"ship_from_postal_code"`
	TaxCompanyCode     string           `json:"tax_company_code"`
	Products           []productJSON    `json:"products"`
	Programs           []programJSON    `json:"discount_programs"`
	Coupons            []couponJSON     `json:"coupons"`
	Memberships        []membershipJSON `json:"memberships"`
}

type productJSON struct {
	ID         string              `json:"id"`
	Title      string              `json:"title"`
	Type       catalog.ProductType `json:"type"`
	Fee        money.Money         `json:"fee"`
	MinimumFee money.Money         `json:"minimum_fee"`
	TaxCode    string              `json:"tax_code"`

	CourseTitle      string     `json:"course_title"`
	SectionName      string     `json:"section_name"`
	StartDate        *time.Time `json:"start_date"`
	EndDate          *time.Time `json:"end_date"`
	ExecutionMode    string     `json:"execution_mode"`
	CertificateTitle string     `json:"certificate_title"`
	CertificateSlug  string     `json:"certificate_slug"`
	MembershipID     string     `json:"membership_program_id"`
}

type programJSON struct {
	ID    string     `json:"id"`
	Title string     `json:"title"`
	Rules []ruleJSON `json:"rules"`
}

type ruleJSON struct {
	ID          string              `json:"id"`
	Scope       discount.Scope      `json:"scope"`
	ProductID   string              `json:"product_id"`
	ProductType catalog.ProductType `json:"product_type"`
	Kind        discount.Kind       `json:"kind"`
	Amount      money.Money         `json:"amount"`
	Percentage  decimal.Decimal     `json:"percentage"`
	MaxLimit    *money.Money        `json:"max_limit"`
}

type couponJSON struct {
	ID                string     `json:"id"`
	Code              string     `json:"code"`
	ProgramID         string     `json:"program_id"`
	Active            bool       `json:"active"`
	StartDate         *time.Time `json:"start_date"`
	EndDate           *time.Time `json:"end_date"`
	MaxUsesPerProfile int        `json:"max_uses_per_profile"`
}

type membershipJSON struct {
	ID         string          `json:"id"`
	Title      string          `json:"title"`
	Type       membership.Type `json:"type"`
	StartDate  *time.Time      `json:"start_date"`
	EndDate    *time.Time      `json:"end_date"`
	ProgramIDs []string        `json:"discount_program_ids"`
	Profiles   []string        `json:"enrolled_profiles"`
}

func readSeedFile(path string) (*seedFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read seed file")
	}
	var f seedFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, errors.Wrap(err, "parse seed JSON")
	}
	return &f, nil
}

func (s storeJSON) store() *catalog.Store {
	return &catalog.Store{
		ID:                 s.ID,
		Slug:               s.Slug,
		Name:               s.Name,
		TaxEnabled:         s.TaxEnabled,
		ShipFromPostalCode: s.ShipFromPostalCode,
		TaxCompanyCode:     s.TaxCompanyCode,
	}
}

func (p productJSON) product(storeID string) *catalog.Product {
	out := &catalog.Product{
		ID:         p.ID,
		StoreID:    storeID,
		Title:      p.Title,
		Type:       p.Type,
		Fee:        p.Fee,
		MinimumFee: p.MinimumFee,
		TaxCode:    p.TaxCode,
	}
	switch p.Type {
	case catalog.TypeCourseSection:
		out.CourseSection = &catalog.CourseSection{
			CourseTitle:   p.CourseTitle,
			SectionName:   p.SectionName,
			StartDate:     p.StartDate,
			EndDate:       p.EndDate,
			ExecutionMode: p.ExecutionMode,
		}
	case catalog.TypeCertificate:
		out.Certificate = &catalog.Certificate{Title: p.CertificateTitle, Slug: p.CertificateSlug}
	case catalog.TypeMembership:
		out.Membership = &catalog.Membership{ProgramID: p.MembershipID}
	}
	return out
}

func (p programJSON) program() discount.Program {
	out := discount.Program{ID: p.ID, Title: p.Title}
	for _, r := range p.Rules {
		out.Rules = append(out.Rules, discount.Rule{
			ID:          r.ID,
			Scope:       r.Scope,
			ProductID:   r.ProductID,
			ProductType: r.ProductType,
			Kind:        r.Kind,
			Amount:      r.Amount,
			Percentage:  r.Percentage,
			MaxLimit:    r.MaxLimit,
		})
	}
	return out
}

// coupons resolves each coupon's program by id.
func (s storeJSON) coupons(programs map[string]discount.Program) ([]*coupon.Coupon, error) {
	out := make([]*coupon.Coupon, 0, len(s.Coupons))
	for _, c := range s.Coupons {
		p, ok := programs[c.ProgramID]
		if !ok {
			return nil, errors.Errorf("coupon %q: unknown program %q", c.Code, c.ProgramID)
		}
		out = append(out, &coupon.Coupon{
			ID:                c.ID,
			StoreID:           s.ID,
			Code:              c.Code,
			Program:           p,
			Active:            c.Active,
			StartDate:         c.StartDate,
			EndDate:           c.EndDate,
			MaxUsesPerProfile: c.MaxUsesPerProfile,
		})
	}
	return out, nil
}

func (m membershipJSON) membership(storeID string, programs map[string]discount.Program) (*membership.Program, error) {
	out := &membership.Program{
		ID:        m.ID,
		StoreID:   storeID,
		Title:     m.Title,
		Type:      m.Type,
		StartDate: m.StartDate,
		EndDate:   m.EndDate,
	}
	for _, id := range m.ProgramIDs {
		p, ok := programs[id]
		if !ok {
			return nil, errors.Errorf("membership %q: unknown program %q", m.ID, id)
		}
		out.Programs = append(out.Programs, p)
	}
	return out, nil
}
