package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/checkout-pricing/internal/domain/catalog"
	"github.com/xenking/checkout-pricing/internal/domain/discount"
	"github.com/xenking/checkout-pricing/internal/domain/money"
)

func TestReadSeedFile(t *testing.T) {
	f, err := readSeedFile("../../db/seed/seed.json")
	require.NoError(t, err)
	require.Len(t, f.Stores, 1)

	st := f.Stores[0]
	assert.Equal(t, "acme-academy", st.store().Slug)

	for _, pj := range st.Products {
		p := pj.product(st.ID)
		assert.NoError(t, p.Validate(), p.ID)
		assert.Equal(t, st.ID, p.StoreID)
	}

	programs := make(map[string]discount.Program)
	for _, pj := range st.Programs {
		p := pj.program()
		require.NoError(t, p.Validate())
		programs[p.ID] = p
	}
	spring := programs["spring-sale"]
	require.Len(t, spring.Rules, 2)
	assert.Equal(t, catalog.TypeCourseSection, spring.Rules[0].ProductType)
	require.NotNil(t, spring.Rules[0].MaxLimit)
	assert.True(t, spring.Rules[0].MaxLimit.Equal(money.MustParse("25")))
	assert.True(t, spring.Rules[1].Amount.Equal(money.MustParse("5")))

	coupons, err := st.coupons(programs)
	require.NoError(t, err)
	require.Len(t, coupons, 2)
	assert.Equal(t, "SPRING", coupons[0].Code)
	assert.Equal(t, "spring-sale", coupons[0].Program.ID)
	assert.NotNil(t, coupons[0].EndDate)

	m, err := st.Memberships[0].membership(st.ID, programs)
	require.NoError(t, err)
	require.Len(t, m.Programs, 1)
	assert.Equal(t, "members-10", m.Programs[0].ID)
}

func TestSeedFileUnknownProgram(t *testing.T) {
	st := storeJSON{ID: "s1", Coupons: []couponJSON{{Code: "X", ProgramID: "missing"}}}
	_, err := st.coupons(nil)
	assert.ErrorContains(t, err, `unknown program "missing"`)

	_, err = membershipJSON{ID: "m", ProgramIDs: []string{"missing"}}.membership("s1", nil)
	assert.ErrorContains(t, err, `unknown program "missing"`)
}
