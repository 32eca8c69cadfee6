package models

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var dec = decimal.RequireFromString

type staticPlugin struct {
	id        string
	positions []Position
}

func (p staticPlugin) PluginID() string { return p.id }

func (p staticPlugin) Positions(*Cart) ([]Position, error) { return p.positions, nil }

func sampleCart() *Cart {
	return &Cart{
		ID:       "c1",
		Currency: "EUR",
		Fees:     dec("4.90"),
		Positions: []Position{
			ProductPosition{ProductID: 1, Price: dec("40"), TaxRate: dec("7"), ProductGroupID: 1},
			DiscountLineItem{RuleID: 5, PriceTotal: dec("-5"), TaxRate: dec("19")},
			ProductPosition{ProductID: 2, Price: dec("60"), TaxRate: dec("19.0"), ProductGroupID: 2},
		},
	}
}

func TestLineItemsNumbering(t *testing.T) {
	items := sampleCart().LineItems()
	require.Len(t, items, 3)
	require.Equal(t, 1, items[0].(ProductPosition).PositionNum)
	require.Equal(t, 3, items[2].(ProductPosition).PositionNum)

	products := sampleCart().ProductPositions()
	require.Len(t, products, 2)
	require.Equal(t, int64(2), products[1].ProductID)
}

func TestTotals(t *testing.T) {
	cart := sampleCart()
	total, err := cart.TotalWithoutFees()
	require.NoError(t, err)
	require.Equal(t, "95", total.String())

	cart.Plugins = []CartPlugin{staticPlugin{id: "x", positions: []Position{DiscountLineItem{PriceTotal: dec("-10")}}}}
	total, err = cart.TotalWithoutFees()
	require.NoError(t, err)
	require.Equal(t, "85", total.String())

	total, err = cart.TotalWithoutFees("x")
	require.NoError(t, err)
	require.Equal(t, "95", total.String())

	withFees, err := cart.Total("x")
	require.NoError(t, err)
	require.Equal(t, "99.9", withFees.String())
}

func TestTaxRatesSkipDiscountLines(t *testing.T) {
	buckets := sampleCart().TaxRates()
	require.Len(t, buckets, 2)
	require.Equal(t, "19", buckets[0].Rate.String())
	require.Equal(t, "60", buckets[0].Amount.String())
	require.Equal(t, "7", buckets[1].Rate.String())
}

func TestVersionTracksContents(t *testing.T) {
	a, b := sampleCart(), sampleCart()
	require.Equal(t, a.Version(), b.Version())

	b.Positions[0] = ProductPosition{ProductID: 1, Price: dec("41"), TaxRate: dec("7"), ProductGroupID: 1}
	require.NotEqual(t, a.Version(), b.Version())

	c := sampleCart()
	c.Fees = dec("0")
	require.NotEqual(t, a.Version(), c.Version())
}

func TestInAnyGroup(t *testing.T) {
	p := ProductPosition{ProductGroupID: 1, MirrorGroupIDs: []int64{5, 6}}
	require.True(t, p.InAnyGroup(map[int64]struct{}{1: {}}))
	require.True(t, p.InAnyGroup(map[int64]struct{}{6: {}}))
	require.False(t, p.InAnyGroup(map[int64]struct{}{7: {}}))
}

func TestDiscountTaxAmount(t *testing.T) {
	d := DiscountLineItem{PriceTotal: dec("-119"), TaxRate: dec("19")}
	require.Equal(t, "-19", d.TaxAmount(PriceGross).Round(2).String())
	require.Equal(t, "-100", d.PriceNetTotal(PriceGross).String())

	n := DiscountLineItem{PriceTotal: dec("-100"), TaxRate: dec("19")}
	require.Equal(t, "-19", n.TaxAmount(PriceNet).String())
	require.Equal(t, "-100", n.PriceNetTotal(PriceNet).String())
}
