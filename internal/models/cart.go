package models

import (
	"sort"
	"strconv"
	"strings"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PriceType tells whether position prices include tax.
type PriceType string

const (
	PriceGross PriceType = "gross"
	PriceNet   PriceType = "net"
)

var hundred = decimal.NewFromInt(100)

// cartNamespace seeds cart fingerprints.
var cartNamespace = uuid.MustParse("5b0f6a52-3c1e-4d55-9f43-7c0f1f0e2a61")

// Position is a cart entry. It is implemented by ProductPosition and
// DiscountLineItem only; use a type switch to tell them apart.
type Position interface {
	position()
}

// ProductPosition is an ordinary priced cart line.
type ProductPosition struct {
	ProductID      int64           `json:"product_id"`
	Title          string          `json:"title"`
	Quantity       int             `json:"quantity"`
	Price          decimal.Decimal `json:"price"`
	TaxRate        decimal.Decimal `json:"tax_rate"`
	ProductGroupID int64           `json:"product_group_id"`
	MirrorGroupIDs []int64         `json:"mirror_group_ids,omitempty"`
	PositionNum    int             `json:"position_num"`
}

func (ProductPosition) position() {}

// InAnyGroup reports whether the product group or one of its mirror
// groups is part of groups.
func (p ProductPosition) InAnyGroup(groups map[int64]struct{}) bool {
	if _, ok := groups[p.ProductGroupID]; ok {
		return true
	}
	for _, id := range p.MirrorGroupIDs {
		if _, ok := groups[id]; ok {
			return true
		}
	}
	return false
}

// DiscountLineItem is a synthetic negative cart entry produced by a rebate.
type DiscountLineItem struct {
	RuleID          int64           `json:"rule_id"`
	Title           string          `json:"title"`
	PriceTotal      decimal.Decimal `json:"price_total"`
	TaxRate         decimal.Decimal `json:"tax_rate"`
	IsSplitPosition bool            `json:"is_split_position"`
	PositionNums    []int           `json:"position_nums,omitempty"`
}

func (DiscountLineItem) position() {}

// TaxAmount returns the tax share contained in (gross) or added to (net)
// the line total.
func (d DiscountLineItem) TaxAmount(pt PriceType) decimal.Decimal {
	if pt == PriceNet {
		return d.PriceTotal.Mul(d.TaxRate).Div(hundred)
	}
	return d.PriceTotal.Sub(d.PriceTotal.Div(hundred.Add(d.TaxRate)).Mul(hundred))
}

// PriceNetTotal returns the line total without tax.
func (d DiscountLineItem) PriceNetTotal(pt PriceType) decimal.Decimal {
	if pt == PriceNet {
		return d.PriceTotal.Round(2)
	}
	return d.PriceTotal.Sub(d.TaxAmount(pt)).Round(2)
}

// PositionPrice returns the amount a position contributes to the cart total.
func PositionPrice(p Position) decimal.Decimal {
	switch v := p.(type) {
	case ProductPosition:
		return v.Price
	case DiscountLineItem:
		return v.PriceTotal
	default:
		return decimal.Zero
	}
}

// CartPlugin contributes synthetic positions to a cart.
type CartPlugin interface {
	PluginID() string
	Positions(cart *Cart) ([]Position, error)
}

// TaxBucket is the subtotal of product positions taxed at one rate.
type TaxBucket struct {
	Rate   decimal.Decimal `json:"rate"`
	Amount decimal.Decimal `json:"amount"`
}

// Cart is an in-memory snapshot of a shopping cart.
type Cart struct {
	ID        string
	Currency  string
	Positions []Position
	Fees      decimal.Decimal
	Plugins   []CartPlugin
}

// LineItems returns the positions in display order with 1-based position
// numbers assigned to products. Discount lines take up a number but keep
// their own fields untouched.
func (c *Cart) LineItems() []Position {
	out := make([]Position, 0, len(c.Positions))
	num := 1
	for _, p := range c.Positions {
		if pp, ok := p.(ProductPosition); ok {
			pp.PositionNum = num
			p = pp
		}
		out = append(out, p)
		num++
	}
	return out
}

// ProductPositions returns only the product lines, numbered as in LineItems.
func (c *Cart) ProductPositions() []ProductPosition {
	var out []ProductPosition
	for _, p := range c.LineItems() {
		if pp, ok := p.(ProductPosition); ok {
			out = append(out, pp)
		}
	}
	return out
}

// HasPositions reports whether the cart holds at least one product line.
func (c *Cart) HasPositions() bool {
	for _, p := range c.Positions {
		if _, ok := p.(ProductPosition); ok {
			return true
		}
	}
	return false
}

// TotalWithoutFees sums every position plus the positions of all plugins
// whose ID is not listed in exclude.
func (c *Cart) TotalWithoutFees(exclude ...string) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, p := range c.Positions {
		total = total.Add(PositionPrice(p))
	}
	for _, plugin := range c.Plugins {
		if contains(exclude, plugin.PluginID()) {
			continue
		}
		positions, err := plugin.Positions(c)
		if err != nil {
			return decimal.Zero, errors.Wrapf(err, "plugin %s", plugin.PluginID())
		}
		for _, p := range positions {
			total = total.Add(PositionPrice(p))
		}
	}
	return total, nil
}

// Total is TotalWithoutFees plus fees.
func (c *Cart) Total(exclude ...string) (decimal.Decimal, error) {
	total, err := c.TotalWithoutFees(exclude...)
	if err != nil {
		return decimal.Zero, err
	}
	return total.Add(c.Fees), nil
}

// TaxRates groups product positions by tax rate, largest amount first.
// Equal amounts are ordered by the higher rate first.
func (c *Cart) TaxRates() []TaxBucket {
	return BucketsFor(c.Positions)
}

// BucketsFor builds tax buckets from the product lines in positions.
func BucketsFor(positions []Position) []TaxBucket {
	index := make(map[string]int)
	var buckets []TaxBucket
	for _, p := range positions {
		pp, ok := p.(ProductPosition)
		if !ok {
			continue
		}
		key := pp.TaxRate.String()
		i, seen := index[key]
		if !seen {
			i = len(buckets)
			index[key] = i
			buckets = append(buckets, TaxBucket{Rate: pp.TaxRate, Amount: decimal.Zero})
		}
		buckets[i].Amount = buckets[i].Amount.Add(pp.Price)
	}
	sort.SliceStable(buckets, func(i, j int) bool {
		if cmp := buckets[i].Amount.Cmp(buckets[j].Amount); cmp != 0 {
			return cmp > 0
		}
		return buckets[i].Rate.GreaterThan(buckets[j].Rate)
	})
	return buckets
}

// Version fingerprints the cart contents. Any change to a position, the
// fees or the currency yields a different value.
func (c *Cart) Version() string {
	var b strings.Builder
	b.WriteString(c.ID)
	b.WriteByte('|')
	b.WriteString(c.Currency)
	b.WriteByte('|')
	b.WriteString(c.Fees.String())
	for _, p := range c.Positions {
		b.WriteByte('|')
		switch v := p.(type) {
		case ProductPosition:
			b.WriteString("p:")
			b.WriteString(strconv.FormatInt(v.ProductID, 10))
			b.WriteByte(':')
			b.WriteString(strconv.Itoa(v.Quantity))
			b.WriteByte(':')
			b.WriteString(v.Price.String())
			b.WriteByte(':')
			b.WriteString(v.TaxRate.String())
			b.WriteByte(':')
			b.WriteString(strconv.FormatInt(v.ProductGroupID, 10))
			for _, id := range v.MirrorGroupIDs {
				b.WriteByte(',')
				b.WriteString(strconv.FormatInt(id, 10))
			}
		case DiscountLineItem:
			b.WriteString("d:")
			b.WriteString(strconv.FormatInt(v.RuleID, 10))
			b.WriteByte(':')
			b.WriteString(v.PriceTotal.String())
			b.WriteByte(':')
			b.WriteString(v.TaxRate.String())
		}
	}
	return uuid.NewSHA1(cartNamespace, []byte(b.String())).String()
}

func contains(values []string, v string) bool {
	for _, s := range values {
		if s == v {
			return true
		}
	}
	return false
}
