package rebate

import (
	"sort"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/Cheertaboi/customer-rebates/internal/models"
)

// ErrNoTaxBuckets is returned when a discount is split against a cart
// without product positions.
var ErrNoTaxBuckets = errors.New("rebate: no tax buckets to split against")

// MostValuableTaxRate returns the rate of the largest bucket, or zero.
func MostValuableTaxRate(buckets []models.TaxBucket) decimal.Decimal {
	sorted := sortedBuckets(buckets)
	if len(sorted) == 0 {
		return decimal.Zero
	}
	return sorted[0].Rate
}

// SplitForTaxRates breaks line into one split position per tax bucket when
// the bucket at its own rate cannot absorb it. Buckets are consumed largest
// first so that no bucket turns negative unless the whole cart is smaller
// than the discount; in that case the remainder stays on the last line.
func SplitForTaxRates(line models.DiscountLineItem, buckets []models.TaxBucket) ([]models.DiscountLineItem, error) {
	if len(buckets) == 0 {
		return nil, ErrNoTaxBuckets
	}
	if len(buckets) == 1 || !line.PriceTotal.IsNegative() {
		return []models.DiscountLineItem{line}, nil
	}
	for _, b := range buckets {
		if b.Rate.Equal(line.TaxRate) && !b.Amount.Add(line.PriceTotal).IsNegative() {
			return []models.DiscountLineItem{line}, nil
		}
	}

	remaining := line.PriceTotal.Neg()
	var out []models.DiscountLineItem
	for _, b := range sortedBuckets(buckets) {
		if remaining.IsZero() {
			break
		}
		if !b.Amount.IsPositive() {
			continue
		}
		alloc := decimal.Min(remaining, b.Amount)
		remaining = remaining.Sub(alloc)
		out = append(out, models.DiscountLineItem{
			RuleID:          line.RuleID,
			PriceTotal:      alloc.Neg(),
			TaxRate:         b.Rate,
			IsSplitPosition: true,
			PositionNums:    append([]int(nil), line.PositionNums...),
		})
	}
	if len(out) == 0 {
		return []models.DiscountLineItem{line}, nil
	}
	if remaining.IsPositive() {
		last := &out[len(out)-1]
		last.PriceTotal = last.PriceTotal.Sub(remaining)
	}
	return out, nil
}

func sortedBuckets(buckets []models.TaxBucket) []models.TaxBucket {
	sorted := make([]models.TaxBucket, len(buckets))
	copy(sorted, buckets)
	sort.SliceStable(sorted, func(i, j int) bool {
		if cmp := sorted[i].Amount.Cmp(sorted[j].Amount); cmp != 0 {
			return cmp > 0
		}
		return sorted[i].Rate.GreaterThan(sorted[j].Rate)
	})
	return sorted
}
