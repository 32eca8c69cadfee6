// Package rebate values customer rebate rules against a cart and splits the
// resulting credits across tax rates.
package rebate

import (
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/Cheertaboi/customer-rebates/internal/models"
)

// PluginID identifies rebate positions inside a cart. Cart totals used for
// rebate valuation always exclude it.
const PluginID = "customer_rebate"

// ErrNilCart is returned when a rule is evaluated without a cart.
var ErrNilCart = errors.New("rebate: nil cart")

var hundred = decimal.NewFromInt(100)

// Reason explains why a rule does not apply.
type Reason string

const (
	ReasonNone                   Reason = ""
	ReasonOutsideValidityWindow  Reason = "outside_validity_window"
	ReasonMinimumOrderValue      Reason = "minimum_order_value_not_met"
	ReasonNewsletterRequired     Reason = "newsletter_subscription_required"
	ReasonFirstOrderOnly         Reason = "first_order_only"
	ReasonNoMatchingPositions    Reason = "no_matching_positions"
	ReasonCustomerNotInRuleGroup Reason = "customer_not_in_rule_group"
)

// Evaluation is the outcome of valuing one rule against one cart.
type Evaluation struct {
	Rule       models.RebateRule        `json:"rule"`
	Applicable bool                     `json:"applicable"`
	Reason     Reason                   `json:"reason,omitempty"`
	Base       decimal.Decimal          `json:"base"`
	Discount   decimal.Decimal          `json:"discount"`
	Matched    []models.ProductPosition `json:"matched,omitempty"`
}

// PositionNums returns the display numbers of the matched positions.
func (e Evaluation) PositionNums() []int {
	if len(e.Matched) == 0 {
		return nil
	}
	nums := make([]int, 0, len(e.Matched))
	for _, p := range e.Matched {
		nums = append(nums, p.PositionNum)
	}
	return nums
}

// Calculator decides eligibility and computes discount amounts.
type Calculator struct {
	Now func() time.Time
}

// NewCalculator returns a Calculator using now as its clock. A nil now
// falls back to time.Now.
func NewCalculator(now func() time.Time) *Calculator {
	return &Calculator{Now: now}
}

func (c *Calculator) now() time.Time {
	if c != nil && c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

// Evaluate runs the eligibility gate and, when it passes, values the rule.
// Ineligibility is reported through Reason; errors are reserved for invalid
// rules and broken carts.
func (c *Calculator) Evaluate(rule models.RebateRule, cart *models.Cart, customer models.Customer) (Evaluation, error) {
	ev := Evaluation{Rule: rule, Base: decimal.Zero, Discount: decimal.Zero}
	if cart == nil {
		return ev, ErrNilCart
	}
	if err := rule.Validate(); err != nil {
		return ev, err
	}

	if !rule.ActiveAt(c.now()) {
		ev.Reason = ReasonOutsideValidityWindow
		return ev, nil
	}
	total, err := cart.TotalWithoutFees(PluginID)
	if err != nil {
		return ev, errors.Wrap(err, "cart total")
	}
	if total.LessThan(rule.MinimumOrderValue) {
		ev.Reason = ReasonMinimumOrderValue
		return ev, nil
	}
	if rule.RestrictToNewsletterRecipients && !customer.NewsletterSubscriber {
		ev.Reason = ReasonNewsletterRequired
		return ev, nil
	}
	if rule.RestrictToFirstOrder && customer.HasPriorOrders() {
		ev.Reason = ReasonFirstOrderOnly
		return ev, nil
	}

	base := total
	if rule.Restricted() {
		ev.Matched = MatchingPositions(rule, cart)
		if len(ev.Matched) == 0 {
			ev.Reason = ReasonNoMatchingPositions
			return ev, nil
		}
		base = decimal.Zero
		for _, p := range ev.Matched {
			base = base.Add(p.Price)
		}
	}

	ev.Applicable = true
	ev.Base = base
	ev.Discount = Discount(rule, base)
	return ev, nil
}

// IsEligible reports whether rule applies to the cart and customer.
func (c *Calculator) IsEligible(rule models.RebateRule, cart *models.Cart, customer models.Customer) (bool, error) {
	ev, err := c.Evaluate(rule, cart, customer)
	if err != nil {
		return false, err
	}
	return ev.Applicable, nil
}

// ComputeDiscount returns the discount granted by rule, or zero when the
// rule does not apply.
func (c *Calculator) ComputeDiscount(rule models.RebateRule, cart *models.Cart, customer models.Customer) (decimal.Decimal, error) {
	ev, err := c.Evaluate(rule, cart, customer)
	if err != nil {
		return decimal.Zero, err
	}
	return ev.Discount, nil
}

// Discount values rule against base, capped at base and rounded to cents.
func Discount(rule models.RebateRule, base decimal.Decimal) decimal.Decimal {
	if !base.IsPositive() {
		return decimal.Zero
	}
	value := rule.Value
	if rule.Type == models.RulePercent {
		value = base.Mul(rule.Value).Div(hundred)
	}
	if value.GreaterThan(base) {
		value = base
	}
	if value.IsNegative() {
		return decimal.Zero
	}
	return value.Round(2)
}

// MatchingPositions returns the product positions whose group, or one of
// whose mirror groups, belongs to the rule.
func MatchingPositions(rule models.RebateRule, cart *models.Cart) []models.ProductPosition {
	groups := make(map[int64]struct{}, len(rule.ProductGroupIDs))
	for _, id := range rule.ProductGroupIDs {
		groups[id] = struct{}{}
	}
	var matched []models.ProductPosition
	for _, p := range cart.ProductPositions() {
		if p.InAnyGroup(groups) {
			matched = append(matched, p)
		}
	}
	return matched
}
