package rebate

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/Cheertaboi/customer-rebates/internal/cache"
	"github.com/Cheertaboi/customer-rebates/internal/models"
)

func newTestSession(mode Mode, memo *cache.Memo) *Session {
	return NewSession(SessionConfig{
		Aggregator:    &Aggregator{Calc: calc(), Mode: mode},
		Memo:          memo,
		Locale:        "de_DE",
		DefaultLocale: "en_US",
	})
}

func TestSessionSingleLine(t *testing.T) {
	cart := newCart(product(1, "60", "19", 10), product(2, "40", "7", 11))
	s := newTestSession(SelectAll, nil)

	lines, err := s.DiscountLineItems(cart, customer(), []models.RebateRule{newRule(1, models.RulePercent, "50")})
	require.NoError(t, err)
	require.Len(t, lines, 1)
	require.Equal(t, "-50", lines[0].PriceTotal.String())
	require.Equal(t, "19", lines[0].TaxRate.String())
	require.False(t, lines[0].IsSplitPosition)
	require.Equal(t, "Customer rebate: Rule 1", lines[0].Title)
}

func TestSessionSplitsAcrossRates(t *testing.T) {
	cart := newCart(product(1, "60", "19", 10), product(2, "40", "7", 11))
	s := newTestSession(SelectAll, nil)

	lines, err := s.DiscountLineItems(cart, customer(), []models.RebateRule{newRule(1, models.RuleAbsolute, "80")})
	require.NoError(t, err)
	require.Len(t, lines, 2)
	require.Equal(t, "-60", lines[0].PriceTotal.String())
	require.Equal(t, "-20", lines[1].PriceTotal.String())
	require.Equal(t, "Customer rebate: Rule 1 (amount for positions with 7% VAT)", lines[1].Title)
}

func TestSessionRestrictedTitleListsPositions(t *testing.T) {
	cart := newCart(product(1, "20", "19", 10), product(2, "80", "19", 11, 30))
	rule := newRule(1, models.RuleAbsolute, "5")
	rule.ProductGroupIDs = []int64{30}
	rule.Translations = []models.Translation{{Locale: "de_DE", Title: "Stammkunden"}, {Locale: "en_US", Title: "Regulars"}}
	s := newTestSession(SelectAll, nil)

	lines, err := s.DiscountLineItems(cart, customer(), []models.RebateRule{rule})
	require.NoError(t, err)
	require.Len(t, lines, 1)
	require.Equal(t, "Customer rebate: Stammkunden - Rebate is valid for position(s): 2", lines[0].Title)
}

func TestSessionConcatenatesRulesWithoutCombinedCap(t *testing.T) {
	cart := newCart(product(1, "100", "19", 10))
	rules := []models.RebateRule{newRule(1, models.RuleAbsolute, "70"), newRule(2, models.RuleAbsolute, "70")}
	s := newTestSession(SelectAll, nil)

	lines, err := s.DiscountLineItems(cart, customer(), rules)
	require.NoError(t, err)
	require.Len(t, lines, 2)
	require.Equal(t, int64(1), lines[0].RuleID)
	require.Equal(t, int64(2), lines[1].RuleID)
}

func TestSessionOmitsRestrictedRuleWithoutMatch(t *testing.T) {
	cart := newCart(product(1, "100", "19", 10))
	rule := newRule(1, models.RuleAbsolute, "10")
	rule.ProductGroupIDs = []int64{42}
	s := newTestSession(SelectAll, nil)

	lines, err := s.DiscountLineItems(cart, customer(), []models.RebateRule{rule})
	require.NoError(t, err)
	require.Empty(t, lines)
}

func TestSessionEmptyCart(t *testing.T) {
	s := newTestSession(SelectAll, nil)
	lines, err := s.DiscountLineItems(newCart(), customer(), []models.RebateRule{newRule(1, models.RuleAbsolute, "10")})
	require.NoError(t, err)
	require.Empty(t, lines)
}

func TestSessionMemoizesPerCartVersion(t *testing.T) {
	memo := cache.NewMemo()
	s := newTestSession(SelectAll, memo)
	rules := []models.RebateRule{newRule(1, models.RulePercent, "10")}
	cart := newCart(product(1, "100", "19", 10))

	first, err := s.DiscountLineItems(cart, customer(), rules)
	require.NoError(t, err)
	second, err := s.DiscountLineItems(cart, customer(), rules)
	require.NoError(t, err)
	require.Equal(t, first, second)
	require.Equal(t, 1, memo.Len())

	cart.Positions = append(cart.Positions, product(2, "100", "19", 10))
	third, err := s.DiscountLineItems(cart, customer(), rules)
	require.NoError(t, err)
	require.Equal(t, "-20", third[0].PriceTotal.String())
	require.Equal(t, 2, memo.Len())

	s.Invalidate(customer().ID)
	require.Equal(t, 0, memo.Len())
}

func TestSessionMemoKeyedByRuleSet(t *testing.T) {
	memo := cache.NewMemo()
	s := newTestSession(SelectAll, memo)
	cart := newCart(product(1, "100", "19", 10))

	first, err := s.DiscountLineItems(cart, customer(), []models.RebateRule{newRule(1, models.RuleAbsolute, "10")})
	require.NoError(t, err)
	require.Equal(t, "-10", first[0].PriceTotal.String())

	second, err := s.DiscountLineItems(cart, customer(), []models.RebateRule{newRule(2, models.RuleAbsolute, "30")})
	require.NoError(t, err)
	require.Len(t, second, 1)
	require.Equal(t, int64(2), second[0].RuleID)
	require.Equal(t, "-30", second[0].PriceTotal.String())
	require.Equal(t, 2, memo.Len())
}

func TestSessionMemoHitIsIsolatedFromCaller(t *testing.T) {
	s := newTestSession(SelectAll, nil)
	rule := newRule(1, models.RuleAbsolute, "5")
	rule.ProductGroupIDs = []int64{30}
	rules := []models.RebateRule{rule}
	cart := newCart(product(1, "20", "19", 10), product(2, "80", "19", 30))

	first, err := s.DiscountLineItems(cart, customer(), rules)
	require.NoError(t, err)
	require.Equal(t, []int{2}, first[0].PositionNums)
	first[0].PositionNums[0] = 99

	again, err := s.DiscountLineItems(cart, customer(), rules)
	require.NoError(t, err)
	require.Equal(t, []int{2}, again[0].PositionNums)
}

// reentrantPlugin asks the cart for its full total while the cart is
// computing its own total, as a fee or shipping module would.
type reentrantPlugin struct {
	inside bool
	seen   []decimal.Decimal
}

func (p *reentrantPlugin) PluginID() string { return "probe" }

func (p *reentrantPlugin) Positions(cart *models.Cart) ([]models.Position, error) {
	if p.inside {
		return nil, nil
	}
	p.inside = true
	defer func() { p.inside = false }()
	total, err := cart.TotalWithoutFees()
	if err != nil {
		return nil, err
	}
	p.seen = append(p.seen, total)
	return nil, nil
}

func TestSessionGuardsReentrantCalls(t *testing.T) {
	s := newTestSession(SelectAll, nil)
	rules := []models.RebateRule{newRule(1, models.RuleAbsolute, "30")}
	cart := newCart(product(1, "100", "19", 10))
	probe := &reentrantPlugin{}
	cart.Plugins = []models.CartPlugin{s.Plugin(customer(), rules), probe}

	total, err := cart.TotalWithoutFees()
	require.NoError(t, err)
	require.Equal(t, "70", total.String())
	require.False(t, s.Computing(customer().ID))

	require.NotEmpty(t, probe.seen)
	for _, seen := range probe.seen {
		require.True(t, seen.GreaterThanOrEqual(decimal.NewFromInt(70)))
	}
}

func TestSessionPluginPositions(t *testing.T) {
	s := newTestSession(SelectAll, nil)
	rules := []models.RebateRule{newRule(1, models.RuleAbsolute, "30")}
	cart := newCart(product(1, "100", "19", 10))
	p := s.Plugin(customer(), rules)
	require.Equal(t, PluginID, p.PluginID())

	positions, err := p.Positions(cart)
	require.NoError(t, err)
	require.Len(t, positions, 1)
	dl, ok := positions[0].(models.DiscountLineItem)
	require.True(t, ok)
	require.Equal(t, "-30", dl.PriceTotal.String())
}
