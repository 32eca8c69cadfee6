package rebate

import (
	"github.com/go-faster/errors"

	"github.com/Cheertaboi/customer-rebates/internal/cache"
	"github.com/Cheertaboi/customer-rebates/internal/models"
)

// Session computes rebate lines for one request. It is not safe for
// concurrent use; create one per request.
type Session struct {
	agg           *Aggregator
	memo          *cache.Memo
	locale        string
	defaultLocale string

	// computing counts nested computations per customer.
	computing map[int64]int
}

// SessionConfig configures a Session.
type SessionConfig struct {
	Aggregator    *Aggregator
	Memo          *cache.Memo
	Locale        string
	DefaultLocale string
}

// NewSession returns a Session. A nil Memo gets a fresh one.
func NewSession(cfg SessionConfig) *Session {
	memo := cfg.Memo
	if memo == nil {
		memo = cache.NewMemo()
	}
	return &Session{
		agg:           cfg.Aggregator,
		memo:          memo,
		locale:        cfg.Locale,
		defaultLocale: cfg.DefaultLocale,
		computing:     make(map[int64]int),
	}
}

// Computing reports whether lines for customerID are being computed.
func (s *Session) Computing(customerID int64) bool {
	return s.computing[customerID] > 0
}

// Invalidate drops memoized lines of customerID.
func (s *Session) Invalidate(customerID int64) {
	s.memo.Invalidate(customerID)
}

// DiscountLineItems returns the discount lines the customer gets for cart,
// one per applicable rule or one per tax rate after splitting, in rule
// order. A call made while the same customer's lines are being computed
// returns nothing.
func (s *Session) DiscountLineItems(cart *models.Cart, customer models.Customer, rules []models.RebateRule) ([]models.DiscountLineItem, error) {
	if cart == nil {
		return nil, ErrNilCart
	}
	if s.Computing(customer.ID) {
		return nil, nil
	}
	key := cache.MemoKey{
		CustomerID:   customer.ID,
		CartVersion:  cart.Version(),
		RulesVersion: models.RulesVersion(rules),
	}
	if lines, ok := s.memo.Get(key); ok {
		return lines, nil
	}

	s.computing[customer.ID]++
	defer func() {
		s.computing[customer.ID]--
		if s.computing[customer.ID] == 0 {
			delete(s.computing, customer.ID)
		}
	}()

	lines, err := s.compute(cart, customer, rules)
	if err != nil {
		return nil, err
	}
	s.memo.Set(key, lines)
	return lines, nil
}

func (s *Session) compute(cart *models.Cart, customer models.Customer, rules []models.RebateRule) ([]models.DiscountLineItem, error) {
	if !cart.HasPositions() {
		return nil, nil
	}
	evs, err := s.agg.Applicable(rules, cart, customer)
	if err != nil {
		return nil, err
	}
	buckets := cart.TaxRates()
	rate := MostValuableTaxRate(buckets)

	var out []models.DiscountLineItem
	for _, ev := range evs {
		if !ev.Discount.IsPositive() {
			continue
		}
		line := models.DiscountLineItem{
			RuleID:       ev.Rule.ID,
			PriceTotal:   ev.Discount.Neg(),
			TaxRate:      rate,
			PositionNums: ev.PositionNums(),
		}
		parts, err := SplitForTaxRates(line, buckets)
		if err != nil {
			return nil, errors.Wrapf(err, "split rule %d", ev.Rule.ID)
		}
		title := ev.Rule.Title(s.locale, s.defaultLocale)
		for i := range parts {
			parts[i].Title = Title(title, parts[i])
		}
		out = append(out, parts...)
	}
	return out, nil
}

// Plugin exposes the session as a cart plugin for customer and rules.
func (s *Session) Plugin(customer models.Customer, rules []models.RebateRule) models.CartPlugin {
	return &plugin{session: s, customer: customer, rules: rules}
}

type plugin struct {
	session  *Session
	customer models.Customer
	rules    []models.RebateRule
}

func (p *plugin) PluginID() string { return PluginID }

func (p *plugin) Positions(cart *models.Cart) ([]models.Position, error) {
	lines, err := p.session.DiscountLineItems(cart, p.customer, p.rules)
	if err != nil {
		return nil, err
	}
	out := make([]models.Position, 0, len(lines))
	for _, l := range lines {
		out = append(out, l)
	}
	return out, nil
}
