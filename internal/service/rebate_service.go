package service

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/Cheertaboi/customer-rebates/internal/cache"
	"github.com/Cheertaboi/customer-rebates/internal/metrics"
	"github.com/Cheertaboi/customer-rebates/internal/models"
	"github.com/Cheertaboi/customer-rebates/internal/rebate"
)

// requestTimeout bounds the repository and cache round trips of one quote.
const requestTimeout = 8 * time.Second

var (
	ErrCustomerNotFound = errors.New("customer not found")
	ErrRuleNotFound     = errors.New("rebate rule not found")
)

// Repos required by the service (interfaces to allow mocking).
type RuleRepo interface {
	GetRule(ctx context.Context, id int64) (*models.RebateRule, error)
	ListForGroups(ctx context.Context, groupIDs []int64) ([]models.RebateRule, error)
	CreateRule(ctx context.Context, rule models.RebateRule) (int64, error)
}

type CustomerRepo interface {
	GetCustomer(ctx context.Context, id int64) (*models.Customer, error)
}

type ProductRepo interface {
	MirrorGroupIDs(ctx context.Context, productIDs []int64) (map[int64][]int64, error)
}

// Options tunes a RebateService. Zero values fall back to SelectAll, gross
// prices, en_US, EUR and the wall clock.
type Options struct {
	Mode            rebate.Mode
	PriceType       models.PriceType
	DefaultLocale   string
	DefaultCurrency string
	Now             func() time.Time
	Cache           *cache.RuleCache
	Metrics         *metrics.RebateMetrics
	Logger          zerolog.Logger
}

type RebateService struct {
	rules     RuleRepo
	customers CustomerRepo
	products  ProductRepo
	cache     *cache.RuleCache
	metrics   *metrics.RebateMetrics
	log       zerolog.Logger

	mode            rebate.Mode
	priceType       models.PriceType
	defaultLocale   string
	defaultCurrency string
	now             func() time.Time
}

func NewRebateService(rules RuleRepo, customers CustomerRepo, products ProductRepo, opts Options) *RebateService {
	s := &RebateService{
		rules:           rules,
		customers:       customers,
		products:        products,
		cache:           opts.Cache,
		metrics:         opts.Metrics,
		log:             opts.Logger,
		mode:            opts.Mode,
		priceType:       opts.PriceType,
		defaultLocale:   opts.DefaultLocale,
		defaultCurrency: opts.DefaultCurrency,
		now:             opts.Now,
	}
	if s.mode == "" {
		s.mode = rebate.SelectAll
	}
	if s.priceType == "" {
		s.priceType = models.PriceGross
	}
	if s.defaultLocale == "" {
		s.defaultLocale = "en_US"
	}
	if s.defaultCurrency == "" {
		s.defaultCurrency = "EUR"
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// QuoteRequest describes a customer's cart.
type QuoteRequest struct {
	CustomerID int64
	CartID     string
	Currency   string
	Locale     string
	Fees       decimal.Decimal
	Positions  []models.ProductPosition
}

// QuoteLine is a discount line with its tax figures resolved for the
// configured price type.
type QuoteLine struct {
	models.DiscountLineItem
	TaxAmount     decimal.Decimal `json:"tax_amount"`
	PriceNetTotal decimal.Decimal `json:"price_net_total"`
}

// Quote is the priced cart after rebates.
type Quote struct {
	CustomerID         int64                    `json:"customer_id"`
	CartVersion        string                   `json:"cart_version"`
	Currency           string                   `json:"currency"`
	PriceType          models.PriceType         `json:"price_type"`
	Positions          []models.ProductPosition `json:"positions"`
	Lines              []QuoteLine              `json:"lines"`
	TotalBeforeRebates decimal.Decimal          `json:"total_before_rebates"`
	RebateTotal        decimal.Decimal          `json:"rebate_total"`
	Fees               decimal.Decimal          `json:"fees"`
	Total              decimal.Decimal          `json:"total"`
}

func (s *RebateService) calculator() *rebate.Calculator {
	return rebate.NewCalculator(s.now)
}

func (s *RebateService) aggregator() *rebate.Aggregator {
	return &rebate.Aggregator{
		Calc: s.calculator(),
		Mode: s.mode,
		Observe: func(ev rebate.Evaluation) {
			s.metrics.ObserveEvaluation(string(ev.Reason))
		},
	}
}

// Quote computes the discount lines a customer gets for the cart and the
// resulting totals.
func (s *RebateService) Quote(ctx context.Context, req QuoteRequest) (Quote, error) {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	customer, rules, cart, err := s.prepare(ctx, req)
	if err != nil {
		return Quote{}, err
	}

	session := rebate.NewSession(rebate.SessionConfig{
		Aggregator:    s.aggregator(),
		Locale:        req.Locale,
		DefaultLocale: s.defaultLocale,
	})
	cart.Plugins = append(cart.Plugins, session.Plugin(*customer, rules))

	before, err := cart.Total(rebate.PluginID)
	if err != nil {
		return Quote{}, errors.Wrap(err, "total before rebates")
	}
	lines, err := session.DiscountLineItems(cart, *customer, rules)
	if err != nil {
		return Quote{}, errors.Wrap(err, "discount lines")
	}
	// Served from the session memo.
	total, err := cart.Total()
	if err != nil {
		return Quote{}, errors.Wrap(err, "total after rebates")
	}

	q := Quote{
		CustomerID:         customer.ID,
		CartVersion:        cart.Version(),
		Currency:           cart.Currency,
		PriceType:          s.priceType,
		Positions:          cart.ProductPositions(),
		Lines:              make([]QuoteLine, 0, len(lines)),
		TotalBeforeRebates: before,
		RebateTotal:        decimal.Zero,
		Fees:               cart.Fees,
		Total:              total,
	}
	for _, l := range lines {
		q.RebateTotal = q.RebateTotal.Add(l.PriceTotal)
		q.Lines = append(q.Lines, QuoteLine{
			DiscountLineItem: l,
			TaxAmount:        l.TaxAmount(s.priceType).Round(2),
			PriceNetTotal:    l.PriceNetTotal(s.priceType),
		})
		s.metrics.ObserveLine(l.IsSplitPosition)
	}

	s.log.Debug().
		Int64("customer_id", customer.ID).
		Int("rules", len(rules)).
		Int("lines", len(lines)).
		Str("rebate_total", q.RebateTotal.String()).
		Msg("rebate quote")
	return q, nil
}

// Applicable evaluates every rule of the customer's groups against the cart.
func (s *RebateService) Applicable(ctx context.Context, req QuoteRequest) ([]rebate.Evaluation, error) {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	customer, rules, cart, err := s.prepare(ctx, req)
	if err != nil {
		return nil, err
	}
	return s.aggregator().Evaluate(rules, cart, *customer)
}

func (s *RebateService) prepare(ctx context.Context, req QuoteRequest) (*models.Customer, []models.RebateRule, *models.Cart, error) {
	customer, err := s.customers.GetCustomer(ctx, req.CustomerID)
	if err != nil {
		return nil, nil, nil, errors.Wrap(err, "load customer")
	}
	if customer == nil {
		return nil, nil, nil, errors.Wrapf(ErrCustomerNotFound, "customer %d", req.CustomerID)
	}

	rules, err := s.rulesFor(ctx, customer.GroupIDs)
	if err != nil {
		return nil, nil, nil, err
	}

	positions, err := s.withMirrorGroups(ctx, req.Positions)
	if err != nil {
		return nil, nil, nil, err
	}

	currency := req.Currency
	if currency == "" {
		currency = s.defaultCurrency
	}
	cart := &models.Cart{
		ID:       req.CartID,
		Currency: currency,
		Fees:     req.Fees,
	}
	for _, p := range positions {
		cart.Positions = append(cart.Positions, p)
	}
	return customer, rules, cart, nil
}

// rulesFor collects the rules of groupIDs, reading through the rule cache.
// Cache failures are logged and treated as misses.
func (s *RebateService) rulesFor(ctx context.Context, groupIDs []int64) ([]models.RebateRule, error) {
	var rules []models.RebateRule
	var missing []int64
	for _, id := range groupIDs {
		cached, ok, err := s.cache.GroupRules(ctx, id)
		if err != nil {
			s.log.Warn().Err(err).Int64("group_id", id).Msg("rule cache read failed")
		}
		s.metrics.ObserveCache(ok)
		if ok {
			rules = append(rules, cached...)
			continue
		}
		missing = append(missing, id)
	}

	if len(missing) > 0 {
		loaded, err := s.rules.ListForGroups(ctx, missing)
		if err != nil {
			return nil, errors.Wrap(err, "load rules")
		}
		byGroup := make(map[int64][]models.RebateRule, len(missing))
		for _, r := range loaded {
			byGroup[r.GroupID] = append(byGroup[r.GroupID], r)
		}
		for _, id := range missing {
			if err := s.cache.SetGroupRules(ctx, id, byGroup[id]); err != nil {
				s.log.Warn().Err(err).Int64("group_id", id).Msg("rule cache write failed")
			}
		}
		rules = append(rules, loaded...)
	}

	rebate.SortRules(rules)
	return rules, nil
}

// withMirrorGroups fills in mirror groups for positions that arrived
// without them.
func (s *RebateService) withMirrorGroups(ctx context.Context, positions []models.ProductPosition) ([]models.ProductPosition, error) {
	out := make([]models.ProductPosition, len(positions))
	copy(out, positions)
	if s.products == nil {
		return out, nil
	}

	var ids []int64
	for _, p := range out {
		if p.MirrorGroupIDs == nil {
			ids = append(ids, p.ProductID)
		}
	}
	if len(ids) == 0 {
		return out, nil
	}
	mirrors, err := s.products.MirrorGroupIDs(ctx, ids)
	if err != nil {
		return nil, errors.Wrap(err, "load mirror groups")
	}
	for i := range out {
		if out[i].MirrorGroupIDs == nil {
			out[i].MirrorGroupIDs = mirrors[out[i].ProductID]
		}
	}
	return out, nil
}

// CreateRule validates and stores rule, then drops its group's cached list.
func (s *RebateService) CreateRule(ctx context.Context, rule models.RebateRule) (models.RebateRule, error) {
	if rule.Type == "" {
		rule.Type = models.RuleAbsolute
	}
	if rule.Currency == "" {
		rule.Currency = s.defaultCurrency
	}
	if err := rule.Validate(); err != nil {
		return models.RebateRule{}, err
	}
	id, err := s.rules.CreateRule(ctx, rule)
	if err != nil {
		return models.RebateRule{}, errors.Wrap(err, "create rule")
	}
	rule.ID = id

	if err := s.cache.InvalidateGroup(ctx, rule.GroupID); err != nil {
		s.log.Warn().Err(err).Int64("group_id", rule.GroupID).Msg("rule cache invalidation failed")
	}
	s.log.Info().Int64("rule_id", id).Int64("group_id", rule.GroupID).Msg("rebate rule created")
	return rule, nil
}

func (s *RebateService) GetRule(ctx context.Context, id int64) (*models.RebateRule, error) {
	rule, err := s.rules.GetRule(ctx, id)
	if err != nil {
		return nil, errors.Wrap(err, "get rule")
	}
	if rule == nil {
		return nil, errors.Wrapf(ErrRuleNotFound, "rule %d", id)
	}
	return rule, nil
}

// ListGroupRules returns the rules attached to a customer group, newest first.
func (s *RebateService) ListGroupRules(ctx context.Context, groupID int64) ([]models.RebateRule, error) {
	return s.rulesFor(ctx, []int64{groupID})
}
