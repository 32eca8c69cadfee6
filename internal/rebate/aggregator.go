package rebate

import (
	"sort"

	"github.com/go-faster/errors"

	"github.com/Cheertaboi/customer-rebates/internal/models"
)

// Mode selects how many applicable rules a customer receives.
type Mode string

const (
	// SelectAll applies every eligible rule, each valued on its own.
	SelectAll Mode = "all"
	// SelectHighest applies only the rule with the largest discount.
	SelectHighest Mode = "highest"
)

// ParseMode maps a configuration value to a Mode, defaulting to SelectAll.
func ParseMode(value string) Mode {
	if Mode(value) == SelectHighest {
		return SelectHighest
	}
	return SelectAll
}

// Aggregator finds the rules that apply to a customer.
type Aggregator struct {
	Calc *Calculator
	Mode Mode
	// Observe, when set, sees every evaluation Evaluate produces.
	Observe func(Evaluation)
}

// Evaluate values every rule of the customer's groups, applicable or not.
// Rules of other groups are reported as ReasonCustomerNotInRuleGroup.
func (a *Aggregator) Evaluate(rules []models.RebateRule, cart *models.Cart, customer models.Customer) ([]Evaluation, error) {
	out := make([]Evaluation, 0, len(rules))
	for _, rule := range rules {
		if !customer.InGroup(rule.GroupID) {
			out = append(out, a.observe(Evaluation{Rule: rule, Reason: ReasonCustomerNotInRuleGroup}))
			continue
		}
		ev, err := a.Calc.Evaluate(rule, cart, customer)
		if err != nil {
			return nil, errors.Wrapf(err, "evaluate rule %d", rule.ID)
		}
		out = append(out, a.observe(ev))
	}
	return out, nil
}

func (a *Aggregator) observe(ev Evaluation) Evaluation {
	if a.Observe != nil {
		a.Observe(ev)
	}
	return ev
}

// Applicable returns the evaluations that pass the eligibility gate. In
// SelectHighest mode only the largest discount survives; on a tie the rule
// listed first wins.
func (a *Aggregator) Applicable(rules []models.RebateRule, cart *models.Cart, customer models.Customer) ([]Evaluation, error) {
	all, err := a.Evaluate(rules, cart, customer)
	if err != nil {
		return nil, err
	}
	var out []Evaluation
	for _, ev := range all {
		if ev.Applicable {
			out = append(out, ev)
		}
	}
	if a.Mode != SelectHighest || len(out) < 2 {
		return out, nil
	}
	best := out[0]
	for _, ev := range out[1:] {
		if ev.Discount.GreaterThan(best.Discount) {
			best = ev
		}
	}
	return []Evaluation{best}, nil
}

// SortRules orders rules newest first by ValidFrom, then by ID.
func SortRules(rules []models.RebateRule) {
	sort.SliceStable(rules, func(i, j int) bool {
		if !rules[i].ValidFrom.Equal(rules[j].ValidFrom) {
			return rules[i].ValidFrom.After(rules[j].ValidFrom)
		}
		return rules[i].ID < rules[j].ID
	})
}
