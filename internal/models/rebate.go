package models

import (
	"strconv"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RuleType enumerates how a rebate value is interpreted.
type RuleType string

const (
	// RuleAbsolute grants Value currency units.
	RuleAbsolute RuleType = "absolute"
	// RulePercent grants Value percent of the discount base.
	RulePercent RuleType = "percent"
)

// valueScale is the number of decimal places a rule value may carry.
const valueScale = 4

// ErrInvalidRule marks a rule that cannot be evaluated.
var ErrInvalidRule = errors.New("invalid rebate rule")

// RebateRule is a time bounded discount policy attached to a customer group.
type RebateRule struct {
	ID                             int64           `json:"id"`
	GroupID                        int64           `json:"group_id"`
	ValidFrom                      time.Time       `json:"valid_from"`
	ValidUntil                     time.Time       `json:"valid_until"`
	Type                           RuleType        `json:"type"`
	Value                          decimal.Decimal `json:"value"`
	MinimumOrderValue              decimal.Decimal `json:"minimum_order_value"`
	Currency                       string          `json:"currency"`
	RestrictToNewsletterRecipients bool            `json:"restrict_to_newsletter_recipients"`
	RestrictToFirstOrder           bool            `json:"restrict_to_first_order"`
	ProductGroupIDs                []int64         `json:"product_group_ids,omitempty"`
	Translations                   []Translation   `json:"translations,omitempty"`
}

// Translation holds the localized title of a rule.
type Translation struct {
	Locale string `json:"locale"`
	Title  string `json:"title"`
}

// Validate reports misconfigured rules. Callers treat a failure as a bug,
// not as an ineligible rule.
func (r RebateRule) Validate() error {
	if !r.ValidFrom.Before(r.ValidUntil) {
		return errors.Wrapf(ErrInvalidRule, "rule %d: valid_from %s is not before valid_until %s",
			r.ID, r.ValidFrom.Format(time.RFC3339), r.ValidUntil.Format(time.RFC3339))
	}
	if r.Value.IsNegative() {
		return errors.Wrapf(ErrInvalidRule, "rule %d: negative value %s", r.ID, r.Value)
	}
	if !r.Value.Round(valueScale).Equal(r.Value) {
		return errors.Wrapf(ErrInvalidRule, "rule %d: value %s has more than %d decimal places", r.ID, r.Value, valueScale)
	}
	if r.MinimumOrderValue.IsNegative() {
		return errors.Wrapf(ErrInvalidRule, "rule %d: negative minimum order value %s", r.ID, r.MinimumOrderValue)
	}
	if !r.MinimumOrderValue.Round(2).Equal(r.MinimumOrderValue) {
		return errors.Wrapf(ErrInvalidRule, "rule %d: minimum order value %s has more than 2 decimal places", r.ID, r.MinimumOrderValue)
	}
	switch r.Type {
	case RuleAbsolute, RulePercent:
	default:
		return errors.Wrapf(ErrInvalidRule, "rule %d: unknown type %q", r.ID, r.Type)
	}
	return nil
}

// ActiveAt reports whether t lies strictly inside the validity window.
func (r RebateRule) ActiveAt(t time.Time) bool {
	return t.After(r.ValidFrom) && t.Before(r.ValidUntil)
}

// Restricted reports whether the rule only applies to some product groups.
func (r RebateRule) Restricted() bool {
	return len(r.ProductGroupIDs) > 0
}

// Title returns the title for locale, falling back to fallbackLocale and
// then to the first translation found.
func (r RebateRule) Title(locale, fallbackLocale string) string {
	for _, tr := range r.Translations {
		if tr.Locale == locale {
			return tr.Title
		}
	}
	for _, tr := range r.Translations {
		if tr.Locale == fallbackLocale {
			return tr.Title
		}
	}
	if len(r.Translations) > 0 {
		return r.Translations[0].Title
	}
	return ""
}

// RulesVersion fingerprints a rule list. Lists that differ in any field
// affecting the computed lines, or in order, yield different values.
func RulesVersion(rules []RebateRule) string {
	var b strings.Builder
	for _, r := range rules {
		b.WriteString("r:")
		b.WriteString(strconv.FormatInt(r.ID, 10))
		b.WriteByte(':')
		b.WriteString(strconv.FormatInt(r.GroupID, 10))
		b.WriteByte(':')
		b.WriteString(string(r.Type))
		b.WriteByte(':')
		b.WriteString(r.Value.String())
		b.WriteByte(':')
		b.WriteString(r.MinimumOrderValue.String())
		b.WriteByte(':')
		b.WriteString(strconv.FormatInt(r.ValidFrom.UnixNano(), 10))
		b.WriteByte(':')
		b.WriteString(strconv.FormatInt(r.ValidUntil.UnixNano(), 10))
		b.WriteByte(':')
		b.WriteString(strconv.FormatBool(r.RestrictToNewsletterRecipients))
		b.WriteByte(':')
		b.WriteString(strconv.FormatBool(r.RestrictToFirstOrder))
		for _, id := range r.ProductGroupIDs {
			b.WriteByte(',')
			b.WriteString(strconv.FormatInt(id, 10))
		}
		for _, tr := range r.Translations {
			b.WriteString("|t:")
			b.WriteString(strconv.Quote(tr.Locale))
			b.WriteString(strconv.Quote(tr.Title))
		}
		b.WriteByte('\n')
	}
	return uuid.NewSHA1(rulesNamespace, []byte(b.String())).String()
}

// rulesNamespace seeds rule list fingerprints.
var rulesNamespace = uuid.MustParse("9d3c2b7e-41a8-4f0e-8a6d-2e5b1c7f4d90")
