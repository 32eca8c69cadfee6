package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func validRule() RebateRule {
	return RebateRule{
		ID:         1,
		ValidFrom:  time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		ValidUntil: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
		Type:       RuleAbsolute,
		Value:      dec("10"),
	}
}

func TestRuleValidate(t *testing.T) {
	require.NoError(t, validRule().Validate())

	r := validRule()
	r.ValidUntil = r.ValidFrom
	require.ErrorIs(t, r.Validate(), ErrInvalidRule)

	r = validRule()
	r.Value = dec("-0.01")
	require.ErrorIs(t, r.Validate(), ErrInvalidRule)

	r = validRule()
	r.MinimumOrderValue = dec("-1")
	require.ErrorIs(t, r.Validate(), ErrInvalidRule)

	r = validRule()
	r.Type = "fixed"
	require.ErrorIs(t, r.Validate(), ErrInvalidRule)
}

func TestRuleValidateScale(t *testing.T) {
	r := validRule()
	r.Type = RulePercent
	r.Value = dec("12.345")
	require.NoError(t, r.Validate())

	r.Value = dec("12.34567")
	require.ErrorIs(t, r.Validate(), ErrInvalidRule)

	r = validRule()
	r.MinimumOrderValue = dec("49.99")
	require.NoError(t, r.Validate())

	r.MinimumOrderValue = dec("49.999")
	require.ErrorIs(t, r.Validate(), ErrInvalidRule)
}

func TestRulesVersion(t *testing.T) {
	a := []RebateRule{validRule()}
	require.Equal(t, RulesVersion(a), RulesVersion([]RebateRule{validRule()}))

	b := []RebateRule{validRule()}
	b[0].Value = dec("30")
	require.NotEqual(t, RulesVersion(a), RulesVersion(b))

	c := []RebateRule{validRule()}
	c[0].ID = 2
	require.NotEqual(t, RulesVersion(a), RulesVersion(c))

	d := []RebateRule{validRule()}
	d[0].ProductGroupIDs = []int64{4}
	require.NotEqual(t, RulesVersion(a), RulesVersion(d))

	require.NotEqual(t, RulesVersion(a), RulesVersion(nil))
}

func TestRuleActiveAt(t *testing.T) {
	r := validRule()
	require.False(t, r.ActiveAt(r.ValidFrom))
	require.False(t, r.ActiveAt(r.ValidUntil))
	require.True(t, r.ActiveAt(r.ValidFrom.Add(time.Nanosecond)))
}

func TestRuleTitleFallback(t *testing.T) {
	r := validRule()
	require.Equal(t, "", r.Title("de_DE", "en_US"))

	r.Translations = []Translation{{Locale: "fr_FR", Title: "Remise"}, {Locale: "en_US", Title: "Discount"}}
	require.Equal(t, "Discount", r.Title("de_DE", "en_US"))
	require.Equal(t, "Remise", r.Title("fr_FR", "en_US"))
	require.Equal(t, "Remise", r.Title("de_DE", "it_IT"))
}
