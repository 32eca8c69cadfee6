package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/Cheertaboi/customer-rebates/internal/models"
)

var (
	ruleCols = []string{
		"id", "group_id", "valid_from", "valid_until", "type", "value",
		"minimum_order_value", "currency",
		"restrict_to_newsletter_recipients", "restrict_to_first_order",
	}
	from  = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	until = time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)
)

func newMock(t *testing.T) (*RebateRepo, *CustomerRepo, *ProductRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, mock.ExpectationsWereMet())
		_ = db.Close()
	})
	return NewRebateRepo(db, 1), NewCustomerRepo(db), NewProductRepo(db), mock
}

func expectHydrate(mock sqlmock.Sqlmock, id int64, locale, title string, groups ...int64) {
	mock.ExpectQuery(regexp.QuoteMeta("FROM customer_rebate_translations WHERE rebate_id = $1")).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{"locale", "title"}).AddRow(locale, title))
	rows := sqlmock.NewRows([]string{"product_group_id"})
	for _, g := range groups {
		rows.AddRow(g)
	}
	mock.ExpectQuery(regexp.QuoteMeta("FROM customer_rebate_product_groups WHERE rebate_id = $1")).
		WithArgs(id).
		WillReturnRows(rows)
}

func TestGetRule(t *testing.T) {
	repo, _, _, mock := newMock(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM customer_rebates WHERE id = $1")).
		WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows(ruleCols).
			AddRow(int64(3), int64(1), from, until, "percent", "12.50", "20.00", "EUR", true, false))
	expectHydrate(mock, 3, "en_US", "Loyal", 9, 10)

	rule, err := repo.GetRule(context.Background(), 3)
	require.NoError(t, err)
	require.NotNil(t, rule)
	require.Equal(t, models.RulePercent, rule.Type)
	require.Equal(t, "12.5", rule.Value.String())
	require.Equal(t, "20", rule.MinimumOrderValue.String())
	require.True(t, rule.RestrictToNewsletterRecipients)
	require.Equal(t, []int64{9, 10}, rule.ProductGroupIDs)
	require.Equal(t, "Loyal", rule.Title("en_US", "en_US"))
}

func TestGetRuleNotFound(t *testing.T) {
	repo, _, _, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta("FROM customer_rebates WHERE id = $1")).
		WithArgs(int64(4)).
		WillReturnRows(sqlmock.NewRows(ruleCols))

	rule, err := repo.GetRule(context.Background(), 4)
	require.NoError(t, err)
	require.Nil(t, rule)
}

func TestListForGroups(t *testing.T) {
	repo, _, _, mock := newMock(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM customer_rebates WHERE group_id = ANY($1) ORDER BY valid_from DESC, id ASC")).
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows(ruleCols).
			AddRow(int64(1), int64(5), from, until, "absolute", "10", "0", "EUR", false, false).
			AddRow(int64(2), int64(6), from, until, "percent", "5", "0", "EUR", false, true))
	expectHydrate(mock, 1, "en_US", "Ten off")
	expectHydrate(mock, 2, "de_DE", "Fuenf Prozent", 7)

	rules, err := repo.ListForGroups(context.Background(), []int64{5, 6})
	require.NoError(t, err)
	require.Len(t, rules, 2)
	require.Nil(t, rules[0].ProductGroupIDs)
	require.Equal(t, []int64{7}, rules[1].ProductGroupIDs)
	require.True(t, rules[1].RestrictToFirstOrder)

	none, err := repo.ListForGroups(context.Background(), nil)
	require.NoError(t, err)
	require.Nil(t, none)
}

func TestListForGroupsHydrationError(t *testing.T) {
	repo, _, _, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta("FROM customer_rebates WHERE group_id = ANY($1)")).
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows(ruleCols).
			AddRow(int64(1), int64(5), from, until, "absolute", "10", "0", "EUR", false, false))
	mock.ExpectQuery(regexp.QuoteMeta("FROM customer_rebate_translations")).
		WithArgs(int64(1)).
		WillReturnError(errors.New("connection reset"))

	_, err := repo.ListForGroups(context.Background(), []int64{5})
	require.ErrorContains(t, err, "translations of rule 1")
}

func TestCreateRule(t *testing.T) {
	repo, _, _, mock := newMock(t)
	rule := models.RebateRule{
		GroupID:         5,
		ValidFrom:       from,
		ValidUntil:      until,
		Type:            models.RuleAbsolute,
		Currency:        "EUR",
		ProductGroupIDs: []int64{7},
		Translations:    []models.Translation{{Locale: "en_US", Title: "Ten off"}},
	}

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO customer_rebates")).
		WithArgs(int64(5), sqlmock.AnyArg(), sqlmock.AnyArg(), "absolute", sqlmock.AnyArg(), sqlmock.AnyArg(), "EUR", false, false).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(11)))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO customer_rebate_translations")).
		WithArgs(int64(11), "en_US", "Ten off").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO customer_rebate_product_groups")).
		WithArgs(int64(11), int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	id, err := repo.CreateRule(context.Background(), rule)
	require.NoError(t, err)
	require.Equal(t, int64(11), id)
}

func TestCreateRuleRollsBack(t *testing.T) {
	repo, _, _, mock := newMock(t)
	rule := models.RebateRule{
		GroupID:      5,
		ValidFrom:    from,
		ValidUntil:   until,
		Type:         models.RulePercent,
		Currency:     "EUR",
		Translations: []models.Translation{{Locale: "en_US", Title: "Dup"}},
	}

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO customer_rebates")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(12)))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO customer_rebate_translations")).
		WillReturnError(errors.New("duplicate key"))
	mock.ExpectRollback()

	_, err := repo.CreateRule(context.Background(), rule)
	require.ErrorContains(t, err, "insert translation en_US")
}

func TestGetCustomer(t *testing.T) {
	_, repo, _, mock := newMock(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM customers c WHERE c.id = $1")).
		WithArgs(int64(8)).
		WillReturnRows(sqlmock.NewRows([]string{"newsletter_subscriber", "count"}).AddRow(true, int64(2)))
	mock.ExpectQuery(regexp.QuoteMeta("FROM customer_group_members WHERE customer_id = $1")).
		WithArgs(int64(8)).
		WillReturnRows(sqlmock.NewRows([]string{"group_id"}).AddRow(int64(1)).AddRow(int64(3)))

	c, err := repo.GetCustomer(context.Background(), 8)
	require.NoError(t, err)
	require.NotNil(t, c)
	require.True(t, c.NewsletterSubscriber)
	require.True(t, c.HasPriorOrders())
	require.Equal(t, []int64{1, 3}, c.GroupIDs)
}

func TestGetCustomerNotFound(t *testing.T) {
	_, repo, _, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta("FROM customers c WHERE c.id = $1")).
		WithArgs(int64(9)).
		WillReturnRows(sqlmock.NewRows([]string{"newsletter_subscriber", "count"}))

	c, err := repo.GetCustomer(context.Background(), 9)
	require.NoError(t, err)
	require.Nil(t, c)
}

func TestMirrorGroupIDs(t *testing.T) {
	_, _, repo, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta("FROM product_group_mirrors WHERE product_id = ANY($1)")).
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"product_id", "product_group_id"}).
			AddRow(int64(1), int64(20)).
			AddRow(int64(1), int64(21)).
			AddRow(int64(2), int64(30)))

	mirrors, err := repo.MirrorGroupIDs(context.Background(), []int64{1, 2, 3})
	require.NoError(t, err)
	require.Equal(t, map[int64][]int64{1: {20, 21}, 2: {30}}, mirrors)

	empty, err := repo.MirrorGroupIDs(context.Background(), nil)
	require.NoError(t, err)
	require.Empty(t, empty)
}
