package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/Cheertaboi/customer-rebates/internal/concurrency"
	"github.com/Cheertaboi/customer-rebates/internal/models"
)

const defaultHydrateWorkers = 4

const ruleColumns = `
		SELECT id, group_id, valid_from, valid_until, type, value,
		       minimum_order_value, currency,
		       restrict_to_newsletter_recipients, restrict_to_first_order
		FROM customer_rebates`

type RebateRepo struct {
	db      *sql.DB
	workers int
}

// NewRebateRepo returns a repository hydrating rules on up to workers
// goroutines. workers <= 0 uses the default.
func NewRebateRepo(db *sql.DB, workers int) *RebateRepo {
	if workers <= 0 {
		workers = defaultHydrateWorkers
	}
	return &RebateRepo{db: db, workers: workers}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRule(row rowScanner) (models.RebateRule, error) {
	var r models.RebateRule
	var typ string
	err := row.Scan(
		&r.ID,
		&r.GroupID,
		&r.ValidFrom,
		&r.ValidUntil,
		&typ,
		&r.Value,
		&r.MinimumOrderValue,
		&r.Currency,
		&r.RestrictToNewsletterRecipients,
		&r.RestrictToFirstOrder,
	)
	r.Type = models.RuleType(typ)
	return r, err
}

// GetRule returns the rule with id, or nil when it does not exist.
func (r *RebateRepo) GetRule(ctx context.Context, id int64) (*models.RebateRule, error) {
	rule, err := scanRule(r.db.QueryRowContext(ctx, ruleColumns+` WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if err := r.hydrate(ctx, &rule); err != nil {
		return nil, err
	}
	return &rule, nil
}

// ListForGroups returns the rules attached to any of groupIDs, newest
// ValidFrom first.
func (r *RebateRepo) ListForGroups(ctx context.Context, groupIDs []int64) ([]models.RebateRule, error) {
	if len(groupIDs) == 0 {
		return nil, nil
	}
	rows, err := r.db.QueryContext(ctx,
		ruleColumns+` WHERE group_id = ANY($1) ORDER BY valid_from DESC, id ASC`,
		pq.Array(groupIDs))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rules []models.RebateRule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	err = concurrency.ForEach(ctx, r.workers, len(rules), func(ctx context.Context, i int) error {
		return r.hydrate(ctx, &rules[i])
	})
	if err != nil {
		return nil, err
	}
	return rules, nil
}

func (r *RebateRepo) hydrate(ctx context.Context, rule *models.RebateRule) error {
	translations, err := r.getTranslations(ctx, rule.ID)
	if err != nil {
		return fmt.Errorf("translations of rule %d: %w", rule.ID, err)
	}
	groups, err := r.getProductGroups(ctx, rule.ID)
	if err != nil {
		return fmt.Errorf("product groups of rule %d: %w", rule.ID, err)
	}
	rule.Translations = translations
	rule.ProductGroupIDs = groups
	return nil
}

func (r *RebateRepo) getTranslations(ctx context.Context, ruleID int64) ([]models.Translation, error) {
	query := `SELECT locale, title FROM customer_rebate_translations WHERE rebate_id = $1 ORDER BY locale`
	rows, err := r.db.QueryContext(ctx, query, ruleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Translation
	for rows.Next() {
		var tr models.Translation
		if err := rows.Scan(&tr.Locale, &tr.Title); err != nil {
			return nil, err
		}
		out = append(out, tr)
	}
	return out, rows.Err()
}

func (r *RebateRepo) getProductGroups(ctx context.Context, ruleID int64) ([]int64, error) {
	query := `SELECT product_group_id FROM customer_rebate_product_groups WHERE rebate_id = $1 ORDER BY product_group_id`
	rows, err := r.db.QueryContext(ctx, query, ruleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// CreateRule stores rule with its translations and product groups in one
// transaction and returns the new ID.
func (r *RebateRepo) CreateRule(ctx context.Context, rule models.RebateRule) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	insertRule := `
		INSERT INTO customer_rebates
		(group_id, valid_from, valid_until, type, value, minimum_order_value, currency,
		 restrict_to_newsletter_recipients, restrict_to_first_order, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,NOW(),NOW())
		RETURNING id
	`
	var id int64
	err = tx.QueryRowContext(ctx, insertRule,
		rule.GroupID,
		rule.ValidFrom,
		rule.ValidUntil,
		string(rule.Type),
		rule.Value,
		rule.MinimumOrderValue,
		rule.Currency,
		rule.RestrictToNewsletterRecipients,
		rule.RestrictToFirstOrder,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert rule: %w", err)
	}

	if len(rule.Translations) > 0 {
		stmt := `INSERT INTO customer_rebate_translations (rebate_id, locale, title) VALUES ($1, $2, $3)`
		for _, tr := range rule.Translations {
			if _, err := tx.ExecContext(ctx, stmt, id, tr.Locale, tr.Title); err != nil {
				return 0, fmt.Errorf("insert translation %s: %w", tr.Locale, err)
			}
		}
	}

	if len(rule.ProductGroupIDs) > 0 {
		stmt := `INSERT INTO customer_rebate_product_groups (rebate_id, product_group_id) VALUES ($1, $2)`
		for _, gid := range rule.ProductGroupIDs {
			if _, err := tx.ExecContext(ctx, stmt, id, gid); err != nil {
				return 0, fmt.Errorf("insert product group %d: %w", gid, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("tx commit: %w", err)
	}
	return id, nil
}
